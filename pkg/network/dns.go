package network

import (
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"sync"

	"golang.org/x/net/dns/dnsmessage"
)

var mdnsGroup = &net.UDPAddr{IP: net.IPv4(224, 0, 0, 251), Port: 5353}

const recordTTL = 120

// DNSResponder answers A queries with the device address. In captive mode
// it answers every name on port 53; in mDNS mode it answers only for
// <hostname>.local and the _http._tcp service on the multicast group.
type DNSResponder struct {
	hostname string // empty for captive
	port     uint16
	listen   func() (net.PacketConn, error)

	mu   sync.Mutex
	conn net.PacketConn
	addr [4]byte
}

// NewCaptiveDNS resolves every name to the device, so clients of the
// access point are led to the setup pages.
func NewCaptiveDNS() *DNSResponder {
	return &DNSResponder{
		listen: func() (net.PacketConn, error) { return net.ListenPacket("udp4", ":53") },
	}
}

// NewMDNS advertises hostname.local and an HTTP service on port
func NewMDNS(hostname string, port int) *DNSResponder {
	return &DNSResponder{
		hostname: strings.ToLower(hostname),
		port:     uint16(port),
		listen: func() (net.PacketConn, error) {
			return net.ListenMulticastUDP("udp4", nil, mdnsGroup)
		},
	}
}

func (d *DNSResponder) multicast() bool { return d.hostname != "" }

func (d *DNSResponder) Start(addr net.IP) error {
	v4 := addr.To4()
	if v4 == nil {
		return fmt.Errorf("dns responder needs an IPv4 address, got %v", addr)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn != nil {
		copy(d.addr[:], v4)
		return nil
	}

	conn, err := d.listen()
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	d.conn = conn
	copy(d.addr[:], v4)

	go d.serve(conn)
	if d.multicast() {
		log.Printf("DNS: advertising %s.local at %v", d.hostname, addr)
	} else {
		log.Printf("DNS: captive responder at %v", addr)
	}
	return nil
}

func (d *DNSResponder) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}

func (d *DNSResponder) serve(conn net.PacketConn) {
	buf := make([]byte, 1500)
	for {
		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Printf("DNS: read error: %v", err)
			}
			return
		}

		d.mu.Lock()
		addr := d.addr
		d.mu.Unlock()

		resp, ok := d.answer(buf[:n], addr)
		if !ok {
			continue
		}

		to := from
		// Queries from the mDNS port get their answer on the group
		if udp, isUDP := from.(*net.UDPAddr); d.multicast() && isUDP && udp.Port == mdnsGroup.Port {
			to = mdnsGroup
		}
		if _, err := conn.WriteTo(resp, to); err != nil {
			log.Printf("DNS: write error: %v", err)
		}
	}
}

func (d *DNSResponder) hostName() string    { return d.hostname + ".local." }
func (d *DNSResponder) serviceName() string { return "_http._tcp.local." }
func (d *DNSResponder) instanceName() string {
	return d.hostname + "._http._tcp.local."
}

// answer builds a response to query, or reports false when the query is
// not for us.
func (d *DNSResponder) answer(query []byte, addr [4]byte) ([]byte, bool) {
	var p dnsmessage.Parser
	hdr, err := p.Start(query)
	if err != nil || hdr.Response {
		return nil, false
	}
	q, err := p.Question()
	if err != nil {
		return nil, false
	}
	qname := strings.ToLower(q.Name.String())

	type kind int
	const (
		none kind = iota
		hostA
		service
	)
	want := none
	switch {
	case !d.multicast():
		if q.Type == dnsmessage.TypeA {
			want = hostA
		}
	case qname == d.hostName() && (q.Type == dnsmessage.TypeA || q.Type == dnsmessage.TypeALL):
		want = hostA
	case qname == d.serviceName() && (q.Type == dnsmessage.TypePTR || q.Type == dnsmessage.TypeALL):
		want = service
	}
	if want == none && d.multicast() {
		return nil, false
	}

	b := dnsmessage.NewBuilder(make([]byte, 0, 512), dnsmessage.Header{
		ID:            hdr.ID,
		Response:      true,
		Authoritative: true,
		RCode:         dnsmessage.RCodeSuccess,
	})
	b.EnableCompression()

	if !d.multicast() {
		// Unicast DNS echoes the question
		if err := b.StartQuestions(); err != nil {
			return nil, false
		}
		if err := b.Question(q); err != nil {
			return nil, false
		}
	}
	if err := b.StartAnswers(); err != nil {
		return nil, false
	}

	class := dnsmessage.ClassINET
	if d.multicast() {
		// cache-flush bit
		class |= 1 << 15
	}

	switch want {
	case hostA:
		name := q.Name
		if d.multicast() {
			name = dnsmessage.MustNewName(d.hostName())
		}
		err = b.AResource(dnsmessage.ResourceHeader{Name: name, Class: class, TTL: recordTTL}, dnsmessage.AResource{A: addr})
	case service:
		err = d.serviceRecords(&b, addr)
	}
	if err != nil {
		log.Printf("DNS: failed to build answer: %v", err)
		return nil, false
	}

	resp, err := b.Finish()
	if err != nil {
		return nil, false
	}
	return resp, true
}

func (d *DNSResponder) serviceRecords(b *dnsmessage.Builder, addr [4]byte) error {
	instance := dnsmessage.MustNewName(d.instanceName())
	host := dnsmessage.MustNewName(d.hostName())

	if err := b.PTRResource(dnsmessage.ResourceHeader{
		Name: dnsmessage.MustNewName(d.serviceName()), Class: dnsmessage.ClassINET, TTL: recordTTL,
	}, dnsmessage.PTRResource{PTR: instance}); err != nil {
		return err
	}
	if err := b.StartAdditionals(); err != nil {
		return err
	}
	if err := b.SRVResource(dnsmessage.ResourceHeader{
		Name: instance, Class: dnsmessage.ClassINET, TTL: recordTTL,
	}, dnsmessage.SRVResource{Target: host, Port: d.port}); err != nil {
		return err
	}
	if err := b.TXTResource(dnsmessage.ResourceHeader{
		Name: instance, Class: dnsmessage.ClassINET, TTL: recordTTL,
	}, dnsmessage.TXTResource{TXT: []string{"path=/"}}); err != nil {
		return err
	}
	return b.AResource(dnsmessage.ResourceHeader{Name: host, Class: dnsmessage.ClassINET, TTL: recordTTL}, dnsmessage.AResource{A: addr})
}
