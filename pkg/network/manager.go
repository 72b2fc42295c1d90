package network

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"general-display/pkg/settings"
)

type Options struct {
	Policy RetryPolicy
	Clock  Clock
	// Settle is waited between tearing down the old role and joining
	Settle  time.Duration
	MDNS    Responder
	Captive Responder
}

type Manager struct {
	radio  Radio
	store  SettingsSource
	policy RetryPolicy
	clock  Clock
	settle time.Duration

	mdns    Responder
	captive Responder

	mu        sync.Mutex
	state     State
	fallback  State
	effective settings.Settings
	attempt   Attempt
	apUp      bool
}

func NewManager(radio Radio, store SettingsSource, opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Policy.Classify == nil {
		opts.Policy = StationPolicy(10, 2*time.Second)
	}
	return &Manager{
		radio:   radio,
		store:   store,
		policy:  opts.Policy,
		clock:   opts.Clock,
		settle:  opts.Settle,
		mdns:    opts.MDNS,
		captive: opts.Captive,
		state:   StateIdle,
	}
}

// Negotiate brings up the role stored in settings and returns the state it
// ended in. A station that cannot connect ends in soft-ap with the fallback
// credentials; a password failure also resets the stored WiFi settings.
func (m *Manager) Negotiate() State {
	s := m.store.Current()
	m.stopResponders()

	m.mu.Lock()
	m.fallback = ""
	m.attempt = Attempt{Mode: s.Mode, LastResult: ResultIdle}
	m.mu.Unlock()

	if s.Mode == settings.ModeAccessPoint {
		return m.startSoftAP(s)
	}
	return m.connectStation(s)
}

func (m *Manager) connectStation(s settings.Settings) State {
	m.setState(StateConnectingStation)
	log.Printf("Network: connecting to %q", s.NetworkName)

	if m.apRunning() {
		if err := m.radio.StopAccessPoint(); err != nil {
			log.Printf("Network: failed to stop access point: %v", err)
		}
		m.setAP(false)
	}
	if err := m.radio.Disconnect(); err != nil {
		log.Printf("Network: disconnect before connect failed: %v", err)
	}
	if m.settle > 0 {
		m.clock.Sleep(m.settle)
	}

	connect := func() {
		if err := m.radio.Connect(s.NetworkName, s.NetworkPassword); err != nil {
			log.Printf("Network: connect request failed: %v", err)
		}
	}
	connect()

	var a Attempt
	a.Mode = settings.ModeStation
	result := m.policy.Run(m.clock, m.radio.Result, connect, &a)

	m.mu.Lock()
	m.attempt = a
	m.mu.Unlock()

	switch result {
	case ResultConnected:
		if err := m.radio.SetAutoReconnect(true); err != nil {
			log.Printf("Network: failed to enable auto reconnect: %v", err)
		}
		addr := m.radio.CurrentAddress()
		log.Printf("Network: connected to %q, address %v", s.NetworkName, addr)
		m.mu.Lock()
		m.effective = s
		m.state = StateConnectedStation
		m.mu.Unlock()
		if m.mdns != nil && addr != nil {
			if err := m.mdns.Start(addr); err != nil {
				log.Printf("Network: mDNS responder failed: %v", err)
			}
		}
		return StateConnectedStation

	case ResultBadCredentials:
		m.setState(StateBadPassword)
		log.Printf("Network: password rejected by %q, resetting WiFi settings", s.NetworkName)
		m.abandonStation()
		m.markFallback(StateBadPassword)
		if err := m.store.ResetWiFiOnly(); err != nil {
			log.Printf("Network: failed to store fallback WiFi settings: %v", err)
			return m.startSoftAP(m.withFallbackWiFi(s))
		}
		return m.startSoftAP(m.store.Current())

	default:
		m.setState(StateUnreachable)
		log.Printf("Network: could not reach %q (%v), opening access point", s.NetworkName, result)
		m.abandonStation()
		m.markFallback(StateUnreachable)
		// Stored settings are kept so the next boot tries the network again
		return m.startSoftAP(m.withFallbackWiFi(s))
	}
}

// withFallbackWiFi is s with the fallback access point's network fields
func (m *Manager) withFallbackWiFi(s settings.Settings) settings.Settings {
	fb := m.store.Defaults()
	s.Mode = fb.Mode
	s.WiFiEncrypted = fb.WiFiEncrypted
	s.CaptivePortal = fb.CaptivePortal
	s.NetworkName = fb.NetworkName
	s.NetworkPassword = fb.NetworkPassword
	return s
}

func (m *Manager) abandonStation() {
	if err := m.radio.SetAutoReconnect(false); err != nil {
		log.Printf("Network: failed to disable auto reconnect: %v", err)
	}
	if err := m.radio.Disconnect(); err != nil {
		log.Printf("Network: disconnect failed: %v", err)
	}
}

// startSoftAP opens the access point. The password is omitted entirely for
// an unencrypted AP.
func (m *Manager) startSoftAP(s settings.Settings) State {
	password := s.NetworkPassword
	if !s.WiFiEncrypted {
		password = ""
	}

	if m.apRunning() {
		if err := m.radio.StopAccessPoint(); err != nil {
			log.Printf("Network: failed to stop access point: %v", err)
		}
	}
	if err := m.radio.StartAccessPoint(s.NetworkName, password); err != nil {
		log.Printf("Network: access point %q failed: %v", s.NetworkName, err)
		m.setAP(false)
	} else {
		log.Printf("Network: access point %q running", s.NetworkName)
		m.setAP(true)
		if s.CaptivePortal && m.captive != nil {
			if err := m.captive.Start(m.radio.CurrentAddress()); err != nil {
				log.Printf("Network: captive DNS failed: %v", err)
			}
		}
	}

	m.mu.Lock()
	m.effective = s
	m.state = StateSoftAP
	m.mu.Unlock()
	return StateSoftAP
}

// Scan lists visible networks
func (m *Manager) Scan() ([]Network, error) {
	nets, err := m.radio.ScanNetworks()
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return nets, nil
}

// Shutdown stops responders and drops the current role, before a reboot
func (m *Manager) Shutdown() {
	m.stopResponders()
	if m.apRunning() {
		if err := m.radio.StopAccessPoint(); err != nil {
			log.Printf("Network: failed to stop access point: %v", err)
		}
		m.setAP(false)
	}
	if err := m.radio.Disconnect(); err != nil {
		log.Printf("Network: disconnect failed: %v", err)
	}
	m.setState(StateIdle)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Effective returns the settings the radio is actually running with, which
// differ from the stored ones after an unreachable-network fallback.
func (m *Manager) Effective() settings.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.effective
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	st := Status{
		State:     m.state,
		Mode:      m.effective.Mode,
		APRunning: m.apUp,
		Fallback:  m.fallback,
		Attempt:   m.attempt,
	}
	m.mu.Unlock()

	if addr := m.radio.CurrentAddress(); addr != nil {
		st.Address = addr.String()
	}
	if st.State == StateSoftAP {
		st.SSID = m.Effective().NetworkName
	} else {
		st.SSID = m.radio.SSID()
	}
	return st
}

// Address is the device's current IP, or nil
func (m *Manager) Address() net.IP {
	return m.radio.CurrentAddress()
}

func (m *Manager) stopResponders() {
	for _, r := range []Responder{m.mdns, m.captive} {
		if r == nil {
			continue
		}
		if err := r.Stop(); err != nil {
			log.Printf("Network: failed to stop responder: %v", err)
		}
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Manager) markFallback(s State) {
	m.mu.Lock()
	m.fallback = s
	m.mu.Unlock()
}

func (m *Manager) setAP(up bool) {
	m.mu.Lock()
	m.apUp = up
	m.mu.Unlock()
}

func (m *Manager) apRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.apUp
}
