// Package wifi drives the Linux wireless stack: wpa_supplicant for station
// mode, hostapd and dnsmasq for the access point.
package wifi

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log"
	"net"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"general-display/pkg/globals"
	"general-display/pkg/network"
)

// Radio implements network.Radio on a wireless interface
type Radio struct {
	mu     sync.Mutex
	iface  string
	target string
	ap     *accessPoint
}

func New(iface string) *Radio {
	return &Radio{iface: iface, ap: &accessPoint{iface: iface}}
}

var _ network.Radio = (*Radio)(nil)

// Connect writes the credentials for wpa_supplicant and asks it to join.
// password is empty for open networks.
func (r *Radio) Connect(ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = ssid

	conf := supplicantConfig(ssid, password)
	write := exec.Command("sudo", "tee", globals.WpaSupplicantPath)
	write.Stdin = bytes.NewReader(conf)
	if err := write.Run(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	if !r.supplicantRunning() {
		if err := exec.Command("sudo", "wpa_supplicant", "-B", "-i", r.iface, "-c", globals.WpaSupplicantPath).Run(); err != nil {
			return fmt.Errorf("failed to start wpa_supplicant: %w", err)
		}
		return nil
	}

	if err := r.cli("reconfigure"); err != nil {
		return fmt.Errorf("failed to reconfigure: %w", err)
	}
	return nil
}

// Result reads the supplicant state once and classifies it
func (r *Radio) Result() network.ResultCode {
	r.mu.Lock()
	target := r.target
	r.mu.Unlock()

	status, err := exec.Command("wpa_cli", "-i", r.iface, "status").Output()
	if err != nil {
		return network.ResultIdle
	}
	list, _ := exec.Command("wpa_cli", "-i", r.iface, "list_networks").Output()
	scan, _ := exec.Command("wpa_cli", "-i", r.iface, "scan_results").Output()

	return classifyStatus(parseStatus(string(status)), string(list), string(scan), target)
}

func (r *Radio) Disconnect() error {
	if !r.supplicantRunning() {
		return nil
	}
	if err := r.cli("disconnect"); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}

func (r *Radio) SetAutoReconnect(on bool) error {
	if !r.supplicantRunning() {
		return nil
	}
	flag := "0"
	if on {
		flag = "1"
	}
	if err := r.cli("sta_autoconnect", flag); err != nil {
		return fmt.Errorf("failed to set auto reconnect: %w", err)
	}
	if on {
		return r.cli("reconnect")
	}
	return nil
}

func (r *Radio) StartAccessPoint(ssid, password string) error {
	// The supplicant would fight hostapd for the interface
	exec.Command("sudo", "killall", "wpa_supplicant").Run()
	return r.ap.start(ssid, password)
}

func (r *Radio) StopAccessPoint() error {
	return r.ap.stop()
}

// ScanNetworks lists visible networks
func (r *Radio) ScanNetworks() ([]network.Network, error) {
	exec.Command("sudo", "iwlist", r.iface, "scan").Run() // Trigger scan

	output, err := exec.Command("sudo", "iwlist", r.iface, "scan").Output()
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return parseNetworks(string(output)), nil
}

// CurrentAddress is the first IPv4 address on the interface
func (r *Radio) CurrentAddress() net.IP {
	ifi, err := net.InterfaceByName(r.iface)
	if err != nil {
		return nil
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
			return ipnet.IP.To4()
		}
	}
	return nil
}

// SSID of the network joined as a station
func (r *Radio) SSID() string {
	output, err := exec.Command("iwgetid", "-r").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

func (r *Radio) supplicantRunning() bool {
	out, err := exec.Command("wpa_cli", "-i", r.iface, "ping").Output()
	return err == nil && strings.Contains(string(out), "PONG")
}

func (r *Radio) cli(args ...string) error {
	out, err := exec.Command("wpa_cli", append([]string{"-i", r.iface}, args...)...).Output()
	if err != nil {
		return err
	}
	if strings.Contains(string(out), "FAIL") {
		return fmt.Errorf("wpa_cli %s: %s", args[0], strings.TrimSpace(string(out)))
	}
	return nil
}

// PSK derives the 256 bit WPA pre-shared key, as wpa_passphrase does
func PSK(ssid, passphrase string) string {
	return hex.EncodeToString(pbkdf2.Key([]byte(passphrase), []byte(ssid), 4096, 32, sha1.New))
}

func supplicantConfig(ssid, password string) []byte {
	var b strings.Builder
	b.WriteString("ctrl_interface=DIR=/var/run/wpa_supplicant GROUP=netdev\n")
	b.WriteString("update_config=1\n\n")
	b.WriteString("network={\n")
	fmt.Fprintf(&b, "\tssid=%s\n", hex.EncodeToString([]byte(ssid)))
	if password == "" {
		b.WriteString("\tkey_mgmt=NONE\n")
	} else {
		fmt.Fprintf(&b, "\tpsk=%s\n", PSK(ssid, password))
	}
	b.WriteString("}\n")
	return []byte(b.String())
}

func parseStatus(output string) map[string]string {
	status := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		if k, v, ok := strings.Cut(strings.TrimSpace(line), "="); ok {
			status[k] = v
		}
	}
	return status
}

// classifyStatus maps supplicant state to a connect result. A network the
// supplicant has temporarily disabled failed authentication; an SSID that
// is missing from the scan results is not in range.
func classifyStatus(status map[string]string, listNetworks, scanResults, target string) network.ResultCode {
	switch status["wpa_state"] {
	case "COMPLETED":
		if status["ip_address"] != "" {
			return network.ResultConnected
		}
		return network.ResultConnecting
	case "AUTHENTICATING", "ASSOCIATING", "ASSOCIATED", "4WAY_HANDSHAKE", "GROUP_HANDSHAKE":
		return network.ResultConnecting
	case "INTERFACE_DISABLED", "":
		return network.ResultIdle
	}

	if strings.Contains(listNetworks, "TEMP-DISABLED") {
		return network.ResultBadCredentials
	}
	if target != "" && !scanHas(scanResults, target) {
		return network.ResultNoMatchingNetwork
	}
	return network.ResultConnecting
}

// scanHas looks for ssid in the last column of wpa_cli scan_results
func scanHas(scanResults, ssid string) bool {
	for _, line := range strings.Split(scanResults, "\n") {
		fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(fields) >= 5 && fields[4] == ssid {
			return true
		}
	}
	return false
}

var (
	ssidRe    = regexp.MustCompile(`ESSID:"([^"]+)"`)
	qualityRe = regexp.MustCompile(`Quality=(\d+)/(\d+)`)
	keyRe     = regexp.MustCompile(`Encryption key:(on|off)`)
)

func parseNetworks(output string) []network.Network {
	var networks []network.Network

	for _, cell := range strings.Split(output, "Cell ")[1:] {
		ssidMatch := ssidRe.FindStringSubmatch(cell)
		if len(ssidMatch) < 2 {
			continue
		}

		n := network.Network{SSID: ssidMatch[1], Encryption: network.EncryptionNone}

		if qualityMatch := qualityRe.FindStringSubmatch(cell); len(qualityMatch) > 2 {
			var quality, max int
			fmt.Sscanf(qualityMatch[1], "%d", &quality)
			fmt.Sscanf(qualityMatch[2], "%d", &max)
			if max > 0 {
				n.Signal = (quality * 100) / max
			}
		}

		if keyMatch := keyRe.FindStringSubmatch(cell); len(keyMatch) > 1 && keyMatch[1] == "on" {
			n.Encryption = encryptionOf(cell)
		}

		networks = append(networks, n)
	}

	log.Printf("WiFi: scan found %d networks", len(networks))
	return networks
}

func encryptionOf(cell string) network.EncryptionType {
	wpa2 := strings.Contains(cell, "IEEE 802.11i/WPA2")
	wpa := strings.Contains(cell, "WPA Version 1")
	switch {
	case wpa && wpa2:
		return network.EncryptionAuto
	case wpa2:
		return network.EncryptionWPA2
	case wpa:
		return network.EncryptionWPA
	}
	return network.EncryptionWEP
}
