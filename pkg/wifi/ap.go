package wifi

import (
	"encoding/hex"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"

	"general-display/pkg/globals"
)

type accessPoint struct {
	mu         sync.Mutex
	iface      string
	running    bool
	hostapdCmd *exec.Cmd
	dnsmasqCmd *exec.Cmd
}

// start brings the interface up at the fixed AP address and runs hostapd
// plus dnsmasq for DHCP. An empty password makes an open network.
func (a *accessPoint) start(ssid, password string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		a.kill()
	}

	if err := exec.Command("sudo", "ip", "addr", "flush", "dev", a.iface).Run(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", a.iface, err)
	}
	if err := exec.Command("sudo", "ip", "addr", "add", globals.APCIDR, "dev", a.iface).Run(); err != nil {
		return fmt.Errorf("failed to set IP: %w", err)
	}
	if err := exec.Command("sudo", "ip", "link", "set", a.iface, "up").Run(); err != nil {
		return fmt.Errorf("failed to bring up %s: %w", a.iface, err)
	}

	if err := a.startDNSMasq(); err != nil {
		return fmt.Errorf("failed to start dnsmasq: %w", err)
	}
	if err := a.startHostAPD(ssid, password); err != nil {
		a.kill()
		return fmt.Errorf("failed to start hostapd: %w", err)
	}

	a.running = true
	log.Printf("WiFi: access point %q at %s", ssid, globals.APAddress)
	return nil
}

func (a *accessPoint) stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	lastErr := a.kill()
	if err := exec.Command("sudo", "ip", "addr", "flush", "dev", a.iface).Run(); err != nil {
		lastErr = fmt.Errorf("failed to flush %s: %w", a.iface, err)
	}

	a.running = false
	return lastErr
}

func (a *accessPoint) kill() error {
	var lastErr error
	if a.hostapdCmd != nil && a.hostapdCmd.Process != nil {
		if err := a.hostapdCmd.Process.Kill(); err != nil {
			lastErr = fmt.Errorf("failed to kill hostapd: %w", err)
		}
		a.hostapdCmd.Wait()
		a.hostapdCmd = nil
	}
	if a.dnsmasqCmd != nil && a.dnsmasqCmd.Process != nil {
		if err := a.dnsmasqCmd.Process.Kill(); err != nil {
			lastErr = fmt.Errorf("failed to kill dnsmasq: %w", err)
		}
		a.dnsmasqCmd.Wait()
		a.dnsmasqCmd = nil
	}
	return lastErr
}

func (a *accessPoint) startDNSMasq() error {
	cmd := exec.Command("sudo", "tee", "/tmp/dnsmasq-display.conf")
	cmd.Stdin = strings.NewReader(dnsmasqConfig(a.iface))
	if err := cmd.Run(); err != nil {
		return err
	}

	a.dnsmasqCmd = exec.Command("sudo", "dnsmasq", "-C", "/tmp/dnsmasq-display.conf", "--no-daemon")
	return a.dnsmasqCmd.Start()
}

func (a *accessPoint) startHostAPD(ssid, password string) error {
	cmd := exec.Command("sudo", "tee", "/tmp/hostapd-display.conf")
	cmd.Stdin = strings.NewReader(hostapdConfig(a.iface, ssid, password))
	if err := cmd.Run(); err != nil {
		return err
	}

	a.hostapdCmd = exec.Command("sudo", "hostapd", "/tmp/hostapd-display.conf")
	return a.hostapdCmd.Start()
}

// dnsmasqConfig only hands out leases; names are answered by the captive
// DNS responder when enabled.
func dnsmasqConfig(iface string) string {
	return fmt.Sprintf(`interface=%s
port=0
dhcp-range=%s
dhcp-option=option:router,%s
dhcp-option=option:dns-server,%s
`, iface, globals.DHCPRange, globals.APAddress, globals.APAddress)
}

func hostapdConfig(iface, ssid, password string) string {
	conf := fmt.Sprintf(`interface=%s
driver=nl80211
ssid2=%s
hw_mode=g
channel=7
wmm_enabled=0
macaddr_acl=0
auth_algs=1
ignore_broadcast_ssid=0
`, iface, hex.EncodeToString([]byte(ssid)))
	if password != "" {
		conf += fmt.Sprintf(`wpa=2
wpa_key_mgmt=WPA-PSK
rsn_pairwise=CCMP
wpa_psk=%s
`, PSK(ssid, password))
	}
	return conf
}
