package wifi

import (
	"testing"

	"general-display/pkg/network"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const iwlistOutput = `wlan0     Scan completed :
          Cell 01 - Address: 00:11:22:33:44:55
                    Channel:6
                    Quality=70/70  Signal level=-40 dBm
                    Encryption key:on
                    ESSID:"HomeNet"
                    IE: IEEE 802.11i/WPA2 Version 1
          Cell 02 - Address: 00:11:22:33:44:66
                    Quality=35/70  Signal level=-75 dBm
                    Encryption key:off
                    ESSID:"Cafe"
          Cell 03 - Address: 00:11:22:33:44:77
                    Quality=20/70  Signal level=-80 dBm
                    Encryption key:on
                    ESSID:"Legacy"
          Cell 04 - Address: 00:11:22:33:44:88
                    Quality=50/70  Signal level=-60 dBm
                    Encryption key:on
                    ESSID:"Mixed"
                    IE: WPA Version 1
                    IE: IEEE 802.11i/WPA2 Version 1
          Cell 05 - Address: 00:11:22:33:44:99
                    Encryption key:on
                    ESSID:""
`

func TestParseNetworks(t *testing.T) {
	nets := parseNetworks(iwlistOutput)
	require.Len(t, nets, 4)

	assert.Equal(t, network.Network{SSID: "HomeNet", Signal: 100, Encryption: network.EncryptionWPA2}, nets[0])
	assert.Equal(t, network.Network{SSID: "Cafe", Signal: 50, Encryption: network.EncryptionNone}, nets[1])
	assert.Equal(t, network.EncryptionWEP, nets[2].Encryption)
	assert.Equal(t, network.EncryptionAuto, nets[3].Encryption)
}

func TestClassifyStatus(t *testing.T) {
	scan := "bssid / frequency / signal level / flags / ssid\n" +
		"00:11:22:33:44:55\t2437\t-40\t[WPA2-PSK-CCMP][ESS]\tHomeNet\n"

	cases := []struct {
		name   string
		status string
		list   string
		target string
		want   network.ResultCode
	}{
		{"connected", "wpa_state=COMPLETED\nip_address=10.0.0.42\n", "", "HomeNet", network.ResultConnected},
		{"waiting for dhcp", "wpa_state=COMPLETED\n", "", "HomeNet", network.ResultConnecting},
		{"handshake", "wpa_state=4WAY_HANDSHAKE\n", "", "HomeNet", network.ResultConnecting},
		{"wrong password", "wpa_state=SCANNING\n", "0\tHomeNet\tany\t[TEMP-DISABLED]\n", "HomeNet", network.ResultBadCredentials},
		{"out of range", "wpa_state=SCANNING\n", "0\tAway\tany\t\n", "Away", network.ResultNoMatchingNetwork},
		{"visible, still scanning", "wpa_state=SCANNING\n", "0\tHomeNet\tany\t\n", "HomeNet", network.ResultConnecting},
		{"interface down", "wpa_state=INTERFACE_DISABLED\n", "", "HomeNet", network.ResultIdle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classifyStatus(parseStatus(tc.status), tc.list, scan, tc.target)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPSK(t *testing.T) {
	// IEEE 802.11i test vector
	assert.Equal(t,
		"f42c6fc52df0ebef9ebb4b90b38a5f902e83fe1b135a70e23aed762e9710a12e",
		PSK("IEEE", "password"))
}

func TestSupplicantConfig(t *testing.T) {
	open := string(supplicantConfig(`My "Net"`, ""))
	assert.Contains(t, open, "\tssid=4d7920224e657422\n")
	assert.Contains(t, open, "key_mgmt=NONE")

	// A line break in the name stays inside the hex field
	injected := string(supplicantConfig("ap\nkey_mgmt=NONE", "password"))
	assert.Contains(t, injected, "\tssid=61700a6b65795f6d676d743d4e4f4e45\n")
	assert.NotContains(t, injected, "key_mgmt=NONE")

	secured := string(supplicantConfig("IEEE", "password"))
	assert.Contains(t, secured, "psk=f42c6fc52df0ebef9ebb4b90b38a5f902e83fe1b135a70e23aed762e9710a12e")
	assert.NotContains(t, secured, "password")
}

func TestHostapdConfig(t *testing.T) {
	open := hostapdConfig("wlan0", "ESP_Config", "")
	assert.Contains(t, open, "\nssid2=4553505f436f6e666967\n")
	assert.NotContains(t, open, "wpa=")

	injected := hostapdConfig("wlan0", "ap\nwpa=0\nx", "")
	assert.Contains(t, injected, "\nssid2=61700a7770613d300a78\n")
	assert.NotContains(t, injected, "wpa=0")

	quoted := hostapdConfig("wlan0", `My "Net"`, "")
	assert.Contains(t, quoted, "\nssid2=4d7920224e657422\n")

	secured := hostapdConfig("wlan0", "ESP_Config", "EspWiFiDisplay")
	assert.Contains(t, secured, "wpa=2\n")
	assert.Contains(t, secured, "wpa_psk="+PSK("ESP_Config", "EspWiFiDisplay"))
	assert.NotContains(t, secured, "EspWiFiDisplay")
}

func TestDnsmasqConfig(t *testing.T) {
	conf := dnsmasqConfig("wlan0")
	assert.Contains(t, conf, "port=0\n")
	assert.Contains(t, conf, "dhcp-range=192.168.4.2,192.168.4.20,255.255.255.0,24h\n")
}
