// Package network negotiates the device's WiFi role: join a configured
// network as a station, or run the provisioning access point when that is
// configured or when joining fails.
package network

import (
	"net"

	"general-display/pkg/settings"
)

// ResultCode is what the radio reports for a station connect attempt
type ResultCode int

const (
	ResultIdle ResultCode = iota
	ResultConnecting
	ResultConnected
	ResultNoMatchingNetwork
	ResultBadCredentials
	ResultTimeout
)

func (r ResultCode) String() string {
	switch r {
	case ResultIdle:
		return "idle"
	case ResultConnecting:
		return "connecting"
	case ResultConnected:
		return "connected"
	case ResultNoMatchingNetwork:
		return "no matching network"
	case ResultBadCredentials:
		return "bad credentials"
	case ResultTimeout:
		return "timeout"
	}
	return "unknown"
}

// EncryptionType uses the numeric codes of the ESP WiFi driver family
type EncryptionType byte

const (
	EncryptionWPA  EncryptionType = 2
	EncryptionWPA2 EncryptionType = 4
	EncryptionWEP  EncryptionType = 5
	EncryptionNone EncryptionType = 7
	EncryptionAuto EncryptionType = 8
)

func (e EncryptionType) String() string {
	switch e {
	case EncryptionWPA:
		return "WPA"
	case EncryptionWPA2:
		return "WPA2"
	case EncryptionWEP:
		return "WEP"
	case EncryptionNone:
		return "None"
	case EncryptionAuto:
		return "Auto"
	}
	return "Unknown"
}

// Network is one scan result
type Network struct {
	SSID       string         `json:"ssid"`
	Signal     int            `json:"signal"` // 0-100
	Encryption EncryptionType `json:"encryption"`
}

// Radio is the platform WiFi driver. Result polls the outcome of the last
// Connect without blocking for long.
type Radio interface {
	Connect(ssid, password string) error
	Result() ResultCode
	Disconnect() error
	SetAutoReconnect(on bool) error
	StartAccessPoint(ssid, password string) error
	StopAccessPoint() error
	ScanNetworks() ([]Network, error)
	CurrentAddress() net.IP
	SSID() string
}

// Responder answers name queries for the device once an address is known
type Responder interface {
	Start(addr net.IP) error
	Stop() error
}

// SettingsSource is the part of settings.Store the manager needs
type SettingsSource interface {
	Current() settings.Settings
	Defaults() settings.Settings
	ResetWiFiOnly() error
}

// State of the negotiation. The transitions are:
//
//	idle       -> connecting | soft-ap
//	connecting -> connected | bad-password | unreachable
//	bad-password, unreachable -> soft-ap
//
// connected and soft-ap are terminal until the next Negotiate.
type State string

const (
	StateIdle              State = "idle"
	StateConnectingStation State = "connecting"
	StateConnectedStation  State = "connected"
	StateBadPassword       State = "bad-password"
	StateUnreachable       State = "unreachable"
	StateSoftAP            State = "soft-ap"
)

// Attempt describes the current or last station connect
type Attempt struct {
	Mode             settings.Mode `json:"mode"`
	RetriesRemaining int           `json:"retriesRemaining"`
	LastResult       ResultCode    `json:"lastResult"`
}

// Status is a snapshot for pages and the boot screen
type Status struct {
	State     State         `json:"state"`
	Mode      settings.Mode `json:"mode"`
	Address   string        `json:"address"`
	SSID      string        `json:"ssid"`
	APRunning bool          `json:"apRunning"`
	Fallback  State         `json:"fallback,omitempty"` // why soft-ap was entered, if not configured
	Attempt   Attempt       `json:"attempt"`
}
