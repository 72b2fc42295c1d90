package device

import (
	"log"
	"net"
	"time"

	"general-display/pkg/network"
	"general-display/pkg/settings"
	"general-display/pkg/slideshow"
)

// DisplayPrefs are the boot screen and slideshow preferences
type DisplayPrefs struct {
	AutorunSlideshow bool
	ShowIP           bool
	ShowSSID         bool
	ExhibitPassword  bool
}

type AccessPointConfig struct {
	Name          string
	Password      string
	Encrypted     bool
	CaptivePortal bool
}

type Status struct {
	Network       network.Status  `json:"network"`
	Slideshow     slideshow.State `json:"slideshow"`
	Images        int             `json:"images"`
	Dropped       int             `json:"dropped"`
	SettingsValid bool            `json:"settingsValid"`
	Uptime        string          `json:"uptime"`
}

// Settings returns the stored settings
func (d *Device) Settings() settings.Settings {
	var s settings.Settings
	d.do(func() { s = d.store.Current() })
	return s
}

func (d *Device) SaveDisplayPrefs(p DisplayPrefs) error {
	var err error
	d.do(func() {
		s := d.store.Current()
		s.AutorunSlideshow = p.AutorunSlideshow
		s.ShowIPOnBoot = p.ShowIP
		s.ShowSSIDOnBoot = p.ShowSSID
		s.ExhibitPasswordOnBoot = p.ExhibitPassword
		err = d.store.Save(s)
	})
	return err
}

// JoinNetwork stores station credentials and connects after the
// reconfigure delay. An empty password keeps the stored one.
func (d *Device) JoinNetwork(name, password string) error {
	var err error
	d.do(func() {
		s := d.store.Current()
		if password == "" {
			password = s.NetworkPassword
		}
		s.Mode = settings.ModeStation
		s.NetworkName = name
		s.NetworkPassword = password
		s.WiFiEncrypted = password != ""
		if err = d.store.Save(s); err != nil {
			return
		}
		log.Printf("Device: joining %q in %v", name, d.opts.ReconfigureDelay)
	})
	if err == nil {
		d.renegotiateLater()
	}
	return err
}

// HostAccessPoint stores access point settings and restarts the network
// after the reconfigure delay. An open access point exhibits "no password"
// on the boot screen.
func (d *Device) HostAccessPoint(c AccessPointConfig) error {
	var err error
	d.do(func() {
		s := d.store.Current()
		s.Mode = settings.ModeAccessPoint
		s.NetworkName = c.Name
		s.NetworkPassword = c.Password
		s.WiFiEncrypted = c.Encrypted
		s.CaptivePortal = c.CaptivePortal
		s.ExhibitPasswordOnBoot = !c.Encrypted
		err = d.store.Save(s)
	})
	if err == nil {
		d.renegotiateLater()
	}
	return err
}

func (d *Device) renegotiateLater() {
	time.AfterFunc(d.opts.ReconfigureDelay, func() {
		d.do(func() {
			state := d.net.Negotiate()
			log.Printf("Device: network %s", state)
			d.showNetworkInfo(false)
		})
	})
}

// Networks scans for visible networks. The scan runs off the loop.
func (d *Device) Networks() ([]network.Network, error) {
	return d.net.Scan()
}

func (d *Device) Status() Status {
	var st Status
	d.do(func() {
		st = Status{
			Network:       d.net.Status(),
			Slideshow:     d.show.State(),
			Images:        d.catalog.Len(),
			Dropped:       d.catalog.Dropped(),
			SettingsValid: d.store.Valid(),
			Uptime:        d.opts.Uptime().Truncate(time.Second).String(),
		}
	})
	return st
}

func (d *Device) Hostname() string { return d.opts.Hostname }

// Address is the device's current IP, or nil
func (d *Device) Address() net.IP { return d.net.Address() }

// CaptivePortalActive reports whether the access point is up with the
// captive portal enabled
func (d *Device) CaptivePortalActive() bool {
	return d.net.State() == network.StateSoftAP && d.net.Effective().CaptivePortal
}
