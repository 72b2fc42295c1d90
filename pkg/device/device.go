// Package device owns the firmware state and runs the loop that mutates it.
// Everything that touches settings, the catalog, the slideshow or the
// display runs on that loop; the exported methods hand work to it and wait.
package device

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"log"
	"os/exec"
	"sync"
	"time"

	"general-display/pkg/catalog"
	"general-display/pkg/display"
	"general-display/pkg/network"
	"general-display/pkg/settings"
	"general-display/pkg/slideshow"
)

type Options struct {
	Hostname        string
	SlideshowPeriod time.Duration
	// TickInterval is how often the slideshow is checked
	TickInterval time.Duration
	// ReconfigureDelay lets the settings page answer before the radio
	// drops its current role
	ReconfigureDelay time.Duration
	RebootDelay      time.Duration
	Reboot           func() error
	// Uptime defaults to time since New
	Uptime func() time.Duration
}

// Event is pushed to subscribers when the display changes
type Event struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

type Device struct {
	store   *settings.Store
	net     *network.Manager
	catalog *catalog.Catalog
	show    *slideshow.Controller
	disp    display.Display
	images  fs.FS
	opts    Options

	jobs    chan func()
	stopped chan struct{}

	subMu  sync.Mutex
	subs   map[int]chan Event
	nextID int
}

func New(store *settings.Store, net *network.Manager, cat *catalog.Catalog, disp display.Display, images fs.FS, opts Options) *Device {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	if opts.Reboot == nil {
		opts.Reboot = func() error { return exec.Command("sudo", "reboot").Run() }
	}
	if opts.Uptime == nil {
		start := time.Now()
		opts.Uptime = func() time.Duration { return time.Since(start) }
	}

	return &Device{
		store:   store,
		net:     net,
		catalog: cat,
		show:    slideshow.New(cat, opts.SlideshowPeriod),
		disp:    disp,
		images:  images,
		opts:    opts,
		jobs:    make(chan func()),
		stopped: make(chan struct{}),
		subs:    make(map[int]chan Event),
	}
}

// Boot loads the settings, brings the network up and shows the network
// screen. It runs before Run, while nothing else touches the device.
func (d *Device) Boot() {
	if _, err := d.store.Load(); err != nil {
		log.Printf("Device: no valid settings (%v), writing defaults", err)
		if err := d.store.ResetAll(); err != nil {
			log.Printf("Device: failed to write default settings: %v", err)
		}
	}

	state := d.net.Negotiate()
	log.Printf("Device: network %s", state)

	d.scan()
	if d.store.Current().AutorunSlideshow {
		d.show.Start()
	}
	d.showNetworkInfo(false)
}

// Run is the loop. It returns when ctx is done.
func (d *Device) Run(ctx context.Context) {
	defer close(d.stopped)

	ticker := time.NewTicker(d.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.jobs:
			job()
		case <-ticker.C:
			d.tick()
		}
	}
}

// do runs fn on the loop and waits for it. After the loop has stopped fn
// is dropped.
func (d *Device) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case d.jobs <- func() { defer close(done); fn() }:
		<-done
		return true
	case <-d.stopped:
		return false
	}
}

func (d *Device) tick() {
	desc, ok := d.show.Tick(d.opts.Uptime())
	if !ok {
		return
	}
	d.render(desc)
}

func (d *Device) render(desc catalog.Descriptor) error {
	if err := display.Render(d.disp, d.images, desc); err != nil {
		log.Printf("Device: %v", err)
		return err
	}
	d.emit(Event{Type: "render", Path: desc.Path})
	return nil
}

func (d *Device) scan() []catalog.Descriptor {
	entries := d.catalog.Scan(d.images, d.disp.Width(), d.disp.Height())
	d.show.Refresh()
	return entries
}

func (d *Device) showNetworkInfo(force bool) {
	st := d.net.Status()
	eff := d.net.Effective()
	prefs := d.store.Current()

	info := display.NetworkInfo{
		Address:         st.Address,
		SSID:            st.SSID,
		AccessPoint:     st.State == network.StateSoftAP,
		Encrypted:       eff.WiFiEncrypted,
		Password:        eff.NetworkPassword,
		ShowIP:          prefs.ShowIPOnBoot,
		ShowSSID:        prefs.ShowSSIDOnBoot,
		ExhibitPassword: prefs.ExhibitPasswordOnBoot,
	}
	if err := display.ShowNetworkInfo(d.disp, info, force); err != nil {
		log.Printf("Device: failed to show network info: %v", err)
	}
	// Keep the screen up for a full period before the slideshow resumes
	d.show.SuspendOneCycle(d.opts.Uptime())
	d.emit(Event{Type: "network"})
}

// Images rescans the image storage and returns the eligible images
func (d *Device) Images() []catalog.Descriptor {
	var entries []catalog.Descriptor
	d.do(func() { entries = d.scan() })
	return entries
}

// Select shows the named catalog entry, or clears the screen for "off"
func (d *Device) Select(name string) error {
	var err error
	d.do(func() {
		if name == "off" {
			d.disp.Clear()
			err = d.disp.Present()
			d.emit(Event{Type: "clear"})
			return
		}
		desc, ok := d.catalog.Find(name)
		if !ok {
			err = fmt.Errorf("%s: %w", name, fs.ErrNotExist)
			return
		}
		err = d.render(desc)
	})
	return err
}

// StartSlideshow reports whether the slideshow is running afterwards
func (d *Device) StartSlideshow() bool {
	var running bool
	d.do(func() { running = d.show.Start() })
	return running
}

func (d *Device) StopSlideshow() {
	d.do(d.show.Stop)
}

// ShowWiFi forces the network screen and holds the slideshow for a cycle
func (d *Device) ShowWiFi() {
	d.do(func() { d.showNetworkInfo(true) })
}

// Screen returns a copy of the display buffer, if the display keeps one
func (d *Device) Screen() (image.Image, bool) {
	snap, ok := d.disp.(display.Snapshotter)
	if !ok {
		return nil, false
	}
	var img image.Image
	d.do(func() { img = snap.Snapshot() })
	return img, img != nil
}

// Reboot restarts the system after the configured delay, so the response
// announcing it can still be delivered.
func (d *Device) Reboot() {
	log.Printf("Device: rebooting in %v", d.opts.RebootDelay)
	time.AfterFunc(d.opts.RebootDelay, func() {
		d.do(func() {
			d.net.Shutdown()
			if err := d.opts.Reboot(); err != nil {
				log.Printf("Device: failed to reboot: %v", err)
			}
		})
	})
}

// Subscribe returns a channel of display events and a function to cancel
// the subscription. Slow subscribers miss events.
func (d *Device) Subscribe() (<-chan Event, func()) {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	id := d.nextID
	d.nextID++
	ch := make(chan Event, 16)
	d.subs[id] = ch

	return ch, func() {
		d.subMu.Lock()
		defer d.subMu.Unlock()
		if c, ok := d.subs[id]; ok {
			delete(d.subs, id)
			close(c)
		}
	}
}

func (d *Device) emit(ev Event) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for _, ch := range d.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
