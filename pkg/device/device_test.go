package device

import (
	"context"
	"encoding/binary"
	"errors"
	"io/fs"
	"net"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"general-display/pkg/catalog"
	"general-display/pkg/display"
	"general-display/pkg/network"
	"general-display/pkg/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type instantClock struct{}

func (instantClock) Now() time.Time        { return time.Time{} }
func (instantClock) Sleep(d time.Duration) {}

type fakeRadio struct {
	mu       sync.Mutex
	result   network.ResultCode
	connects []string
	apSSID   string
	apPass   string
	addr     net.IP
}

func (r *fakeRadio) Connect(ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects = append(r.connects, ssid+"/"+password)
	return nil
}

func (r *fakeRadio) Result() network.ResultCode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == network.ResultConnected {
		r.addr = net.IPv4(10, 0, 0, 42)
	}
	return r.result
}

func (r *fakeRadio) Disconnect() error           { return nil }
func (r *fakeRadio) SetAutoReconnect(bool) error { return nil }
func (r *fakeRadio) StopAccessPoint() error      { return nil }
func (r *fakeRadio) ScanNetworks() ([]network.Network, error) {
	return []network.Network{{SSID: "HomeNet", Signal: 80, Encryption: network.EncryptionWPA2}}, nil
}
func (r *fakeRadio) SSID() string { return "HomeNet" }

func (r *fakeRadio) StartAccessPoint(ssid, password string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.apSSID, r.apPass = ssid, password
	r.addr = net.IPv4(192, 168, 4, 1)
	return nil
}

func (r *fakeRadio) CurrentAddress() net.IP {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addr
}

func (r *fakeRadio) snapshot() (connects []string, apSSID, apPass string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.connects...), r.apSSID, r.apPass
}

func bmp(w, h int32) *fstest.MapFile {
	b := make([]byte, 62+4*int(h))
	copy(b, "BM")
	binary.LittleEndian.PutUint32(b[2:], uint32(len(b)))
	binary.LittleEndian.PutUint32(b[10:], 62)
	binary.LittleEndian.PutUint32(b[14:], 40)
	binary.LittleEndian.PutUint32(b[18:], uint32(w))
	binary.LittleEndian.PutUint32(b[22:], uint32(h))
	binary.LittleEndian.PutUint16(b[26:], 1)
	binary.LittleEndian.PutUint16(b[28:], 1)
	copy(b[54:], []byte{0, 0, 0, 0, 0xff, 0xff, 0xff, 0})
	for i := 62; i < len(b); i++ {
		b[i] = 0xff
	}
	return &fstest.MapFile{Data: b}
}

type harness struct {
	dev     *Device
	store   *settings.Store
	radio   *fakeRadio
	fb      *display.Framebuffer
	uptime  *atomic.Int64
	reboots *atomic.Int32
}

func newHarness(t *testing.T, stored *settings.Settings, result network.ResultCode, images fs.FS) *harness {
	t.Helper()

	f, err := settings.OpenFileMedium(filepath.Join(t.TempDir(), "settings.bin"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	store := settings.NewStore(f, settings.DefaultFallback)
	if stored != nil {
		require.NoError(t, store.Save(*stored))
	}

	radio := &fakeRadio{result: result}
	mgr := network.NewManager(radio, store, network.Options{
		Clock:  instantClock{},
		Policy: network.StationPolicy(10, time.Second),
	})

	h := &harness{
		store:   store,
		radio:   radio,
		fb:      display.NewFramebuffer(128, 64),
		uptime:  &atomic.Int64{},
		reboots: &atomic.Int32{},
	}
	h.dev = New(store, mgr, catalog.New(64, 32), h.fb, images, Options{
		Hostname:        "esp32",
		SlideshowPeriod: 3 * time.Second,
		TickInterval:    time.Hour,
		Reboot: func() error {
			h.reboots.Add(1)
			return nil
		},
		Uptime: func() time.Duration { return time.Duration(h.uptime.Load()) },
	})
	return h
}

func (h *harness) run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.dev.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func (h *harness) setUptime(d time.Duration) { h.uptime.Store(int64(d)) }

func homeStation() *settings.Settings {
	return &settings.Settings{
		Mode:             settings.ModeStation,
		WiFiEncrypted:    true,
		AutorunSlideshow: true,
		NetworkName:      "HomeNet",
		NetworkPassword:  "hunter22",
	}
}

func TestBoot_FreshDeviceOpensFallbackAP(t *testing.T) {
	h := newHarness(t, nil, network.ResultIdle, fstest.MapFS{})
	h.dev.Boot()
	h.run(t)

	_, ssid, pass := h.radio.snapshot()
	assert.Equal(t, "ESP_Config", ssid)
	assert.Equal(t, "EspWiFiDisplay", pass)

	assert.True(t, h.store.Valid())
	st := h.dev.Status()
	assert.Equal(t, network.StateSoftAP, st.Network.State)
	assert.True(t, st.SettingsValid)
	assert.False(t, st.Slideshow.Running)
	assert.True(t, h.dev.CaptivePortalActive())

	// Boot screen shows address and SSID by default
	assert.NotZero(t, h.fb.LitCount())
	assert.Equal(t, 1, h.fb.Presents())
}

func TestBoot_StationAutorunsSlideshow(t *testing.T) {
	images := fstest.MapFS{"a.bmp": bmp(8, 8), "b.bmp": bmp(16, 16), "huge.bmp": bmp(300, 8)}
	h := newHarness(t, homeStation(), network.ResultConnected, images)
	h.dev.Boot()
	h.run(t)

	st := h.dev.Status()
	assert.Equal(t, network.StateConnectedStation, st.Network.State)
	assert.Equal(t, "10.0.0.42", st.Network.Address)
	assert.Equal(t, 2, st.Images)
	assert.True(t, st.Slideshow.Running)
	assert.False(t, h.dev.CaptivePortalActive())

	events, cancel := h.dev.Subscribe()
	defer cancel()

	// The boot screen holds for a period before the first switch
	h.setUptime(2 * time.Second)
	h.dev.do(h.dev.tick)
	assert.Empty(t, events)

	h.setUptime(3 * time.Second)
	h.dev.do(h.dev.tick)
	require.Len(t, events, 1)
	assert.Equal(t, Event{Type: "render", Path: "b.bmp"}, <-events)
	assert.Equal(t, 16*16, h.fb.LitCount())
}

func TestSelect(t *testing.T) {
	images := fstest.MapFS{"a.bmp": bmp(8, 8)}
	h := newHarness(t, homeStation(), network.ResultConnected, images)
	h.dev.Boot()
	h.run(t)
	h.dev.Images()

	events, cancel := h.dev.Subscribe()
	defer cancel()

	require.NoError(t, h.dev.Select("a.bmp"))
	assert.Equal(t, 64, h.fb.LitCount())
	assert.Equal(t, Event{Type: "render", Path: "a.bmp"}, <-events)

	require.NoError(t, h.dev.Select("off"))
	assert.Zero(t, h.fb.LitCount())
	assert.Equal(t, Event{Type: "clear"}, <-events)

	err := h.dev.Select("missing.bmp")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestImages_RescanStopsEmptySlideshow(t *testing.T) {
	images := fstest.MapFS{"a.bmp": bmp(8, 8)}
	h := newHarness(t, homeStation(), network.ResultConnected, images)
	h.dev.Boot()
	h.run(t)
	require.True(t, h.dev.Status().Slideshow.Running)

	delete(images, "a.bmp")
	assert.Empty(t, h.dev.Images())
	assert.False(t, h.dev.Status().Slideshow.Running)
	assert.False(t, h.dev.StartSlideshow())
}

func TestJoinNetwork_EmptyPasswordKeepsStored(t *testing.T) {
	h := newHarness(t, homeStation(), network.ResultConnected, fstest.MapFS{})
	h.dev.Boot()
	h.run(t)

	require.NoError(t, h.dev.JoinNetwork("OtherNet", ""))
	s := h.dev.Settings()
	assert.Equal(t, "OtherNet", s.NetworkName)
	assert.Equal(t, "hunter22", s.NetworkPassword)

	assert.Eventually(t, func() bool {
		connects, _, _ := h.radio.snapshot()
		return len(connects) == 2 && connects[1] == "OtherNet/hunter22"
	}, time.Second, 10*time.Millisecond)
}

func TestJoinNetwork_RejectsOverlongName(t *testing.T) {
	h := newHarness(t, homeStation(), network.ResultConnected, fstest.MapFS{})
	h.dev.Boot()
	h.run(t)

	err := h.dev.JoinNetwork("a-network-name-that-is-too-long", "password")
	assert.ErrorIs(t, err, settings.ErrRejected)
	assert.Equal(t, "HomeNet", h.dev.Settings().NetworkName)
}

func TestHostAccessPoint(t *testing.T) {
	h := newHarness(t, homeStation(), network.ResultConnected, fstest.MapFS{})
	h.dev.Boot()
	h.run(t)

	require.NoError(t, h.dev.HostAccessPoint(AccessPointConfig{Name: "Frame", CaptivePortal: true}))
	s := h.dev.Settings()
	assert.Equal(t, settings.ModeAccessPoint, s.Mode)
	assert.False(t, s.WiFiEncrypted)
	assert.True(t, s.ExhibitPasswordOnBoot)

	assert.Eventually(t, func() bool {
		_, ssid, pass := h.radio.snapshot()
		return ssid == "Frame" && pass == ""
	}, time.Second, 10*time.Millisecond)
}

func TestSaveDisplayPrefs(t *testing.T) {
	h := newHarness(t, homeStation(), network.ResultConnected, fstest.MapFS{})
	h.dev.Boot()
	h.run(t)

	require.NoError(t, h.dev.SaveDisplayPrefs(DisplayPrefs{ShowIP: true, ExhibitPassword: true}))

	reloaded, err := h.store.Load()
	require.NoError(t, err)
	assert.False(t, reloaded.AutorunSlideshow)
	assert.True(t, reloaded.ShowIPOnBoot)
	assert.False(t, reloaded.ShowSSIDOnBoot)
	assert.True(t, reloaded.ExhibitPasswordOnBoot)
	assert.Equal(t, "HomeNet", reloaded.NetworkName)
}

func TestShowWiFi_SuspendsSlideshow(t *testing.T) {
	images := fstest.MapFS{"a.bmp": bmp(8, 8), "b.bmp": bmp(8, 8)}
	h := newHarness(t, homeStation(), network.ResultConnected, images)
	h.dev.Boot()
	h.run(t)

	h.setUptime(10 * time.Second)
	h.dev.ShowWiFi()
	h.setUptime(12 * time.Second)
	h.dev.do(h.dev.tick)
	assert.Equal(t, 0, h.dev.Status().Slideshow.Index)
}

func TestReboot(t *testing.T) {
	h := newHarness(t, homeStation(), network.ResultConnected, fstest.MapFS{})
	h.dev.Boot()
	h.run(t)

	h.dev.Reboot()
	assert.Eventually(t, func() bool { return h.reboots.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestDo_AfterStop(t *testing.T) {
	h := newHarness(t, nil, network.ResultIdle, fstest.MapFS{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.dev.Run(ctx)

	assert.False(t, h.dev.do(func() {}))
}
