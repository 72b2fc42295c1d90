// Package webui serves the provisioning and picture pages.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"golang.org/x/image/bmp"

	"general-display/pkg/catalog"
	"general-display/pkg/device"
	"general-display/pkg/globals"
	"general-display/pkg/logger"
	"general-display/pkg/network"
	"general-display/pkg/portal"
	"general-display/pkg/settings"
	"general-display/pkg/storage"
)

// Device is what the pages drive
type Device interface {
	Images() []catalog.Descriptor
	Select(name string) error
	StartSlideshow() bool
	StopSlideshow()
	ShowWiFi()
	Settings() settings.Settings
	SaveDisplayPrefs(p device.DisplayPrefs) error
	JoinNetwork(name, password string) error
	HostAccessPoint(c device.AccessPointConfig) error
	Networks() ([]network.Network, error)
	Status() device.Status
	Screen() (image.Image, bool)
	Reboot()
	Subscribe() (<-chan device.Event, func())
	Hostname() string
	Address() net.IP
	CaptivePortalActive() bool
}

type Options struct {
	DeviceID string
	// Width and Height of the display, for page captions
	Width, Height int
}

type Server struct {
	dev    Device
	files  *storage.Storage
	opts   Options
	server *http.Server
}

func New(dev Device, files *storage.Storage, opts Options) *Server {
	return &Server{dev: dev, files: files, opts: opts}
}

// Handler routes every page
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/settings", s.handleSettings)
	mux.HandleFunc("/slideshow", s.handleSlideshow)
	mux.HandleFunc("/showwifi", s.handleShowWiFi)
	mux.HandleFunc("/filesystem", s.handleFilesystem)
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/logs", s.handleLogs)
	mux.HandleFunc("/screen", s.handleScreen)
	mux.HandleFunc("/live", s.handleLive)

	for _, p := range portal.ProbePaths {
		mux.HandleFunc(p, s.handleProbe)
	}

	return mux
}

// Start listens on addr in the background
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP: server stopped: %v", err)
		}
	}()

	log.Printf("HTTP: listening on %s", addr)
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "-1")
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	noCache(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// redirectCaptive sends clients of the captive access point to the device
// and reports whether it did
func (s *Server) redirectCaptive(w http.ResponseWriter, r *http.Request) bool {
	if !s.dev.CaptivePortalActive() || !portal.NeedsRedirect(r.Host, s.dev.Hostname()) {
		return false
	}
	addr := s.dev.Address()
	if addr == nil {
		return false
	}
	noCache(w)
	http.Redirect(w, r, portal.Location(addr), http.StatusFound)
	return true
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.handleNotFound(w, r)
		return
	}

	var message string
	if pic := r.URL.Query().Get("PicSelect"); pic != "" {
		if err := s.dev.Select(pic); err != nil {
			message = "Cannot show " + pic + "."
		}
	}

	images := s.dev.Images()
	status := s.dev.Status()

	noCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	render(w, rootPage, rootData{
		page:         newPage("", message),
		Width:        s.opts.Width,
		Height:       s.opts.Height,
		Images:       images,
		Slideshow:    len(images) > 1,
		SlideshowRun: status.Slideshow.Running,
	})
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	if !s.dev.CaptivePortalActive() {
		s.handleNotFound(w, r)
		return
	}
	if s.redirectCaptive(w, r) {
		return
	}
	r.URL.Path = "/"
	r.URL.RawQuery = ""
	s.handleRoot(w, r)
}

func (s *Server) handleSlideshow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Has("on"):
		s.dev.StartSlideshow()
	case q.Has("off"):
		s.dev.StopSlideshow()
	default:
		log.Println("HTTP: slideshow request without on/off")
	}
	redirectHome(w, r)
}

func (s *Server) handleShowWiFi(w http.ResponseWriter, r *http.Request) {
	s.dev.ShowWiFi()
	redirectHome(w, r)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"id":       s.opts.DeviceID,
		"firmware": globals.FirmwareVersion,
		"hostname": s.dev.Hostname(),
		"device":   s.dev.Status(),
	}
	if usage, err := s.files.Usage(); err == nil {
		resp["storage"] = usage
	}
	noCache(w)
	writeJSON(w, resp)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	noCache(w)
	writeJSON(w, logger.GetLogs())
}

// handleScreen returns the display buffer as a bitmap
func (s *Server) handleScreen(w http.ResponseWriter, r *http.Request) {
	img, ok := s.dev.Screen()
	if !ok {
		http.Error(w, "display has no readable buffer", http.StatusNotImplemented)
		return
	}
	noCache(w)
	w.Header().Set("Content-Type", "image/bmp")
	if err := bmp.Encode(w, img); err != nil {
		log.Printf("HTTP: failed to encode screen: %v", err)
	}
}

func (s *Server) handleFilesystem(w http.ResponseWriter, r *http.Request) {
	var message string
	if name := r.URL.Query().Get("delete"); name != "" {
		if err := s.files.Delete(name); err != nil {
			message = "File " + name + " cannot be deleted."
		} else {
			message = "File " + name + " successfully deleted."
		}
	}

	files, err := s.files.Files()
	if err != nil {
		log.Printf("HTTP: %v", err)
	}
	usage, _ := s.files.Usage()

	noCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	render(w, filesystemPage, filesystemData{
		page:  newPage(" - File System Manager", message),
		Files: files,
		Usage: usage,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	f, hdr, err := r.FormFile("upload")
	if err != nil {
		http.Error(w, "missing upload", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if _, err := s.files.Save(hdr.Filename, f); err != nil {
		log.Printf("HTTP: upload failed: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	noCache(w)
	http.Redirect(w, r, "/filesystem", http.StatusFound)
}

// handleNotFound tries the captive redirect, then a stored file, then 404
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	if s.redirectCaptive(w, r) {
		return
	}

	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name != "" && !strings.HasPrefix(name, ".") {
		if f, err := s.files.FS().Open(name); err == nil {
			defer f.Close()
			if info, err := f.Stat(); err == nil && info.Mode().IsRegular() {
				w.Header().Set("Content-Type", contentType(name))
				w.Header().Set("Content-Length", fmt.Sprint(info.Size()))
				io.Copy(w, f)
				return
			}
		}
	}

	noCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	render(w, notFoundPage, notFoundData{
		page:   newPage(" - File not found", ""),
		URI:    r.URL.RequestURI(),
		Method: r.Method,
		Host:   r.Host,
	})
}

var contentTypes = map[string]string{
	".htm":  "text/html",
	".html": "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".png":  "image/png",
	".gif":  "image/gif",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".bmp":  "image/bmp",
	".ico":  "image/x-icon",
	".xml":  "text/xml",
	".pdf":  "application/x-pdf",
	".zip":  "application/x-zip",
	".gz":   "application/x-gzip",
}

func contentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return "text/plain"
}
