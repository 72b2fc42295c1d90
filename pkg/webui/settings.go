package webui

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"general-display/pkg/device"
	"general-display/pkg/globals"
	"general-display/pkg/settings"
)

const (
	msgPasswordsDiffer = "WiFi password(s) differ. Aborted."
	msgPasswordShort   = "WiFi password too short. Aborted."
	msgNameMissing     = "WiFi name missing. Aborted."
	msgNameShort       = "WiFi name too short. Aborted."
	msgNotSaved        = "corrupted settings not saved."
	msgAPSaved         = "Settings saved successfully. Access point restarting."
	msgPrefsSaved      = "Display settings saved."
)

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	form := r.Form

	var message string

	// Unchecked boxes are absent from the form, so the prefs only change
	// when the display form itself was submitted
	if form.Has("save") {
		err := s.dev.SaveDisplayPrefs(device.DisplayPrefs{
			AutorunSlideshow: form.Has("autorun_slideshow"),
			ShowIP:           form.Has("show_ip"),
			ShowSSID:         form.Has("show_ssid"),
			ExhibitPassword:  form.Has("exhibit_passwd"),
		})
		message = msgPrefsSaved
		if err != nil {
			log.Printf("HTTP: %v", err)
			message = msgNotSaved
		}
	}

	if form.Has("Reboot") {
		noCache(w)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "Rebooting System in %d Seconds..", int(globals.RebootDelay.Seconds()))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		s.dev.Reboot()
		return
	}

	switch form.Get("WiFiMode") {
	case "1":
		message = s.joinNetwork(form.Get("WiFi_Network"), form.Get("STAWLanPW"))
	case "2":
		message = s.hostAccessPoint(
			form.Get("APPointName"),
			form.Get("APPW"),
			form.Get("APPWRepeat"),
			form.Has("PasswordReq"),
			form.Has("CaptivePortal"),
		)
	}

	st := s.dev.Settings()
	networks, err := s.dev.Networks()
	if err != nil {
		log.Printf("HTTP: network scan failed: %v", err)
	}
	var addr string
	if ip := s.dev.Address(); ip != nil {
		addr = ip.String()
	}

	noCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	render(w, settingsPage, settingsData{
		page:            newPage(" - Settings", message),
		APMode:          st.Mode == settings.ModeAccessPoint,
		NetworkName:     st.NetworkName,
		Encrypted:       st.WiFiEncrypted,
		CaptivePortal:   st.CaptivePortal,
		Autorun:         st.AutorunSlideshow,
		ShowIP:          st.ShowIPOnBoot,
		ShowSSID:        st.ShowSSIDOnBoot,
		ExhibitPassword: st.ExhibitPasswordOnBoot,
		Networks:        networks,
		Address:         addr,
	})
}

func (s *Server) joinNetwork(name, password string) string {
	if name == "" {
		return msgNameMissing
	}
	if err := s.dev.JoinNetwork(name, sanitizePassword(password)); err != nil {
		log.Printf("HTTP: %v", err)
		return msgNotSaved
	}
	return fmt.Sprintf("WiFi connect to AP: '%s'. Connecting to station mode shortly.", name)
}

func (s *Server) hostAccessPoint(name, password, repeat string, encrypted, captive bool) string {
	switch {
	case password != repeat:
		return msgPasswordsDiffer
	case len(name) <= 1:
		return msgNameShort
	case encrypted && len(password) < settings.MinPasswordLen:
		return msgPasswordShort
	}
	if !encrypted {
		password = ""
	}

	err := s.dev.HostAccessPoint(device.AccessPointConfig{
		Name:          name,
		Password:      password,
		Encrypted:     encrypted,
		CaptivePortal: captive,
	})
	if err != nil {
		log.Printf("HTTP: %v", err)
		return msgNotSaved
	}
	return msgAPSaved
}

// sanitizePassword drops spaces and control characters
func sanitizePassword(pw string) string {
	return strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		return r
	}, pw)
}
