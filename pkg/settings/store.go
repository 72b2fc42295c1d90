package settings

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

var (
	// ErrInvalid means the stored record has no valid marker (never written,
	// corrupted, or a write was cut short)
	ErrInvalid = errors.New("settings record invalid")
	// ErrRejected means a candidate violates a record invariant
	ErrRejected = errors.New("settings rejected")
)

func rejected(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrRejected}, args...)...)
}

// MediumSize is the size of the durable region, like an emulated EEPROM
const MediumSize = 512

// Medium is a small byte-addressable durable region. *os.File satisfies it.
type Medium interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
}

// OpenFileMedium opens (or creates) a file-backed region of MediumSize bytes
func OpenFileMedium(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create settings directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open settings medium: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() < MediumSize {
		if err := f.Truncate(MediumSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to size settings medium: %w", err)
		}
	}
	return f, nil
}

// Fallback credentials used whenever WiFi settings are reset
type Fallback struct {
	Name     string
	Password string
}

var DefaultFallback = Fallback{Name: "ESP_Config", Password: "EspWiFiDisplay"}

// Store is the only writer of the durable record. It is not safe for
// concurrent use; the device loop is its single caller.
type Store struct {
	medium   Medium
	fallback Fallback
	current  Settings
	valid    bool
}

func NewStore(m Medium, fb Fallback) *Store {
	return &Store{medium: m, fallback: fb}
}

// Load reads the record. It returns ErrInvalid when the marker mismatches.
func (s *Store) Load() (Settings, error) {
	rec := make([]byte, RecordSize)
	if _, err := s.medium.ReadAt(rec, 0); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	loaded, ok := decode(rec)
	if !ok {
		s.valid = false
		return Settings{}, ErrInvalid
	}
	s.current, s.valid = loaded, true
	return loaded, nil
}

// Save validates candidate and writes it as a whole: the region is zeroed,
// the payload written, and the marker written last before the commit. A
// rejected candidate leaves the medium untouched.
func (s *Store) Save(candidate Settings) error {
	if err := candidate.Validate(); err != nil {
		return err
	}

	if _, err := s.medium.WriteAt(make([]byte, RecordSize), 0); err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	// The medium holds no valid record until the marker is committed
	s.valid = false

	if _, err := s.medium.WriteAt(candidate.payload(), 0); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if _, err := s.medium.WriteAt(markerBytes(), markerOffset); err != nil {
		return fmt.Errorf("failed to write settings marker: %w", err)
	}
	if err := s.medium.Sync(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}

	s.current, s.valid = candidate, true
	return nil
}

// ResetWiFiOnly replaces mode, encryption, captive portal and credentials
// with the fallback access point and keeps the display preferences.
func (s *Store) ResetWiFiOnly() error {
	base := s.current
	if !s.valid {
		base = s.Defaults()
	}
	if err := s.Save(s.withFallbackWiFi(base)); err != nil {
		return err
	}
	log.Println("Settings: WiFi settings reset")
	return nil
}

// ResetAll writes the complete default record
func (s *Store) ResetAll() error {
	if err := s.Save(s.Defaults()); err != nil {
		return err
	}
	log.Println("Settings: all settings reset")
	return nil
}

// Defaults is the factory record: fallback AP plus IP and SSID on the boot screen
func (s *Store) Defaults() Settings {
	return s.withFallbackWiFi(Settings{
		AutorunSlideshow:      false,
		ShowIPOnBoot:          true,
		ShowSSIDOnBoot:        true,
		ExhibitPasswordOnBoot: false,
	})
}

func (s *Store) withFallbackWiFi(base Settings) Settings {
	base.Mode = ModeAccessPoint
	base.WiFiEncrypted = true
	base.CaptivePortal = true
	base.NetworkName = s.fallback.Name
	base.NetworkPassword = s.fallback.Password
	return base
}

// Current returns the last loaded or saved record
func (s *Store) Current() Settings { return s.current }

// Valid reports whether Current reflects a valid durable record
func (s *Store) Valid() bool { return s.valid }
