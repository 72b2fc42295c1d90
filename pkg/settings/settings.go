// Package settings holds the durable device configuration: network mode,
// credentials and boot-screen preferences, persisted as one fixed-size
// binary record guarded by a validity marker.
package settings

import (
	"encoding/binary"
	"strings"
)

// Field sizes of the durable record. Strings are NUL-terminated inside
// their field, so at most NameLen-1 / PasswordLen-1 characters are stored.
const (
	NameLen     = 20
	PasswordLen = 25
	MarkerLen   = 5

	nameOffset     = 2
	passwordOffset = nameOffset + NameLen
	markerOffset   = passwordOffset + PasswordLen

	// RecordSize is the size of the contiguous block written by Save
	RecordSize = markerOffset + MarkerLen

	// MinPasswordLen is the WPA minimum for an encrypted access point
	MinPasswordLen = 8
)

// Marker is the reserved tag that marks a record as valid
const Marker = "TKAS"

// Flags is the 16-bit flag word at the start of the record, low bit first
type Flags uint16

const (
	FlagAPMode Flags = 1 << iota
	FlagEncrypted
	FlagCaptivePortal
	FlagAutorunSlideshow
	FlagShowIP
	FlagShowSSID
	FlagExhibitPassword
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// With returns f with flag set or cleared
func (f Flags) With(flag Flags, on bool) Flags {
	if on {
		return f | flag
	}
	return f &^ flag
}

type Mode int

const (
	ModeStation Mode = iota
	ModeAccessPoint
)

func (m Mode) String() string {
	if m == ModeAccessPoint {
		return "AP"
	}
	return "STA"
}

// Settings is the decoded durable record
type Settings struct {
	Mode                  Mode
	WiFiEncrypted         bool
	CaptivePortal         bool
	AutorunSlideshow      bool
	ShowIPOnBoot          bool
	ShowSSIDOnBoot        bool
	ExhibitPasswordOnBoot bool
	NetworkName           string
	NetworkPassword       string
}

// Flags packs the boolean fields into the record's flag word
func (s Settings) Flags() Flags {
	var f Flags
	f = f.With(FlagAPMode, s.Mode == ModeAccessPoint)
	f = f.With(FlagEncrypted, s.WiFiEncrypted)
	f = f.With(FlagCaptivePortal, s.CaptivePortal)
	f = f.With(FlagAutorunSlideshow, s.AutorunSlideshow)
	f = f.With(FlagShowIP, s.ShowIPOnBoot)
	f = f.With(FlagShowSSID, s.ShowSSIDOnBoot)
	f = f.With(FlagExhibitPassword, s.ExhibitPasswordOnBoot)
	return f
}

func (s *Settings) setFlags(f Flags) {
	s.Mode = ModeStation
	if f.Has(FlagAPMode) {
		s.Mode = ModeAccessPoint
	}
	s.WiFiEncrypted = f.Has(FlagEncrypted)
	s.CaptivePortal = f.Has(FlagCaptivePortal)
	s.AutorunSlideshow = f.Has(FlagAutorunSlideshow)
	s.ShowIPOnBoot = f.Has(FlagShowIP)
	s.ShowSSIDOnBoot = f.Has(FlagShowSSID)
	s.ExhibitPasswordOnBoot = f.Has(FlagExhibitPassword)
}

// Validate reports why s cannot be stored, or nil
func (s Settings) Validate() error {
	switch {
	case len(s.NetworkName) > NameLen-1:
		return rejected("network name longer than %d bytes", NameLen-1)
	case len(s.NetworkPassword) > PasswordLen-1:
		return rejected("password longer than %d bytes", PasswordLen-1)
	case hasControl(s.NetworkName), hasControl(s.NetworkPassword):
		return rejected("control character in credentials")
	}

	if s.Mode == ModeAccessPoint {
		if len(s.NetworkName) < 1 {
			return rejected("access point needs a name")
		}
		if s.WiFiEncrypted && len(s.NetworkPassword) < MinPasswordLen {
			return rejected("access point password shorter than %d characters", MinPasswordLen)
		}
	}
	return nil
}

// hasControl reports NUL, line breaks and other control characters, which
// would end up as extra lines in the supplicant and hostapd configs
func hasControl(v string) bool {
	return strings.IndexFunc(v, func(r rune) bool { return r < ' ' || r == 0x7f }) >= 0
}

// payload encodes everything except the marker
func (s Settings) payload() []byte {
	buf := make([]byte, markerOffset)
	binary.LittleEndian.PutUint16(buf, uint16(s.Flags()))
	copy(buf[nameOffset:passwordOffset-1], s.NetworkName)
	copy(buf[passwordOffset:markerOffset-1], s.NetworkPassword)
	return buf
}

func markerBytes() []byte {
	m := make([]byte, MarkerLen)
	copy(m, Marker)
	return m
}

// decode parses a full record; ok is false when the marker is missing
func decode(rec []byte) (s Settings, ok bool) {
	if len(rec) < RecordSize || cString(rec[markerOffset:RecordSize]) != Marker {
		return Settings{}, false
	}
	s.setFlags(Flags(binary.LittleEndian.Uint16(rec)))
	s.NetworkName = cString(rec[nameOffset:passwordOffset])
	s.NetworkPassword = cString(rec[passwordOffset:markerOffset])
	return s, true
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
