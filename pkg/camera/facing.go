package camera

import (
	"fmt"
	"strings"
)

// Facing identifies which physical camera is active.
type Facing int32

const (
	// Back is the rear camera. Its frames are mirrored for display.
	Back Facing = iota
	// Front is the user-facing camera. Its frames are displayed unmirrored.
	Front
)

func (f Facing) String() string {
	switch f {
	case Back:
		return "back"
	case Front:
		return "front"
	default:
		return fmt.Sprintf("facing(%d)", int32(f))
	}
}

// Valid reports whether f is Back or Front.
func (f Facing) Valid() bool {
	return f == Back || f == Front
}

// ParseFacing parses "front" or "back".
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "back", "rear":
		return Back, nil
	case "front", "user", "selfie":
		return Front, nil
	default:
		return Back, fmt.Errorf("camera: unknown facing %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Facing) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("camera: invalid facing %d", int32(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Facing) UnmarshalText(b []byte) error {
	v, err := ParseFacing(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
