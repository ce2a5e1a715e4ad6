// Package camera owns the capture session: which physical camera is active,
// its resolution, and the loop that delivers frames to the pipeline.
package camera

// Config holds capture configuration.
type Config struct {
	// === Resolution ===
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Target FPS

	// === Devices ===
	// Device indices for each facing. -1 means the camera is not present.
	BackDevice  int `json:"back_device"`
	FrontDevice int `json:"front_device"`

	// Facing selected at startup.
	Facing Facing `json:"facing"`

	// BufferSize is the number of frames the driver may queue. 1 keeps only
	// the newest frame so late frames are discarded at intake.
	BufferSize int `json:"buffer_size"`
}

// Limits for validation.
const (
	MinWidth     = 160
	MinHeight    = 120
	MaxWidth     = 4096
	MaxHeight    = 2160
	MaxFramerate = 120
	MaxBuffer    = 8
)

// DefaultConfig returns the 1280x720 BGRA configuration used by the app.
func DefaultConfig() Config {
	return Config{
		Width:       1280,
		Height:      720,
		Framerate:   30,
		BackDevice:  0,
		FrontDevice: 1,
		Facing:      Back,
		BufferSize:  1,
	}
}

// Device returns the device index configured for f, or -1.
func (c *Config) Device(f Facing) int {
	switch f {
	case Back:
		return c.BackDevice
	case Front:
		return c.FrontDevice
	default:
		return -1
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < MinWidth || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 4096")
	}
	if c.Height < MinHeight || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.BackDevice < 0 && c.FrontDevice < 0 {
		errors = append(errors, "at least one of back_device and front_device must be set")
	}
	if !c.Facing.Valid() {
		errors = append(errors, "facing must be front or back")
	}
	if c.BufferSize < 1 || c.BufferSize > MaxBuffer {
		errors = append(errors, "buffer_size must be between 1 and 8")
	}

	return errors
}

// Capabilities describes what the configuration can do.
func (c *Config) Capabilities() map[string]interface{} {
	facings := []string{}
	if c.BackDevice >= 0 {
		facings = append(facings, Back.String())
	}
	if c.FrontDevice >= 0 {
		facings = append(facings, Front.String())
	}
	return map[string]interface{}{
		"facings":       facings,
		"max_width":     MaxWidth,
		"max_height":    MaxHeight,
		"max_framerate": MaxFramerate,
		"presets":       PresetNames(),
	}
}
