// Package app wires capture, segmentation, rendering and presentation into
// the running nailtint service.
package app

import (
	"github.com/teslashibe/go-nailtint/internal/config"
	"github.com/teslashibe/go-nailtint/pkg/camera"
	"github.com/teslashibe/go-nailtint/pkg/frame"
	"github.com/teslashibe/go-nailtint/pkg/tint"
	"github.com/teslashibe/go-nailtint/pkg/web"
)

// Config holds all configuration for the service.
// Flag parsing is done in cmd/nailtint/main.go; this struct is data only.
type Config struct {
	// ModelPath is the segmentation model file.
	ModelPath string

	// Color is the initial overlay color as #rrggbb or #rrggbbaa.
	Color string

	Camera camera.Config
	Frame  frame.Config
	Web    web.Config

	// Preview attaches the camera picture to every frame so displays can
	// draw the overlay over the live feed.
	Preview bool

	// ExternalPresenter leaves presentation to the caller, which drives
	// Presenter().PresentNext from its own loop (e.g. a GUI main thread).
	ExternalPresenter bool
}

// DefaultConfig returns sensible defaults for the service.
func DefaultConfig() Config {
	return Config{
		ModelPath: config.DefaultModelPath,
		Color:     tint.Hex(mustEncode()),
		Camera:    camera.DefaultConfig(),
		Frame:     frame.DefaultConfig(),
		Web:       web.DefaultConfig(),
		Preview:   true,
	}
}

func mustEncode() tint.Encoded {
	e, err := tint.Encode(tint.DefaultColor, 1)
	if err != nil {
		panic(err)
	}
	return e
}

// LoadEnvConfig applies environment overrides.
// Call this after flag parsing; flags set explicitly should be re-applied.
func (c *Config) LoadEnvConfig() error {
	c.ModelPath = config.String(config.EnvModel, c.ModelPath)
	c.Web.Port = config.String(config.EnvPort, c.Web.Port)

	back, err := config.Int(config.EnvBackDevice, c.Camera.BackDevice)
	if err != nil {
		return err
	}
	front, err := config.Int(config.EnvFrontDevice, c.Camera.FrontDevice)
	if err != nil {
		return err
	}
	c.Camera.BackDevice, c.Camera.FrontDevice = back, front
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.ModelPath == "" {
		return &ConfigError{Field: "ModelPath", Message: "model path is required (NAILTINT_MODEL)"}
	}
	if _, _, err := tint.ParseHex(c.Color); err != nil {
		return &ConfigError{Field: "Color", Message: err.Error()}
	}
	if errs := c.Camera.Validate(); len(errs) > 0 {
		return &ConfigError{Field: "Camera", Message: errs[0]}
	}
	if errs := c.Frame.Validate(); len(errs) > 0 {
		return &ConfigError{Field: "Frame", Message: errs[0]}
	}
	if c.Web.Port == "" {
		return &ConfigError{Field: "Web.Port", Message: "port is required (NAILTINT_PORT)"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config: " + e.Field + ": " + e.Message
}
