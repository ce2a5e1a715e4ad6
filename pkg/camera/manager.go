package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/atomic"
)

// Manager holds the capture configuration and the active session. It is the
// single writer of the current facing and session ID; readers load them
// atomically once per frame.
type Manager struct {
	config Config
	mu     sync.RWMutex

	open    OpenFunc
	handler FrameHandler
	log     *slog.Logger

	switchMu sync.Mutex // serializes Start, Switch and Stop
	parent   context.Context
	session  *Session

	facing    atomic.Int32
	sessionID atomic.String

	// OnSwitch is called after the old session has stopped and before the
	// new one starts, so stale results can be discarded.
	OnSwitch func(from, to Facing)
}

// NewManager creates a manager. Nothing is opened until Start.
func NewManager(cfg Config, open OpenFunc, handler FrameHandler, logger *slog.Logger) (*Manager, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: validation failed: %v", errs)
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		config:  cfg,
		open:    open,
		handler: handler,
		log:     logger,
	}
	m.facing.Store(int32(cfg.Facing))
	return m, nil
}

// Start opens the configured facing. ctx bounds every session started later.
func (m *Manager) Start(ctx context.Context) error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	if m.session != nil {
		return fmt.Errorf("camera: already running")
	}
	m.parent = ctx
	return m.startLocked(m.GetConfig().Facing)
}

// Switch stops the current session and starts one on facing. If facing has
// no configured device, or it fails to open, a *DeviceUnavailableError is
// returned and capture continues on the previous facing. Switching to the
// active facing is a no-op. After Stop it returns ErrNotRunning.
func (m *Manager) Switch(facing Facing) error {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	if m.parent == nil || m.parent.Err() != nil {
		return ErrNotRunning
	}
	prev := m.Facing()
	if facing == prev && m.session != nil {
		return nil
	}
	cfg := m.GetConfig()
	if dev := cfg.Device(facing); dev < 0 {
		return &DeviceUnavailableError{Facing: facing, Device: dev}
	}

	m.stopLocked()
	if m.OnSwitch != nil {
		m.OnSwitch(prev, facing)
	}

	if err := m.startLocked(facing); err != nil {
		if rerr := m.startLocked(prev); rerr != nil {
			m.log.Error("restore previous camera failed", "facing", prev.String(), "error", rerr)
		}
		return err
	}

	m.mu.Lock()
	m.config.Facing = facing
	m.mu.Unlock()
	return nil
}

// Stop stops the active session, if any. Later calls to Switch return
// ErrNotRunning until Start is called again.
func (m *Manager) Stop() {
	m.switchMu.Lock()
	defer m.switchMu.Unlock()
	m.stopLocked()
	m.parent = nil
}

func (m *Manager) startLocked(facing Facing) error {
	cfg := m.GetConfig()
	dev := cfg.Device(facing)
	if dev < 0 {
		return &DeviceUnavailableError{Facing: facing, Device: dev}
	}

	src, err := m.open(facing, dev, cfg)
	if err != nil {
		return &DeviceUnavailableError{Facing: facing, Device: dev, Err: err}
	}

	// Publish the new facing before the first frame can arrive.
	m.facing.Store(int32(facing))
	s := startSession(m.parent, facing, dev, src, m.handler, m.log)
	m.sessionID.Store(s.ID)
	m.session = s
	return nil
}

func (m *Manager) stopLocked() {
	if m.session == nil {
		return
	}
	m.session.Stop()
	m.session = nil
	m.sessionID.Store("")
}

// Facing returns the facing of the most recently configured session.
func (m *Manager) Facing() Facing {
	return Facing(m.facing.Load())
}

// SessionID returns the active session ID, or "" when stopped.
func (m *Manager) SessionID() string {
	return m.sessionID.Load()
}

// Running reports whether a session is active.
func (m *Manager) Running() bool {
	return m.SessionID() != ""
}

// GetConfig returns the current configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates cfg, stores it and restarts the running session so the
// new resolution and devices take effect.
func (m *Manager) SetConfig(cfg Config) error {
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("camera: validation failed: %v", errs)
	}

	m.switchMu.Lock()
	defer m.switchMu.Unlock()

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()

	if m.session == nil {
		m.facing.Store(int32(cfg.Facing))
		return nil
	}

	prev := m.Facing()
	m.stopLocked()
	if m.OnSwitch != nil {
		m.OnSwitch(prev, cfg.Facing)
	}
	if err := m.startLocked(cfg.Facing); err != nil {
		return fmt.Errorf("camera: apply config: %w", err)
	}
	return nil
}

// UpdateConfig updates specific fields of the configuration.
// Accepts a map of field names to values, plus an optional "preset".
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	cfg := m.GetConfig()

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("camera: unknown preset: %s", presetName)
		}
		// Devices come from the environment, not the preset.
		preset.BackDevice, preset.FrontDevice = cfg.BackDevice, cfg.FrontDevice
		cfg = *preset
	}

	for key, value := range params {
		switch key {
		case "width":
			if v, ok := toInt(value); ok {
				cfg.Width = v
			}
		case "height":
			if v, ok := toInt(value); ok {
				cfg.Height = v
			}
		case "framerate":
			if v, ok := toInt(value); ok {
				cfg.Framerate = v
			}
		case "buffer_size":
			if v, ok := toInt(value); ok {
				cfg.BufferSize = v
			}
		case "facing":
			if v, ok := value.(string); ok {
				f, err := ParseFacing(v)
				if err != nil {
					return err
				}
				cfg.Facing = f
			}
		}
	}

	return m.SetConfig(cfg)
}

// GetConfigJSON returns the current config as a map for JSON serialization.
func (m *Manager) GetConfigJSON() map[string]interface{} {
	cfg := m.GetConfig()

	data, _ := json.Marshal(cfg)
	var result map[string]interface{}
	json.Unmarshal(data, &result)

	return result
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case json.Number:
		i, err := val.Int64()
		if err == nil {
			return int(i), true
		}
	}
	return 0, false
}
