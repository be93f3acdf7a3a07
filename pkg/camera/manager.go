package camera

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

// Manager holds the current camera configuration and handles updates.
// Sources are immutable; whoever owns one reopens it from OnConfigChange.
type Manager struct {
	config Config
	mu     sync.RWMutex

	// update is held for a whole change: read, callback and any rollback.
	update sync.Mutex

	// Callback when config changes (for reopening the source)
	OnConfigChange func(cfg Config) error
}

// NewManager creates a new camera manager starting from cfg.
func NewManager(cfg Config) *Manager {
	return &Manager{
		config: cfg,
	}
}

// GetConfig returns the current camera configuration.
func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// SetConfig validates cfg, stores it and notifies OnConfigChange. If the
// callback fails the previous config is restored. Changes are applied one
// at a time.
func (m *Manager) SetConfig(cfg Config) error {
	m.update.Lock()
	defer m.update.Unlock()
	return m.setConfig(cfg)
}

func (m *Manager) setConfig(cfg Config) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}

	m.mu.Lock()
	prev := m.config
	m.config = cfg
	callback := m.OnConfigChange
	m.mu.Unlock()

	if callback != nil {
		if err := callback(cfg); err != nil {
			m.mu.Lock()
			m.config = prev
			m.mu.Unlock()
			return fmt.Errorf("failed to apply config: %w", err)
		}
	}

	return nil
}

// UpdateConfig updates specific fields of the configuration.
// A "preset" key is applied first; the remaining keys override it.
func (m *Manager) UpdateConfig(params map[string]interface{}) error {
	m.update.Lock()
	defer m.update.Unlock()

	cfg := m.GetConfig()

	if presetName, ok := params["preset"].(string); ok {
		preset := GetPreset(presetName)
		if preset == nil {
			return fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, presetName)
		}
		cfg = *preset
	}

	for key, value := range params {
		switch key {
		case "preset":
		case "type":
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("%w: type must be a string", ErrInvalidConfig)
			}
			kind, err := ParseSourceKind(s)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
			}
			cfg.Kind = kind
		case "device":
			if v, ok := toInt(value); ok {
				cfg.Device = v
			}
		case "width":
			if v, ok := toInt(value); ok {
				cfg.Width = v
			}
		case "height":
			if v, ok := toInt(value); ok {
				cfg.Height = v
			}
		case "framerate", "fps":
			if v, ok := toInt(value); ok {
				cfg.FrameRate = v
			}
		case "orientation", "flip":
			if v, ok := toInt(value); ok {
				cfg.Orientation = Orientation(v)
			}
		default:
			return fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, key)
		}
	}

	return m.setConfig(cfg)
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
