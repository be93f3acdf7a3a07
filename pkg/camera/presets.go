package camera

import "sort"

// Preset names for common configurations
const (
	PresetDefault    = "default"
	Preset480p       = "480p"
	Preset720p       = "720p"
	Preset1080p      = "1080p"
	PresetIMX219Full = "imx219-full"
	PresetRotate180  = "rotate180"
	PresetUSB720p    = "usb-720p"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:    DefaultConfig(),
		Preset480p:       SD480Config(),
		Preset720p:       HD720Config(),
		Preset1080p:      HD1080Config(),
		PresetIMX219Full: IMX219FullConfig(),
		PresetRotate180:  Rotate180Config(),
		PresetUSB720p:    USB720Config(),
	}
}

// PresetNames returns the sorted list of available preset names.
func PresetNames() []string {
	names := make([]string, 0, len(Presets()))
	for name := range Presets() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// SD480Config returns 640x480 at 30 fps.
// Cheapest mode; use it when the consumer downsizes anyway.
func SD480Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// HD720Config returns 1280x720 at 60 fps, the fastest full-FOV IMX219 mode.
func HD720Config() Config {
	cfg := DefaultConfig()
	cfg.FrameRate = 60
	return cfg
}

// HD1080Config returns 1920x1080 at 30 fps.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	return cfg
}

// IMX219FullConfig returns the full 3264x2464 sensor readout.
// The sensor tops out at 21 fps in this mode.
func IMX219FullConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 3264
	cfg.Height = 2464
	cfg.FrameRate = 21
	return cfg
}

// Rotate180Config returns the default mode for a sensor mounted upside down.
func Rotate180Config() Config {
	cfg := DefaultConfig()
	cfg.Orientation = OrientationRotate180
	return cfg
}

// USB720Config returns USB camera 0 at 1280x720, 30 fps.
func USB720Config() Config {
	cfg := DefaultConfig()
	cfg.Kind = KindUSB
	return cfg
}
