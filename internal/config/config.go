// Package config loads go-jetcam command options.
//
// Values come from three places, lowest precedence first: a TOML file, then
// JETCAM_* environment variables, then flags set explicitly on the command
// line. Fields opt in through `toml:"section.key"` and `env:"KEY"` tags.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teslashibe/go-jetcam/pkg/camera"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "JETCAM_"

// Backend names accepted by Options.Backend.
const (
	BackendOpenCV = "opencv"
	BackendMock   = "mock"
)

// Options holds everything the jetcam commands can be configured with.
type Options struct {
	Config string

	Type    string `toml:"camera.type" env:"TYPE"`
	ID      int    `toml:"camera.id" env:"ID"`
	Width   int    `toml:"camera.width" env:"WIDTH"`
	Height  int    `toml:"camera.height" env:"HEIGHT"`
	FPS     int    `toml:"camera.fps" env:"FPS" flag:"fps"`
	Flip    int    `toml:"camera.flip" env:"FLIP"`
	Backend string `toml:"camera.backend" env:"BACKEND"`

	LogLevel  string `toml:"logging.level" env:"LOG_LEVEL"`
	LogFormat string `toml:"logging.format" env:"LOG_FORMAT"`

	Addr    string `toml:"preview.addr" env:"ADDR"`
	Quality int    `toml:"preview.quality" env:"QUALITY"`
}

// Defaults returns options matching camera.DefaultConfig.
func Defaults() Options {
	cam := camera.DefaultConfig()
	return Options{
		Type:      string(cam.Kind),
		ID:        cam.Device,
		Width:     cam.Width,
		Height:    cam.Height,
		FPS:       cam.FrameRate,
		Flip:      int(cam.Orientation),
		Backend:   BackendOpenCV,
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":8080",
		Quality:   80,
	}
}

// Camera converts the camera options into a camera.Config. Only the type is
// checked; numeric values go to the device as given.
func (o Options) Camera() (camera.Config, error) {
	kind, err := camera.ParseSourceKind(o.Type)
	if err != nil {
		return camera.Config{}, err
	}
	return camera.Config{
		Kind:        kind,
		Device:      o.ID,
		Width:       o.Width,
		Height:      o.Height,
		FrameRate:   o.FPS,
		Orientation: camera.Orientation(o.Flip),
	}, nil
}

// Load fills opts, a pointer to a struct, from the TOML file named by its
// Config field and from the environment. Flags marked Changed on cmd keep
// their command-line values. A missing file is not an error.
func Load(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: want pointer to struct, got %T", opts)
	}
	v = v.Elem()
	t := v.Type()

	changed := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changed[f.Name] = true
			}
		})
	}

	var configPath string
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		configPath = f.String()
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return fmt.Errorf("config: read %s: %w", configPath, err)
		default:
			var doc map[string]any
			if err := toml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("config: parse %s: %w", configPath, err)
			}
			for i := 0; i < v.NumField(); i++ {
				ft := t.Field(i)
				if changed[flagName(ft)] {
					continue
				}
				if path := ft.Tag.Get("toml"); path != "" {
					if value := nestedValue(doc, path); value != nil {
						setFieldValue(v.Field(i), value)
					}
				}
			}
		}
	}

	for i := 0; i < v.NumField(); i++ {
		ft := t.Field(i)
		if changed[flagName(ft)] {
			continue
		}
		if key := ft.Tag.Get("env"); key != "" {
			if value, ok := os.LookupEnv(EnvPrefix + key); ok && value != "" {
				setFieldValueFromString(v.Field(i), value)
			}
		}
	}

	return nil
}

// flagName returns the `flag` tag, or the field name in kebab case:
// "LogLevel" -> "log-level".
func flagName(f reflect.StructField) string {
	if name := f.Tag.Get("flag"); name != "" {
		return name
	}
	var out []rune
	for i, r := range f.Name {
		if i > 0 && unicode.IsUpper(r) && !unicode.IsUpper(rune(f.Name[i-1])) {
			out = append(out, '-')
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

func nestedValue(doc map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := doc
	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		case float64:
			field.SetInt(int64(n))
		}
	}
}

func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if i, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			field.SetInt(i)
		}
	}
}
