// Command jetcam opens a CSI or USB camera on a Jetson board and shows it
// in a window, serves it over HTTP, saves snapshots, or prints its
// GStreamer pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-jetcam/internal/config"
	"github.com/teslashibe/go-jetcam/internal/log"
	"github.com/teslashibe/go-jetcam/pkg/camera"
	"github.com/teslashibe/go-jetcam/pkg/camera/opencv"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := config.Defaults()

	root := &cobra.Command{
		Use:           "jetcam",
		Short:         "Jetson CSI/USB camera tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Load(&opts, cmd); err != nil {
				return err
			}
			log.Init(opts.LogLevel, opts.LogFormat)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd, &opts)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.Config, "config", "c", "", "TOML config file")
	f.StringVar(&opts.Type, "type", opts.Type, "camera type (csi or usb)")
	f.IntVar(&opts.ID, "id", opts.ID, "sensor id (csi) or device index (usb)")
	f.IntVar(&opts.Width, "width", opts.Width, "frame width")
	f.IntVar(&opts.Height, "height", opts.Height, "frame height")
	f.IntVar(&opts.FPS, "fps", opts.FPS, "frames per second")
	f.IntVar(&opts.Flip, "flip", opts.Flip, "nvvidconv flip-method for csi cameras (0-7)")
	f.StringVar(&opts.Backend, "backend", opts.Backend, "capture backend (opencv or mock)")
	f.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "log level (debug, info, warn, error)")
	f.StringVar(&opts.LogFormat, "log-format", opts.LogFormat, "log format (text or json)")

	root.AddCommand(
		newViewCmd(&opts),
		newServeCmd(&opts),
		newPipelineCmd(&opts),
		newSnapshotCmd(&opts),
	)
	return root
}

// newBackend returns the capture backend named by opts.
func newBackend(name string) (camera.Backend, error) {
	switch name {
	case config.BackendOpenCV, "":
		return opencv.New(), nil
	case config.BackendMock:
		return camera.NewMockBackend(camera.WithSyntheticFrames()), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want %s or %s)", name, config.BackendOpenCV, config.BackendMock)
	}
}

// newSource builds a closed Source from opts.
func newSource(opts *config.Options) (*camera.Source, error) {
	cfg, err := opts.Camera()
	if err != nil {
		return nil, err
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		log.Warn("unusual camera config", "config", cfg.String(), "problems", problems)
	}

	backend, err := newBackend(opts.Backend)
	if err != nil {
		return nil, err
	}
	return camera.NewSource(cfg, backend, log.With("module", "camera", "backend", backend.Name())), nil
}
