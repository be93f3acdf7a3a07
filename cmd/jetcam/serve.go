package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-jetcam/internal/config"
	"github.com/teslashibe/go-jetcam/internal/log"
	"github.com/teslashibe/go-jetcam/pkg/camera"
	"github.com/teslashibe/go-jetcam/pkg/preview"
)

func newServeCmd(opts *config.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the camera over HTTP and websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.Camera()
			if err != nil {
				return err
			}
			backend, err := newBackend(opts.Backend)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("starting preview server", "addr", opts.Addr, "camera", cfg.String(), "backend", backend.Name())
			srv := preview.NewServer(preview.Config{
				Addr:    opts.Addr,
				Quality: opts.Quality,
				Logger:  log.Named("preview"),
			}, backend, camera.NewManager(cfg))

			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", opts.Addr, "listen address")
	cmd.Flags().IntVar(&opts.Quality, "quality", opts.Quality, "JPEG quality (1-100)")
	return cmd
}
