package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-jetcam/internal/config"
	"github.com/teslashibe/go-jetcam/pkg/camera"
)

func newPipelineCmd(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline",
		Short: "Print the GStreamer pipeline for a CSI camera",
		Long: `Print the nvarguscamerasrc pipeline jetcam would open for the given
flags. Paste it after "gst-launch-1.0" (replacing appsink with a display
sink) to test a sensor without jetcam.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.Camera()
			if err != nil {
				return err
			}
			if cfg.Kind != camera.KindCSI {
				return fmt.Errorf("pipeline only applies to csi cameras, got %s", cfg.Kind)
			}
			fmt.Fprintln(cmd.OutOrStdout(), camera.CSIPipeline(cfg))
			return nil
		},
	}
}
