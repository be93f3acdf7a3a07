package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-jetcam/internal/config"
	"github.com/teslashibe/go-jetcam/internal/httpc"
	"github.com/teslashibe/go-jetcam/internal/log"
	"github.com/teslashibe/go-jetcam/pkg/camera"
)

func newSnapshotCmd(opts *config.Options) *cobra.Command {
	var (
		output string
		from   string
		skip   int
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save one JPEG frame without opening a window",
		Long: `Save one JPEG frame. By default the camera is opened locally; with
--from the frame is fetched from a running "jetcam serve".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if from != "" {
				data, err = fetchSnapshot(cmd.Context(), from)
			} else {
				data, err = captureSnapshot(opts, skip)
			}
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Saved %s (%d bytes)\n", output, len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", snapshotName(0), "output file")
	cmd.Flags().StringVar(&from, "from", "", "base URL of a jetcam preview server, e.g. http://jetson:8080")
	cmd.Flags().IntVar(&skip, "skip", 5, "frames to discard first while exposure settles")
	cmd.Flags().IntVar(&opts.Quality, "quality", opts.Quality, "JPEG quality (1-100)")
	return cmd
}

func fetchSnapshot(ctx context.Context, base string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	url := strings.TrimRight(base, "/") + "/api/snapshot"
	log.Debug("fetching snapshot", "url", url)

	data, contentType, err := httpc.Fetch(ctx, nil, url)
	if err != nil {
		return nil, err
	}
	if contentType != "image/jpeg" {
		return nil, fmt.Errorf("%s returned %q, want image/jpeg", url, contentType)
	}
	return data, nil
}

func captureSnapshot(opts *config.Options, skip int) ([]byte, error) {
	src, err := newSource(opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = src.With(func(s *camera.Source) error {
		for i := 0; ; i++ {
			frame, ok := s.Read()
			if !ok {
				return fmt.Errorf("read failed after %d frames", i)
			}
			if i < skip {
				continue
			}
			return frame.EncodeJPEG(&buf, opts.Quality)
		}
	})
	if err != nil {
		return nil, err
	}
	log.Debug("captured snapshot", "skipped", skip, "bytes", buf.Len())
	return buf.Bytes(), nil
}
