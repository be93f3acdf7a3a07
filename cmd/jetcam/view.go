package main

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/teslashibe/go-jetcam/internal/config"
	"github.com/teslashibe/go-jetcam/internal/log"
	"github.com/teslashibe/go-jetcam/pkg/camera"
	"github.com/teslashibe/go-jetcam/pkg/camera/opencv"
)

const windowTitle = "jetcam"

func newViewCmd(opts *config.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Show the camera in a window (default)",
		Long:  "Show the camera in a window. Press 'q' to quit, 's' to save a snapshot.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd, opts)
		},
	}
}

func runView(cmd *cobra.Command, opts *config.Options) error {
	out := cmd.OutOrStdout()

	src, err := newSource(opts)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "📷 jetcam viewer")
	fmt.Fprintf(out, "   %s\n", src.Config())
	fmt.Fprintln(out, "   Press 'q' to quit, 's' to save a snapshot")

	stopped := make(chan os.Signal, 1)
	signal.Notify(stopped, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stopped)

	v := &viewer{out: out}
	err = src.With(func(s *camera.Source) error {
		fmt.Fprintf(out, "✅ Camera opened (%dx%d @ %d fps)\n", s.Config().Width, s.Config().Height, s.Config().FrameRate)
		return v.loop(s, stopped)
	})
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		return err
	}

	fmt.Fprintf(out, "\nTotal frames captured: %d\n", v.frames)
	return nil
}

// viewer shows frames until the stream ends, the user quits, or a signal
// arrives.
type viewer struct {
	out       io.Writer
	frames    int
	snapshots int
}

func (v *viewer) loop(src *camera.Source, stopped <-chan os.Signal) error {
	window := gocv.NewWindow(windowTitle)
	defer window.Close()

	for {
		select {
		case <-stopped:
			fmt.Fprintln(v.out, "\n👋 Interrupted")
			return nil
		default:
		}

		frame, ok := src.Read()
		if !ok {
			fmt.Fprintln(v.out, "⚠️  Failed to read frame")
			return nil
		}
		v.frames++

		mat, err := opencv.FrameToMat(frame)
		if err != nil {
			log.Warn("skipping frame", "error", err)
			continue
		}

		gocv.PutText(&mat, frameLabel(v.frames), image.Pt(10, 30),
			gocv.FontHersheySimplex, 1, color.RGBA{G: 255}, 2)
		window.IMShow(mat)

		quit := v.handleKey(window.WaitKey(1), mat)
		mat.Close()
		if quit {
			fmt.Fprintln(v.out, "\nQuitting...")
			return nil
		}
	}
}

// handleKey acts on a WaitKey result and reports whether to quit.
func (v *viewer) handleKey(key int, mat gocv.Mat) bool {
	switch key & 0xFF {
	case 'q':
		return true
	case 's':
		name := snapshotName(v.snapshots)
		if gocv.IMWrite(name, mat) {
			fmt.Fprintf(v.out, "✅ Saved %s\n", name)
			v.snapshots++
		} else {
			log.Error("snapshot write failed", "file", name)
		}
	}
	return false
}

func frameLabel(n int) string {
	return fmt.Sprintf("Frame: %d", n)
}

func snapshotName(n int) string {
	return fmt.Sprintf("snapshot_%03d.jpg", n)
}
