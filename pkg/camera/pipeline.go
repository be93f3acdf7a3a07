package camera

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// GStreamer element and caps tokens used in the CSI pipeline. Other tooling
// (gst-launch-1.0 scripts, jetson-utils) parses these strings, so the names
// and their order are fixed.
const (
	ElementSensorSource = "nvarguscamerasrc"
	ElementHardwareConv = "nvvidconv"
	ElementSoftwareConv = "videoconvert"
	ElementAppSink      = "appsink"

	FormatSensorNative = "NV12"
	FormatPaddedBGR    = "BGRx"
	FormatBGR          = "BGR"

	capsRawNVMM      = "video/x-raw(memory:NVMM)"
	capsRaw          = "video/x-raw"
	pipelineStageSep = " ! "
)

// CSIPipeline builds the GStreamer descriptor that opens a CSI sensor:
//
//	nvarguscamerasrc sensor-id=D
//	  ! video/x-raw(memory:NVMM), width, height, NV12, framerate
//	  ! nvvidconv flip-method=O
//	  ! video/x-raw, width, height, BGRx
//	  ! videoconvert
//	  ! video/x-raw, BGR
//	  ! appsink
//
// Values are not checked; a bad width fails at open time inside GStreamer.
func CSIPipeline(cfg Config) string {
	stages := []string{
		fmt.Sprintf("%s sensor-id=%d", ElementSensorSource, cfg.Device),
		fmt.Sprintf("%s, width=(int)%d, height=(int)%d, format=(string)%s, framerate=(fraction)%d/1",
			capsRawNVMM, cfg.Width, cfg.Height, FormatSensorNative, cfg.FrameRate),
		fmt.Sprintf("%s flip-method=%d", ElementHardwareConv, cfg.Orientation),
		fmt.Sprintf("%s, width=(int)%d, height=(int)%d, format=(string)%s",
			capsRaw, cfg.Width, cfg.Height, FormatPaddedBGR),
		ElementSoftwareConv,
		fmt.Sprintf("%s, format=(string)%s", capsRaw, FormatBGR),
		ElementAppSink,
	}

	return strings.Join(stages, pipelineStageSep)
}

var (
	widthCaps  = regexp.MustCompile(`width=\(int\)(\d+)`)
	heightCaps = regexp.MustCompile(`height=\(int\)(\d+)`)
)

// PipelineSize extracts the first width and height caps from a descriptor.
func PipelineSize(descriptor string) (width, height int, ok bool) {
	wm := widthCaps.FindStringSubmatch(descriptor)
	hm := heightCaps.FindStringSubmatch(descriptor)
	if wm == nil || hm == nil {
		return 0, 0, false
	}
	width, werr := strconv.Atoi(wm[1])
	height, herr := strconv.Atoi(hm[1])
	if werr != nil || herr != nil {
		return 0, 0, false
	}
	return width, height, true
}
