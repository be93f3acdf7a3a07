package camera

import (
	"strings"
	"testing"
)

func TestCSIPipeline_Exact(t *testing.T) {
	cfg := Config{
		Kind:        KindCSI,
		Device:      0,
		Width:       1280,
		Height:      720,
		FrameRate:   30,
		Orientation: OrientationNone,
	}

	want := "nvarguscamerasrc sensor-id=0 ! " +
		"video/x-raw(memory:NVMM), width=(int)1280, height=(int)720, format=(string)NV12, framerate=(fraction)30/1 ! " +
		"nvvidconv flip-method=0 ! " +
		"video/x-raw, width=(int)1280, height=(int)720, format=(string)BGRx ! " +
		"videoconvert ! " +
		"video/x-raw, format=(string)BGR ! " +
		"appsink"

	if got := CSIPipeline(cfg); got != want {
		t.Errorf("CSIPipeline =\n%s\nwant\n%s", got, want)
	}
}

func TestCSIPipeline_Substrings(t *testing.T) {
	cfg := Config{
		Kind:        KindCSI,
		Device:      1,
		Width:       1280,
		Height:      720,
		FrameRate:   30,
		Orientation: OrientationRotate180,
	}
	p := CSIPipeline(cfg)

	for _, want := range []string{
		"sensor-id=1",
		"width=(int)1280",
		"height=(int)720",
		"framerate=(fraction)30/1",
		"flip-method=2",
		"format=(string)NV12",
		"format=(string)BGRx",
		"format=(string)BGR ",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("pipeline missing %q:\n%s", want, p)
		}
	}
}

func TestCSIPipeline_ElementOrder(t *testing.T) {
	stages := strings.Split(CSIPipeline(DefaultConfig()), " ! ")
	if len(stages) != 7 {
		t.Fatalf("stages = %d, want 7", len(stages))
	}

	tests := []struct {
		idx    int
		prefix string
	}{
		{0, "nvarguscamerasrc "},
		{1, "video/x-raw(memory:NVMM), "},
		{2, "nvvidconv "},
		{3, "video/x-raw, "},
		{4, "videoconvert"},
		{5, "video/x-raw, format=(string)BGR"},
		{6, "appsink"},
	}
	for _, tt := range tests {
		if !strings.HasPrefix(stages[tt.idx], tt.prefix) {
			t.Errorf("stage %d = %q, want prefix %q", tt.idx, stages[tt.idx], tt.prefix)
		}
	}
}

func TestCSIPipeline_SizeAppearsTwice(t *testing.T) {
	cfg := HD1080Config()
	p := CSIPipeline(cfg)

	if n := strings.Count(p, "width=(int)1920"); n != 2 {
		t.Errorf("width caps count = %d, want 2", n)
	}
	if n := strings.Count(p, "height=(int)1080"); n != 2 {
		t.Errorf("height caps count = %d, want 2", n)
	}
}

func TestCSIPipeline_NoValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 0
	cfg.FrameRate = -5

	p := CSIPipeline(cfg)
	if !strings.Contains(p, "width=(int)0") || !strings.Contains(p, "framerate=(fraction)-5/1") {
		t.Errorf("values should be formatted as given: %s", p)
	}
}

func TestConfig_Pipeline(t *testing.T) {
	cfg := Rotate180Config()
	if cfg.Pipeline() != CSIPipeline(cfg) {
		t.Error("Config.Pipeline should match CSIPipeline")
	}
}

func TestPipelineSize(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
		wantW      int
		wantH      int
		wantOK     bool
	}{
		{"csi default", CSIPipeline(DefaultConfig()), 1280, 720, true},
		{"csi full", CSIPipeline(IMX219FullConfig()), 3264, 2464, true},
		{"no caps", "videotestsrc ! appsink", 0, 0, false},
		{"width only", "video/x-raw, width=(int)640 ! appsink", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, ok := PipelineSize(tt.descriptor)
			if ok != tt.wantOK || w != tt.wantW || h != tt.wantH {
				t.Errorf("PipelineSize = (%d, %d, %v), want (%d, %d, %v)",
					w, h, ok, tt.wantW, tt.wantH, tt.wantOK)
			}
		})
	}
}
