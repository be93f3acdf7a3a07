package camera

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func usbConfig() Config {
	cfg := DefaultConfig()
	cfg.Kind = KindUSB
	return cfg
}

func TestNewSource_InitialState(t *testing.T) {
	src := NewSource(DefaultConfig(), NewMockBackend(), quietLogger())

	if src.IsOpen() {
		t.Error("new source should be closed")
	}
	if src.ID() == "" {
		t.Error("new source should have an ID")
	}
	if src.Err() != nil {
		t.Errorf("Err() = %v, want nil", src.Err())
	}
}

func TestNewSource_NoIO(t *testing.T) {
	backend := NewMockBackend()
	_ = NewSource(DefaultConfig(), backend, nil)

	if len(backend.Pipelines()) != 0 || len(backend.Devices()) != 0 {
		t.Error("constructor must not touch the backend")
	}
}

func TestSource_OpenCSI(t *testing.T) {
	backend := NewMockBackend()
	cfg := DefaultConfig()
	src := NewSource(cfg, backend, quietLogger())

	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !src.IsOpen() {
		t.Error("source should be open")
	}

	pipelines := backend.Pipelines()
	if len(pipelines) != 1 {
		t.Fatalf("OpenPipeline calls = %d, want 1", len(pipelines))
	}
	if pipelines[0] != CSIPipeline(cfg) {
		t.Errorf("pipeline = %q, want %q", pipelines[0], CSIPipeline(cfg))
	}
	if len(backend.Devices()) != 0 {
		t.Error("CSI open must not use OpenDevice")
	}
	if sets := backend.LastHandle().Sets(); len(sets) != 0 {
		t.Errorf("CSI open issued %d property sets, want 0", len(sets))
	}
}

func TestSource_OpenUSB(t *testing.T) {
	backend := NewMockBackend()
	cfg := usbConfig()
	cfg.Device = 2
	cfg.Width = 1920
	cfg.Height = 1080
	cfg.FrameRate = 60
	src := NewSource(cfg, backend, quietLogger())

	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	devices := backend.Devices()
	if len(devices) != 1 || devices[0] != 2 {
		t.Errorf("OpenDevice calls = %v, want [2]", devices)
	}
	if len(backend.Pipelines()) != 0 {
		t.Error("USB open must not use a pipeline descriptor")
	}

	sets := backend.LastHandle().Sets()
	if len(sets) != 3 {
		t.Fatalf("property sets = %d, want 3", len(sets))
	}

	got := map[Property]float64{}
	for _, s := range sets {
		got[s.Prop] = s.Value
	}
	want := map[Property]float64{
		PropFrameWidth:  1920,
		PropFrameHeight: 1080,
		PropFPS:         60,
	}
	for prop, v := range want {
		if got[prop] != v {
			t.Errorf("%s = %v, want %v", prop, got[prop], v)
		}
	}
}

func TestSource_OpenMultipleCameras(t *testing.T) {
	backend := NewMockBackend()

	cfg0 := usbConfig()
	cfg1 := usbConfig()
	cfg1.Device = 1

	src0 := NewSource(cfg0, backend, quietLogger())
	src1 := NewSource(cfg1, backend, quietLogger())

	if err := src0.Open(); err != nil {
		t.Fatalf("Open 0 failed: %v", err)
	}
	if err := src1.Open(); err != nil {
		t.Fatalf("Open 1 failed: %v", err)
	}

	devices := backend.Devices()
	if len(devices) != 2 || devices[0] != 0 || devices[1] != 1 {
		t.Errorf("devices = %v, want [0 1]", devices)
	}
	if src0.ID() == src1.ID() {
		t.Error("sources should have distinct IDs")
	}
}

func TestSource_OpenNotReady(t *testing.T) {
	backend := NewMockBackend(WithNotReady())
	src := NewSource(usbConfig(), backend, quietLogger())

	err := src.Open()
	if err == nil {
		t.Fatal("Open should fail when the handle is not opened")
	}
	if src.IsOpen() {
		t.Error("source should stay closed")
	}
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("error = %v, want ErrNotReady", err)
	}
	if KindOf(err) != FailNotReady {
		t.Errorf("KindOf = %s, want %s", KindOf(err), FailNotReady)
	}
	if src.Err() != err {
		t.Error("Err() should return the last open error")
	}

	// The unusable handle is released right away.
	if n := backend.LastHandle().Releases(); n != 1 {
		t.Errorf("releases of unready handle = %d, want 1", n)
	}

	src.Release()
	if n := backend.LastHandle().Releases(); n != 1 {
		t.Errorf("Release after failed open reached the backend again (%d)", n)
	}
}

func TestSource_OpenAcquireError(t *testing.T) {
	cause := errors.New("Camera error")
	backend := NewMockBackend(WithOpenError(cause))

	for _, cfg := range []Config{DefaultConfig(), usbConfig()} {
		src := NewSource(cfg, backend, quietLogger())

		err := src.Open()
		if err == nil {
			t.Fatalf("[%s] Open should fail", cfg.Kind)
		}
		if src.IsOpen() {
			t.Errorf("[%s] source should stay closed", cfg.Kind)
		}
		if !errors.Is(err, cause) {
			t.Errorf("[%s] error = %v, want wrapped cause", cfg.Kind, err)
		}

		var oe *OpenError
		if !errors.As(err, &oe) {
			t.Fatalf("[%s] error type = %T, want *OpenError", cfg.Kind, err)
		}
		if oe.Kind != FailAcquire {
			t.Errorf("[%s] kind = %s, want %s", cfg.Kind, oe.Kind, FailAcquire)
		}
		if oe.Source != cfg.Kind {
			t.Errorf("[%s] error source = %s", cfg.Kind, oe.Source)
		}
	}
}

// partialOpenBackend hands out a handle together with an error.
type partialOpenBackend struct {
	*MockBackend
	cause error
}

func (b *partialOpenBackend) OpenPipeline(descriptor string) (Handle, error) {
	h, _ := b.MockBackend.OpenPipeline(descriptor)
	return h, b.cause
}

func (b *partialOpenBackend) OpenDevice(device int) (Handle, error) {
	h, _ := b.MockBackend.OpenDevice(device)
	return h, b.cause
}

func TestSource_OpenAcquireErrorReleasesHandle(t *testing.T) {
	cause := errors.New("format negotiation failed")

	tests := []struct {
		name string
		cfg  Config
	}{
		{"csi", DefaultConfig()},
		{"usb", usbConfig()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &partialOpenBackend{MockBackend: NewMockBackend(), cause: cause}
			src := NewSource(tt.cfg, backend, quietLogger())

			err := src.Open()
			if err == nil {
				t.Fatal("Open should fail")
			}
			if src.IsOpen() {
				t.Error("source should stay closed")
			}
			if KindOf(err) != FailAcquire {
				t.Errorf("kind = %s, want %s", KindOf(err), FailAcquire)
			}
			if !errors.Is(err, cause) {
				t.Errorf("error = %v, want wrapped cause", err)
			}

			h := backend.LastHandle()
			if h == nil {
				t.Fatal("backend opened no handle")
			}
			if h.Releases() != 1 {
				t.Errorf("handle released %d times, want 1", h.Releases())
			}
		})
	}
}

func TestSource_OpenBackendPanic(t *testing.T) {
	backend := NewMockBackend(WithOpenPanic("cgo exploded"))
	src := NewSource(DefaultConfig(), backend, quietLogger())

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("panic escaped Open: %v", r)
			}
		}()
		err = src.Open()
	}()

	if err == nil {
		t.Fatal("Open should fail")
	}
	if KindOf(err) != FailPanic {
		t.Errorf("KindOf = %s, want %s", KindOf(err), FailPanic)
	}
	if !strings.Contains(err.Error(), "cgo exploded") {
		t.Errorf("error %q should mention the panic value", err)
	}
	if src.IsOpen() {
		t.Error("source should stay closed")
	}
}

func TestSource_OpenNoBackend(t *testing.T) {
	src := NewSource(DefaultConfig(), nil, quietLogger())

	err := src.Open()
	if !errors.Is(err, ErrNoBackend) {
		t.Errorf("error = %v, want ErrNoBackend", err)
	}
	if KindOf(err) != FailNoBackend {
		t.Errorf("KindOf = %s, want %s", KindOf(err), FailNoBackend)
	}
}

func TestSource_OpenTwiceIsNoop(t *testing.T) {
	backend := NewMockBackend()
	src := NewSource(usbConfig(), backend, quietLogger())

	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := src.Open(); err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	if n := len(backend.Handles()); n != 1 {
		t.Errorf("handles acquired = %d, want 1", n)
	}
}

func TestSource_ReadWithoutOpen(t *testing.T) {
	backend := NewMockBackend(WithFrames(NewFrame(4, 4)))
	src := NewSource(usbConfig(), backend, quietLogger())

	frame, ok := src.Read()
	if ok {
		t.Error("Read on closed source should fail")
	}
	if frame != nil {
		t.Error("Read on closed source should return nil frame")
	}
	if len(backend.Handles()) != 0 || len(backend.Devices()) != 0 {
		t.Error("Read on closed source must not touch the backend")
	}
}

func TestSource_ReadSuccess(t *testing.T) {
	want := NewFrame(1280, 720)
	backend := NewMockBackend(WithFrames(want))
	src := NewSource(usbConfig(), backend, quietLogger())

	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	frame, ok := src.Read()
	if !ok {
		t.Fatal("Read failed")
	}
	if frame != want {
		t.Error("Read should return the backend frame unmodified")
	}
	if frame.Width != 1280 || frame.Height != 720 || len(frame.Pix) != 1280*720*3 {
		t.Errorf("frame shape = %dx%d (%d bytes)", frame.Width, frame.Height, len(frame.Pix))
	}
	if n := backend.LastHandle().Reads(); n != 1 {
		t.Errorf("backend reads = %d, want 1", n)
	}
}

func TestSource_ReadFailure(t *testing.T) {
	backend := NewMockBackend()
	src := NewSource(usbConfig(), backend, quietLogger())

	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	frame, ok := src.Read()
	if ok || frame != nil {
		t.Errorf("Read = (%v, %v), want (nil, false)", frame, ok)
	}
	if !src.IsOpen() {
		t.Error("a failed read must not close the source")
	}
}

func TestSource_ReadSequence(t *testing.T) {
	frames := make([]*Frame, 10)
	for i := range frames {
		frames[i] = NewFrame(8, 8)
	}
	backend := NewMockBackend(WithFrames(frames...))
	src := NewSource(usbConfig(), backend, quietLogger())

	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for i := range frames {
		frame, ok := src.Read()
		if !ok {
			t.Fatalf("Read %d failed", i)
		}
		if frame != frames[i] {
			t.Fatalf("Read %d returned the wrong frame", i)
		}
	}

	src.Release()
	if n := backend.LastHandle().Releases(); n != 1 {
		t.Errorf("releases = %d, want 1", n)
	}
}

func TestSource_Release(t *testing.T) {
	backend := NewMockBackend()
	src := NewSource(usbConfig(), backend, quietLogger())

	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	src.Release()

	if src.IsOpen() {
		t.Error("source should be closed after Release")
	}
	if n := backend.LastHandle().Releases(); n != 1 {
		t.Errorf("releases = %d, want 1", n)
	}
	if _, ok := src.Read(); ok {
		t.Error("Read after Release should fail")
	}
}

func TestSource_ReleaseIdempotent(t *testing.T) {
	backend := NewMockBackend()
	src := NewSource(DefaultConfig(), backend, quietLogger())

	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	src.Release()
	src.Release()

	if src.IsOpen() {
		t.Error("source should be closed")
	}
	if n := backend.LastHandle().Releases(); n != 1 {
		t.Errorf("releases = %d, want 1", n)
	}
}

func TestSource_ReleaseWithoutOpen(t *testing.T) {
	src := NewSource(DefaultConfig(), NewMockBackend(), quietLogger())
	src.Release()

	if src.IsOpen() {
		t.Error("source should be closed")
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close = %v, want nil", err)
	}
}

func TestSource_ReleaseErrorIsSwallowed(t *testing.T) {
	backend := NewMockBackend(WithReleaseError(errors.New("busy")))
	src := NewSource(usbConfig(), backend, quietLogger())

	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close = %v, want nil", err)
	}
	if src.IsOpen() {
		t.Error("source should be closed even if the backend complained")
	}
}

func TestSource_ReopenAfterRelease(t *testing.T) {
	backend := NewMockBackend()
	src := NewSource(usbConfig(), backend, quietLogger())

	for i := 0; i < 3; i++ {
		if err := src.Open(); err != nil {
			t.Fatalf("Open %d failed: %v", i, err)
		}
		src.Release()
	}

	handles := backend.Handles()
	if len(handles) != 3 {
		t.Fatalf("handles = %d, want 3", len(handles))
	}
	for i, h := range handles {
		if h.Releases() != 1 {
			t.Errorf("handle %d releases = %d, want 1", i, h.Releases())
		}
	}
}

func TestSource_With(t *testing.T) {
	backend := NewMockBackend(WithFrames(NewFrame(2, 2)))
	src := NewSource(usbConfig(), backend, quietLogger())

	err := src.With(func(s *Source) error {
		if !s.IsOpen() {
			t.Error("source should be open inside With")
		}
		if _, ok := s.Read(); !ok {
			t.Error("Read inside With failed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("With failed: %v", err)
	}

	if src.IsOpen() {
		t.Error("source should be closed after With")
	}
	if n := backend.LastHandle().Releases(); n != 1 {
		t.Errorf("releases = %d, want 1", n)
	}
}

func TestSource_WithBodyError(t *testing.T) {
	backend := NewMockBackend()
	src := NewSource(usbConfig(), backend, quietLogger())
	bodyErr := errors.New("Simulated error")

	err := src.With(func(*Source) error { return bodyErr })
	if !errors.Is(err, bodyErr) {
		t.Errorf("With = %v, want body error", err)
	}
	if n := backend.LastHandle().Releases(); n != 1 {
		t.Errorf("releases = %d, want 1", n)
	}
}

func TestSource_WithBodyPanic(t *testing.T) {
	backend := NewMockBackend()
	src := NewSource(usbConfig(), backend, quietLogger())

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Error("panic should propagate out of With")
			}
		}()
		_ = src.With(func(*Source) error { panic("Simulated error") })
	}()

	if src.IsOpen() {
		t.Error("source should be closed after panic")
	}
	if n := backend.LastHandle().Releases(); n != 1 {
		t.Errorf("releases = %d, want 1", n)
	}
}

func TestSource_WithOpenFailure(t *testing.T) {
	backend := NewMockBackend(WithNotReady())
	src := NewSource(usbConfig(), backend, quietLogger())

	called := false
	err := src.With(func(*Source) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("With should return the open error")
	}
	if called {
		t.Error("body must not run when Open fails")
	}
	if n := backend.LastHandle().Releases(); n != 1 {
		t.Errorf("releases = %d, want 1", n)
	}
}

func TestSource_FrameSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	src := NewSource(cfg, NewMockBackend(), quietLogger())

	check := func(state string) {
		t.Helper()
		w, h := src.FrameSize()
		if w != 1920 || h != 1080 {
			t.Errorf("%s: FrameSize = (%d, %d), want (1920, 1080)", state, w, h)
		}
	}

	check("closed")
	if err := src.Open(); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	check("open")
	src.Release()
	check("released")
}

func TestSource_AcceptsMalformedConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width = 0
	src := NewSource(cfg, NewMockBackend(), quietLogger())

	if w, _ := src.FrameSize(); w != 0 {
		t.Errorf("width = %d, want 0 (stored as given)", w)
	}
}

func TestSource_OpenReleaseProperty(t *testing.T) {
	var configs []Config
	for _, name := range PresetNames() {
		configs = append(configs, *GetPreset(name))
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].String() < configs[j].String() })

	for _, cfg := range configs {
		backend := NewMockBackend()
		src := NewSource(cfg, backend, quietLogger())

		if err := src.Open(); err != nil {
			t.Fatalf("[%s] Open failed: %v", cfg, err)
		}
		src.Release()

		if src.IsOpen() {
			t.Errorf("[%s] still open after Release", cfg)
		}
		for _, h := range backend.Handles() {
			if h.Releases() != 1 {
				t.Errorf("[%s] handle released %d times", cfg, h.Releases())
			}
		}
	}
}
