package camera

import (
	"sync"
	"sync/atomic"
	"time"
)

// MockBackend is a capture backend for tests and for running without a
// camera. It records every call and hands out MockHandles.
//
// By default it acquires successfully, reports ready, and has no frames, so
// the first Read fails as if the stream had ended.
type MockBackend struct {
	mu sync.Mutex

	openErr    error
	notReady   bool
	panicValue any
	frames     []*Frame
	synthetic  bool
	releaseErr error

	pipelines []string
	devices   []int
	handles   []*MockHandle
}

// MockBackendOption configures a MockBackend.
type MockBackendOption func(*MockBackend)

// WithOpenError makes every acquisition fail with err.
func WithOpenError(err error) MockBackendOption {
	return func(m *MockBackend) {
		m.openErr = err
	}
}

// WithNotReady makes acquired handles report IsOpened() == false.
func WithNotReady() MockBackendOption {
	return func(m *MockBackend) {
		m.notReady = true
	}
}

// WithOpenPanic makes every acquisition panic with v.
func WithOpenPanic(v any) MockBackendOption {
	return func(m *MockBackend) {
		m.panicValue = v
	}
}

// WithFrames queues frames returned, in order, by the next handle's Read.
// Once they are used up, Read reports end of stream.
func WithFrames(frames ...*Frame) MockBackendOption {
	return func(m *MockBackend) {
		m.frames = append(m.frames, frames...)
	}
}

// WithSyntheticFrames makes handles produce an endless moving test pattern
// at the size requested through Set or the pipeline descriptor.
func WithSyntheticFrames() MockBackendOption {
	return func(m *MockBackend) {
		m.synthetic = true
	}
}

// WithReleaseError makes handle Release return err.
func WithReleaseError(err error) MockBackendOption {
	return func(m *MockBackend) {
		m.releaseErr = err
	}
}

// NewMockBackend creates a new mock backend.
func NewMockBackend(opts ...MockBackendOption) *MockBackend {
	m := &MockBackend{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns "mock".
func (m *MockBackend) Name() string {
	return "mock"
}

// OpenPipeline records descriptor and returns a new handle.
func (m *MockBackend) OpenPipeline(descriptor string) (Handle, error) {
	m.mu.Lock()
	m.pipelines = append(m.pipelines, descriptor)
	m.mu.Unlock()

	h, err := m.newHandle()
	if err != nil {
		return nil, err
	}
	if w, hgt, ok := PipelineSize(descriptor); ok {
		h.width, h.height = w, hgt
	}
	return h, nil
}

// OpenDevice records device and returns a new handle.
func (m *MockBackend) OpenDevice(device int) (Handle, error) {
	m.mu.Lock()
	m.devices = append(m.devices, device)
	m.mu.Unlock()

	h, err := m.newHandle()
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (m *MockBackend) newHandle() (*MockHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.panicValue != nil {
		panic(m.panicValue)
	}
	if m.openErr != nil {
		return nil, m.openErr
	}

	h := &MockHandle{
		opened:     !m.notReady,
		frames:     m.frames,
		synthetic:  m.synthetic,
		releaseErr: m.releaseErr,
		width:      DefaultWidth,
		height:     DefaultHeight,
	}
	m.frames = nil
	m.handles = append(m.handles, h)
	return h, nil
}

// Pipelines returns every descriptor passed to OpenPipeline.
func (m *MockBackend) Pipelines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.pipelines...)
}

// Devices returns every index passed to OpenDevice.
func (m *MockBackend) Devices() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.devices...)
}

// Handles returns every handle handed out, oldest first.
func (m *MockBackend) Handles() []*MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockHandle(nil), m.handles...)
}

// LastHandle returns the most recent handle, or nil.
func (m *MockBackend) LastHandle() *MockHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.handles) == 0 {
		return nil
	}
	return m.handles[len(m.handles)-1]
}

// PropertySet is one recorded Handle.Set call.
type PropertySet struct {
	Prop  Property
	Value float64
}

// MockHandle is the Handle returned by MockBackend.
type MockHandle struct {
	mu sync.Mutex

	opened     bool
	frames     []*Frame
	synthetic  bool
	releaseErr error
	width      int
	height     int
	sets       []PropertySet

	reads    atomic.Int64
	releases atomic.Int64
}

// Set records the call. Width and height also size synthetic frames.
func (h *MockHandle) Set(prop Property, value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sets = append(h.sets, PropertySet{Prop: prop, Value: value})
	switch prop {
	case PropFrameWidth:
		h.width = int(value)
	case PropFrameHeight:
		h.height = int(value)
	}
}

// IsOpened reports the configured readiness; false after Release.
func (h *MockHandle) IsOpened() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opened && h.releases.Load() == 0
}

// Read returns the next queued frame, a synthetic frame, or false.
func (h *MockHandle) Read() (*Frame, bool) {
	n := h.reads.Add(1)

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.opened || h.releases.Load() > 0 {
		return nil, false
	}
	if len(h.frames) > 0 {
		f := h.frames[0]
		h.frames = h.frames[1:]
		return f, true
	}
	if h.synthetic {
		return testPattern(h.width, h.height, int(n)), true
	}
	return nil, false
}

// Release records the call.
func (h *MockHandle) Release() error {
	h.releases.Add(1)
	return h.releaseErr
}

// Sets returns every recorded Set call in order.
func (h *MockHandle) Sets() []PropertySet {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]PropertySet(nil), h.sets...)
}

// Reads returns how many times Read was called.
func (h *MockHandle) Reads() int {
	return int(h.reads.Load())
}

// Releases returns how many times Release was called.
func (h *MockHandle) Releases() int {
	return int(h.releases.Load())
}

// testPattern draws diagonal colour bars that shift by one pixel per frame.
func testPattern(width, height, seq int) *Frame {
	f := NewFrame(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := (x + y + seq) % 256
			f.SetBGR(x, y, uint8(v), uint8(255-v), uint8((v*2)%256))
		}
	}
	f.Captured = time.Now()
	return f
}
