package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// MockSource stands in for a microphone: it emits silent chunks on the
// configured buffer cadence. Used in tests and on hosts without capture
// hardware.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}
}

// NewMockSource builds a silent capture source.
func NewMockSource(cfg Config, logger *slog.Logger) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk),
		stopCh:   make(chan struct{}),
	}
}

// Start begins emitting chunks.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan AudioChunk, 10)

	// The generator owns out and is its sole closer; Stop only signals.
	go m.generate(ctx, m.streamCh, m.stopCh)

	m.logger.Debug("mock source started", "sample_rate", m.cfg.SampleRate)
	return nil
}

func (m *MockSource) generate(ctx context.Context, out chan<- AudioChunk, stop <-chan struct{}) {
	defer close(out)

	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()

	frame := m.cfg.BufferSize() * m.cfg.Channels
	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-stop:
			return
		case <-ticker.C:
			chunk := AudioChunk{
				Samples:    make([]int16, frame),
				SampleRate: m.cfg.SampleRate,
				Channels:   m.cfg.Channels,
			}
			select {
			case out <- chunk:
			default:
				// Consumer is behind; drop rather than block the cadence.
			}
		}
	}
}

// Stop signals the generator to finish. The stream channel closes once
// the generator observes the signal.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)
	return nil
}

// Stream returns the capture channel for the current run.
func (m *MockSource) Stream() <-chan AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return "mock"
}

// Close stops the generator and refuses further starts.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

var _ Source = (*MockSource)(nil)

// MockSink swallows audio while counting what went through it, so tests
// can assert on playback behavior without a device.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	pending  int // samples written since the last Flush or Clear
	chunks   int64
	samples  int64
	clears   int64
}

// NewMockSink builds a counting playback sink.
func NewMockSink(cfg Config, logger *slog.Logger) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &MockSink{cfg: cfg, logger: logger}
}

// Start opens the sink.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return io.ErrClosedPipe
	}
	m.running = true
	return nil
}

// Stop closes the sink; a later Start reopens it.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Write counts a chunk as played.
func (m *MockSink) Write(ctx context.Context, chunk AudioChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || !m.running {
		return io.ErrClosedPipe
	}
	m.pending += len(chunk.Samples)
	m.chunks++
	m.samples += int64(len(chunk.Samples))
	return nil
}

// Flush simulates draining the device with a token wait.
func (m *MockSink) Flush(ctx context.Context) error {
	m.mu.Lock()
	pending := m.pending
	m.pending = 0
	m.mu.Unlock()

	if pending == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
	}
	return nil
}

// Clear drops anything not yet "played" and counts the call.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = 0
	m.clears++
	return nil
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return "mock"
}

// Close stops the sink and refuses further starts.
func (m *MockSink) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()
	return m.Stop()
}

// ChunksWritten reports how many chunks Write accepted.
func (m *MockSink) ChunksWritten() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.chunks
}

// SamplesWritten reports how many samples Write accepted.
func (m *MockSink) SamplesWritten() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples
}

// Clears reports how many times Clear was called.
func (m *MockSink) Clears() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

var _ Sink = (*MockSink)(nil)
