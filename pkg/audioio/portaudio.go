package audioio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSource captures audio from a microphone via PortAudio.
type PortAudioSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	stream   *portaudio.Stream
	buf      []int16
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}
}

// newPortAudioSource creates a new PortAudio capture source.
func newPortAudioSource(cfg Config, logger *slog.Logger) (*PortAudioSource, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	s := &PortAudioSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk, 10),
		stopCh:   make(chan struct{}),
	}

	logger.Info("portaudio source created",
		"device", cfg.Device,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	return s, nil
}

// Start begins audio capture on a dedicated goroutine.
func (s *PortAudioSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	s.buf = make([]int16, s.cfg.BufferSize()*s.cfg.Channels)
	stream, err := s.openStream()
	if err != nil {
		return fmt.Errorf("open capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start capture stream: %w", err)
	}

	s.stream = stream
	s.running = true
	s.stopCh = make(chan struct{})
	s.streamCh = make(chan AudioChunk, 10)

	// The capture goroutine owns out and is its sole closer; Stop only
	// signals through stop.
	go s.captureLoop(ctx, s.streamCh, s.stopCh)

	s.logger.Info("portaudio source started", "device", s.cfg.Device)

	return nil
}

func (s *PortAudioSource) openStream() (*portaudio.Stream, error) {
	if s.cfg.Device == "" {
		return portaudio.OpenDefaultStream(
			s.cfg.Channels, 0, float64(s.cfg.SampleRate), len(s.buf)/s.cfg.Channels, s.buf)
	}

	dev, err := deviceByName(s.cfg.Device)
	if err != nil {
		return nil, err
	}
	params := portaudio.HighLatencyParameters(dev, nil)
	params.Input.Channels = s.cfg.Channels
	params.SampleRate = float64(s.cfg.SampleRate)
	params.FramesPerBuffer = len(s.buf) / s.cfg.Channels
	return portaudio.OpenStream(params, s.buf)
}

func (s *PortAudioSource) captureLoop(ctx context.Context, out chan<- AudioChunk, stop <-chan struct{}) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return
		case <-stop:
			return
		default:
		}

		s.mu.Lock()
		stream := s.stream
		s.mu.Unlock()
		if stream == nil {
			return
		}

		if err := stream.Read(); err != nil {
			// Overflow means the OS dropped audio; keep capturing.
			if err == portaudio.InputOverflowed {
				continue
			}
			s.logger.Error("capture read failed", "error", err)
			s.Stop()
			return
		}

		chunk := AudioChunk{
			Samples:    append([]int16(nil), s.buf...),
			SampleRate: s.cfg.SampleRate,
			Channels:   s.cfg.Channels,
		}

		select {
		case out <- chunk:
		default:
			// Consumer is behind; drop the chunk rather than block capture.
		}
	}
}

// Stop halts audio capture. The stream channel closes once the capture
// goroutine observes the stop signal.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	close(s.stopCh)

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
		s.stream = nil
	}

	s.logger.Info("portaudio source stopped")

	return nil
}

// Stream returns the capture channel for the current run.
func (s *PortAudioSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *PortAudioSource) Config() Config {
	return s.cfg
}

// Name returns "portaudio".
func (s *PortAudioSource) Name() string {
	return "portaudio"
}

// Close releases resources.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()
	return portaudio.Terminate()
}

// PortAudioSink plays audio to a speaker via PortAudio.
//
// Write accepts chunks of any length; whole device buffers are written
// immediately and the remainder is carried until the next Write or Flush.
type PortAudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	stream  *portaudio.Stream
	buf     []int16
	pending []int16
	running bool
	closed  bool
}

// newPortAudioSink creates a new PortAudio playback sink.
func newPortAudioSink(cfg Config, logger *slog.Logger) (*PortAudioSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio init: %w", err)
	}

	s := &PortAudioSink{
		cfg:    cfg,
		logger: logger,
	}

	logger.Info("portaudio sink created",
		"device", cfg.Device,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	return s, nil
}

// Start opens the output stream.
func (s *PortAudioSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	s.buf = make([]int16, s.cfg.BufferSize()*s.cfg.Channels)
	stream, err := s.openStream()
	if err != nil {
		return fmt.Errorf("open playback stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start playback stream: %w", err)
	}

	s.stream = stream
	s.running = true
	s.pending = s.pending[:0]

	s.logger.Info("portaudio sink started", "device", s.cfg.Device)

	return nil
}

func (s *PortAudioSink) openStream() (*portaudio.Stream, error) {
	if s.cfg.Device == "" {
		return portaudio.OpenDefaultStream(
			0, s.cfg.Channels, float64(s.cfg.SampleRate), len(s.buf)/s.cfg.Channels, s.buf)
	}

	dev, err := deviceByName(s.cfg.Device)
	if err != nil {
		return nil, err
	}
	params := portaudio.HighLatencyParameters(nil, dev)
	params.Output.Channels = s.cfg.Channels
	params.SampleRate = float64(s.cfg.SampleRate)
	params.FramesPerBuffer = len(s.buf) / s.cfg.Channels
	return portaudio.OpenStream(params, s.buf)
}

// Write sends an audio chunk to the output device.
// Blocks while the device drains previous buffers.
func (s *PortAudioSink) Write(ctx context.Context, chunk AudioChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.running || s.stream == nil {
		return io.ErrClosedPipe
	}

	s.pending = append(s.pending, chunk.Samples...)
	for len(s.pending) >= len(s.buf) {
		copy(s.buf, s.pending[:len(s.buf)])
		s.pending = s.pending[len(s.buf):]
		if err := s.writeBuf(); err != nil {
			return err
		}
	}

	return nil
}

func (s *PortAudioSink) writeBuf() error {
	err := s.stream.Write()
	if err == portaudio.OutputUnderflowed {
		// A gap already happened; the write itself succeeded.
		return nil
	}
	return err
}

// Flush plays any carried remainder, zero-padded to a full device buffer.
func (s *PortAudioSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.stream == nil || len(s.pending) == 0 {
		return nil
	}

	n := copy(s.buf, s.pending)
	for i := n; i < len(s.buf); i++ {
		s.buf[i] = 0
	}
	s.pending = s.pending[:0]

	return s.writeBuf()
}

// Clear discards carried audio that has not reached the device yet.
func (s *PortAudioSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = s.pending[:0]
	return nil
}

// Stop closes the output stream. A subsequent Start reopens the device
// with a fresh handle.
func (s *PortAudioSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	s.pending = s.pending[:0]

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
		s.stream = nil
	}

	s.logger.Info("portaudio sink stopped")

	return nil
}

// Config returns the audio configuration.
func (s *PortAudioSink) Config() Config {
	return s.cfg
}

// Name returns "portaudio".
func (s *PortAudioSink) Name() string {
	return "portaudio"
}

// Close releases resources.
func (s *PortAudioSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.Stop()
	return portaudio.Terminate()
}

// deviceByName finds a PortAudio device by exact name match.
func deviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	for _, dev := range devices {
		if dev.Name == name {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("audio device %q not found", name)
}

var (
	_ Source = (*PortAudioSource)(nil)
	_ Sink   = (*PortAudioSink)(nil)
)
