package speech

import (
	"context"
	"sync"

	"github.com/Naitik4516/gravia/internal/log"
	"github.com/Naitik4516/gravia/pkg/audioio"
)

// streamerQueueSize bounds the playback queue. At 3072-byte chunks and
// 24kHz mono PCM16 this is roughly five seconds of audio.
const streamerQueueSize = 80

// Streamer decouples variable-rate PCM production from steady-rate device
// writes. Chunks are queued on a bounded channel drained by a dedicated
// playback goroutine; AddChunk blocks when the queue is full so a stalled
// device applies backpressure to the producer instead of buffering without
// bound.
//
// The sink handle is owned exclusively by the playback goroutine between
// Start and Finish.
type Streamer struct {
	sink audioio.Sink

	mu      sync.Mutex
	queue   chan []byte
	running bool
	playing bool
	discard bool
	done    chan struct{}
}

// NewStreamer wraps an output sink.
func NewStreamer(sink audioio.Sink) *Streamer {
	return &Streamer{sink: sink}
}

// Start opens the device and launches the playback goroutine. Starting a
// running streamer is a no-op.
func (s *Streamer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if err := s.sink.Start(ctx); err != nil {
		return err
	}
	s.queue = make(chan []byte, streamerQueueSize)
	s.done = make(chan struct{})
	s.running = true
	s.discard = false
	go s.playLoop(s.queue, s.done)
	return nil
}

// AddChunk enqueues PCM for playback, blocking while the queue is full.
// Returns ErrStreamerStopped if the streamer is not running and ctx.Err()
// if the caller's context is cancelled while waiting.
func (s *Streamer) AddChunk(ctx context.Context, data []byte) error {
	s.mu.Lock()
	queue, running := s.queue, s.running
	s.mu.Unlock()
	if !running {
		return ErrStreamerStopped
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case queue <- buf:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish pushes the end-of-stream sentinel, waits for the queue to drain
// and the device to play out, then releases the device handle so the next
// Start reopens it fresh. No-op if not running.
func (s *Streamer) Finish(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	queue, done := s.queue, s.done
	s.running = false
	s.mu.Unlock()

	select {
	case queue <- nil:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Clear discards all queued and device-buffered audio and stops playback.
// Safe to call at any time, including concurrently with AddChunk.
func (s *Streamer) Clear() {
	s.mu.Lock()
	queue, done, running := s.queue, s.done, s.running
	s.running = false
	s.discard = true
	s.mu.Unlock()
	if queue == nil {
		return
	}

	// Unblock any producer waiting on a full queue.
	for drained := false; !drained; {
		select {
		case <-queue:
		default:
			drained = true
		}
	}
	s.sink.Clear()
	// Signal the playback goroutine to bail out.
	select {
	case queue <- nil:
	default:
	}
	if running {
		<-done
	}
}

// Playing reports whether the playback goroutine is actively writing.
func (s *Streamer) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// QueueDepth returns the number of chunks waiting for playback.
func (s *Streamer) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil {
		return 0
	}
	return len(s.queue)
}

// Close releases the underlying device.
func (s *Streamer) Close() error {
	s.Clear()
	return s.sink.Close()
}

func (s *Streamer) playLoop(queue chan []byte, done chan struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.playing = false
		s.mu.Unlock()
		// Stop releases the device so the next utterance reopens a
		// clean handle.
		if err := s.sink.Stop(); err != nil {
			log.Warn("stopping output device", "error", err)
		}
	}()

	cfg := s.sink.Config()
	for data := range queue {
		if data == nil {
			// End of stream: let buffered audio play out.
			if err := s.sink.Flush(context.Background()); err != nil {
				log.Warn("flushing output device", "error", err)
			}
			return
		}

		s.mu.Lock()
		if s.discard {
			s.mu.Unlock()
			continue
		}
		s.playing = true
		s.mu.Unlock()

		var chunk audioio.AudioChunk
		chunk.FromBytes(data, cfg.SampleRate, cfg.Channels)
		if err := s.sink.Write(context.Background(), chunk); err != nil {
			log.Error("output device write failed", "error", err)
			return
		}

		if len(queue) == 0 {
			s.mu.Lock()
			s.playing = false
			s.mu.Unlock()
		}
	}
}
