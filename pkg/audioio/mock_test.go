package audioio

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestMockSourceDeliversChunks(t *testing.T) {
	cfg := DefaultCaptureConfig()
	cfg.BufferDuration = 5 * time.Millisecond

	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case chunk := <-src.Stream():
		want := cfg.BufferSize() * cfg.Channels
		if len(chunk.Samples) != want {
			t.Errorf("chunk has %d samples, want %d", len(chunk.Samples), want)
		}
		if chunk.SampleRate != cfg.SampleRate {
			t.Errorf("chunk sample rate = %d, want %d", chunk.SampleRate, cfg.SampleRate)
		}
	case <-time.After(time.Second):
		t.Fatal("no chunk delivered within 1s")
	}
}

func TestMockSourceStreamClosesAfterStop(t *testing.T) {
	cfg := DefaultCaptureConfig()
	cfg.BufferDuration = time.Millisecond

	src := NewMockSource(cfg, nil)
	defer src.Close()

	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := src.Stream()

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream channel did not close after Stop")
		}
	}
}

// Rapid start/stop cycles must never race the generator's send against
// the channel teardown.
func TestMockSourceStartStopCycles(t *testing.T) {
	cfg := DefaultCaptureConfig()
	cfg.BufferDuration = time.Millisecond

	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx := context.Background()
	for i := 0; i < 500; i++ {
		if err := src.Start(ctx); err != nil {
			t.Fatalf("Start cycle %d: %v", i, err)
		}
		// Give the generator a chance to be mid-send.
		select {
		case <-src.Stream():
		default:
		}
		if err := src.Stop(); err != nil {
			t.Fatalf("Stop cycle %d: %v", i, err)
		}
	}
}

func TestMockSourceStopIdempotent(t *testing.T) {
	src := NewMockSource(DefaultCaptureConfig(), nil)
	defer src.Close()

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := src.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("first Stop: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestMockSourceClosedRefusesStart(t *testing.T) {
	src := NewMockSource(DefaultCaptureConfig(), nil)
	if err := src.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := src.Start(context.Background()); err != io.ErrClosedPipe {
		t.Errorf("Start after Close = %v, want io.ErrClosedPipe", err)
	}
}

func TestMockSinkCountsWrites(t *testing.T) {
	sink := NewMockSink(DefaultPlaybackConfig(), nil)
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	chunk := AudioChunk{Samples: make([]int16, 240), SampleRate: 24000, Channels: 1}
	for i := 0; i < 3; i++ {
		if err := sink.Write(ctx, chunk); err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	if got := sink.ChunksWritten(); got != 3 {
		t.Errorf("ChunksWritten = %d, want 3", got)
	}
	if got := sink.SamplesWritten(); got != 720 {
		t.Errorf("SamplesWritten = %d, want 720", got)
	}

	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestMockSinkClearCounts(t *testing.T) {
	sink := NewMockSink(DefaultPlaybackConfig(), nil)
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := sink.Write(ctx, AudioChunk{Samples: make([]int16, 100)}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := sink.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := sink.Clears(); got != 1 {
		t.Errorf("Clears = %d, want 1", got)
	}

	// Cleared audio should not hold up Flush.
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := sink.Flush(ctx2); err != nil {
		t.Errorf("Flush after Clear: %v", err)
	}
}

func TestMockSinkWriteRequiresStart(t *testing.T) {
	sink := NewMockSink(DefaultPlaybackConfig(), nil)
	defer sink.Close()

	err := sink.Write(context.Background(), AudioChunk{Samples: make([]int16, 10)})
	if err != io.ErrClosedPipe {
		t.Errorf("Write before Start = %v, want io.ErrClosedPipe", err)
	}
}
