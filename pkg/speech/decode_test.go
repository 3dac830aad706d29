package speech

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/Naitik4516/gravia/pkg/tts"
)

// chunkStream serves a fixed sequence of encoded chunks as a tts.AudioStream.
type chunkStream struct {
	chunks [][]byte
	pos    int
}

func (s *chunkStream) Read() ([]byte, error) {
	if s.pos >= len(s.chunks) {
		return nil, nil
	}
	c := s.chunks[s.pos]
	s.pos++
	return c, nil
}

func (s *chunkStream) Close() error { return nil }

func (s *chunkStream) Format() tts.AudioFormat {
	return tts.AudioFormat{Encoding: tts.EncodingMP3, SampleRate: 44100, Channels: 1}
}

// loud returns n bytes of PCM16 with every sample well above the silence
// threshold.
func loud(n int) []byte {
	return bytes.Repeat([]byte{0x00, 0x10}, n/2)
}

func TestSilenceTrimmer(t *testing.T) {
	t.Run("trims quiet lead-in", func(t *testing.T) {
		tr := newSilenceTrimmer(24000)
		quiet := make([]byte, 100) // 50 silent samples
		pcm := append(quiet, loud(200)...)
		got := tr.process(pcm)
		if !bytes.Equal(got, loud(200)) {
			t.Errorf("trimmed output = %d bytes, want %d", len(got), 200)
		}
	})

	t.Run("passes loud audio untouched", func(t *testing.T) {
		tr := newSilenceTrimmer(24000)
		pcm := loud(512)
		if got := tr.process(pcm); !bytes.Equal(got, pcm) {
			t.Error("loud audio was modified")
		}
	})

	t.Run("gives up after the window", func(t *testing.T) {
		tr := newSilenceTrimmer(24000)
		window := 24000 * 2 * silenceWindowMs / 1000
		silent := make([]byte, window*2)
		got := tr.process(silent)
		// Only the inspected window is dropped; silence past it stays.
		if len(got) != window {
			t.Errorf("remaining bytes = %d, want %d", len(got), window)
		}
		// Trimmer is done: later silence passes through.
		if got := tr.process(make([]byte, 64)); len(got) != 64 {
			t.Errorf("post-window bytes = %d, want 64", len(got))
		}
	})
}

func TestBufferEngine(t *testing.T) {
	t.Run("emits only newly decoded tails", func(t *testing.T) {
		var decodes int
		// Identity decode: "decoded PCM" is the encoded payload itself.
		engine := NewBufferEngine(func(ctx context.Context, encoded []byte) ([]byte, error) {
			decodes++
			return encoded, nil
		}, 24000)

		// Three chunks past the initial threshold, each past the delta.
		stream := &chunkStream{chunks: [][]byte{loud(3200), loud(2000), loud(2000)}}

		var emitted []byte
		err := engine.Decode(context.Background(), stream, func(pcm []byte) error {
			emitted = append(emitted, pcm...)
			return nil
		})
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if len(emitted) != 7200 {
			t.Errorf("emitted %d bytes, want 7200", len(emitted))
		}
		if decodes != 3 {
			t.Errorf("decode invocations = %d, want 3", decodes)
		}
	})

	t.Run("holds off below the initial threshold", func(t *testing.T) {
		var decodes int
		engine := NewBufferEngine(func(ctx context.Context, encoded []byte) ([]byte, error) {
			decodes++
			return encoded, nil
		}, 24000)

		// Small fragments: no decode until the stream ends.
		stream := &chunkStream{chunks: [][]byte{loud(500), loud(500), loud(500)}}

		var emitted []byte
		if err := engine.Decode(context.Background(), stream, func(pcm []byte) error {
			emitted = append(emitted, pcm...)
			return nil
		}); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if decodes != 1 {
			t.Errorf("decode invocations = %d, want 1 (final flush only)", decodes)
		}
		if len(emitted) != 1500 {
			t.Errorf("emitted %d bytes, want 1500", len(emitted))
		}
	})

	t.Run("skips redundant growth decodes", func(t *testing.T) {
		var decodes int
		engine := NewBufferEngine(func(ctx context.Context, encoded []byte) ([]byte, error) {
			decodes++
			return encoded, nil
		}, 24000)

		// Second chunk grows the buffer by less than the delta; only the
		// first threshold crossing and the final flush decode.
		stream := &chunkStream{chunks: [][]byte{loud(3200), loud(400)}}

		if err := engine.Decode(context.Background(), stream, func([]byte) error { return nil }); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if decodes != 2 {
			t.Errorf("decode invocations = %d, want 2", decodes)
		}
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var mu sync.Mutex
		var emits int
		engine := NewBufferEngine(func(ctx context.Context, encoded []byte) ([]byte, error) {
			return encoded, nil
		}, 24000)

		stream := &chunkStream{chunks: [][]byte{loud(3200), loud(2000), loud(2000)}}
		err := engine.Decode(ctx, stream, func([]byte) error {
			mu.Lock()
			emits++
			mu.Unlock()
			cancel() // interrupt after the first emission
			return nil
		})
		if err != context.Canceled {
			t.Errorf("Decode() error = %v, want context.Canceled", err)
		}
		if emits != 1 {
			t.Errorf("emits after cancellation = %d, want 1", emits)
		}
	})
}
