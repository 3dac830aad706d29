package vad

import (
	"encoding/binary"
	"math"
	"testing"
)

// pcmFrame builds a PCM16 LE frame of a sine wave at the given amplitude.
func pcmFrame(samples int, amplitude float64) []byte {
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(amplitude * math.Sin(2*math.Pi*float64(i)/64))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}

func TestEnergyScore(t *testing.T) {
	scorer := NewEnergy(0)

	t.Run("silence scores low", func(t *testing.T) {
		frame := make([]byte, 640) // 20ms of silence at 16kHz
		if p := scorer.Score(frame, 16000); p > 0.1 {
			t.Errorf("expected near-zero probability for silence, got %g", p)
		}
	})

	t.Run("loud speech-level signal scores high", func(t *testing.T) {
		frame := pcmFrame(320, 8000)
		if p := scorer.Score(frame, 16000); p < 0.9 {
			t.Errorf("expected high probability for loud signal, got %g", p)
		}
	})

	t.Run("short frame is not scored", func(t *testing.T) {
		frame := pcmFrame(80, 8000) // 5ms at 16kHz
		if p := scorer.Score(frame, 16000); p != 0 {
			t.Errorf("expected zero for sub-10ms frame, got %g", p)
		}
	})

	t.Run("zero sample rate is not scored", func(t *testing.T) {
		frame := pcmFrame(320, 8000)
		if p := scorer.Score(frame, 0); p != 0 {
			t.Errorf("expected zero for invalid sample rate, got %g", p)
		}
	})
}

func TestEnergyMonotonic(t *testing.T) {
	scorer := NewEnergy(0)

	var prev float32
	for _, amp := range []float64{0, 100, 500, 2000, 10000} {
		p := scorer.Score(pcmFrame(320, amp), 16000)
		if p < prev {
			t.Fatalf("score not monotonic: amp=%g p=%g prev=%g", amp, p, prev)
		}
		prev = p
	}
}
