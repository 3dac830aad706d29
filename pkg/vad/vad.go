// Package vad provides voice activity scoring for PCM16 audio frames.
//
// A Scorer is read-only after construction and safe to share across
// concurrent transcription sessions. Scores are advisory: callers use them
// to refresh inactivity timers, never to drop audio.
package vad

import (
	"encoding/binary"
	"math"
)

// Scorer scores a PCM16 little-endian mono frame for speech probability.
type Scorer interface {
	// Score returns the probability (0.0-1.0) that the frame contains speech.
	Score(pcm []byte, sampleRate int) float32
}

// Energy is an RMS-energy based scorer.
//
// It maps the frame's root-mean-square amplitude through a soft knee around
// a reference level, which is robust enough to gate inactivity timeouts
// without a model file.
type Energy struct {
	// referenceRMS is the amplitude at which Score crosses 0.5.
	referenceRMS float64
}

// DefaultReferenceRMS is tuned for typical microphone speech levels
// (int16 full scale is 32767).
const DefaultReferenceRMS = 250.0

// minFrameMs is the shortest frame worth scoring (~10ms).
const minFrameMs = 10

// NewEnergy creates an energy scorer. A non-positive reference falls back
// to DefaultReferenceRMS.
func NewEnergy(referenceRMS float64) *Energy {
	if referenceRMS <= 0 {
		referenceRMS = DefaultReferenceRMS
	}
	return &Energy{referenceRMS: referenceRMS}
}

// Score computes the speech probability for the frame.
// Frames shorter than ~10ms score zero.
func (e *Energy) Score(pcm []byte, sampleRate int) float32 {
	if sampleRate <= 0 {
		return 0
	}
	minSamples := sampleRate * minFrameMs / 1000
	if len(pcm) < minSamples*2 {
		return 0
	}

	// Sample sparsely on large frames to bound CPU.
	step := 1
	if len(pcm) > 3200 {
		step = 2
	}

	var sumSquares float64
	count := 0
	for i := 0; i+1 < len(pcm); i += 2 * step {
		v := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
		sumSquares += float64(v) * float64(v)
		count++
	}
	if count == 0 {
		return 0
	}

	rms := math.Sqrt(sumSquares / float64(count))

	// Logistic knee centered on the reference level.
	p := 1.0 / (1.0 + math.Exp(-(rms-e.referenceRMS)/(e.referenceRMS/4)))
	return float32(p)
}
