// Package speech turns incremental text into audible output.
//
// The Manager is the entry point: text fragments go in through Speak, get
// aggregated into naturally-sized utterances, synthesized by a tts.Provider,
// decoded to PCM by an Engine, and played through the Streamer. Utterances
// are strictly serialized; Interrupt cancels the in-flight utterance and
// discards everything queued behind it.
package speech

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors.
var (
	// ErrInterrupted is returned from pipeline steps after Interrupt.
	ErrInterrupted = errors.New("speech: interrupted")

	// ErrManagerClosed is returned when speaking on a closed manager.
	ErrManagerClosed = errors.New("speech: manager closed")

	// ErrStreamerStopped is returned when enqueueing on a stopped streamer.
	ErrStreamerStopped = errors.New("speech: streamer stopped")
)

// Request is one serialized synthesis unit: normalized text bound for a
// specific channel.
type Request struct {
	Channel string
	Text    string
}

// Notifier receives utterance lifecycle notifications for the owning
// channel. Start and Completed are always paired, including on interrupt.
type Notifier interface {
	SpeechStarted(channel string)
	SpeechCompleted(channel string)
}

// Status is a snapshot of the manager's pipeline state.
type Status struct {
	Synthesizing bool   `json:"synthesizing"`
	Playing      bool   `json:"playing"`
	QueueDepth   int    `json:"queue_depth"`
	BufferedText string `json:"buffered_text"`
}

// Config holds synthesis pipeline settings.
type Config struct {
	// MinWords flushes the text accumulator once this many words are
	// buffered.
	MinWords int

	// MinChars flushes the text accumulator once this many characters
	// are buffered.
	MinChars int

	// FlushTimeout force-flushes an accumulator that stays below both
	// thresholds.
	FlushTimeout time.Duration

	// SampleRate is the canonical PCM rate decoded audio is produced at.
	SampleRate int

	// ChunkBytes is the PCM chunk size handed to the playback queue.
	ChunkBytes int
}

// DefaultConfig returns production synthesis settings.
func DefaultConfig() Config {
	return Config{
		MinWords:     3,
		MinChars:     15,
		FlushTimeout: 1500 * time.Millisecond,
		SampleRate:   24000,
		ChunkBytes:   3072,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MinWords <= 0 {
		return fmt.Errorf("min words must be positive, got %d", c.MinWords)
	}
	if c.MinChars <= 0 {
		return fmt.Errorf("min chars must be positive, got %d", c.MinChars)
	}
	if c.FlushTimeout <= 0 {
		return fmt.Errorf("flush timeout must be positive, got %v", c.FlushTimeout)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.ChunkBytes <= 0 || c.ChunkBytes%2 != 0 {
		return fmt.Errorf("chunk bytes must be positive and even, got %d", c.ChunkBytes)
	}
	return nil
}
