// Package audioio provides cross-platform audio capture and playback.
//
// This package supports multiple backends:
//   - PortAudio - Production capture/playback on Linux, macOS, Windows
//   - Mock - CI/Testing without hardware
//
// The backend is selected automatically, or can be explicitly specified
// via configuration.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	// BackendAuto automatically selects the best available backend.
	BackendAuto Backend = "auto"
	// BackendPortAudio uses PortAudio for cross-platform audio I/O.
	BackendPortAudio Backend = "portaudio"
	// BackendMock uses a mock implementation for testing.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	// Backend specifies which audio backend to use.
	// Default: "auto" (selects best available for platform)
	Backend Backend

	// SampleRate is the audio sample rate in Hz.
	// Capture runs at 16000 (transcription rate), playback at 24000
	// (synthesis rate).
	SampleRate int

	// Channels is the number of audio channels.
	// Default: 1 (mono)
	Channels int

	// BufferDuration is the size of audio buffers.
	// Default: 20ms
	BufferDuration time.Duration

	// Device is the platform-specific device identifier.
	// Empty selects the system default.
	Device string
}

// DefaultCaptureConfig returns a Config suited for microphone capture.
func DefaultCaptureConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000, // Linear PCM rate expected by transcription
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
		Device:         "",
	}
}

// DefaultPlaybackConfig returns a Config suited for synthesis playback.
func DefaultPlaybackConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     24000, // Decoded synthesis output rate
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
		Device:         "",
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of samples per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}
