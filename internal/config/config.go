// Package config provides environment-driven configuration for the gravia
// voice daemon.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for the voice subsystem.
const (
	DefaultListenAddr = ":8765"

	// DefaultCaptureRate is the microphone/transcription sample rate.
	DefaultCaptureRate = 16000

	// DefaultPlaybackRate is the synthesis/playback sample rate.
	DefaultPlaybackRate = 24000

	DefaultInactivityTimeout = 10 * time.Second
	DefaultVADThreshold      = 0.5

	DefaultMinWords     = 3
	DefaultMinChars     = 15
	DefaultFlushTimeout = 1500 * time.Millisecond

	DefaultDecoderCommand = "ffmpeg"
)

// Config holds the daemon configuration, loaded from environment variables.
type Config struct {
	// ListenAddr is the address the application channel server binds to.
	ListenAddr string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// DeepgramAPIKey authenticates the live transcription connection.
	DeepgramAPIKey string

	// ElevenLabsAPIKey and VoiceID configure the synthesis service.
	ElevenLabsAPIKey string
	VoiceID          string

	// Audio device settings.
	AudioBackend string
	AudioDevice  string
	CaptureRate  int
	PlaybackRate int

	// InactivityTimeout closes a silent transcription session.
	InactivityTimeout time.Duration

	// VADThreshold is the speech probability above which the inactivity
	// clock is refreshed. Zero disables local VAD.
	VADThreshold float64

	// Text buffering thresholds for synthesis requests.
	MinWords     int
	MinChars     int
	FlushTimeout time.Duration

	// DecoderCommand is the external streaming decoder binary.
	DecoderCommand string
}

// Load reads configuration from the environment, applying defaults.
func Load() *Config {
	return &Config{
		ListenAddr:        envStr("GRAVIA_LISTEN_ADDR", DefaultListenAddr),
		LogLevel:          envStr("GRAVIA_LOG_LEVEL", "info"),
		DeepgramAPIKey:    os.Getenv("DEEPGRAM_API_KEY"),
		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		VoiceID:           os.Getenv("ELEVENLABS_VOICE_ID"),
		AudioBackend:      envStr("GRAVIA_AUDIO_BACKEND", "auto"),
		AudioDevice:       os.Getenv("GRAVIA_AUDIO_DEVICE"),
		CaptureRate:       envInt("GRAVIA_CAPTURE_RATE", DefaultCaptureRate),
		PlaybackRate:      envInt("GRAVIA_PLAYBACK_RATE", DefaultPlaybackRate),
		InactivityTimeout: envDuration("GRAVIA_INACTIVITY_TIMEOUT", DefaultInactivityTimeout),
		VADThreshold:      envFloat("GRAVIA_VAD_THRESHOLD", DefaultVADThreshold),
		MinWords:          envInt("GRAVIA_TTS_MIN_WORDS", DefaultMinWords),
		MinChars:          envInt("GRAVIA_TTS_MIN_CHARS", DefaultMinChars),
		FlushTimeout:      envDuration("GRAVIA_TTS_FLUSH_TIMEOUT", DefaultFlushTimeout),
		DecoderCommand:    envStr("GRAVIA_DECODER", DefaultDecoderCommand),
	}
}

// Validate checks that required settings are present and sane.
func (c *Config) Validate() error {
	if c.DeepgramAPIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if c.ElevenLabsAPIKey == "" {
		return fmt.Errorf("ELEVENLABS_API_KEY is required")
	}
	if c.CaptureRate <= 0 {
		return fmt.Errorf("capture rate must be positive, got %d", c.CaptureRate)
	}
	if c.PlaybackRate <= 0 {
		return fmt.Errorf("playback rate must be positive, got %d", c.PlaybackRate)
	}
	if c.InactivityTimeout <= 0 {
		return fmt.Errorf("inactivity timeout must be positive, got %v", c.InactivityTimeout)
	}
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return fmt.Errorf("vad threshold must be in [0,1], got %g", c.VADThreshold)
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
