package tts

import (
	"log/slog"
	"time"
)

// Config holds provider settings shared across implementations.
type Config struct {
	// APIKey authenticates with the synthesis service.
	APIKey string

	// BaseURL overrides the service endpoint; empty selects the
	// provider's production URL.
	BaseURL string

	// VoiceID selects the voice to render with.
	VoiceID string

	// ModelID selects the synthesis model; empty selects the provider
	// default.
	ModelID string

	// VoiceSettings shapes the rendered voice.
	VoiceSettings VoiceSettings

	// OutputFormat is the requested audio encoding.
	OutputFormat Encoding

	// StreamTimeout bounds an entire streaming response.
	StreamTimeout time.Duration

	// MaxRetries is how many times a retryable failure is retried.
	MaxRetries int

	// RetryDelay is the base backoff between retries; attempt n waits
	// n times this long.
	RetryDelay time.Duration

	// Logger receives provider diagnostics. Nil selects slog.Default.
	Logger *slog.Logger
}

// DefaultConfig returns production provider settings.
func DefaultConfig() Config {
	return Config{
		OutputFormat:  EncodingMP3,
		VoiceSettings: DefaultVoiceSettings(),
		StreamTimeout: 60 * time.Second,
		MaxRetries:    3,
		RetryDelay:    100 * time.Millisecond,
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithAPIKey sets the service credential.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithBaseURL overrides the service endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithVoice selects the voice to render with.
func WithVoice(voiceID string) Option {
	return func(c *Config) { c.VoiceID = voiceID }
}

// WithModel selects the synthesis model.
func WithModel(modelID string) Option {
	return func(c *Config) { c.ModelID = modelID }
}

// WithVoiceSettings overrides the voice shaping values.
func WithVoiceSettings(vs VoiceSettings) Option {
	return func(c *Config) { c.VoiceSettings = vs }
}

// WithOutputFormat sets the requested audio encoding.
func WithOutputFormat(enc Encoding) Option {
	return func(c *Config) { c.OutputFormat = enc }
}

// WithStreamTimeout bounds an entire streaming response.
func WithStreamTimeout(d time.Duration) Option {
	return func(c *Config) { c.StreamTimeout = d }
}

// WithRetry configures the retry budget for retryable failures.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.Logger = logger }
}

// Apply folds opts into c.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that the provider can authenticate.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}

// ValidateWithVoice checks that the provider can authenticate and has a
// voice to render with.
func (c *Config) ValidateWithVoice() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.VoiceID == "" {
		return ErrNoVoiceID
	}
	return nil
}
