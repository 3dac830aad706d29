package tts

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNoAPIKey is returned when a provider is built without credentials.
	ErrNoAPIKey = errors.New("tts: API key is required")

	// ErrNoVoiceID is returned when a synthesis call needs a voice but
	// none was configured.
	ErrNoVoiceID = errors.New("tts: voice ID is required")

	// ErrProviderUnavailable is returned when the service cannot be
	// reached.
	ErrProviderUnavailable = errors.New("tts: provider unavailable")
)

// APIError is a non-success response from the synthesis service.
type APIError struct {
	// StatusCode is the HTTP status.
	StatusCode int

	// Message is the service's error description.
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tts: API error (status %d): %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether the service throttled the request.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// IsUnauthorized reports whether the credentials were rejected.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// IsServerError reports whether the service itself failed.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsRetryable reports whether retrying the request may succeed.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// ProviderError wraps an error with the provider it came from.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("tts provider %q: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapError tags err with the provider name. Nil errors pass through.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Err: err}
}
