package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, serverURL string, opts ...Option) *ElevenLabs {
	t.Helper()
	base := []Option{
		WithAPIKey("key-1"),
		WithVoice("voice-1"),
		WithBaseURL(serverURL),
	}
	p, err := NewElevenLabs(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewElevenLabs() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func readAll(t *testing.T, stream AudioStream) []byte {
	t.Helper()
	var out []byte
	for {
		chunk, err := stream.Read()
		if err != nil {
			t.Fatalf("stream read: %v", err)
		}
		if chunk == nil {
			return out
		}
		out = append(out, chunk...)
	}
}

func TestElevenLabsStream(t *testing.T) {
	audio := []byte("encoded-mp3-bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/text-to-speech/voice-1/stream" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "key-1" {
			t.Errorf("xi-api-key = %q", got)
		}
		var req synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if req.Text != "Hello world" {
			t.Errorf("payload text = %q", req.Text)
		}
		if req.VoiceSettings.SimilarityBoost != DefaultVoiceSettings().SimilarityBoost {
			t.Errorf("similarity_boost = %v", req.VoiceSettings.SimilarityBoost)
		}
		w.Write(audio)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	stream, err := p.Stream(context.Background(), "Hello world")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	if got := readAll(t, stream); string(got) != string(audio) {
		t.Errorf("streamed %q, want %q", got, audio)
	}
	if rate := stream.Format().SampleRate; rate != 44100 {
		t.Errorf("format sample rate = %d, want 44100", rate)
	}
}

func TestElevenLabsStreamAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":{"message":"bad key","status":"invalid_api_key"}}`))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.Stream(context.Background(), "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Stream() error = %v, want *APIError", err)
	}
	if !apiErr.IsUnauthorized() {
		t.Errorf("IsUnauthorized() = false for status %d", apiErr.StatusCode)
	}
	if apiErr.Message != "bad key" {
		t.Errorf("message = %q, want %q", apiErr.Message, "bad key")
	}
}

func TestElevenLabsStreamRetries(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, WithRetry(2, time.Millisecond))

	stream, err := p.Stream(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	if got := readAll(t, stream); string(got) != "ok" {
		t.Errorf("streamed %q, want %q", got, "ok")
	}
	if n := requests.Load(); n != 2 {
		t.Errorf("requests = %d, want 2", n)
	}
}

func TestElevenLabsStreamRetriesExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := newTestProvider(t, server.URL, WithRetry(1, time.Millisecond))

	_, err := p.Stream(context.Background(), "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Stream() error = %v, want *APIError", err)
	}
	if !apiErr.IsServerError() {
		t.Errorf("IsServerError() = false for status %d", apiErr.StatusCode)
	}
}

func TestElevenLabsConfigValidation(t *testing.T) {
	if _, err := NewElevenLabs(WithVoice("v")); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("missing key error = %v, want ErrNoAPIKey", err)
	}
	if _, err := NewElevenLabs(WithAPIKey("k")); !errors.Is(err, ErrNoVoiceID) {
		t.Errorf("missing voice error = %v, want ErrNoVoiceID", err)
	}
}

func TestMockDefaultStream(t *testing.T) {
	m := NewMock()

	stream, err := m.Stream(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	audio := readAll(t, stream)
	if len(audio) == 0 {
		t.Error("default stream produced no audio")
	}
	if enc := stream.Format().Encoding; enc != EncodingPCM24 {
		t.Errorf("encoding = %q, want %q", enc, EncodingPCM24)
	}
}

func TestMockRecordsCalls(t *testing.T) {
	m := NewMock()
	m.StreamFunc = func(ctx context.Context, text string) (AudioStream, error) {
		return nil, errors.New("scripted failure")
	}

	if _, err := m.Stream(context.Background(), "one"); err == nil {
		t.Error("scripted failure not returned")
	}
	m.Stream(context.Background(), "two")
	m.Close()

	if n := m.CallCount("Stream"); n != 2 {
		t.Errorf("Stream calls = %d, want 2", n)
	}
	if n := m.CallCount("Close"); n != 1 {
		t.Errorf("Close calls = %d, want 1", n)
	}
	if got := m.Calls()[1].Text; got != "two" {
		t.Errorf("second call text = %q, want %q", got, "two")
	}
	if got := m.LastCall().Op; got != "Close" {
		t.Errorf("last call op = %q, want %q", got, "Close")
	}
}

func TestAPIErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}
	for _, tc := range cases {
		err := &APIError{StatusCode: tc.status, Message: "x"}
		if err.IsRetryable() != tc.retryable {
			t.Errorf("status %d: IsRetryable() = %v, want %v", tc.status, err.IsRetryable(), tc.retryable)
		}
	}
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("socket closed")
	err := WrapError("elevenlabs", inner)
	if !errors.Is(err, inner) {
		t.Error("wrapped error does not unwrap to the original")
	}
	if WrapError("elevenlabs", nil) != nil {
		t.Error("wrapping nil should stay nil")
	}
}
