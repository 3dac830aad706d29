package tts

import (
	"context"
	"sync"
)

// MockCall records one provider invocation.
type MockCall struct {
	Op   string
	Text string
}

// Mock is a scriptable Provider for tests. The zero behavior streams
// silence sized to the input text.
type Mock struct {
	// StreamFunc overrides Stream when set.
	StreamFunc func(ctx context.Context, text string) (AudioStream, error)

	// CloseFunc overrides Close when set.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// NewMock returns a Mock that streams synthetic PCM silence.
func NewMock() *Mock {
	return &Mock{}
}

// Stream records the call and delegates to StreamFunc or the default
// silence stream.
func (m *Mock) Stream(ctx context.Context, text string) (AudioStream, error) {
	m.record("Stream", text)
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, text)
	}
	return newBufferStream(silenceFor(text), AudioFormat{
		Encoding:   EncodingPCM24,
		SampleRate: 24000,
		Channels:   1,
		BitDepth:   16,
	}), nil
}

// Close records the call and delegates to CloseFunc if set.
func (m *Mock) Close() error {
	m.record("Close", "")
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *Mock) record(op, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Op: op, Text: text})
}

// Calls returns a copy of every recorded call.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times op was invoked.
func (m *Mock) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// LastCall returns the most recent call, or a zero MockCall.
func (m *Mock) LastCall() MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return MockCall{}
	}
	return m.calls[len(m.calls)-1]
}

// silenceFor sizes a synthetic payload to the text, roughly 20ms of
// 24kHz PCM16 per character.
func silenceFor(text string) []byte {
	n := len(text) * 960
	if n == 0 {
		n = 960
	}
	return make([]byte, n)
}

// bufferStream serves a fixed payload in chunks through the AudioStream
// interface.
type bufferStream struct {
	mu     sync.Mutex
	data   []byte
	pos    int
	closed bool
	format AudioFormat
}

func newBufferStream(data []byte, format AudioFormat) *bufferStream {
	return &bufferStream{data: data, format: format}
}

func (s *bufferStream) Read() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pos >= len(s.data) {
		return nil, nil
	}
	end := s.pos + 4096
	if end > len(s.data) {
		end = len(s.data)
	}
	chunk := s.data[s.pos:end]
	s.pos = end
	return chunk, nil
}

func (s *bufferStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *bufferStream) Format() AudioFormat {
	return s.format
}

var _ Provider = (*Mock)(nil)
