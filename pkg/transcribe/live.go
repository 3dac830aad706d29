package transcribe

import (
	"context"
	"errors"
)

// Sentinel errors for live connections.
var (
	// ErrConnClosed is returned when sending on a finished connection.
	ErrConnClosed = errors.New("transcribe: connection closed")

	// ErrNoAPIKey is returned when the service API key is missing.
	ErrNoAPIKey = errors.New("transcribe: API key required")
)

// LiveOptions parameterizes a streaming transcription connection.
type LiveOptions struct {
	// Model is the service-side recognition model.
	Model string

	// Encoding of the audio sent over the connection (e.g. "linear16").
	Encoding string

	// SampleRate in Hz of the audio sent over the connection.
	SampleRate int

	// Channels is the audio channel count.
	Channels int

	// InterimResults requests partial transcripts while speech is in
	// progress.
	InterimResults bool

	// UtteranceEndMs asks the service to signal utterance boundaries
	// after this much trailing silence. Zero disables the signal.
	UtteranceEndMs int

	// SmartFormat requests service-side punctuation/formatting.
	SmartFormat bool
}

// LiveHandler receives connection callbacks. Callbacks arrive on the
// connection's read goroutine — a foreign thread from the session's point
// of view — and must be marshalled before touching session state.
type LiveHandler struct {
	// OnOpen fires once the connection is established.
	OnOpen func()

	// OnTranscript fires for each partial or final transcript fragment.
	OnTranscript func(text string, isFinal bool)

	// OnUtteranceEnd fires on the service's utterance boundary signal.
	OnUtteranceEnd func()

	// OnError fires on connection failures.
	OnError func(err error)

	// OnClose fires when the remote side closes the connection.
	OnClose func()
}

// LiveConnection is an open streaming transcription connection.
type LiveConnection interface {
	// Send forwards a PCM frame to the service.
	Send(pcm []byte) error

	// Finish flushes the stream and closes the connection.
	// It is safe to call Finish multiple times.
	Finish() error
}

// Connector dials live transcription connections. Implementations must be
// safe for concurrent use by multiple sessions.
type Connector interface {
	Connect(ctx context.Context, opts LiveOptions, h LiveHandler) (LiveConnection, error)
}
