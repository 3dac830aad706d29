// Package transcribe turns live microphone audio into ordered transcript
// events using a remote streaming transcription service.
//
// A Session owns one logical listening interaction: it captures audio,
// forwards it to the remote connection, applies a VAD-refined inactivity
// timeout, and emits transcript/status events in source order. Sessions are
// keyed and managed by a Registry.
package transcribe

import "time"

// EventType classifies transcription events.
type EventType string

const (
	// EventPartial is an interim, possibly-revised transcript.
	EventPartial EventType = "partial"
	// EventFinal is a transcript segment the service considers settled.
	EventFinal EventType = "final"
	// EventError reports a capture or connection failure.
	EventError EventType = "error"
	// EventStatus reports session lifecycle changes.
	EventStatus EventType = "status"
)

// Status texts carried by EventStatus events.
const (
	StatusListeningStarted = "listening_started"
	StatusListeningStopped = "listening_stopped"
	StatusNoSpeechTimeout  = "no_speech_timeout"
	StatusConnectionClosed = "connection_closed"
)

// Event is a transient transcription event. Events are never persisted.
type Event struct {
	Type      EventType      `json:"type"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventHandler receives session events on the session's dispatch goroutine.
// Handlers must not block for long; they delay subsequent events.
type EventHandler func(Event)

func newEvent(t EventType, text string) Event {
	return Event{Type: t, Text: text, Timestamp: time.Now()}
}
