// Package channel is the duplex connection between the voice subsystem and
// its owning application: structured JSON messages out (transcripts,
// statuses, synthesis lifecycle), control commands in (listening and
// speaking control).
package channel

// Outbound message types.
const (
	TypeSessionCreated      = "session_created"
	TypeTranscriptPartial   = "transcription_partial"
	TypeTranscriptFinal     = "transcription_final"
	TypeTranscriptionStatus = "transcription_status"
	TypeTranscriptionError  = "transcription_error"
	TypeTTSStart            = "tts_start"
	TypeTTSComplete         = "tts_complete"
	TypeEvent               = "event"
	TypeError               = "error"
)

// Inbound command types.
const (
	CmdStartListening = "start_listening"
	CmdStopListening  = "stop_listening"
	CmdSpeak          = "speak"
	CmdStopSpeaking   = "stop_speaking"
	CmdInterrupt      = "interrupt"
)

// Message is the wire format in both directions. Unused fields are
// omitted from the encoded JSON.
type Message struct {
	Type      string `json:"type"`
	Message   string `json:"message,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	Text      string `json:"text,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

func sessionCreated(id string) Message {
	return Message{Type: TypeSessionCreated, SessionID: id}
}

func transcriptPartial(text string) Message {
	return Message{Type: TypeTranscriptPartial, Message: text}
}

func transcriptFinal(text string) Message {
	return Message{Type: TypeTranscriptFinal, Message: text}
}

func transcriptionStatus(status string) Message {
	return Message{Type: TypeTranscriptionStatus, Status: status}
}

func transcriptionError(err string) Message {
	return Message{Type: TypeTranscriptionError, Error: err}
}

func event(text string) Message {
	return Message{Type: TypeEvent, Message: text}
}
