package channel

import (
	"context"
	"sync"

	"github.com/Naitik4516/gravia/internal/log"
	"github.com/Naitik4516/gravia/pkg/transcribe"
)

// sender is the per-client surface the router needs; satisfied by Client.
type sender interface {
	ID() string
	Send(msg Message) bool
	Close() error
}

// Speaker is the synthesis surface the router drives; satisfied by
// speech.Manager.
type Speaker interface {
	Speak(channel, text string) error
	Interrupt()
}

// Router routes inbound commands to the transcription registry and the
// synthesis manager, and fans their events back out to the owning client.
// It implements speech.Notifier so utterance lifecycle notifications reach
// the client that asked to speak.
type Router struct {
	registry *transcribe.Registry
	speaker  Speaker

	mu      sync.RWMutex
	clients map[string]sender
}

// NewRouter builds a router over a transcription registry. The speaker is
// attached separately with BindSpeaker because the synthesis manager needs
// the router as its notifier.
func NewRouter(registry *transcribe.Registry) *Router {
	return &Router{
		registry: registry,
		clients:  make(map[string]sender),
	}
}

// BindSpeaker attaches the synthesis manager. Must be called before the
// router serves clients.
func (r *Router) BindSpeaker(s Speaker) {
	r.speaker = s
}

func (r *Router) register(c sender) {
	r.mu.Lock()
	r.clients[c.ID()] = c
	count := len(r.clients)
	r.mu.Unlock()
	log.Info("client connected", "client", c.ID(), "total", count)
}

func (r *Router) unregister(c sender) {
	r.mu.Lock()
	delete(r.clients, c.ID())
	count := len(r.clients)
	r.mu.Unlock()

	// The client's listening session has no consumer left.
	r.registry.CloseSession(c.ID())
	log.Info("client disconnected", "client", c.ID(), "remaining", count)
}

func (r *Router) client(id string) sender {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[id]
}

// send delivers msg to c, dropping the client when its buffer is full. A
// client that cannot keep up with its own event stream is beyond saving;
// closing the connection lets it reconnect fresh.
func (r *Router) send(c sender, msg Message) {
	if c.Send(msg) {
		return
	}
	log.Warn("client send buffer full, dropping client", "client", c.ID())
	c.Close()
	r.unregister(c)
}

// handleCommand dispatches one inbound control command for a client.
func (r *Router) handleCommand(c sender, msg Message) {
	switch msg.Type {
	case CmdStartListening:
		r.startListening(c)
	case CmdStopListening:
		r.registry.CloseSession(c.ID())
		r.send(c, transcriptionStatus("stopped"))
	case CmdSpeak:
		if msg.Text == "" {
			return
		}
		if err := r.speaker.Speak(c.ID(), msg.Text); err != nil {
			r.send(c, Message{Type: TypeError, Message: err.Error()})
		}
	case CmdStopSpeaking:
		r.speaker.Interrupt()
		// Always confirm so the client can update, even if nothing was
		// playing.
		r.send(c, Message{Type: TypeTTSComplete, Message: "TTS stopped."})
	case CmdInterrupt:
		r.speaker.Interrupt()
		r.registry.CloseSession(c.ID())
		r.send(c, event("Response manually interrupted."))
	default:
		log.Debug("unknown command", "client", c.ID(), "type", msg.Type)
	}
}

// startListening opens (or reuses) the client's transcription session and
// wires its events back to the client.
func (r *Router) startListening(c sender) {
	id := c.ID()
	_, err := r.registry.StartSession(context.Background(), id, func(ev transcribe.Event) {
		r.forwardTranscription(id, ev)
	})
	if err != nil {
		log.Error("starting transcription session", "client", id, "error", err)
		r.send(c, transcriptionError(err.Error()))
		return
	}
	r.send(c, transcriptionStatus("listening"))
}

// forwardTranscription maps a session event to its wire message. Runs on
// the session's dispatcher goroutine.
func (r *Router) forwardTranscription(clientID string, ev transcribe.Event) {
	c := r.client(clientID)
	if c == nil {
		return
	}
	switch ev.Type {
	case transcribe.EventPartial:
		r.send(c, transcriptPartial(ev.Text))
	case transcribe.EventFinal:
		r.send(c, transcriptFinal(ev.Text))
	case transcribe.EventError:
		r.send(c, transcriptionError(ev.Text))
	case transcribe.EventStatus:
		r.send(c, transcriptionStatus(ev.Text))
		if ev.Text == transcribe.StatusNoSpeechTimeout {
			// The session self-closed; drop the registry entry so the
			// next start builds a fresh one.
			go r.registry.CloseSession(clientID)
		}
	}
}

// SpeechStarted implements speech.Notifier.
func (r *Router) SpeechStarted(channel string) {
	if c := r.client(channel); c != nil {
		r.send(c, Message{Type: TypeTTSStart, Message: "TTS streaming started."})
	}
}

// SpeechCompleted implements speech.Notifier.
func (r *Router) SpeechCompleted(channel string) {
	if c := r.client(channel); c != nil {
		r.send(c, Message{Type: TypeTTSComplete, Message: "TTS streaming completed."})
	}
}
