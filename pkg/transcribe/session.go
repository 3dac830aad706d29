package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Naitik4516/gravia/internal/log"
	"github.com/Naitik4516/gravia/pkg/audioio"
	"github.com/Naitik4516/gravia/pkg/vad"
)

// Session errors.
var (
	ErrSessionClosed  = errors.New("transcribe: session closed")
	ErrAlreadyStarted = errors.New("transcribe: session already started")
)

// Config holds per-session transcription settings.
type Config struct {
	// Model is the recognition model name.
	Model string

	// SampleRate is the rate PCM is sent to the service at.
	SampleRate int

	// Channels is the audio channel count.
	Channels int

	// UtteranceEndMs is the trailing-silence window, in milliseconds,
	// after which the service signals an utterance boundary.
	UtteranceEndMs int

	// InactivityTimeout closes the session after this much time without
	// detected speech. Zero disables the timeout.
	InactivityTimeout time.Duration

	// VADThreshold is the minimum voice-activity score that counts as
	// speech for the inactivity timer. Range [0, 1].
	VADThreshold float32
}

// DefaultConfig returns production transcription settings.
func DefaultConfig() Config {
	return Config{
		Model:             "nova-3",
		SampleRate:        16000,
		Channels:          1,
		UtteranceEndMs:    1000,
		InactivityTimeout: 10 * time.Second,
		VADThreshold:      0.5,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return fmt.Errorf("vad threshold must be in [0,1], got %f", c.VADThreshold)
	}
	return nil
}

// Session owns one live transcription stream: a capture loop that pumps
// microphone PCM to the service, and a dispatcher that delivers events to
// the registered handler in order, on a single goroutine.
//
// Events originating on the connection's read goroutine and the capture
// goroutine are posted to an internal channel; the handler never sees
// concurrent calls.
type Session struct {
	ID string

	cfg       Config
	connector Connector
	source    audioio.Source
	scorer    vad.Scorer
	handler   EventHandler

	mu         sync.RWMutex
	conn       LiveConnection
	events     chan Event
	started    bool
	closed     bool
	lastSpeech time.Time
	finalParts []string

	captureDone chan struct{}
	monitorDone chan struct{}
	stopMonitor chan struct{}
	dispatchWG  sync.WaitGroup
}

// NewSession builds a session bound to an audio source and a handler.
// The scorer may be nil, in which case every frame counts as activity.
func NewSession(id string, cfg Config, connector Connector, source audioio.Source, scorer vad.Scorer, handler EventHandler) *Session {
	return &Session{
		ID:        id,
		cfg:       cfg,
		connector: connector,
		source:    source,
		scorer:    scorer,
		handler:   handler,
	}
}

// Start opens the live connection and begins streaming captured audio.
// Starting a running session is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.events = make(chan Event, 64)
	s.captureDone = make(chan struct{})
	s.monitorDone = make(chan struct{})
	s.stopMonitor = make(chan struct{})
	s.lastSpeech = time.Now()
	s.mu.Unlock()

	s.dispatchWG.Add(1)
	go s.dispatchLoop()

	opts := LiveOptions{
		Model:          s.cfg.Model,
		Encoding:       "linear16",
		SampleRate:     s.cfg.SampleRate,
		Channels:       s.cfg.Channels,
		InterimResults: true,
		UtteranceEndMs: s.cfg.UtteranceEndMs,
		SmartFormat:    true,
	}
	conn, err := s.connector.Connect(ctx, opts, LiveHandler{
		OnTranscript:   s.onTranscript,
		OnUtteranceEnd: s.onUtteranceEnd,
		OnError: func(err error) {
			s.post(Event{Type: EventError, Text: err.Error(), Timestamp: time.Now()})
		},
		OnClose: func() {
			s.post(newEvent(EventStatus, StatusConnectionClosed))
		},
	})
	if err != nil {
		s.teardown()
		return fmt.Errorf("opening live connection: %w", err)
	}

	if err := s.source.Start(ctx); err != nil {
		conn.Finish()
		s.teardown()
		return fmt.Errorf("starting audio source: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.captureLoop()
	if s.cfg.InactivityTimeout > 0 {
		go s.monitorLoop()
	} else {
		close(s.monitorDone)
	}

	s.post(newEvent(EventStatus, StatusListeningStarted))
	log.Info("transcription session started", "session", s.ID, "model", s.cfg.Model)
	return nil
}

// Close stops capture, flushes the connection, and emits a final
// listening_stopped status. Closing twice is a no-op. Close may be called
// from event handlers.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	started := s.started
	s.mu.Unlock()

	if !started {
		return nil
	}

	close(s.stopMonitor)
	s.source.Stop()
	<-s.captureDone
	<-s.monitorDone

	if conn != nil {
		conn.Finish()
	}
	if err := s.source.Close(); err != nil {
		log.Warn("closing audio source", "session", s.ID, "error", err)
	}

	// Queue the stop status ahead of closing the event channel so the
	// dispatcher delivers it last, on its own goroutine.
	s.mu.Lock()
	select {
	case s.events <- newEvent(EventStatus, StatusListeningStopped):
	default:
	}
	close(s.events)
	s.mu.Unlock()

	log.Info("transcription session closed", "session", s.ID)
	return nil
}

// Closed reports whether the session has been shut down.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// teardown unwinds a partially started session.
func (s *Session) teardown() {
	s.mu.Lock()
	s.closed = true
	close(s.events)
	close(s.captureDone)
	close(s.monitorDone)
	s.mu.Unlock()
	s.dispatchWG.Wait()
}

// captureLoop pumps audio from the source to the live connection,
// refreshing the activity clock when a frame scores as speech.
func (s *Session) captureLoop() {
	defer close(s.captureDone)

	srcRate := s.source.Config().SampleRate
	for chunk := range s.source.Stream() {
		samples := chunk.Samples
		if srcRate != s.cfg.SampleRate {
			samples = audioio.Resample(samples, srcRate, s.cfg.SampleRate)
		}
		pcm := audioio.SamplesToBytes(samples)

		if s.scorer == nil || s.scorer.Score(pcm, s.cfg.SampleRate) >= s.cfg.VADThreshold {
			s.mu.Lock()
			s.lastSpeech = time.Now()
			s.mu.Unlock()
		}

		s.mu.RLock()
		conn := s.conn
		closed := s.closed
		s.mu.RUnlock()
		if closed || conn == nil {
			return
		}
		if err := conn.Send(pcm); err != nil {
			if !errors.Is(err, ErrConnClosed) {
				s.post(Event{Type: EventError, Text: fmt.Sprintf("send audio: %v", err), Timestamp: time.Now()})
			}
			return
		}
	}
}

// monitorLoop closes the session after a stretch without detected speech.
func (s *Session) monitorLoop() {
	defer close(s.monitorDone)

	interval := time.Second
	if s.cfg.InactivityTimeout < 4*time.Second {
		interval = s.cfg.InactivityTimeout / 4
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopMonitor:
			return
		case <-ticker.C:
		}

		s.mu.RLock()
		closed := s.closed
		idle := time.Since(s.lastSpeech)
		s.mu.RUnlock()
		if closed {
			return
		}
		if idle >= s.cfg.InactivityTimeout {
			s.post(newEvent(EventStatus, StatusNoSpeechTimeout))
			log.Info("no speech detected, closing session", "session", s.ID, "idle", idle)
			go s.Close()
			return
		}
	}
}

// onTranscript handles partial and final fragments from the service.
// Finals accumulate until an utterance boundary flushes them as one event.
func (s *Session) onTranscript(text string, isFinal bool) {
	s.mu.Lock()
	s.lastSpeech = time.Now()
	if isFinal {
		s.finalParts = append(s.finalParts, text)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.post(newEvent(EventPartial, text))
}

// onUtteranceEnd flushes accumulated final fragments. A boundary that
// arrives with nothing buffered is ignored, so duplicate signals are safe.
func (s *Session) onUtteranceEnd() {
	s.mu.Lock()
	parts := s.finalParts
	s.finalParts = nil
	s.mu.Unlock()
	if len(parts) == 0 {
		return
	}
	s.post(newEvent(EventFinal, strings.Join(parts, " ")))
}

// post queues an event for the dispatcher. Safe from any goroutine; events
// arriving after Close are dropped.
func (s *Session) post(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.events == nil {
		return
	}
	select {
	case s.events <- e:
	default:
		log.Warn("transcription event dropped, queue full", "session", s.ID, "type", e.Type)
	}
}

func (s *Session) dispatchLoop() {
	defer s.dispatchWG.Done()
	for e := range s.events {
		s.deliver(e)
	}
}

func (s *Session) deliver(e Event) {
	if s.handler == nil {
		return
	}
	s.handler(e)
}
