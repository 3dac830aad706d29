package transcribe

import (
	"context"
	"fmt"
	"sync"

	"github.com/Naitik4516/gravia/internal/log"
	"github.com/Naitik4516/gravia/pkg/audioio"
	"github.com/Naitik4516/gravia/pkg/vad"
)

// SourceFactory builds a fresh audio source for a new session.
type SourceFactory func() (audioio.Source, error)

// Registry tracks at most one live session per key, so repeated start
// commands from the same client reuse the running session instead of
// stacking duplicates.
type Registry struct {
	cfg       Config
	connector Connector
	sources   SourceFactory
	scorer    vad.Scorer

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds a registry. The scorer may be nil.
func NewRegistry(cfg Config, connector Connector, sources SourceFactory, scorer vad.Scorer) *Registry {
	return &Registry{
		cfg:       cfg,
		connector: connector,
		sources:   sources,
		scorer:    scorer,
		sessions:  make(map[string]*Session),
	}
}

// StartSession returns the running session for key, or creates and starts
// one. The handler is only installed on a newly created session.
func (r *Registry) StartSession(ctx context.Context, key string, handler EventHandler) (*Session, error) {
	r.mu.Lock()
	if existing, ok := r.sessions[key]; ok && !existing.Closed() {
		r.mu.Unlock()
		log.Debug("session already running", "key", key)
		return existing, nil
	}
	r.mu.Unlock()

	source, err := r.sources()
	if err != nil {
		return nil, fmt.Errorf("creating audio source: %w", err)
	}

	session := NewSession(key, r.cfg, r.connector, source, r.scorer, handler)
	if err := session.Start(ctx); err != nil {
		source.Close()
		return nil, err
	}

	// Another caller may have registered a session for key while this one
	// was dialing. The first registration wins; the loser shuts down.
	r.mu.Lock()
	if current, ok := r.sessions[key]; ok && !current.Closed() {
		r.mu.Unlock()
		log.Debug("lost session start race", "key", key)
		session.Close()
		return current, nil
	}
	r.sessions[key] = session
	r.mu.Unlock()
	return session, nil
}

// Get returns the session for key, or nil.
func (r *Registry) Get(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[key]
}

// CloseSession shuts down and removes the session for key. Closing a key
// with no session is a no-op.
func (r *Registry) CloseSession(key string) error {
	r.mu.Lock()
	session, ok := r.sessions[key]
	delete(r.sessions, key)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return session.Close()
}

// CloseAll shuts down every live session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			log.Warn("closing session", "session", s.ID, "error", err)
		}
	}
}
