package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Naitik4516/gravia/internal/log"
	"github.com/Naitik4516/gravia/pkg/speakable"
	"github.com/Naitik4516/gravia/pkg/tts"
)

// Manager serializes utterances to the output device and supports instant
// cancellation. Text arrives through Speak in small fragments, accumulates
// until it forms a natural utterance, then flows through a single worker:
// synthesize, decode, stream to the device. Exactly one utterance is in
// flight at a time.
type Manager struct {
	cfg      Config
	provider tts.Provider
	engine   Engine
	streamer *Streamer
	notifier Notifier

	mu           sync.Mutex
	queue        []Request
	acc          *accumulator
	synthesizing bool
	closed       bool
	cancelUtter  context.CancelFunc // cancels the in-flight utterance

	// emitMu serializes PCM handoff to the streamer so Interrupt can wait
	// out an in-flight emit before clearing the device.
	emitMu sync.Mutex

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewManager builds a synthesis manager. The notifier may be nil.
func NewManager(cfg Config, provider tts.Provider, engine Engine, streamer *Streamer, notifier Notifier) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid speech config: %w", err)
	}
	m := &Manager{
		cfg:      cfg,
		provider: provider,
		engine:   engine,
		streamer: streamer,
		notifier: notifier,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	m.wg.Add(1)
	go m.workerLoop()
	return m, nil
}

// Speak normalizes a text fragment and buffers it toward the next
// utterance. Fragments for a new channel flush the previous channel's
// accumulator first. Empty fragments (after normalization) are dropped.
func (m *Manager) Speak(channel, text string) error {
	normalized := speakable.Normalize(text)
	if normalized == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}

	if m.acc != nil && m.acc.channel != channel {
		m.flushLocked()
	}
	if m.acc == nil {
		m.acc = newAccumulator(channel)
	}
	m.acc.add(normalized)

	if m.acc.ready(m.cfg.MinWords, m.cfg.MinChars) {
		m.flushLocked()
		return nil
	}

	// Below both thresholds: (re)arm the delayed flush. Any newer
	// fragment cancels and reschedules it.
	m.acc.stopTimer()
	acc := m.acc
	acc.timer = time.AfterFunc(m.cfg.FlushTimeout, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.acc == acc && !m.closed {
			m.flushLocked()
		}
	})
	return nil
}

// BufferingConfig returns the current text-buffering thresholds.
func (m *Manager) BufferingConfig() (minWords, minChars int, timeout time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.MinWords, m.cfg.MinChars, m.cfg.FlushTimeout
}

// ConfigureBuffering adjusts the text-buffering thresholds at runtime,
// clamping to floors of 1 word, 5 characters, and 500ms.
func (m *Manager) ConfigureBuffering(minWords, minChars int, timeout time.Duration) {
	if minWords < 1 {
		minWords = 1
	}
	if minChars < 5 {
		minChars = 5
	}
	if timeout < 500*time.Millisecond {
		timeout = 500 * time.Millisecond
	}
	m.mu.Lock()
	m.cfg.MinWords = minWords
	m.cfg.MinChars = minChars
	m.cfg.FlushTimeout = timeout
	m.mu.Unlock()
}

// Flush forces out any buffered text immediately.
func (m *Manager) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()
}

// flushLocked moves the accumulator's text onto the request queue.
// Caller holds m.mu.
func (m *Manager) flushLocked() {
	if m.acc == nil || m.acc.empty() {
		m.acc = nil
		return
	}
	m.acc.stopTimer()
	m.queue = append(m.queue, Request{Channel: m.acc.channel, Text: m.acc.text()})
	m.acc = nil
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Interrupt cancels the in-flight utterance and discards everything
// pending: the request queue, the text accumulator, and all unplayed
// audio. When it returns, no further audio from the interrupted utterance
// reaches the device.
func (m *Manager) Interrupt() {
	m.mu.Lock()
	m.queue = nil
	if m.acc != nil {
		m.acc.stopTimer()
		m.acc = nil
	}
	cancel := m.cancelUtter
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	// Wait out an emit already holding the lock, then discard. Any later
	// emit observes the cancelled context and refuses.
	m.emitMu.Lock()
	m.streamer.Clear()
	m.emitMu.Unlock()
	log.Info("speech interrupted")
}

// Status reports the pipeline state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	var buffered string
	if m.acc != nil {
		buffered = m.acc.text()
	}
	return Status{
		Synthesizing: m.synthesizing,
		Playing:      m.streamer.Playing(),
		QueueDepth:   len(m.queue) + m.streamer.QueueDepth(),
		BufferedText: buffered,
	}
}

// Synthesizing reports whether an utterance is in flight.
func (m *Manager) Synthesizing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.synthesizing
}

// Close interrupts playback and stops the worker. Speak fails afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Interrupt()
	close(m.done)
	m.wg.Wait()
	return m.streamer.Close()
}

func (m *Manager) workerLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case <-m.wake:
		}
		for {
			m.mu.Lock()
			if m.closed || len(m.queue) == 0 {
				m.mu.Unlock()
				break
			}
			req := m.queue[0]
			m.queue = m.queue[1:]
			ctx, cancel := context.WithCancel(context.Background())
			m.cancelUtter = cancel
			m.synthesizing = true
			m.mu.Unlock()

			m.runUtterance(ctx, req)

			m.mu.Lock()
			m.synthesizing = false
			m.cancelUtter = nil
			m.mu.Unlock()
			cancel()
		}
	}
}

// runUtterance drives one request through synthesize → decode → playback.
func (m *Manager) runUtterance(ctx context.Context, req Request) {
	if m.notifier != nil {
		m.notifier.SpeechStarted(req.Channel)
	}
	defer func() {
		if m.notifier != nil {
			m.notifier.SpeechCompleted(req.Channel)
		}
	}()

	log.Debug("synthesizing utterance", "channel", req.Channel, "chars", len(req.Text))

	stream, err := m.provider.Stream(ctx, req.Text)
	if err != nil {
		log.Error("synthesis request failed", "error", err)
		return
	}
	defer stream.Close()

	if err := m.streamer.Start(ctx); err != nil {
		log.Error("output device start failed", "error", err)
		return
	}

	emit := func(pcm []byte) error {
		m.emitMu.Lock()
		defer m.emitMu.Unlock()
		if ctx.Err() != nil {
			return ErrInterrupted
		}
		return m.streamer.AddChunk(ctx, pcm)
	}

	err = m.engine.Decode(ctx, stream, emit)
	switch {
	case err == nil:
		// Drain: let queued audio play out before the next utterance.
		if err := m.streamer.Finish(context.Background()); err != nil {
			log.Warn("output drain failed", "error", err)
		}
		log.Debug("utterance completed", "channel", req.Channel)
	case errors.Is(err, context.Canceled), errors.Is(err, ErrInterrupted), errors.Is(err, ErrStreamerStopped):
		log.Debug("utterance cancelled", "channel", req.Channel)
	default:
		log.Error("decode pipeline failed", "engine", m.engine.Name(), "error", err)
		// Discard audio the failed utterance already queued so it does
		// not play under the next one.
		m.streamer.Clear()
	}
}
