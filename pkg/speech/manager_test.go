package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Naitik4516/gravia/pkg/audioio"
	"github.com/Naitik4516/gravia/pkg/tts"
)

// passEngine forwards encoded bytes straight through as PCM.
type passEngine struct{}

func (passEngine) Name() string { return "pass" }

func (passEngine) Decode(ctx context.Context, stream tts.AudioStream, emit EmitFunc) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		data, err := stream.Read()
		if err != nil {
			return err
		}
		if data == nil {
			return nil
		}
		if err := emit(data); err != nil {
			return err
		}
	}
}

// stallEngine emits one chunk, then holds the pipeline open until the
// utterance is cancelled.
type stallEngine struct {
	emitted chan struct{}
}

func (e *stallEngine) Name() string { return "stall" }

func (e *stallEngine) Decode(ctx context.Context, stream tts.AudioStream, emit EmitFunc) error {
	if err := emit(make([]byte, 256)); err != nil {
		return err
	}
	close(e.emitted)
	<-ctx.Done()
	return ctx.Err()
}

// faultyEngine emits audio and then fails its first decode; later calls
// pass bytes straight through.
type faultyEngine struct {
	mu    sync.Mutex
	calls int
}

func (e *faultyEngine) Name() string { return "faulty" }

func (e *faultyEngine) Decode(ctx context.Context, stream tts.AudioStream, emit EmitFunc) error {
	e.mu.Lock()
	e.calls++
	first := e.calls == 1
	e.mu.Unlock()

	if first {
		if err := emit(make([]byte, 256)); err != nil {
			return err
		}
		return errors.New("corrupt frame")
	}
	return passEngine{}.Decode(ctx, stream, emit)
}

// recordingNotifier tracks lifecycle notifications.
type recordingNotifier struct {
	mu        sync.Mutex
	started   []string
	completed []string
}

func (n *recordingNotifier) SpeechStarted(channel string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.started = append(n.started, channel)
}

func (n *recordingNotifier) SpeechCompleted(channel string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, channel)
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.started), len(n.completed)
}

func testManagerConfig() Config {
	cfg := DefaultConfig()
	cfg.FlushTimeout = 200 * time.Millisecond
	return cfg
}

func newTestManager(t *testing.T, cfg Config, engine Engine) (*Manager, *tts.Mock, *recordingNotifier) {
	t.Helper()
	sinkCfg := audioio.DefaultPlaybackConfig()
	sinkCfg.Backend = audioio.BackendMock
	streamer := NewStreamer(audioio.NewMockSink(sinkCfg, nil))

	provider := tts.NewMock()
	notifier := &recordingNotifier{}
	m, err := NewManager(cfg, provider, engine, streamer, notifier)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m, provider, notifier
}

func waitForCond(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestManagerThresholdFlush(t *testing.T) {
	m, provider, _ := newTestManager(t, testManagerConfig(), passEngine{})

	// Three words hit the word threshold; the request flushes without
	// waiting for the timer.
	for _, frag := range []string{"Hello", "there", "friend"} {
		if err := m.Speak("voice", frag); err != nil {
			t.Fatalf("Speak(%q) error = %v", frag, err)
		}
	}

	if !waitForCond(t, time.Second, func() bool { return provider.CallCount("Stream") == 1 }) {
		t.Fatalf("Stream calls = %d, want 1", provider.CallCount("Stream"))
	}
	if got := provider.LastCall().Text; got != "Hello there friend" {
		t.Errorf("synthesized text = %q, want %q", got, "Hello there friend")
	}

	// No stray second request from the timer.
	time.Sleep(300 * time.Millisecond)
	if n := provider.CallCount("Stream"); n != 1 {
		t.Errorf("Stream calls after settling = %d, want 1", n)
	}
}

func TestManagerTimeoutFlush(t *testing.T) {
	cfg := testManagerConfig()
	m, provider, _ := newTestManager(t, cfg, passEngine{})

	start := time.Now()
	if err := m.Speak("voice", "Hi"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}

	if !waitForCond(t, 2*time.Second, func() bool { return provider.CallCount("Stream") == 1 }) {
		t.Fatalf("Stream calls = %d, want 1", provider.CallCount("Stream"))
	}
	if elapsed := time.Since(start); elapsed < cfg.FlushTimeout {
		t.Errorf("flushed after %v, want no earlier than %v", elapsed, cfg.FlushTimeout)
	}
	if got := provider.LastCall().Text; got != "Hi" {
		t.Errorf("synthesized text = %q, want %q", got, "Hi")
	}
}

func TestManagerNewFragmentReschedulesTimer(t *testing.T) {
	cfg := testManagerConfig()
	m, provider, _ := newTestManager(t, cfg, passEngine{})

	m.Speak("voice", "Hi")
	time.Sleep(cfg.FlushTimeout / 2)
	m.Speak("voice", "yo") // still below both thresholds; timer restarts

	time.Sleep(cfg.FlushTimeout / 2)
	if n := provider.CallCount("Stream"); n != 0 {
		t.Fatalf("flushed before the rescheduled timer fired (%d calls)", n)
	}

	if !waitForCond(t, 2*time.Second, func() bool { return provider.CallCount("Stream") == 1 }) {
		t.Fatalf("Stream calls = %d, want 1", provider.CallCount("Stream"))
	}
	if got := provider.LastCall().Text; got != "Hi yo" {
		t.Errorf("synthesized text = %q, want %q", got, "Hi yo")
	}
}

func TestManagerChannelSwitchFlushes(t *testing.T) {
	m, provider, _ := newTestManager(t, testManagerConfig(), passEngine{})

	m.Speak("alpha", "Hi")
	m.Speak("beta", "Hello there everyone today")

	if !waitForCond(t, time.Second, func() bool { return provider.CallCount("Stream") == 2 }) {
		t.Fatalf("Stream calls = %d, want 2", provider.CallCount("Stream"))
	}
	calls := provider.Calls()
	if calls[0].Text != "Hi" {
		t.Errorf("first utterance = %q, want %q", calls[0].Text, "Hi")
	}
}

func TestManagerSerializesUtterances(t *testing.T) {
	m, provider, notifier := newTestManager(t, testManagerConfig(), passEngine{})

	m.Speak("voice", "First utterance goes here")
	m.Speak("voice", "Second utterance goes here")

	if !waitForCond(t, 2*time.Second, func() bool {
		_, completed := notifier.counts()
		return completed == 2
	}) {
		t.Fatal("both utterances did not complete")
	}

	calls := provider.Calls()
	if len(calls) != 2 {
		t.Fatalf("Stream calls = %d, want 2", len(calls))
	}
	if calls[0].Text != "First utterance goes here" || calls[1].Text != "Second utterance goes here" {
		t.Errorf("utterance order = %q, %q", calls[0].Text, calls[1].Text)
	}
}

func TestManagerDecodeFailureDiscardsAudio(t *testing.T) {
	sinkCfg := audioio.DefaultPlaybackConfig()
	sinkCfg.Backend = audioio.BackendMock
	sink := audioio.NewMockSink(sinkCfg, nil)
	streamer := NewStreamer(sink)

	provider := tts.NewMock()
	notifier := &recordingNotifier{}
	m, err := NewManager(testManagerConfig(), provider, &faultyEngine{}, streamer, notifier)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	m.Speak("voice", "This first utterance fails decoding")

	if !waitForCond(t, 2*time.Second, func() bool {
		_, completed := notifier.counts()
		return completed == 1
	}) {
		t.Fatal("failed utterance never completed")
	}

	// Audio the failed utterance queued must be dropped, not left to play
	// under whatever comes next.
	if got := sink.Clears(); got < 1 {
		t.Errorf("sink clears after decode failure = %d, want at least 1", got)
	}

	// The pipeline keeps working for the next utterance.
	m.Speak("voice", "The second utterance plays through")

	if !waitForCond(t, 2*time.Second, func() bool {
		_, completed := notifier.counts()
		return completed == 2
	}) {
		t.Fatal("second utterance did not complete")
	}
	started, completed := notifier.counts()
	if started != 2 || completed != 2 {
		t.Errorf("notifications = %d started / %d completed, want 2/2", started, completed)
	}
}

func TestManagerInterrupt(t *testing.T) {
	engine := &stallEngine{emitted: make(chan struct{})}
	m, _, notifier := newTestManager(t, testManagerConfig(), engine)

	m.Speak("voice", "Something long enough to flush")
	m.Speak("voice", "A queued utterance that must never play")

	select {
	case <-engine.emitted:
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline never started")
	}

	m.Interrupt()

	// Immediately after Interrupt returns: nothing pending anywhere.
	st := m.Status()
	if st.QueueDepth != 0 {
		t.Errorf("queue depth after interrupt = %d, want 0", st.QueueDepth)
	}
	if st.BufferedText != "" {
		t.Errorf("buffered text after interrupt = %q, want empty", st.BufferedText)
	}

	if !waitForCond(t, 2*time.Second, func() bool { return !m.Synthesizing() }) {
		t.Fatal("pipeline did not tear down after interrupt")
	}

	// The queued second utterance was discarded, and notifications stay
	// paired for the interrupted one.
	time.Sleep(100 * time.Millisecond)
	started, completed := notifier.counts()
	if started != 1 || completed != 1 {
		t.Errorf("notifications = %d started / %d completed, want 1/1", started, completed)
	}
}

func TestManagerSpeakAfterClose(t *testing.T) {
	m, _, _ := newTestManager(t, testManagerConfig(), passEngine{})
	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := m.Speak("voice", "too late"); err != ErrManagerClosed {
		t.Errorf("Speak after Close error = %v, want ErrManagerClosed", err)
	}
	// Double close is safe.
	if err := m.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestManagerConfigureBuffering(t *testing.T) {
	m, _, _ := newTestManager(t, testManagerConfig(), passEngine{})

	m.ConfigureBuffering(5, 40, 3*time.Second)
	words, chars, timeout := m.BufferingConfig()
	if words != 5 || chars != 40 || timeout != 3*time.Second {
		t.Errorf("BufferingConfig() = %d/%d/%v", words, chars, timeout)
	}

	// Out-of-range values clamp to the floors.
	m.ConfigureBuffering(0, 0, 0)
	words, chars, timeout = m.BufferingConfig()
	if words != 1 || chars != 5 || timeout != 500*time.Millisecond {
		t.Errorf("clamped BufferingConfig() = %d/%d/%v, want 1/5/500ms", words, chars, timeout)
	}
}

func TestManagerDropsEmptyFragments(t *testing.T) {
	m, provider, _ := newTestManager(t, testManagerConfig(), passEngine{})

	// Pure markup normalizes to nothing and must not arm the timer.
	if err := m.Speak("voice", "**"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	time.Sleep(400 * time.Millisecond)
	if n := provider.CallCount("Stream"); n != 0 {
		t.Errorf("Stream calls = %d, want 0", n)
	}
}
