package speech

import (
	"strings"
	"time"
)

// accumulator aggregates small incremental fragments for one channel until
// a threshold or the flush timer releases them as a single Request. At
// most one accumulator is active per manager; all access goes through the
// manager's mutex.
type accumulator struct {
	channel string
	parts   []string
	words   int
	chars   int
	timer   *time.Timer
}

func newAccumulator(channel string) *accumulator {
	return &accumulator{channel: channel}
}

func (a *accumulator) add(text string) {
	a.parts = append(a.parts, text)
	a.words += len(strings.Fields(text))
	a.chars += len(text)
}

// ready reports whether either flush threshold has been met.
func (a *accumulator) ready(minWords, minChars int) bool {
	return a.words >= minWords || a.chars >= minChars
}

func (a *accumulator) text() string {
	return strings.Join(a.parts, " ")
}

func (a *accumulator) empty() bool {
	return len(a.parts) == 0
}

// stopTimer cancels a pending delayed flush, if any.
func (a *accumulator) stopTimer() {
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
