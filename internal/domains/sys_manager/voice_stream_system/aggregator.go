package voicestreamsystem

import (
	"strings"
	"sync"
	"time"
)

// Aggregator merges transcript fragments that arrive close together into a
// single utterance, so a student pausing mid-sentence produces one turn.
type Aggregator struct {
	window time.Duration
	sink   func(string)

	mu      sync.Mutex
	buf     []string
	timer   *time.Timer
	gen     uint64
	stopped bool

	emitMu sync.Mutex
}

func NewAggregator(window time.Duration, sink func(utterance string)) *Aggregator {
	return &Aggregator{window: window, sink: sink}
}

// Add buffers a fragment and restarts the merge window.
func (a *Aggregator) Add(fragment string) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.buf = append(a.buf, fragment)
	a.gen++
	gen := a.gen
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.window, func() { a.fire(gen) })
}

// Flush emits whatever is buffered right away.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++
	merged := a.takeLocked()
	a.mu.Unlock()
	a.emit(merged)
}

// Stop cancels the pending flush and drops buffered fragments.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	a.gen++
	a.buf = nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.buf)
}

func (a *Aggregator) fire(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || a.stopped {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	merged := a.takeLocked()
	a.mu.Unlock()
	a.emit(merged)
}

func (a *Aggregator) takeLocked() string {
	merged := strings.Join(a.buf, " ")
	a.buf = nil
	return merged
}

func (a *Aggregator) emit(utterance string) {
	if utterance == "" {
		return
	}
	a.emitMu.Lock()
	defer a.emitMu.Unlock()
	a.sink(utterance)
}
