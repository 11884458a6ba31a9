package voicestreamsystem

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu  sync.Mutex
	got []string
	ch  chan string
}

func newCollector() *collector {
	return &collector{ch: make(chan string, 16)}
}

func (c *collector) sink(s string) {
	c.mu.Lock()
	c.got = append(c.got, s)
	c.mu.Unlock()
	c.ch <- s
}

func (c *collector) all() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

func TestAggregatorMergesFragmentsInsideWindow(t *testing.T) {
	c := newCollector()
	a := NewAggregator(60*time.Millisecond, c.sink)

	a.Add("what is")
	time.Sleep(20 * time.Millisecond)
	a.Add("  a derivative ")

	select {
	case got := <-c.ch:
		assert.Equal(t, "what is a derivative", got)
	case <-time.After(time.Second):
		t.Fatal("no utterance emitted")
	}

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"what is a derivative"}, c.all())
	assert.Zero(t, a.Pending())
}

func TestAggregatorSeparatesDistantFragments(t *testing.T) {
	c := newCollector()
	a := NewAggregator(20*time.Millisecond, c.sink)

	a.Add("first")
	<-c.ch
	a.Add("second")
	<-c.ch
	assert.Equal(t, []string{"first", "second"}, c.all())
}

func TestAggregatorIgnoresEmpty(t *testing.T) {
	c := newCollector()
	a := NewAggregator(10*time.Millisecond, c.sink)
	a.Add("   ")
	a.Flush()
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, c.all())
}

func TestAggregatorFlushEmitsOnceAndCancelsTimer(t *testing.T) {
	c := newCollector()
	a := NewAggregator(30*time.Millisecond, c.sink)

	a.Add("one")
	a.Add("two")
	a.Flush()
	require.Equal(t, "one two", <-c.ch)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []string{"one two"}, c.all(), "stale timer must not emit again")
}

func TestAggregatorStopDropsPending(t *testing.T) {
	c := newCollector()
	a := NewAggregator(20*time.Millisecond, c.sink)
	a.Add("never sent")
	a.Stop()
	a.Add("after stop")
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, c.all())
}
