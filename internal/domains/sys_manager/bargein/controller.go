package bargein

import (
	"sync"
	"time"

	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/pkg/Logger"
)

type Source string

const (
	SourceManual Source = "manual"
	SourceVoice  Source = "voice"
)

type Config struct {
	Debounce      time.Duration
	StartGuard    time.Duration
	ConfirmWindow time.Duration
	EchoCooldown  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Debounce:      500 * time.Millisecond,
		StartGuard:    250 * time.Millisecond,
		ConfirmWindow: 1500 * time.Millisecond,
		EchoCooldown:  1200 * time.Millisecond,
	}
}

// Interrupter is the session flag the dispatcher polls.
type Interrupter interface {
	Interrupt()
}

// Controller decides when the student is talking over the tutor. Voice
// activity alone only arms a pending interruption; a final transcript inside
// the confirm window turns it into a real one. It also drops transcripts
// that arrive right after tutor audio, which are usually the tutor's own
// voice picked up by the microphone.
type Controller struct {
	cfg     Config
	target  Interrupter
	notify  func(Source)
	logger  *Logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu             sync.Mutex
	audioActive    bool
	audioStartedAt time.Time
	lastAudioSent  time.Time
	lastAutoAt     time.Time
	pendingAt      time.Time
	pending        bool
}

func New(cfg Config, target Interrupter, notify func(Source), logger *Logger.Logger, m *metrics.Metrics) *Controller {
	return &Controller{
		cfg:     cfg,
		target:  target,
		notify:  notify,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// WithClock swaps the time source; tests only.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// Manual interrupts immediately, whatever the audio state.
func (c *Controller) Manual() {
	c.mu.Lock()
	c.pending = false
	c.fireLocked()
	c.mu.Unlock()
	c.emit(SourceManual)
}

// VoiceStart arms a pending interruption while tutor audio is playing.
func (c *Controller) VoiceStart() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if !c.audioActive {
		return false
	}
	if !c.lastAutoAt.IsZero() && now.Sub(c.lastAutoAt) < c.cfg.Debounce {
		return false
	}
	if !c.audioStartedAt.IsZero() && now.Sub(c.audioStartedAt) < c.cfg.StartGuard {
		return false
	}
	c.pending = true
	c.pendingAt = now
	c.logger.Debugf("barge-in pending")
	return true
}

// Transcript confirms a pending interruption and then applies the echo
// filter. It reports whether the text should reach the tutor.
func (c *Controller) Transcript(text string) bool {
	c.mu.Lock()
	now := c.now()
	confirmed := false
	if c.pending {
		if c.audioActive && now.Sub(c.pendingAt) <= c.cfg.ConfirmWindow {
			c.fireLocked()
			c.lastAutoAt = now
			confirmed = true
		}
		c.pending = false
	}

	echo := !c.lastAudioSent.IsZero() && now.Sub(c.lastAudioSent) < c.cfg.EchoCooldown
	c.mu.Unlock()

	if confirmed {
		c.emit(SourceVoice)
	}
	if echo {
		c.logger.Debugf("dropping likely echo: %q", text)
		c.metrics.RecordTranscriptDropped("echo")
		return false
	}
	return true
}

func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Controller) AudioStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioActive = true
	c.audioStartedAt = c.now()
}

func (c *Controller) AudioSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastAudioSent = c.now()
}

func (c *Controller) AudioStopped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioActive = false
	c.pending = false
}

// fireLocked raises the session flag and resets the echo clock.
func (c *Controller) fireLocked() {
	c.target.Interrupt()
	c.lastAudioSent = time.Time{}
}

func (c *Controller) emit(src Source) {
	c.logger.Infof("barge-in (%s)", src)
	c.metrics.RecordBargeIn(string(src))
	if c.notify != nil {
		c.notify(src)
	}
}
