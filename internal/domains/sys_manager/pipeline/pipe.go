package pipeline

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/xpanvictor/xtutor/internal/domains/board"
	"github.com/xpanvictor/xtutor/internal/domains/conversation"
	"github.com/xpanvictor/xtutor/internal/domains/session"
	"github.com/xpanvictor/xtutor/internal/domains/sys_manager/runtime"
	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	xio "github.com/xpanvictor/xtutor/pkg/io"
	"github.com/xpanvictor/xtutor/pkg/io/render"
	"github.com/xpanvictor/xtutor/pkg/io/tts"
)

// AudioObserver is told when tutor audio is on the wire; the barge-in
// controller implements it.
type AudioObserver interface {
	AudioStarted()
	AudioSent()
	AudioStopped()
}

type Config struct {
	AudioStartWait time.Duration
	ChunkSize      int
	WordsPerSecond float64
	MinSpeech      time.Duration
	MinLatexWidth  float64
}

func DefaultConfig() Config {
	return Config{
		AudioStartWait: 800 * time.Millisecond,
		ChunkSize:      4096,
		WordsPerSecond: 2.4,
		MinSpeech:      1500 * time.Millisecond,
		MinLatexWidth:  240,
	}
}

// Pipeline sends one reply to the client: speech text first, then audio,
// then strokes paced to finish roughly with the voice.
type Pipeline struct {
	sess      *session.Session
	layout    *board.Tracker
	synth     tts.Synthesizer
	renderers render.Set
	pub       xio.Publisher
	audio     AudioObserver
	cfg       Config
	logger    *Logger.Logger
	metrics   *metrics.Metrics
}

func New(
	sess *session.Session,
	layout *board.Tracker,
	synth tts.Synthesizer,
	renderers render.Set,
	pub xio.Publisher,
	audio AudioObserver,
	cfg Config,
	logger *Logger.Logger,
	m *metrics.Metrics,
) *Pipeline {
	return &Pipeline{
		sess:      sess,
		layout:    layout,
		synth:     synth,
		renderers: renderers,
		pub:       pub,
		audio:     audio,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
	}
}

// Begin implements conversation.Dispatcher.
func (p *Pipeline) Begin(ctx context.Context, cycle *runtime.Cycle, ready *conversation.SpeechReady) conversation.DispatchTurn {
	t := &turn{
		p:         p,
		ctx:       ctx,
		cycle:     cycle,
		ready:     ready,
		stop:      make(chan struct{}),
		watchDone: make(chan struct{}),
		started:   make(chan struct{}),
	}
	go t.watch()
	return t
}

type pendingItem struct {
	action board.Action
	batch  *render.StrokeBatch
}

type turn struct {
	p     *Pipeline
	ctx   context.Context
	cycle *runtime.Cycle
	ready *conversation.SpeechReady

	stop      chan struct{}
	stopOnce  sync.Once
	watchDone chan struct{}

	mu        sync.Mutex
	announced bool
	speech    string
	audioDone chan struct{}

	started     chan struct{}
	startedOnce sync.Once
}

func (t *turn) watch() {
	defer close(t.watchDone)
	select {
	case <-t.ready.Done():
		t.announce(t.ready.Text())
	case <-t.stop:
	case <-t.ctx.Done():
	}
}

func (t *turn) stopWatch() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.watchDone
}

// announce records the assistant turn, tells the client what is being said
// and starts synthesis. Only the first non-empty call has any effect.
func (t *turn) announce(text string) {
	text = strings.TrimSpace(text)
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.announced || text == "" {
		return
	}
	t.announced = true
	t.speech = text

	t.p.sess.AddAssistantTurn(text)
	if err := t.p.pub.SendSpeechText(text); err != nil {
		t.p.logger.Warnf("session %s: send speech_text: %v", t.p.sess.ID, err)
	}
	t.cycle.Try(t.ctx, runtime.SPEAK)

	t.audioDone = make(chan struct{})
	go t.streamAudio(text, t.audioDone)
}

func (t *turn) markStarted() {
	t.startedOnce.Do(func() { close(t.started) })
}

func (t *turn) streamAudio(text string, done chan struct{}) {
	p := t.p
	defer close(done)
	defer t.markStarted()
	defer p.audio.AudioStopped()

	if p.synth == nil {
		return
	}
	rc, err := p.synth.Stream(t.ctx, text)
	if err != nil {
		p.logger.Errorf("session %s: synthesis failed: %v", p.sess.ID, err)
		return
	}
	defer rc.Close()

	buf := make([]byte, p.cfg.ChunkSize)
	first := true
	for {
		if p.sess.Interrupted() {
			return
		}
		n, rerr := rc.Read(buf)
		if n > 0 {
			if p.sess.Interrupted() {
				return
			}
			if err := p.pub.SendAudioChunk(buf[:n]); err != nil {
				p.logger.Warnf("session %s: send audio: %v", p.sess.ID, err)
				return
			}
			p.metrics.RecordAudioChunk()
			if first {
				first = false
				p.audio.AudioStarted()
				t.markStarted()
			}
			p.audio.AudioSent()
		}
		if errors.Is(rerr, io.EOF) {
			return
		}
		if rerr != nil {
			p.logger.Warnf("session %s: audio stream: %v", p.sess.ID, rerr)
			return
		}
	}
}

func (t *turn) audio() chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.audioDone
}

func (t *turn) spoken(fallback string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.announced {
		return t.speech
	}
	return fallback
}

// Abandon implements conversation.DispatchTurn.
func (t *turn) Abandon() {
	t.stopWatch()
	if done := t.audio(); done != nil {
		<-done
	}
}

// Finish implements conversation.DispatchTurn.
func (t *turn) Finish(ctx context.Context, reply conversation.Reply) conversation.Outcome {
	t.stopWatch()
	p := t.p

	actions := p.layout.Prepare(reply.BoardActions)
	p.sess.SetMode(reply.TutorState)

	t.cycle.Try(ctx, runtime.DRAW)
	t.announce(reply.Speech)

	pending := p.render(ctx, actions)
	batches := make([]*render.StrokeBatch, 0, len(pending))
	for _, item := range pending {
		if item.batch != nil {
			batches = append(batches, item.batch)
		}
	}
	Pace(batches, t.spoken(reply.Speech), p.cfg)

	t.waitStarted(ctx)

	sent := make([]board.Action, 0, len(pending))
	interrupted := false
	for i, item := range pending {
		if p.sess.Interrupted() {
			interrupted = true
			for range pending[i:] {
				p.metrics.RecordStrokeBatch(false)
			}
			break
		}
		var err error
		if item.batch != nil {
			err = p.pub.SendStrokes(*item.batch)
		} else {
			err = p.pub.SendBoardAction(item.action)
		}
		if err != nil {
			p.logger.Warnf("session %s: send board output: %v", p.sess.ID, err)
			break
		}
		if item.batch != nil {
			p.metrics.RecordStrokeBatch(true)
		}
		sent = append(sent, item.action)
	}
	p.layout.Commit(sent)

	p.sess.SetWaitForStudent(reply.WaitForStudent)
	if err := p.pub.SendStateUpdate(string(reply.TutorState), reply.WaitForStudent); err != nil {
		p.logger.Warnf("session %s: send state_update: %v", p.sess.ID, err)
	}

	if done := t.audio(); done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}

	outcome := conversation.OutcomeComplete
	if interrupted || p.sess.Interrupted() {
		outcome = conversation.OutcomeInterrupted
		t.cycle.Try(ctx, runtime.INTERRUPT)
	}
	t.cycle.Try(ctx, runtime.FINISH)
	return outcome
}

func (t *turn) waitStarted(ctx context.Context) {
	if t.audio() == nil {
		return
	}
	timer := time.NewTimer(t.p.cfg.AudioStartWait)
	defer timer.Stop()
	select {
	case <-t.started:
	case <-timer.C:
	case <-ctx.Done():
	}
}

// render turns write actions into stroke batches; other actions pass through.
func (p *Pipeline) render(ctx context.Context, actions []board.Action) []pendingItem {
	width := float64(p.sess.Cursor().Width)
	out := make([]pendingItem, 0, len(actions))
	for _, a := range actions {
		if !a.IsWrite() || a.Position == nil {
			out = append(out, pendingItem{action: a})
			continue
		}
		in := render.Input{
			Content: a.Content,
			Color:   a.Color,
			Origin:  render.Origin{X: a.Position.X, Y: a.Position.Y},
		}
		if a.Format == board.FormatLatex {
			in.MaxWidth = math.Max(p.cfg.MinLatexWidth, width-180)
		}
		batch, err := p.renderers.For(a.Format).Render(ctx, in)
		if err != nil {
			p.logger.Warnf("session %s: render %q: %v", p.sess.ID, a.Content, err)
			batch, _ = render.Handwriting{}.Render(ctx, in)
		}
		if batch.AnimationSpeed <= 0 {
			batch.AnimationSpeed = 1
		}
		out = append(out, pendingItem{action: a, batch: &batch})
	}
	return out
}

// Pace spreads the estimated speaking time evenly over the batches and sets
// each batch's animation speed so drawing ends about when speech does.
func Pace(batches []*render.StrokeBatch, speech string, cfg Config) {
	words := len(strings.Fields(speech))
	if len(batches) == 0 || words == 0 {
		return
	}
	duration := math.Max(cfg.MinSpeech.Seconds(), float64(words)/cfg.WordsPerSecond)
	share := duration / float64(len(batches))
	for _, b := range batches {
		points := b.PointCount()
		if points == 0 {
			continue
		}
		speed := math.Round(float64(points)/(share*60*2)*100) / 100
		b.AnimationSpeed = math.Max(1, speed)
	}
}
