package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xpanvictor/xtutor/internal/domains/session"
	"github.com/xpanvictor/xtutor/internal/domains/sys_manager/runtime"
	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/assistant"
)

var (
	// ErrSkipped is returned when a request's guard declined to run.
	ErrSkipped = errors.New("generation skipped")
)

// Outcome of dispatching one reply.
type Outcome string

const (
	OutcomeComplete    Outcome = "complete"
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeSkipped     Outcome = "skipped"
)

// Dispatcher delivers a reply to the client. Begin is called before the
// model starts streaming so the speech can go out as soon as it is ready.
type Dispatcher interface {
	Begin(ctx context.Context, cycle *runtime.Cycle, ready *SpeechReady) DispatchTurn
}

type DispatchTurn interface {
	// Finish sends everything that was not sent early and blocks until the
	// audio for this reply has drained or been cut off.
	Finish(ctx context.Context, reply Reply) Outcome
	// Abandon drops the turn without sending anything further.
	Abandon()
}

type Request struct {
	// Utterance becomes the user turn; empty means reply to the history as is.
	Utterance string
	// Synthetic marks a turn the student did not say. It is removed again when
	// the model has nothing to add.
	Synthetic bool
	// Guard runs once the lock is held; returning false skips the request.
	Guard func() bool
}

// Coordinator runs at most one generation per session at a time. Callers
// block on the lock, which keeps replies in the order their triggers arrived.
type Coordinator struct {
	sess       *session.Session
	llm        assistant.Streamer
	dispatcher Dispatcher
	system     string
	logger     *Logger.Logger
	metrics    *metrics.Metrics

	mu   sync.Mutex
	busy atomic.Bool
}

func NewCoordinator(
	sess *session.Session,
	llm assistant.Streamer,
	dispatcher Dispatcher,
	system string,
	logger *Logger.Logger,
	m *metrics.Metrics,
) *Coordinator {
	return &Coordinator{
		sess:       sess,
		llm:        llm,
		dispatcher: dispatcher,
		system:     system,
		logger:     logger,
		metrics:    m,
	}
}

// Busy reports whether a generation holds the lock.
func (c *Coordinator) Busy() bool {
	return c.busy.Load()
}

func (c *Coordinator) Respond(ctx context.Context, req Request) (Reply, error) {
	c.mu.Lock()
	c.busy.Store(true)
	defer func() {
		c.busy.Store(false)
		c.mu.Unlock()
	}()

	if req.Guard != nil && !req.Guard() {
		return Reply{}, ErrSkipped
	}
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}

	started := time.Now()
	c.sess.ClearInterrupt()
	cycle := runtime.NewCycle(c.sess.ID, c.logger, c.metrics)
	_ = cycle.Fire(ctx, runtime.GENERATE)

	utterance := strings.TrimSpace(req.Utterance)
	if utterance != "" {
		c.sess.AddUserTurn(utterance)
	}

	ready := NewSpeechReady()
	turn := c.dispatcher.Begin(ctx, cycle, ready)
	raw := c.generate(ctx, ready)

	reply, ok := ParseReply(raw)
	if !ok {
		c.logger.Warnf("session %s: reply was not valid JSON, speaking raw text (%d bytes)", c.sess.ID, len(raw))
	}

	if req.Synthetic && reply.Empty() {
		turn.Abandon()
		c.sess.RemoveLastTurnIf(session.RoleUser, utterance)
		cycle.Try(ctx, runtime.FINISH)
		c.metrics.RecordGeneration(string(OutcomeSkipped), time.Since(started))
		return reply, nil
	}

	outcome := turn.Finish(ctx, reply)
	c.metrics.RecordGeneration(string(outcome), time.Since(started))
	return reply, nil
}

// generate streams the model output, resolving ready as soon as the speech
// field closes. Transport errors keep whatever text already arrived.
func (c *Coordinator) generate(ctx context.Context, ready *SpeechReady) string {
	input := c.buildInput()
	extractor := NewSpeechExtractor()
	var raw strings.Builder

	err := c.llm.Stream(ctx, input, func(delta string) {
		raw.WriteString(delta)
		if speech, ok := extractor.Feed(delta); ok {
			ready.Resolve(speech)
		}
	})
	if err != nil {
		c.logger.Errorf("session %s: model stream: %v", c.sess.ID, err)
	}
	return raw.String()
}

func (c *Coordinator) buildInput() assistant.StreamInput {
	turns := c.sess.Messages()
	msgs := make([]assistant.AssistantMessage, 0, len(turns))
	for _, t := range turns {
		role := assistant.USER
		if t.Role == session.RoleAssistant {
			role = assistant.ASSISTANT
		}
		msgs = append(msgs, assistant.NewMessage(role, t.Text, t.At))
	}
	var image string
	if snap, ok := c.sess.LatestSnapshot(); ok {
		image = snap.ImageBase64
	}
	return assistant.NewStreamInput(c.system, msgs, image)
}
