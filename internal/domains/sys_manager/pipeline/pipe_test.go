package pipeline

import (
	"bytes"
	"context"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xpanvictor/xtutor/internal/domains/board"
	"github.com/xpanvictor/xtutor/internal/domains/conversation"
	"github.com/xpanvictor/xtutor/internal/domains/session"
	"github.com/xpanvictor/xtutor/internal/domains/sys_manager/runtime"
	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	xio "github.com/xpanvictor/xtutor/pkg/io"
	"github.com/xpanvictor/xtutor/pkg/io/render"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []any
}

func (r *recordingSender) Send(msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingSender) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.msgs))
	for _, m := range r.msgs {
		switch v := m.(type) {
		case xio.TextMsg:
			out = append(out, v.Type)
		case xio.AudioChunkMsg:
			out = append(out, v.Type)
		case xio.StrokesMsg:
			out = append(out, v.Type)
		case xio.BoardActionMsg:
			out = append(out, v.Type)
		case xio.StateUpdateMsg:
			out = append(out, v.Type)
		}
	}
	return out
}

func (r *recordingSender) find(kind string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, m := range r.msgs {
		switch v := m.(type) {
		case xio.TextMsg:
			if v.Type == kind {
				out = append(out, v)
			}
		case xio.StrokesMsg:
			if kind == xio.MsgStrokes {
				out = append(out, v)
			}
		case xio.BoardActionMsg:
			if kind == xio.MsgBoardAction {
				out = append(out, v)
			}
		case xio.StateUpdateMsg:
			if kind == xio.MsgStateUpdate {
				out = append(out, v)
			}
		case xio.AudioChunkMsg:
			if kind == xio.MsgAudioChunk {
				out = append(out, v)
			}
		}
	}
	return out
}

func indexOf(list []string, kind string) int {
	for i, k := range list {
		if k == kind {
			return i
		}
	}
	return -1
}

type fakeSynth struct {
	audio []byte
	calls atomic.Int32
}

func (f *fakeSynth) Stream(_ context.Context, _ string) (io.ReadCloser, error) {
	f.calls.Add(1)
	return io.NopCloser(bytes.NewReader(f.audio)), nil
}

type fakeRenderer struct {
	mu     sync.Mutex
	inputs []render.Input
	points int
}

func (f *fakeRenderer) Render(_ context.Context, in render.Input) (render.StrokeBatch, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()
	pts := make([]render.Point, f.points)
	return render.StrokeBatch{
		Strokes:  []render.Stroke{{Points: pts}},
		Position: in.Origin,
	}, nil
}

type fakeObserver struct {
	started, sent, stopped atomic.Int32
}

func (f *fakeObserver) AudioStarted() { f.started.Add(1) }
func (f *fakeObserver) AudioSent()    { f.sent.Add(1) }
func (f *fakeObserver) AudioStopped() { f.stopped.Add(1) }

type fixture struct {
	sess     *session.Session
	sender   *recordingSender
	synth    *fakeSynth
	renderer *fakeRenderer
	observer *fakeObserver
	pipe     *Pipeline
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sess:     session.New("s1"),
		sender:   &recordingSender{},
		synth:    &fakeSynth{audio: bytes.Repeat([]byte{1}, 5000)},
		renderer: &fakeRenderer{points: 10},
		observer: &fakeObserver{},
	}
	cfg := DefaultConfig()
	cfg.AudioStartWait = time.Second
	f.pipe = New(
		f.sess,
		board.NewTracker(f.sess),
		f.synth,
		render.Set{Text: f.renderer, Math: f.renderer},
		xio.New(f.sender),
		f.observer,
		cfg,
		Logger.NewNop(),
		metrics.NewMetrics(),
	)
	return f
}

func generatingCycle(t *testing.T) *runtime.Cycle {
	t.Helper()
	c := runtime.NewCycle("s1", Logger.NewNop(), nil)
	require.NoError(t, c.Fire(context.Background(), runtime.GENERATE))
	return c
}

func TestSpeechGoesOutBeforeReplyCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cycle := generatingCycle(t)
	ready := conversation.NewSpeechReady()

	turn := f.pipe.Begin(ctx, cycle, ready)
	ready.Resolve("Calculus is the math of change.")

	require.Eventually(t, func() bool {
		return len(f.sender.find(xio.MsgSpeechText)) == 1 && cycle.Phase() == runtime.STREAMING_SPEECH
	}, time.Second, 5*time.Millisecond)

	outcome := turn.Finish(ctx, conversation.Reply{
		Speech: "Calculus is the math of change.",
		BoardActions: []board.Action{
			{Type: board.ActionWrite, Content: "Calculus", Position: &board.Point{X: 80, Y: 140}},
		},
		TutorState:     session.ModeDemonstrating,
		WaitForStudent: true,
	})

	assert.Equal(t, conversation.OutcomeComplete, outcome)
	assert.True(t, cycle.Done())

	kinds := f.sender.types()
	assert.Equal(t, 0, indexOf(kinds, xio.MsgSpeechText))
	first := indexOf(kinds, xio.MsgAudioChunk)
	strokes := indexOf(kinds, xio.MsgStrokes)
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, strokes)
	assert.Less(t, first, strokes)
	assert.Len(t, f.sender.find(xio.MsgStrokes), 1)
	assert.Len(t, f.sender.find(xio.MsgAudioChunk), 2)
	assert.Len(t, f.sender.find(xio.MsgStateUpdate), 1)

	// the same speech is never announced twice
	assert.Len(t, f.sender.find(xio.MsgSpeechText), 1)
	assert.Equal(t, int32(1), f.synth.calls.Load())

	assert.GreaterOrEqual(t, f.sess.Cursor().NextY, 190.0)
	assert.Equal(t, session.ModeDemonstrating, f.sess.Mode())
	assert.True(t, f.sess.WaitForStudent())

	hist := f.sess.History()
	require.Len(t, hist, 1)
	assert.Equal(t, session.RoleAssistant, hist[0].Role)

	assert.Equal(t, int32(1), f.observer.started.Load())
	assert.Equal(t, int32(2), f.observer.sent.Load())
	assert.Equal(t, int32(1), f.observer.stopped.Load())
}

func TestLateSpeechIsAnnouncedOnFinish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cycle := generatingCycle(t)

	turn := f.pipe.Begin(ctx, cycle, conversation.NewSpeechReady())
	outcome := turn.Finish(ctx, conversation.Reply{Speech: "Hello there.", TutorState: session.ModeListening})

	assert.Equal(t, conversation.OutcomeComplete, outcome)
	assert.True(t, cycle.Done())
	speech := f.sender.find(xio.MsgSpeechText)
	require.Len(t, speech, 1)
	assert.Equal(t, "Hello there.", speech[0].(xio.TextMsg).Text)
	assert.Empty(t, f.sender.find(xio.MsgStrokes))
}

func TestInterruptedTurnSkipsBoard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cycle := generatingCycle(t)

	turn := f.pipe.Begin(ctx, cycle, conversation.NewSpeechReady())
	f.sess.Interrupt()
	outcome := turn.Finish(ctx, conversation.Reply{
		Speech: "Let me draw this.",
		BoardActions: []board.Action{
			{Type: board.ActionWrite, Content: "y = mx + b", Position: &board.Point{X: 80, Y: 140}},
		},
		TutorState: session.ModeGuiding,
	})

	assert.Equal(t, conversation.OutcomeInterrupted, outcome)
	assert.True(t, cycle.Done())
	assert.Empty(t, f.sender.find(xio.MsgStrokes))
	assert.Empty(t, f.sender.find(xio.MsgAudioChunk))
	assert.Len(t, f.sender.find(xio.MsgStateUpdate), 1)
	assert.Equal(t, 0.0, f.sess.Cursor().NextY)
}

func TestNonWriteActionsPassThrough(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	turn := f.pipe.Begin(ctx, generatingCycle(t), conversation.NewSpeechReady())
	turn.Finish(ctx, conversation.Reply{
		BoardActions: []board.Action{{Type: board.ActionClear}},
		TutorState:   session.ModeListening,
	})

	actions := f.sender.find(xio.MsgBoardAction)
	require.Len(t, actions, 1)
	assert.Equal(t, board.ActionClear, actions[0].(xio.BoardActionMsg).Action.(board.Action).Type)
	assert.Empty(t, f.sender.find(xio.MsgSpeechText))
}

func TestLatexWidthFollowsBoard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	turn := f.pipe.Begin(ctx, generatingCycle(t), conversation.NewSpeechReady())
	turn.Finish(ctx, conversation.Reply{
		BoardActions: []board.Action{
			{Type: board.ActionWrite, Content: `\frac{1}{2}`, Format: board.FormatLatex, Position: &board.Point{X: 80, Y: 140}},
			{Type: board.ActionWrite, Content: "half", Position: &board.Point{X: 80, Y: 200}},
		},
	})

	require.Len(t, f.renderer.inputs, 2)
	assert.Equal(t, float64(session.DefaultWidth-180), f.renderer.inputs[0].MaxWidth)
	assert.Zero(t, f.renderer.inputs[1].MaxWidth)

	f.sess.SetBoardSize(300, 600)
	f.renderer.inputs = nil
	turn = f.pipe.Begin(ctx, generatingCycle(t), conversation.NewSpeechReady())
	turn.Finish(ctx, conversation.Reply{
		BoardActions: []board.Action{
			{Type: board.ActionWrite, Content: `x^2`, Format: board.FormatLatex},
		},
	})
	require.Len(t, f.renderer.inputs, 1)
	assert.Equal(t, 240.0, f.renderer.inputs[0].MaxWidth)
}

func TestAbandonSendsNothing(t *testing.T) {
	f := newFixture(t)
	turn := f.pipe.Begin(context.Background(), generatingCycle(t), conversation.NewSpeechReady())
	turn.Abandon()
	assert.Empty(t, f.sender.types())
}

func batchWith(points int) *render.StrokeBatch {
	return &render.StrokeBatch{
		Strokes:        []render.Stroke{{Points: make([]render.Point, points)}},
		AnimationSpeed: 1,
	}
}

func TestPace(t *testing.T) {
	cfg := DefaultConfig()
	twelve := "one two three four five six seven eight nine ten eleven twelve"

	// twelve words at 2.4 per second is five seconds for one batch
	b := batchWith(1200)
	Pace([]*render.StrokeBatch{b}, twelve, cfg)
	assert.Equal(t, 2.0, b.AnimationSpeed)

	a, c := batchWith(1200), batchWith(1200)
	Pace([]*render.StrokeBatch{a, c}, twelve, cfg)
	assert.Equal(t, 4.0, a.AnimationSpeed)
	assert.Equal(t, 4.0, c.AnimationSpeed)

	slow := batchWith(10)
	Pace([]*render.StrokeBatch{slow}, twelve, cfg)
	assert.Equal(t, 1.0, slow.AnimationSpeed)

	// short speech still counts as a second and a half
	short := batchWith(360)
	Pace([]*render.StrokeBatch{short}, "hi", cfg)
	assert.Equal(t, 2.0, short.AnimationSpeed)

	silent := batchWith(5000)
	Pace([]*render.StrokeBatch{silent}, "", cfg)
	assert.Equal(t, 1.0, silent.AnimationSpeed)
}
