package runtime

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/pkg/Logger"
)

// Cycle is the state machine of one reply, from the utterance that triggers
// it to the last stroke batch:
//
//	awaiting_utterance -> generating -> streaming_speech -> dispatching_board -> complete
//
// generating may skip straight to dispatching_board when the speech was not
// announced early, and interrupted is reachable from both output phases.
type Cycle struct {
	SessionID    string
	StateMachine *fsm.FSM
	logger       *Logger.Logger
}

func NewCycle(sessionID string, logger *Logger.Logger, m *metrics.Metrics) *Cycle {
	c := &Cycle{SessionID: sessionID, logger: logger}
	c.StateMachine = fsm.NewFSM(
		string(AWAITING_UTTERANCE),
		fsm.Events{
			{Name: string(GENERATE), Src: []string{string(AWAITING_UTTERANCE)}, Dst: string(GENERATING)},
			{Name: string(SPEAK), Src: []string{string(GENERATING)}, Dst: string(STREAMING_SPEECH)},
			{Name: string(DRAW), Src: []string{string(GENERATING), string(STREAMING_SPEECH)}, Dst: string(DISPATCHING_BOARD)},
			{Name: string(INTERRUPT), Src: []string{string(STREAMING_SPEECH), string(DISPATCHING_BOARD)}, Dst: string(INTERRUPTED)},
			{Name: string(FINISH), Src: []string{string(GENERATING), string(DISPATCHING_BOARD), string(INTERRUPTED)}, Dst: string(COMPLETE)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				logger.Debugf("session %s cycle %s -> %s", sessionID, e.Src, e.Dst)
				m.RecordTransition(e.Src, e.Dst)
			},
		},
	)
	return c
}

func (c *Cycle) Phase() CyclePhase {
	return CyclePhase(c.StateMachine.Current())
}

// Fire applies an event. Invalid transitions are returned as errors and
// leave the phase unchanged.
func (c *Cycle) Fire(ctx context.Context, ev CycleEvent) error {
	if err := c.StateMachine.Event(ctx, string(ev)); err != nil {
		return fmt.Errorf("cycle %s: %w", ev, err)
	}
	return nil
}

// Try fires ev only when the current phase allows it.
func (c *Cycle) Try(ctx context.Context, ev CycleEvent) bool {
	if !c.StateMachine.Can(string(ev)) {
		return false
	}
	if err := c.Fire(ctx, ev); err != nil {
		c.logger.Debugf("session %s: %v", c.SessionID, err)
		return false
	}
	return true
}

func (c *Cycle) Done() bool {
	return c.Phase() == COMPLETE
}
