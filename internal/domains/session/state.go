package session

import (
	"sync"
	"sync/atomic"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Mode string

const (
	ModeListening     Mode = "listening"
	ModeGuiding       Mode = "guiding"
	ModeDemonstrating Mode = "demonstrating"
	ModeEvaluating    Mode = "evaluating"
)

// ParseMode falls back to listening for anything unrecognised.
func ParseMode(s string) Mode {
	switch m := Mode(s); m {
	case ModeListening, ModeGuiding, ModeDemonstrating, ModeEvaluating:
		return m
	}
	return ModeListening
}

const (
	MaxSnapshots     = 10
	DefaultWidth     = 1200
	DefaultHeight    = 700
	DefaultX         = 80
	nearlyFullMargin = 150
	minBoardSide     = 200
)

const (
	hintHasContent = "[Whiteboard: has existing content. Your writing will be placed below it automatically; always use x=80, y=140 as your starting position.]"
	hintNearlyFull = "[Whiteboard: nearly full, the board will auto-clear on your next write. Write at your normal starting position x=80, y=140.]"
)

type Turn struct {
	Role Role
	Text string
	At   time.Time
}

type Snapshot struct {
	ImageBase64 string
	At          time.Time
}

// Cursor tracks where the next block of writing may start on the board.
type Cursor struct {
	NextY  float64
	NextX  float64
	Width  int
	Height int
}

type Session struct {
	ID string

	mu              sync.RWMutex
	turns           []Turn
	snapshots       []Snapshot
	mode            Mode
	subject         string
	cursor          Cursor
	waitForStudent  bool
	lastInteraction time.Time
	lastReview      time.Time

	interrupted atomic.Bool
	now         func() time.Time
}

func New(id string) *Session {
	return NewWithClock(id, time.Now)
}

func NewWithClock(id string, now func() time.Time) *Session {
	return &Session{
		ID:   id,
		mode: ModeListening,
		cursor: Cursor{
			NextX:  DefaultX,
			Width:  DefaultWidth,
			Height: DefaultHeight,
		},
		now: now,
	}
}

func (s *Session) Now() time.Time { return s.now() }

func (s *Session) AppendTurn(role Role, text string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, Turn{Role: role, Text: text, At: at})
}

func (s *Session) AddUserTurn(text string) {
	s.AppendTurn(RoleUser, text, s.now())
}

func (s *Session) AddAssistantTurn(text string) {
	s.AppendTurn(RoleAssistant, text, s.now())
}

// RemoveLastTurnIf drops the newest turn when it matches role and text.
func (s *Session) RemoveLastTurnIf(role Role, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.turns)
	if n == 0 || s.turns[n-1].Role != role || s.turns[n-1].Text != text {
		return false
	}
	s.turns = s.turns[:n-1]
	return true
}

// History returns a copy of every turn in append order.
func (s *Session) History() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Messages is the context handed to the model: the history with the
// current board hint attached to the newest user turn.
func (s *Session) Messages() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)

	hint := s.boardHintLocked()
	if hint == "" {
		return out
	}
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role == RoleUser {
			out[i].Text = out[i].Text + "\n\n" + hint
			break
		}
	}
	return out
}

func (s *Session) AddSnapshot(image string, at time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, Snapshot{ImageBase64: image, At: at})
	if over := len(s.snapshots) - MaxSnapshots; over > 0 {
		s.snapshots = append([]Snapshot(nil), s.snapshots[over:]...)
	}
	return len(s.snapshots)
}

func (s *Session) LatestSnapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.snapshots) == 0 {
		return Snapshot{}, false
	}
	return s.snapshots[len(s.snapshots)-1], true
}

func (s *Session) SnapshotCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}

func (s *Session) BoardHint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boardHintLocked()
}

func (s *Session) boardHintLocked() string {
	c := s.cursor
	if c.NextY <= 0 {
		return ""
	}
	if float64(c.Height)-c.NextY < nearlyFullMargin {
		return hintNearlyFull
	}
	return hintHasContent
}

func (s *Session) Cursor() Cursor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

func (s *Session) SetCursor(c Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = c
}

// SetBoardSize ignores dimensions too small to be a real canvas.
func (s *Session) SetBoardSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if width > minBoardSide {
		s.cursor.Width = width
	}
	if height > minBoardSide {
		s.cursor.Height = height
	}
}

func (s *Session) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Session) SetMode(m Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
}

func (s *Session) Subject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.subject
}

func (s *Session) SetSubject(subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = subject
}

func (s *Session) WaitForStudent() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.waitForStudent
}

func (s *Session) SetWaitForStudent(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waitForStudent = v
}

// Touch records student activity; synthetic turns never call it.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastInteraction = s.now()
}

func (s *Session) LastInteraction() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastInteraction
}

func (s *Session) LastReview() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReview
}

func (s *Session) MarkReviewed(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReview = at
}

// Interrupt raises the flag every dispatch step checks before sending.
func (s *Session) Interrupt() { s.interrupted.Store(true) }
func (s *Session) ClearInterrupt() { s.interrupted.Store(false) }
func (s *Session) Interrupted() bool { return s.interrupted.Load() }
