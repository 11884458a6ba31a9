package board

import (
	"math"
	"strings"

	"github.com/xpanvictor/xtutor/internal/domains/session"
)

const (
	ActionWrite = "write"
	ActionClear = "clear"

	FormatText  = "text"
	FormatLatex = "latex"

	DefaultColor = "#000000"
	DefaultX     = 80
	DefaultY     = 140

	minX        = 20
	rightMargin = 220
	sideMargin  = 160
	minUsable   = 360
	charWidth   = 13
	minChars    = 18
	maxChars    = 80
	lineStep    = 52
	lineHeight  = 50
	blockGap    = 20
	minLimit    = 280
	bottomPad   = 20
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Action is one drawing instruction from the model.
type Action struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Format   string `json:"format,omitempty"`
	Position *Point `json:"position,omitempty"`
	Color    string `json:"color,omitempty"`
}

func (a Action) IsWrite() bool { return a.Type == ActionWrite }

// CursorStore is the part of the session the tracker reads and moves.
type CursorStore interface {
	Cursor() session.Cursor
	SetCursor(session.Cursor)
}

// Tracker keeps model output on the visible board and below what is
// already drawn. Callers serialize access (the generation lock does).
type Tracker struct {
	store CursorStore
}

func NewTracker(store CursorStore) *Tracker {
	return &Tracker{store: store}
}

// Prepare normalizes then rebases a batch before rendering.
func (t *Tracker) Prepare(actions []Action) []Action {
	return t.Rebase(t.Normalize(actions))
}

// Normalize wraps long lines, fills defaults and clamps x into the board.
func (t *Tracker) Normalize(actions []Action) []Action {
	c := t.store.Cursor()
	maxX := math.Max(DefaultX, float64(c.Width-rightMargin))
	usable := math.Max(minUsable, float64(c.Width-sideMargin))
	width := int(math.Max(minChars, math.Min(maxChars, math.Floor(usable/charWidth))))

	out := make([]Action, 0, len(actions))
	for _, a := range actions {
		if !a.IsWrite() {
			out = append(out, a)
			continue
		}
		if strings.TrimSpace(a.Content) == "" {
			continue
		}
		pos := Point{X: DefaultX, Y: DefaultY}
		if a.Position != nil {
			pos = *a.Position
		}
		pos.X = math.Min(math.Max(pos.X, minX), maxX)
		if a.Color == "" {
			a.Color = DefaultColor
		}
		if a.Format == "" {
			a.Format = FormatText
		}

		y := pos.Y
		for _, raw := range strings.Split(a.Content, "\n") {
			for _, line := range wrap(raw, width) {
				next := a
				next.Content = line
				next.Position = &Point{X: pos.X, Y: y}
				out = append(out, next)
				y += lineStep
			}
		}
	}
	return out
}

// Rebase shifts writes below the cursor, or clears the board when the block
// would not fit.
func (t *Tracker) Rebase(actions []Action) []Action {
	c := t.store.Cursor()
	minY, maxY, ok := yBounds(actions)
	if !ok || c.NextY <= 0 {
		return actions
	}
	target := c.NextY + blockGap
	if minY >= target {
		return actions
	}

	limit := math.Max(minLimit, float64(c.Height-bottomPad))
	if target+(maxY-minY) > limit {
		c.NextY = 0
		c.NextX = DefaultX
		t.store.SetCursor(c)
		return append([]Action{{Type: ActionClear}}, actions...)
	}

	shift := target - minY
	out := make([]Action, len(actions))
	for i, a := range actions {
		if a.IsWrite() && a.Position != nil {
			a.Position = &Point{X: a.Position.X, Y: a.Position.Y + shift}
		}
		out[i] = a
	}
	return out
}

// Commit advances the cursor for the actions that actually reached the client.
func (t *Tracker) Commit(sent []Action) {
	c := t.store.Cursor()
	for _, a := range sent {
		switch {
		case a.Type == ActionClear:
			c.NextY = 0
			c.NextX = DefaultX
		case a.IsWrite() && a.Position != nil:
			c.NextY = math.Max(c.NextY, a.Position.Y+lineHeight)
		}
	}
	t.store.SetCursor(c)
}

func yBounds(actions []Action) (minY, maxY float64, ok bool) {
	for _, a := range actions {
		if !a.IsWrite() || a.Position == nil {
			continue
		}
		y := a.Position.Y
		if !ok {
			minY, maxY, ok = y, y, true
			continue
		}
		minY = math.Min(minY, y)
		maxY = math.Max(maxY, y)
	}
	return minY, maxY, ok
}

// wrap breaks text on whitespace into lines of at most width runes; single
// words longer than width keep their own line.
func wrap(text string, width int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	current := words[0]
	for _, w := range words[1:] {
		if len([]rune(current))+1+len([]rune(w)) <= width {
			current += " " + w
			continue
		}
		lines = append(lines, current)
		current = w
	}
	return append(lines, current)
}
