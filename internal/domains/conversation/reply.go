package conversation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xpanvictor/xtutor/internal/domains/board"
	"github.com/xpanvictor/xtutor/internal/domains/session"
)

var fence = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// Reply is the structured answer the model produces for one turn.
type Reply struct {
	Speech         string
	BoardActions   []board.Action
	TutorState     session.Mode
	WaitForStudent bool
}

// Empty reports a reply with nothing to say or draw.
func (r Reply) Empty() bool {
	return strings.TrimSpace(r.Speech) == "" && len(r.BoardActions) == 0
}

// FallbackReply speaks raw model output as-is when it is not valid JSON.
func FallbackReply(raw string) Reply {
	return Reply{
		Speech:         strings.TrimSpace(raw),
		BoardActions:   []board.Action{},
		TutorState:     session.ModeListening,
		WaitForStudent: true,
	}
}

// ParseReply decodes model output, tolerating ```json fences and loosely
// typed fields. ok is false when the fallback was used.
func ParseReply(raw string) (reply Reply, ok bool) {
	body := strings.TrimSpace(raw)
	if m := fence.FindStringSubmatch(raw); m != nil {
		body = m[1]
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(body), &obj); err != nil || obj == nil {
		return FallbackReply(raw), false
	}

	reply = Reply{
		Speech:         asString(obj["speech"]),
		BoardActions:   []board.Action{},
		TutorState:     session.ParseMode(asString(obj["tutor_state"])),
		WaitForStudent: asBool(obj["wait_for_student"]),
	}
	if list, isList := obj["board_actions"].([]any); isList {
		for _, item := range list {
			if a, valid := coerceAction(item); valid {
				reply.BoardActions = append(reply.BoardActions, a)
			}
		}
	}
	return reply, true
}

func coerceAction(v any) (board.Action, bool) {
	m, isMap := v.(map[string]any)
	if !isMap {
		return board.Action{}, false
	}
	a := board.Action{
		Type:    strings.ToLower(asString(m["type"])),
		Content: asString(m["content"]),
		Color:   asString(m["color"]),
	}
	if a.Type == "" {
		if a.Content == "" {
			return board.Action{}, false
		}
		a.Type = board.ActionWrite
	}
	if !a.IsWrite() {
		return a, true
	}

	a.Format = board.FormatText
	if strings.EqualFold(asString(m["format"]), board.FormatLatex) {
		a.Format = board.FormatLatex
	}
	if a.Color == "" {
		a.Color = board.DefaultColor
	}
	pos := board.Point{X: board.DefaultX, Y: board.DefaultY}
	if p, isMap := m["position"].(map[string]any); isMap {
		if x, valid := asNumber(p["x"]); valid {
			pos.X = x
		}
		if y, valid := asNumber(p["y"]); valid {
			pos.Y = y
		}
	}
	a.Position = &pos
	return a, true
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	}
	return 0, false
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	case float64:
		return t != 0
	}
	return false
}
