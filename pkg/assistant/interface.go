package assistant

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	USER      Role = "user"
	ASSISTANT Role = "assistant"
	SYSTEM    Role = "system"
)

var ErrNoMessages = errors.New("assistant: no messages to send")

type AssistantMessage struct {
	Content   string
	CreatedAt time.Time
	MsgRole   Role
}

// StreamInput is one generation request. ImageBase64 (PNG, no data-URL
// prefix) is attached to the last user message when present.
type StreamInput struct {
	System      string
	Msgs        []AssistantMessage
	ImageBase64 string
}

// Streamer produces a reply incrementally. onDelta receives every text
// fragment in order, on the caller's goroutine, before Stream returns.
type Streamer interface {
	Stream(ctx context.Context, input StreamInput, onDelta func(delta string)) error
}
