package stt

import (
	"context"
	"errors"
	"strings"
)

var ErrStreamClosed = errors.New("stt stream closed")

type EventKind string

const (
	EventSpeechStarted EventKind = "speech_started"
	EventTranscript    EventKind = "transcript"
)

type Event struct {
	Kind       EventKind
	Text       string
	Confidence float64
	Words      int
	IsFinal    bool
}

// Stream is one live recognition session. Events is closed once the remote
// side ends the stream or Close is called.
type Stream interface {
	SendAudio(data []byte) error
	KeepAlive() error
	// CloseSend asks the provider to flush pending results and finish.
	CloseSend() error
	Events() <-chan Event
	Close() error
}

type Recognizer interface {
	Connect(ctx context.Context) (Stream, error)
}

// Filter discards transcripts that are likely noise or echo.
type Filter struct {
	MinConfidence        float64
	SingleWordConfidence float64
	MinWords             int
}

func (f Filter) Accept(ev Event) bool {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return false
	}
	words := ev.Words
	if words == 0 {
		words = len(strings.Fields(text))
	}
	if words < f.MinWords {
		return false
	}
	if ev.Confidence < f.MinConfidence {
		return false
	}
	if words == 1 && ev.Confidence < f.SingleWordConfidence {
		return false
	}
	return true
}
