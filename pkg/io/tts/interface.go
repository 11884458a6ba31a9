package tts

import (
	"context"
	"errors"
	"io"
)

var ErrEmptyText = errors.New("tts: empty text")

// Synthesizer streams encoded audio for text. The caller must Close the body.
type Synthesizer interface {
	Stream(ctx context.Context, text string) (io.ReadCloser, error)
}
