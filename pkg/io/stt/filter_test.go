package stt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterAccept(t *testing.T) {
	f := Filter{MinConfidence: 0.6, SingleWordConfidence: 0.85, MinWords: 1}

	cases := []struct {
		name string
		ev   Event
		want bool
	}{
		{"empty", Event{Text: "  ", Confidence: 0.99}, false},
		{"low confidence", Event{Text: "what is a limit", Confidence: 0.4}, false},
		{"phrase", Event{Text: "what is a limit", Confidence: 0.7}, true},
		{"single word weak", Event{Text: "okay", Confidence: 0.7}, false},
		{"single word strong", Event{Text: "okay", Confidence: 0.9}, true},
		{"explicit word count", Event{Text: "two words", Words: 2, Confidence: 0.61}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, f.Accept(tc.ev))
		})
	}

	strict := Filter{MinConfidence: 0.6, MinWords: 3}
	assert.False(t, strict.Accept(Event{Text: "hello there", Confidence: 0.99}))
}
