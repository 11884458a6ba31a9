package conversation

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"
)

var speechKey = regexp.MustCompile(`"speech"\s*:\s*"`)

// SpeechExtractor watches a reply as it streams in and reports the value of
// its "speech" field the moment the closing quote arrives.
type SpeechExtractor struct {
	buf   strings.Builder
	start int // index just after the opening quote, -1 until the key is seen
	pos   int
	done  bool
}

func NewSpeechExtractor() *SpeechExtractor {
	return &SpeechExtractor{start: -1}
}

// Feed appends a fragment. It returns the decoded speech and true exactly
// once, on the fragment that closes the string.
func (e *SpeechExtractor) Feed(delta string) (string, bool) {
	if e.done {
		return "", false
	}
	e.buf.WriteString(delta)
	s := e.buf.String()

	if e.start < 0 {
		loc := speechKey.FindStringIndex(s)
		if loc == nil {
			return "", false
		}
		e.start = loc[1]
		e.pos = e.start
	}

	for e.pos < len(s) {
		switch s[e.pos] {
		case '\\':
			if e.pos+1 >= len(s) {
				// escape split across fragments; wait for the rest
				return "", false
			}
			e.pos += 2
		case '"':
			e.done = true
			return unescape(s[e.start:e.pos]), true
		default:
			e.pos++
		}
	}
	return "", false
}

func unescape(raw string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+raw+`"`), &out); err != nil {
		return raw
	}
	return out
}

// SpeechReady is a one-shot signal carrying the speech text to the
// dispatch path. Resolve wins at most once; Done closes when it does.
type SpeechReady struct {
	once sync.Once
	done chan struct{}
	text string
}

func NewSpeechReady() *SpeechReady {
	return &SpeechReady{done: make(chan struct{})}
}

func (r *SpeechReady) Resolve(text string) bool {
	resolved := false
	r.once.Do(func() {
		r.text = text
		close(r.done)
		resolved = true
	})
	return resolved
}

func (r *SpeechReady) Done() <-chan struct{} {
	return r.done
}

// Text is only meaningful after Done is closed.
func (r *SpeechReady) Text() string {
	select {
	case <-r.done:
		return r.text
	default:
		return ""
	}
}
