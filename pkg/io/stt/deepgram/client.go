package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xpanvictor/xtutor/pkg/io/stt"
)

const DefaultURL = "wss://api.deepgram.com/v1/listen"

type Options struct {
	URL           string
	Model         string
	Language      string
	EndpointingMs int
	// Encoding and Container describe what the browser records (opus in webm).
	Encoding  string
	Container string
}

type Client struct {
	apiKey string
	opts   Options
	dialer websocket.Dialer
}

func New(apiKey string, opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Model == "" {
		opts.Model = "nova-2"
	}
	if opts.Language == "" {
		opts.Language = "en-US"
	}
	if opts.EndpointingMs == 0 {
		opts.EndpointingMs = 500
	}
	if opts.Encoding == "" {
		opts.Encoding = "opus"
	}
	if opts.Container == "" {
		opts.Container = "webm"
	}
	return &Client{
		apiKey: apiKey,
		opts:   opts,
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (c *Client) listenURL() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", fmt.Errorf("parse listen url: %w", err)
	}
	q := u.Query()
	q.Set("model", c.opts.Model)
	q.Set("language", c.opts.Language)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("vad_events", "true")
	q.Set("interim_results", "true")
	q.Set("endpointing", strconv.Itoa(c.opts.EndpointingMs))
	q.Set("encoding", c.opts.Encoding)
	q.Set("container", c.opts.Container)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect implements stt.Recognizer.
func (c *Client) Connect(ctx context.Context) (stt.Stream, error) {
	target, err := c.listenURL()
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+c.apiKey)

	conn, resp, err := c.dialer.DialContext(ctx, target, headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			return nil, fmt.Errorf("deepgram connect (status %d): %s: %w", resp.StatusCode, strings.TrimSpace(string(body)), err)
		}
		return nil, fmt.Errorf("deepgram connect: %w", err)
	}

	s := &stream{
		conn:   conn,
		events: make(chan stt.Event, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

type stream struct {
	conn      *websocket.Conn
	events    chan stt.Event
	done      chan struct{}
	closed    atomic.Bool
	writeMu   sync.Mutex
	closeOnce sync.Once
}

type listenMessage struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
			Words      []struct {
				Word string `json:"word"`
			} `json:"words"`
		} `json:"alternatives"`
	} `json:"channel"`
}

// decodeMessage maps one listen payload onto an stt event; ok is false for
// payloads the session does not act on (metadata, interim results, silence).
func decodeMessage(data []byte) (stt.Event, bool) {
	var msg listenMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return stt.Event{}, false
	}
	switch msg.Type {
	case "SpeechStarted":
		return stt.Event{Kind: stt.EventSpeechStarted}, true
	case "Results":
		if !msg.IsFinal || len(msg.Channel.Alternatives) == 0 {
			return stt.Event{}, false
		}
		alt := msg.Channel.Alternatives[0]
		text := strings.TrimSpace(alt.Transcript)
		if text == "" {
			return stt.Event{}, false
		}
		words := len(alt.Words)
		if words == 0 {
			words = len(strings.Fields(text))
		}
		return stt.Event{
			Kind:       stt.EventTranscript,
			Text:       text,
			Confidence: alt.Confidence,
			Words:      words,
			IsFinal:    true,
		}, true
	}
	return stt.Event{}, false
}

func (s *stream) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		ev, ok := decodeMessage(data)
		if !ok {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *stream) write(messageType int, data []byte) error {
	if s.closed.Load() {
		return stt.ErrStreamClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *stream) SendAudio(data []byte) error {
	return s.write(websocket.BinaryMessage, data)
}

func (s *stream) KeepAlive() error {
	return s.write(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`))
}

func (s *stream) CloseSend() error {
	return s.write(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
}

func (s *stream) Events() <-chan stt.Event {
	return s.events
}

func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
