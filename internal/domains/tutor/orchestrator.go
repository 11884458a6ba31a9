package tutor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/xpanvictor/xtutor/internal/domains/board"
	"github.com/xpanvictor/xtutor/internal/domains/conversation"
	"github.com/xpanvictor/xtutor/internal/domains/session"
	"github.com/xpanvictor/xtutor/internal/domains/sys_manager/bargein"
	"github.com/xpanvictor/xtutor/internal/domains/sys_manager/pipeline"
	vss "github.com/xpanvictor/xtutor/internal/domains/sys_manager/voice_stream_system"
	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/assistant"
	xio "github.com/xpanvictor/xtutor/pkg/io"
	"github.com/xpanvictor/xtutor/pkg/io/render"
	"github.com/xpanvictor/xtutor/pkg/io/stt"
	audioring "github.com/xpanvictor/xtutor/pkg/io/stt/audioRing"
	"github.com/xpanvictor/xtutor/pkg/io/tts"
)

// Inbound client message types.
const (
	InSessionStart  = "session_start"
	InTranscript    = "transcript"
	InBoardSnapshot = "board_snapshot"
	InAudioStart    = "audio_start"
	InAudioData     = "audio_data"
	InAudioStop     = "audio_stop"
	InBargeIn       = "barge_in"
)

const (
	ConnectedMessage = "Connected to AI Tutor. Say hello to Professor Ada!"
	ReviewUtterance  = "[checking my work on the board]"
)

var ErrRecognizerMissing = errors.New("speech recognition is not configured")

// Inbound is any message the browser sends. Width and height arrive as
// whatever JSON the client produced and are coerced on use.
type Inbound struct {
	Type        string `json:"type"`
	Subject     string `json:"subject,omitempty"`
	Text        string `json:"text,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
	Width       any    `json:"width,omitempty"`
	Height      any    `json:"height,omitempty"`
	Data        string `json:"data,omitempty"`
}

// Deps are the external services shared by every session.
type Deps struct {
	LLM        assistant.Streamer
	Recognizer stt.Recognizer
	Synth      tts.Synthesizer
	Renderers  render.Set
	System     string
}

type Config struct {
	MergeWindow    time.Duration
	QueueBytes     int
	BoardWidth     int
	BoardHeight    int
	ReviewSilence  time.Duration
	ReviewInterval time.Duration
	BargeIn        bargein.Config
	Ingest         vss.IngestConfig
	Pipeline       pipeline.Config
	// Clock defaults to time.Now.
	Clock func() time.Time
}

func DefaultConfig() Config {
	return Config{
		MergeWindow:    800 * time.Millisecond,
		QueueBytes:     1 << 20,
		BoardWidth:     session.DefaultWidth,
		BoardHeight:    session.DefaultHeight,
		ReviewSilence:  6 * time.Second,
		ReviewInterval: 15 * time.Second,
		BargeIn:        bargein.DefaultConfig(),
		Ingest:         vss.DefaultIngestConfig(),
		Pipeline:       pipeline.DefaultConfig(),
	}
}

// Tutor owns everything belonging to one connected client: the session,
// the speech path in and the reply path out.
type Tutor struct {
	sess       *session.Session
	pub        xio.Publisher
	coord      *conversation.Coordinator
	control    *bargein.Controller
	agg        *vss.Aggregator
	recognizer stt.Recognizer
	cfg        Config
	logger     *Logger.Logger
	metrics    *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	ingestMu     sync.Mutex
	queue        audioring.FrameQueue
	ingestCancel context.CancelFunc
	ingestDone   chan struct{}

	lifeMu sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func New(sessionID string, out xio.Sender, deps Deps, cfg Config, logger *Logger.Logger, m *metrics.Metrics) *Tutor {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	log := logger.ForSession(sessionID)

	sess := session.NewWithClock(sessionID, clock)
	sess.SetBoardSize(cfg.BoardWidth, cfg.BoardHeight)
	sess.Touch()

	ctx, cancel := context.WithCancel(context.Background())
	t := &Tutor{
		sess:       sess,
		pub:        xio.New(out),
		recognizer: deps.Recognizer,
		cfg:        cfg,
		logger:     log,
		metrics:    m,
		ctx:        ctx,
		cancel:     cancel,
	}

	t.control = bargein.New(cfg.BargeIn, sess, t.onBargeIn, log.Named("bargein"), m).WithClock(clock)
	pipe := pipeline.New(sess, board.NewTracker(sess), deps.Synth, deps.Renderers, t.pub, t.control, cfg.Pipeline, log.Named("pipeline"), m)
	t.coord = conversation.NewCoordinator(sess, deps.LLM, pipe, deps.System, log, m)
	t.agg = vss.NewAggregator(cfg.MergeWindow, t.onUtterance)
	return t
}

func (t *Tutor) Session() *session.Session { return t.sess }

// Connected greets a freshly attached client.
func (t *Tutor) Connected() error {
	return t.pub.SendConnected(t.sess.ID, ConnectedMessage)
}

// Handle routes one inbound message. It never blocks on a reply generation.
func (t *Tutor) Handle(msg Inbound) {
	switch msg.Type {
	case InSessionStart:
		t.sessionStart(msg.Subject)
	case InTranscript:
		t.transcript(msg.Text)
	case InBoardSnapshot:
		t.boardSnapshot(msg)
	case InAudioStart:
		t.audioStart()
	case InAudioData:
		t.audioData(msg.Data)
	case InAudioStop:
		t.audioStop()
	case InBargeIn:
		t.control.Manual()
	default:
		t.sendError(fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

// HandleRaw decodes a client frame and routes it.
func (t *Tutor) HandleRaw(data []byte) {
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		t.sendError("Invalid message: expected a JSON object")
		return
	}
	t.Handle(msg)
}

func (t *Tutor) sessionStart(subject string) {
	subject = strings.TrimSpace(subject)
	t.sess.SetSubject(subject)
	t.sess.SetMode(session.ModeListening)
	t.sess.Touch()

	label := subject
	if label == "" {
		label = "whatever I need"
	}
	t.respond(conversation.Request{Utterance: fmt.Sprintf("Hey, let's work on %s.", label)})
}

func (t *Tutor) transcript(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	t.sess.Touch()
	t.respond(conversation.Request{Utterance: text})
}

func (t *Tutor) boardSnapshot(msg Inbound) {
	if msg.ImageBase64 == "" {
		return
	}
	t.sess.SetBoardSize(asInt(msg.Width), asInt(msg.Height))
	now := t.sess.Now()
	count := t.sess.AddSnapshot(msg.ImageBase64, now)
	if err := t.pub.SendSnapshotReceived(count); err != nil {
		t.logger.Warnf("send snapshot_received: %v", err)
	}
	t.maybeReview(now)
}

// onUtterance receives merged speech from the aggregator.
func (t *Tutor) onUtterance(text string) {
	if err := t.pub.SendTranscriptInterim(text); err != nil {
		t.logger.Debugf("send transcript_interim: %v", err)
		return
	}
	t.metrics.RecordUtterance()
	t.sess.Touch()
	t.respond(conversation.Request{Utterance: text})
}

func (t *Tutor) onBargeIn(bargein.Source) {
	if err := t.pub.SendBargeIn(); err != nil {
		t.logger.Debugf("send barge_in: %v", err)
	}
}

func (t *Tutor) onSpeechStarted() {
	t.control.VoiceStart()
}

func (t *Tutor) onTranscript(ev stt.Event) {
	if !t.control.Transcript(ev.Text) {
		return
	}
	t.agg.Add(ev.Text)
}

// respond runs a generation in its own goroutine; the coordinator lock
// keeps them ordered.
func (t *Tutor) respond(req conversation.Request) {
	t.lifeMu.Lock()
	if t.closed {
		t.lifeMu.Unlock()
		return
	}
	t.wg.Add(1)
	t.lifeMu.Unlock()

	go func() {
		defer t.wg.Done()
		_, err := t.coord.Respond(t.ctx, req)
		switch {
		case err == nil, errors.Is(err, conversation.ErrSkipped), errors.Is(err, context.Canceled):
		default:
			t.logger.Errorf("generation failed: %v", err)
		}
	}()
}

func (t *Tutor) sendError(message string) {
	if err := t.pub.SendError(message); err != nil {
		t.logger.Debugf("send error: %v", err)
	}
}

func (t *Tutor) audioStart() {
	if t.recognizer == nil {
		t.logger.Warnf("audio_start without a recognizer")
		t.sendError(ErrRecognizerMissing.Error())
		return
	}

	t.ingestMu.Lock()
	defer t.ingestMu.Unlock()
	t.stopIngestLocked()

	t.lifeMu.Lock()
	closed := t.closed
	t.lifeMu.Unlock()
	if closed {
		return
	}

	queue := audioring.New(t.cfg.QueueBytes)
	ingest := vss.NewIngest(t.sess.ID, t.recognizer, queue, t.cfg.Ingest, vss.Handlers{
		OnSpeechStarted: t.onSpeechStarted,
		OnTranscript:    t.onTranscript,
	}, t.logger.Named("ingest"), t.metrics)

	ictx, cancel := context.WithCancel(t.ctx)
	done := make(chan struct{})
	t.queue = queue
	t.ingestCancel = cancel
	t.ingestDone = done
	go func() {
		defer close(done)
		ingest.Run(ictx)
	}()
}

func (t *Tutor) audioData(b64 string) {
	if b64 == "" {
		return
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.logger.Debugf("bad audio_data payload: %v", err)
		return
	}
	t.PushAudio(data)
}

// PushAudio queues raw microphone audio; it is dropped when no stream is
// open.
func (t *Tutor) PushAudio(data []byte) {
	if len(data) == 0 {
		return
	}
	t.ingestMu.Lock()
	queue := t.queue
	t.ingestMu.Unlock()
	if queue == nil {
		return
	}
	if err := queue.Enqueue(audioring.AudioInput{Data: data, Timestamp: t.sess.Now()}); err != nil && !errors.Is(err, audioring.ErrClosed) {
		t.logger.Warnf("enqueue audio: %v", err)
	}
}

// audioStop places the end-of-stream sentinel; the worker keeps running
// until the provider has flushed its last results.
func (t *Tutor) audioStop() {
	t.ingestMu.Lock()
	if t.queue != nil {
		t.queue.Close()
		t.queue = nil
	}
	t.ingestMu.Unlock()
	t.agg.Flush()
}

func (t *Tutor) stopIngestLocked() {
	if t.queue != nil {
		t.queue.Close()
		t.queue = nil
	}
	if t.ingestCancel != nil {
		t.ingestCancel()
		<-t.ingestDone
		t.ingestCancel = nil
		t.ingestDone = nil
	}
}

// Close tears the session down and waits for in-flight work to stop.
func (t *Tutor) Close() {
	t.lifeMu.Lock()
	if t.closed {
		t.lifeMu.Unlock()
		return
	}
	t.closed = true
	t.lifeMu.Unlock()

	t.ingestMu.Lock()
	t.stopIngestLocked()
	t.ingestMu.Unlock()

	t.agg.Stop()
	t.sess.Interrupt()
	t.cancel()
	t.wg.Wait()
}

func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return int(f)
	}
	return 0
}
