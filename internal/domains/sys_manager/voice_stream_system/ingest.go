package voicestreamsystem

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/io/stt"
	audioring "github.com/xpanvictor/xtutor/pkg/io/stt/audioRing"
)

var (
	errSentinel    = errors.New("audio stream finished")
	errStreamEnded = errors.New("recognition stream ended")
)

// IngestConfig contains configuration for the audio ingest worker
type IngestConfig struct {
	ReconnectBackoff  time.Duration
	KeepAliveInterval time.Duration
	// FinalFlushTimeout bounds the wait for trailing results after close-stream.
	FinalFlushTimeout time.Duration
	Filter            stt.Filter
}

// DefaultIngestConfig returns default configuration
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ReconnectBackoff:  time.Second,
		KeepAliveInterval: 8 * time.Second,
		FinalFlushTimeout: 3 * time.Second,
		Filter: stt.Filter{
			MinConfidence:        0.60,
			SingleWordConfidence: 0.85,
			MinWords:             1,
		},
	}
}

// Handlers receive recognizer events; they run on the receive goroutine and
// must not block on a reply generation.
type Handlers struct {
	OnSpeechStarted func()
	OnTranscript    func(ev stt.Event)
}

// Ingest pumps queued audio frames into a recognition stream for one session
// and keeps that stream alive across provider disconnects.
type Ingest struct {
	sessionID  string
	recognizer stt.Recognizer
	queue      audioring.FrameQueue
	config     IngestConfig
	handlers   Handlers
	logger     *Logger.Logger
	metrics    *metrics.Metrics
}

func NewIngest(
	sessionID string,
	recognizer stt.Recognizer,
	queue audioring.FrameQueue,
	config IngestConfig,
	handlers Handlers,
	logger *Logger.Logger,
	m *metrics.Metrics,
) *Ingest {
	return &Ingest{
		sessionID:  sessionID,
		recognizer: recognizer,
		queue:      queue,
		config:     config,
		handlers:   handlers,
		logger:     logger,
		metrics:    m,
	}
}

// Run blocks until the queue sentinel is consumed or ctx is cancelled.
func (w *Ingest) Run(ctx context.Context) {
	for {
		err := w.streamOnce(ctx)
		if errors.Is(err, errSentinel) || ctx.Err() != nil {
			w.logger.Debugf("audio ingest finished for session %s", w.sessionID)
			return
		}
		if w.queue.Closed() {
			return
		}

		w.logger.Warnf("recognition stream for session %s dropped: %v; reconnecting", w.sessionID, err)
		w.metrics.RecordSTTReconnect()
		w.metrics.RecordAudioFramesDropped(w.queue.Drain())

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.config.ReconnectBackoff):
		}
	}
}

func (w *Ingest) streamOnce(ctx context.Context) error {
	stream, err := w.recognizer.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect recognizer: %w", err)
	}
	defer stream.Close()

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recvDone := make(chan struct{})
	go func() {
		defer close(recvDone)
		w.receive(stream)
	}()
	go func() {
		select {
		case <-recvDone:
			cancel()
		case <-sctx.Done():
		}
	}()

	err = w.send(sctx, stream)
	if errors.Is(err, errSentinel) {
		// let the provider flush what it still holds
		select {
		case <-recvDone:
		case <-ctx.Done():
		case <-time.After(w.config.FinalFlushTimeout):
		}
	}
	return err
}

func (w *Ingest) send(ctx context.Context, stream stt.Stream) error {
	for {
		dctx, dcancel := context.WithTimeout(ctx, w.config.KeepAliveInterval)
		frame, err := w.queue.Dequeue(dctx)
		dcancel()

		switch {
		case err == nil:
			if err := stream.SendAudio(frame.Data); err != nil {
				return fmt.Errorf("send audio: %w", err)
			}
		case errors.Is(err, audioring.ErrClosed):
			if err := stream.CloseSend(); err != nil {
				w.logger.Debugf("close-stream for session %s: %v", w.sessionID, err)
			}
			return errSentinel
		case ctx.Err() != nil:
			return errStreamEnded
		case errors.Is(err, context.DeadlineExceeded):
			if err := stream.KeepAlive(); err != nil {
				return fmt.Errorf("keepalive: %w", err)
			}
		default:
			return err
		}
	}
}

func (w *Ingest) receive(stream stt.Stream) {
	for ev := range stream.Events() {
		switch ev.Kind {
		case stt.EventSpeechStarted:
			if w.handlers.OnSpeechStarted != nil {
				w.handlers.OnSpeechStarted()
			}
		case stt.EventTranscript:
			if !ev.IsFinal {
				continue
			}
			if !w.config.Filter.Accept(ev) {
				w.logger.Debugf("filtered transcript %q (confidence %.2f)", ev.Text, ev.Confidence)
				w.metrics.RecordTranscriptDropped("filter")
				continue
			}
			if w.handlers.OnTranscript != nil {
				w.handlers.OnTranscript(ev)
			}
		}
	}
}
