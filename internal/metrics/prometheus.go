package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the tutor service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsCreated prometheus.Counter

	// Speech input metrics
	Utterances         prometheus.Counter
	TranscriptsDropped *prometheus.CounterVec
	STTReconnects      prometheus.Counter
	AudioFramesDropped prometheus.Counter

	// Generation metrics
	Generations        *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	CycleTransitions   *prometheus.CounterVec

	// Interruption metrics
	BargeIns  *prometheus.CounterVec
	EchoDrops prometheus.Counter

	// Output metrics
	AudioChunksSent      prometheus.Counter
	StrokeBatchesSent    prometheus.Counter
	StrokeBatchesDropped prometheus.Counter
}

// NewMetrics creates and registers all metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "xtutor_active_sessions",
			Help: "Current number of connected tutoring sessions",
		}),
		SessionsCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "xtutor_sessions_created_total",
			Help: "Total number of sessions created",
		}),

		Utterances: f.NewCounter(prometheus.CounterOpts{
			Name: "xtutor_utterances_total",
			Help: "Total number of merged student utterances",
		}),
		TranscriptsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "xtutor_transcripts_dropped_total",
			Help: "Transcripts discarded before reaching the tutor",
		}, []string{"reason"}),
		STTReconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "xtutor_stt_reconnects_total",
			Help: "Total number of recognition stream reconnects",
		}),
		AudioFramesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "xtutor_audio_frames_dropped_total",
			Help: "Audio frames discarded on overflow or reconnect",
		}),

		Generations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "xtutor_generations_total",
			Help: "Total number of reply generations",
		}, []string{"outcome"}),
		GenerationDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "xtutor_generation_duration_seconds",
			Help:    "Time from request to end of dispatch",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
		}),
		CycleTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "xtutor_cycle_transitions_total",
			Help: "Response cycle state transitions",
		}, []string{"from", "to"}),

		BargeIns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "xtutor_barge_ins_total",
			Help: "Confirmed interruptions by source",
		}, []string{"source"}),
		EchoDrops: f.NewCounter(prometheus.CounterOpts{
			Name: "xtutor_echo_drops_total",
			Help: "Transcripts dropped as likely echo of tutor audio",
		}),

		AudioChunksSent: f.NewCounter(prometheus.CounterOpts{
			Name: "xtutor_audio_chunks_sent_total",
			Help: "Synthesized audio chunks sent to clients",
		}),
		StrokeBatchesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "xtutor_stroke_batches_sent_total",
			Help: "Stroke batches sent to clients",
		}),
		StrokeBatchesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "xtutor_stroke_batches_dropped_total",
			Help: "Stroke batches withheld because of an interruption",
		}),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordSessionOpened bumps the active session gauge
func (m *Metrics) RecordSessionOpened() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.ActiveSessions.Inc()
}

func (m *Metrics) RecordSessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) RecordUtterance() {
	if m == nil {
		return
	}
	m.Utterances.Inc()
}

// RecordTranscriptDropped counts a filtered transcript; reason is "filter" or "echo"
func (m *Metrics) RecordTranscriptDropped(reason string) {
	if m == nil {
		return
	}
	m.TranscriptsDropped.WithLabelValues(reason).Inc()
	if reason == "echo" {
		m.EchoDrops.Inc()
	}
}

func (m *Metrics) RecordSTTReconnect() {
	if m == nil {
		return
	}
	m.STTReconnects.Inc()
}

func (m *Metrics) RecordAudioFramesDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.AudioFramesDropped.Add(float64(n))
}

// RecordGeneration records the outcome ("complete", "interrupted", "skipped") and duration
func (m *Metrics) RecordGeneration(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(outcome).Inc()
	m.GenerationDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.CycleTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) RecordBargeIn(source string) {
	if m == nil {
		return
	}
	m.BargeIns.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordAudioChunk() {
	if m == nil {
		return
	}
	m.AudioChunksSent.Inc()
}

func (m *Metrics) RecordStrokeBatch(sent bool) {
	if m == nil {
		return
	}
	if sent {
		m.StrokeBatchesSent.Inc()
		return
	}
	m.StrokeBatchesDropped.Inc()
}
