package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/option"
	"github.com/xpanvictor/xtutor/internal/config"
	"github.com/xpanvictor/xtutor/internal/constants/prompts"
	"github.com/xpanvictor/xtutor/internal/domains/sys_manager/bargein"
	"github.com/xpanvictor/xtutor/internal/domains/tutor"
	"github.com/xpanvictor/xtutor/internal/handlers/websocket"
	"github.com/xpanvictor/xtutor/internal/metrics"
	"github.com/xpanvictor/xtutor/internal/server"
	"github.com/xpanvictor/xtutor/pkg/Logger"
	"github.com/xpanvictor/xtutor/pkg/assistant"
	olp "github.com/xpanvictor/xtutor/pkg/assistant/providers/ollama"
	"github.com/xpanvictor/xtutor/pkg/io/render"
	"github.com/xpanvictor/xtutor/pkg/io/stt"
	"github.com/xpanvictor/xtutor/pkg/io/stt/deepgram"
	"github.com/xpanvictor/xtutor/pkg/io/tts"
	"github.com/xpanvictor/xtutor/pkg/io/tts/elevenlabs"
	"github.com/xpanvictor/xtutor/pkg/io/tts/piper"
)

const (
	ProviderOpenAI     = "openai"
	ProviderOllama     = "ollama"
	ProviderElevenLabs = "elevenlabs"
	ProviderPiper      = "piper"
)

// App represents the application with all its dependencies
type App struct {
	Config     *config.Settings
	Logger     *Logger.Logger
	Metrics    *metrics.Metrics
	TutorDeps  tutor.Deps
	WSHandler  *websocket.WebSocketHandler
	ServerDeps server.Dependencies
}

// NewApp creates a new application instance with all dependencies properly wired
func NewApp(cfg *config.Settings, logger *Logger.Logger) (*App, error) {
	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewMetrics(),
	}
	if err := app.setupDependencies(); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) setupDependencies() error {
	llm, err := NewStreamer(a.Config.LLM)
	if err != nil {
		return err
	}
	synth, err := NewSynthesizer(a.Config.TTS)
	if err != nil {
		return err
	}
	if synth == nil {
		a.Logger.Warnf("no TTS credentials configured; replies will be text and strokes only")
	}
	recognizer := NewRecognizer(a.Config.STT)
	if recognizer == nil {
		a.Logger.Warnf("no Deepgram key configured; voice input disabled")
	}

	a.TutorDeps = tutor.Deps{
		LLM:        llm,
		Recognizer: recognizer,
		Synth:      synth,
		Renderers: render.Set{
			Text: render.Handwriting{},
			Math: render.NewMath(a.Config.Render.MathURL, a.Config.Render.Timeout, a.Logger.Named("math")),
		},
		System: prompts.TUTOR_PROMPT.GetCurrentPrompt().Content,
	}

	a.WSHandler = websocket.NewWebSocketHandler(a.Logger, a.TutorDeps, TutorConfig(a.Config), a.Metrics, a.Config.Server.FrontendURL)
	a.ServerDeps = server.NewServerDependencies(a.Config, a.Logger, a.Metrics, a.WSHandler)
	a.Logger.Infof("llm provider %s (%s), tts provider %s", a.Config.LLM.Provider, a.Config.LLM.Model, a.Config.TTS.Provider)
	return nil
}

// Close stops every live session.
func (a *App) Close() error {
	return a.WSHandler.Close()
}

// NewStreamer builds the configured language model client.
func NewStreamer(cfg config.LLMConfig) (assistant.Streamer, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		return assistant.NewOpenAIStreamer(assistant.OpenAIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
		}, option.WithMaxRetries(2)), nil
	case ProviderOllama:
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		p, err := olp.New(base, cfg.Model, nil)
		if err != nil {
			return nil, fmt.Errorf("ollama provider: %w", err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// NewSynthesizer returns nil when the provider has no credentials.
func NewSynthesizer(cfg config.TTSConfig) (tts.Synthesizer, error) {
	client := &http.Client{Timeout: cfg.Timeout}
	switch strings.ToLower(cfg.Provider) {
	case ProviderElevenLabs, "":
		if cfg.APIKey == "" {
			return nil, nil
		}
		return elevenlabs.New(cfg.APIKey, cfg.URL, cfg.VoiceID, cfg.ModelID, client), nil
	case ProviderPiper:
		if cfg.URL == "" {
			return nil, nil
		}
		return piper.New(cfg.URL, cfg.VoiceID, client), nil
	}
	return nil, fmt.Errorf("unknown tts provider %q", cfg.Provider)
}

// NewRecognizer returns nil when no Deepgram key is set.
func NewRecognizer(cfg config.STTConfig) stt.Recognizer {
	if cfg.DeepgramAPIKey == "" {
		return nil
	}
	return deepgram.New(cfg.DeepgramAPIKey, deepgram.Options{
		URL:           cfg.URL,
		Model:         cfg.Model,
		Language:      cfg.Language,
		EndpointingMs: cfg.EndpointingMs,
	})
}

// TutorConfig maps settings onto the per-session configuration.
func TutorConfig(cfg *config.Settings) tutor.Config {
	tc := tutor.DefaultConfig()
	t := cfg.Timing

	tc.MergeWindow = t.MergeWindow
	tc.ReviewSilence = t.ReviewSilence
	tc.ReviewInterval = t.ReviewInterval
	tc.QueueBytes = cfg.STT.QueueBytes
	tc.BoardWidth = cfg.Board.Width
	tc.BoardHeight = cfg.Board.Height

	tc.BargeIn = bargein.Config{
		Debounce:      t.Debounce,
		StartGuard:    t.StartGuard,
		ConfirmWindow: t.ConfirmWindow,
		EchoCooldown:  t.EchoCooldown,
	}

	tc.Ingest.ReconnectBackoff = t.ReconnectBackoff
	tc.Ingest.KeepAliveInterval = t.KeepAliveInterval
	tc.Ingest.Filter = stt.Filter{
		MinConfidence:        cfg.STT.MinConfidence,
		SingleWordConfidence: cfg.STT.SingleWordConfidence,
		MinWords:             cfg.STT.MinWords,
	}

	tc.Pipeline.AudioStartWait = t.AudioStartWait
	return tc
}
