package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	FrontendURL string `mapstructure:"frontend_url"`
}

type LLMConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

type STTConfig struct {
	DeepgramAPIKey       string  `mapstructure:"deepgram_api_key"`
	URL                  string  `mapstructure:"url"`
	Model                string  `mapstructure:"model"`
	Language             string  `mapstructure:"language"`
	EndpointingMs        int     `mapstructure:"endpointing_ms"`
	MinConfidence        float64 `mapstructure:"min_confidence"`
	SingleWordConfidence float64 `mapstructure:"single_word_confidence"`
	MinWords             int     `mapstructure:"min_words"`
	QueueBytes           int     `mapstructure:"queue_bytes"`
}

type TTSConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	VoiceID  string        `mapstructure:"voice_id"`
	ModelID  string        `mapstructure:"model_id"`
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type RenderConfig struct {
	MathURL string        `mapstructure:"math_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TimingConfig holds every window the live session depends on.
type TimingConfig struct {
	MergeWindow       time.Duration `mapstructure:"merge_window"`
	Debounce          time.Duration `mapstructure:"debounce"`
	StartGuard        time.Duration `mapstructure:"start_guard"`
	ConfirmWindow     time.Duration `mapstructure:"confirm_window"`
	EchoCooldown      time.Duration `mapstructure:"echo_cooldown"`
	AudioStartWait    time.Duration `mapstructure:"audio_start_wait"`
	ReconnectBackoff  time.Duration `mapstructure:"reconnect_backoff"`
	KeepAliveInterval time.Duration `mapstructure:"keepalive_interval"`
	ReviewSilence     time.Duration `mapstructure:"review_silence"`
	ReviewInterval    time.Duration `mapstructure:"review_interval"`
}

type BoardConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

type Settings struct {
	Server ServerConfig `mapstructure:"server"`
	LLM    LLMConfig    `mapstructure:"llm"`
	STT    STTConfig    `mapstructure:"stt"`
	TTS    TTSConfig    `mapstructure:"tts"`
	Render RenderConfig `mapstructure:"render"`
	Timing TimingConfig `mapstructure:"timing"`
	Board  BoardConfig  `mapstructure:"board"`
	Env    string       `mapstructure:"env"`
	Debug  bool         `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("debug", false)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.frontend_url", "http://localhost:3000")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 1500)

	v.SetDefault("stt.deepgram_api_key", "")
	v.SetDefault("stt.url", "wss://api.deepgram.com/v1/listen")
	v.SetDefault("stt.model", "nova-2")
	v.SetDefault("stt.language", "en-US")
	v.SetDefault("stt.endpointing_ms", 500)
	v.SetDefault("stt.min_confidence", 0.60)
	v.SetDefault("stt.single_word_confidence", 0.85)
	v.SetDefault("stt.min_words", 1)
	v.SetDefault("stt.queue_bytes", 1<<20)

	v.SetDefault("tts.provider", "elevenlabs")
	v.SetDefault("tts.api_key", "")
	v.SetDefault("tts.voice_id", "21m00Tcm4TlvDq8ikWAM")
	v.SetDefault("tts.model_id", "eleven_turbo_v2")
	v.SetDefault("tts.url", "https://api.elevenlabs.io")
	v.SetDefault("tts.timeout", 30*time.Second)

	v.SetDefault("render.math_url", "")
	v.SetDefault("render.timeout", 5*time.Second)

	v.SetDefault("timing.merge_window", 800*time.Millisecond)
	v.SetDefault("timing.debounce", 500*time.Millisecond)
	v.SetDefault("timing.start_guard", 250*time.Millisecond)
	v.SetDefault("timing.confirm_window", 1500*time.Millisecond)
	v.SetDefault("timing.echo_cooldown", 1200*time.Millisecond)
	v.SetDefault("timing.audio_start_wait", 800*time.Millisecond)
	v.SetDefault("timing.reconnect_backoff", time.Second)
	v.SetDefault("timing.keepalive_interval", 8*time.Second)
	v.SetDefault("timing.review_silence", 6*time.Second)
	v.SetDefault("timing.review_interval", 15*time.Second)

	v.SetDefault("board.width", 1200)
	v.SetDefault("board.height", 700)
}

func Load() (*Settings, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load settings from a configuration file or environment variables
	v.SetConfigName("config_" + genEnv(v))
	v.AddConfigPath(".")
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &settings, nil
}

func genEnv(v *viper.Viper) string {
	env := v.GetString("env")
	if env == "" {
		return "dev"
	}
	return env
}
