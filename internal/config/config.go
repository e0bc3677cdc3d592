package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Config contains all runtime settings for the assistant service.
type Config struct {
	BindAddr         string        `envconfig:"APP_BIND_ADDR" default:":5000"`
	ShutdownTimeout  time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"10s"`
	MetricsNamespace string        `envconfig:"APP_METRICS_NAMESPACE" default:"accessally"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`

	// Record storage
	StoreDriver   string `envconfig:"STORE_DRIVER" default:"file"`
	HistoryDir    string `envconfig:"HISTORY_DIR" default:"history"`
	NotesDir      string `envconfig:"NOTES_DIR" default:"notes"`
	StaticDir     string `envconfig:"STATIC_DIR" default:"static"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"data/accessally.db"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Text generation
	GenerationProvider string `envconfig:"GENERATION_PROVIDER" default:"gemini"`
	GeminiAPIKey       string `envconfig:"GEMINI_API_KEY"`
	GeminiModel        string `envconfig:"GEMINI_MODEL" default:"gemini-1.5-flash"`
	GeminiBaseURL      string `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com"`
	AnthropicAPIKey    string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel     string `envconfig:"ANTHROPIC_MODEL" default:"claude-3-5-haiku-latest"`

	// Speech recognition
	STTProvider                 string `envconfig:"STT_PROVIDER" default:"google"`
	STTLanguage                 string `envconfig:"STT_LANGUAGE" default:"en-US"`
	GoogleSpeechCredentialsFile string `envconfig:"GOOGLE_SPEECH_CREDENTIALS_FILE"`
	LocalWhisperCLI             string `envconfig:"LOCAL_WHISPER_CLI" default:"whisper-cli"`
	LocalWhisperModelPath       string `envconfig:"LOCAL_WHISPER_MODEL_PATH" default:".models/whisper/ggml-base.bin"`

	// Speech synthesis
	TTSProvider          string `envconfig:"TTS_PROVIDER" default:"gtts"`
	TTSLanguage          string `envconfig:"TTS_LANGUAGE" default:"en"`
	ElevenLabsAPIKey     string `envconfig:"ELEVENLABS_API_KEY"`
	ElevenLabsWSBaseURL  string `envconfig:"ELEVENLABS_WS_BASE_URL" default:"wss://api.elevenlabs.io"`
	ElevenLabsTTSVoiceID string `envconfig:"ELEVENLABS_TTS_VOICE_ID" default:"cgSgspJ2msm6clMCkdW9"`
	ElevenLabsTTSModelID string `envconfig:"ELEVENLABS_TTS_MODEL_ID" default:"eleven_multilingual_v2"`

	// Audio handling
	FFmpegPath           string        `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	AudioRetention       time.Duration `envconfig:"AUDIO_RETENTION" default:"24h"`
	AudioJanitorInterval time.Duration `envconfig:"AUDIO_JANITOR_INTERVAL" default:"10m"`
	BackendTimeout       time.Duration `envconfig:"BACKEND_TIMEOUT" default:"60s"`
}

var (
	storeDrivers        = []string{"file", "memory", "sqlite", "postgres", "redis"}
	generationProviders = []string{"auto", "gemini", "anthropic", "mock"}
	sttProviders        = []string{"auto", "google", "whisper", "mock"}
	ttsProviders        = []string{"auto", "gtts", "elevenlabs", "mock"}
)

// Load reads environment variables, applies defaults and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate normalizes enum fields to lower case and checks their values.
func (c *Config) Validate() error {
	for _, f := range []struct {
		key     string
		value   *string
		allowed []string
	}{
		{"STORE_DRIVER", &c.StoreDriver, storeDrivers},
		{"GENERATION_PROVIDER", &c.GenerationProvider, generationProviders},
		{"STT_PROVIDER", &c.STTProvider, sttProviders},
		{"TTS_PROVIDER", &c.TTSProvider, ttsProviders},
	} {
		*f.value = strings.ToLower(strings.TrimSpace(*f.value))
		if !contains(f.allowed, *f.value) {
			return fmt.Errorf("unsupported %s %q (want one of %s)", f.key, *f.value, strings.Join(f.allowed, ", "))
		}
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be > 0")
	}
	if c.AudioRetention < 0 {
		return fmt.Errorf("AUDIO_RETENTION must be >= 0")
	}
	if c.AudioJanitorInterval < 0 {
		return fmt.Errorf("AUDIO_JANITOR_INTERVAL must be >= 0")
	}
	if strings.TrimSpace(c.StaticDir) == "" {
		return fmt.Errorf("STATIC_DIR is required")
	}

	switch c.StoreDriver {
	case "postgres":
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case "redis":
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("REDIS_ADDR is required when STORE_DRIVER=redis")
		}
	}
	return nil
}

// LogSummary writes the effective settings. Secrets are reported only as
// present or absent.
func (c Config) LogSummary() {
	log.Info().
		Str("bind_addr", c.BindAddr).
		Str("store_driver", c.StoreDriver).
		Str("history_dir", c.HistoryDir).
		Str("notes_dir", c.NotesDir).
		Str("static_dir", c.StaticDir).
		Str("generation_provider", c.GenerationProvider).
		Bool("gemini_api_key_present", c.GeminiAPIKey != "").
		Bool("anthropic_api_key_present", c.AnthropicAPIKey != "").
		Str("stt_provider", c.STTProvider).
		Str("tts_provider", c.TTSProvider).
		Bool("elevenlabs_api_key_present", c.ElevenLabsAPIKey != "").
		Bool("database_url_present", c.DatabaseURL != "").
		Dur("audio_retention", c.AudioRetention).
		Dur("backend_timeout", c.BackendTimeout).
		Msg("configuration loaded")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
