package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"LOG_LEVEL",
		"STORE_DRIVER",
		"HISTORY_DIR",
		"NOTES_DIR",
		"STATIC_DIR",
		"SQLITE_PATH",
		"DATABASE_URL",
		"REDIS_ADDR",
		"REDIS_PASSWORD",
		"REDIS_DB",
		"GENERATION_PROVIDER",
		"GEMINI_API_KEY",
		"GEMINI_MODEL",
		"GEMINI_BASE_URL",
		"ANTHROPIC_API_KEY",
		"ANTHROPIC_MODEL",
		"STT_PROVIDER",
		"STT_LANGUAGE",
		"GOOGLE_SPEECH_CREDENTIALS_FILE",
		"LOCAL_WHISPER_CLI",
		"LOCAL_WHISPER_MODEL_PATH",
		"TTS_PROVIDER",
		"TTS_LANGUAGE",
		"ELEVENLABS_API_KEY",
		"ELEVENLABS_WS_BASE_URL",
		"ELEVENLABS_TTS_VOICE_ID",
		"ELEVENLABS_TTS_MODEL_ID",
		"FFMPEG_PATH",
		"AUDIO_RETENTION",
		"AUDIO_JANITOR_INTERVAL",
		"BACKEND_TIMEOUT",
	}
	for _, k := range keys {
		// Setenv registers the restore; envconfig treats empty-but-set as a value.
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.BindAddr)
	assert.Equal(t, "file", cfg.StoreDriver)
	assert.Equal(t, "history", cfg.HistoryDir)
	assert.Equal(t, "notes", cfg.NotesDir)
	assert.Equal(t, "static", cfg.StaticDir)
	assert.Equal(t, "gemini", cfg.GenerationProvider)
	assert.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	assert.Equal(t, "google", cfg.STTProvider)
	assert.Equal(t, "gtts", cfg.TTSProvider)
	assert.Equal(t, 24*time.Hour, cfg.AudioRetention)
	assert.Equal(t, 60*time.Second, cfg.BackendTimeout)
	assert.Empty(t, cfg.GeminiAPIKey)
}

func TestLoadExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("STORE_DRIVER", " SQLite ")
	t.Setenv("GENERATION_PROVIDER", "anthropic")
	t.Setenv("AUDIO_RETENTION", "0")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9191", cfg.BindAddr)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "anthropic", cfg.GenerationProvider)
	assert.Zero(t, cfg.AudioRetention)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":        "cassandra",
		"GENERATION_PROVIDER": "llama",
		"STT_PROVIDER":        "vosk",
		"TTS_PROVIDER":        "espeak",
		"BACKEND_TIMEOUT":     "soon",
		"AUDIO_RETENTION":     "-1h",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRequiresBackendAddresses(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("STORE_DRIVER", "postgres")
	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("STORE_DRIVER", "redis")
	_, err = Load()
	assert.ErrorContains(t, err, "REDIS_ADDR")
}
