package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessally/accessally/internal/audio"
	"github.com/accessally/accessally/internal/config"
	"github.com/accessally/accessally/internal/voice"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		BindAddr:           "127.0.0.1:0",
		ShutdownTimeout:    time.Second,
		MetricsNamespace:   "accessally",
		LogLevel:           "error",
		StoreDriver:        "memory",
		StaticDir:          t.TempDir(),
		GenerationProvider: "mock",
		STTProvider:        "mock",
		TTSProvider:        "mock",
		TTSLanguage:        "en",
		FFmpegPath:         "ffmpeg",
		AudioRetention:     time.Hour,
		BackendTimeout:     5 * time.Second,
	}
}

func TestBuildWiresChatEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	res, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, res.Cleanup()) })

	assert.Equal(t, "mock", res.Speech.Recognizer)
	assert.Equal(t, "mock", res.Speech.Synthesizer)
	assert.True(t, res.Engine.Available())
	assert.DirExists(t, filepath.Join(cfg.StaticDir, AudioSubdir))

	srv := httptest.NewServer(res.API.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(`{"username":"Ann","message":"hello"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		BotResponse string  `json:"bot_response"`
		AudioURL    *string `json:"audio_url"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "I heard you: hello", body.BotResponse)
	require.NotNil(t, body.AudioURL)
	assert.True(t, strings.HasPrefix(*body.AudioURL, "/static/audio/"))

	clip, err := http.Get(srv.URL + *body.AudioURL)
	require.NoError(t, err)
	defer clip.Body.Close()
	assert.Equal(t, http.StatusOK, clip.StatusCode)

	hist, err := http.Get(srv.URL + "/load_history?username=Ann")
	require.NoError(t, err)
	defer hist.Body.Close()
	var h struct {
		History []struct {
			Role string `json:"role"`
			Text string `json:"text"`
		} `json:"history"`
	}
	require.NoError(t, json.NewDecoder(hist.Body).Decode(&h))
	require.Len(t, h.History, 2)
	assert.Equal(t, "user", h.History[0].Role)
	assert.Equal(t, "bot", h.History[1].Role)
}

func TestBuildMetricsUseOwnRegistry(t *testing.T) {
	res, err := Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	rec := httptest.NewRecorder()
	res.API.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestBuildJanitorPrunesAudioDir(t *testing.T) {
	cfg := testConfig(t)
	res, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Cleanup() })

	stale := filepath.Join(cfg.StaticDir, AudioSubdir, "old.mp3")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	n, err := res.Janitor.Prune(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, stale)
}

func TestBuildRejectsUnknownStoreDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreDriver = "cassandra"
	_, err := Build(context.Background(), cfg)
	assert.Error(t, err)
}

func TestResolveSynthesizer(t *testing.T) {
	cfg := testConfig(t)

	cfg.TTSProvider = "elevenlabs"
	syn, detail, err := resolveSynthesizer(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gtts", syn.Name())
	assert.Contains(t, detail, "elevenlabs unavailable")

	cfg.TTSProvider = "auto"
	syn, _, err = resolveSynthesizer(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gtts", syn.Name())

	cfg.ElevenLabsAPIKey = "key"
	cfg.ElevenLabsTTSVoiceID = "voice"
	syn, _, err = resolveSynthesizer(cfg)
	require.NoError(t, err)
	assert.Equal(t, "elevenlabs", syn.Name())

	cfg.TTSProvider = "festival"
	_, _, err = resolveSynthesizer(cfg)
	assert.Error(t, err)
}

func TestResolveRecognizer(t *testing.T) {
	cfg := testConfig(t)

	rec, _, cleanup, err := resolveRecognizer(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "mock", rec.Name())
	assert.Nil(t, cleanup)

	cfg.STTProvider = "whisper"
	cfg.LocalWhisperCLI = "definitely-not-a-whisper-binary"
	_, _, _, err = resolveRecognizer(context.Background(), cfg)
	assert.Error(t, err)

	cfg.STTProvider = "sphinx"
	_, _, _, err = resolveRecognizer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestResolveRecognizerAutoWithoutBackendsIsUnavailable(t *testing.T) {
	cfg := testConfig(t)
	cfg.STTProvider = "auto"
	cfg.GoogleSpeechCredentialsFile = filepath.Join(t.TempDir(), "missing-credentials.json")
	cfg.LocalWhisperCLI = "definitely-not-a-whisper-binary"

	rec, detail, cleanup, err := resolveRecognizer(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, cleanup)
	assert.Equal(t, "unavailable", rec.Name())
	assert.Contains(t, detail, "unavailable")

	text, err := rec.Recognize(context.Background(), filepath.Join(t.TempDir(), "in.wav"))
	require.Error(t, err)
	assert.ErrorIs(t, err, voice.ErrServiceUnavailable)
	assert.Empty(t, text)
}

func TestNewDecoderSelection(t *testing.T) {
	cfg := testConfig(t)

	cfg.FFmpegPath = "None"
	assert.IsType(t, audio.PCMDecoder{}, newDecoder(cfg))

	cfg.FFmpegPath = "/opt/bin/ffmpeg"
	d, ok := newDecoder(cfg).(*audio.FFmpegDecoder)
	require.True(t, ok)
	assert.Equal(t, "/opt/bin/ffmpeg", d.Path)
}

func TestBuildWithoutFFmpegAcceptsWAVUploads(t *testing.T) {
	cfg := testConfig(t)
	cfg.FFmpegPath = "none"
	built, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = built.Cleanup() })

	pcm := bytes.Repeat([]byte{0x10, 0x20}, audio.SampleRate/10)
	wav, err := audio.EncodeWAVPCM16LE(pcm, audio.SampleRate)
	require.NoError(t, err)
	text, err := built.Bridge.Transcribe(context.Background(), bytes.NewReader(wav))
	require.NoError(t, err)
	assert.Equal(t, "simulated voice input", text)
}
