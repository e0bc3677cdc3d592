package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/accessally/accessally/internal/brain"
	"github.com/accessally/accessally/internal/config"
	"github.com/accessally/accessally/internal/history"
	"github.com/accessally/accessally/internal/httpapi"
	"github.com/accessally/accessally/internal/notes"
	"github.com/accessally/accessally/internal/observability"
	"github.com/accessally/accessally/internal/store"
	"github.com/accessally/accessally/internal/voice"
)

// AudioSubdir is the directory under STATIC_DIR that holds speech artifacts.
const AudioSubdir = "audio"

type SpeechInfo struct {
	Recognizer  string
	Synthesizer string
	Detail      string
}

type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Engine   *brain.Engine
	Bridge   *voice.Bridge
	Janitor  *voice.Janitor
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Speech   SpeechInfo

	// Cleanup should be called on shutdown to release external resources (DB, speech clients, etc).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry, cfg.MetricsNamespace)

	records, err := store.New(ctx, store.Config{
		Driver:        cfg.StoreDriver,
		HistoryDir:    cfg.HistoryDir,
		NotesDir:      cfg.NotesDir,
		SQLitePath:    cfg.SQLitePath,
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("record store init failed: %w", err)
	}

	backend := brain.NewBackend(brain.Config{
		Provider:        cfg.GenerationProvider,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		GeminiModel:     cfg.GeminiModel,
		GeminiBaseURL:   cfg.GeminiBaseURL,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		AnthropicModel:  cfg.AnthropicModel,
		Timeout:         cfg.BackendTimeout,
	})
	engine := brain.NewEngine(backend, metrics)

	speech, err := resolveSpeech(ctx, cfg)
	if err != nil {
		_ = records.Close()
		return nil, err
	}

	audioDir := filepath.Join(cfg.StaticDir, AudioSubdir)
	bridge, err := voice.NewBridge(voice.BridgeConfig{
		AudioDir: audioDir,
		Language: cfg.TTSLanguage,
	}, newDecoder(cfg), speech.recognizer, speech.synthesizer, metrics)
	if err != nil {
		if speech.cleanup != nil {
			_ = speech.cleanup()
		}
		_ = records.Close()
		return nil, err
	}
	janitor := voice.NewJanitor(audioDir, cfg.AudioRetention, metrics)

	api := httpapi.New(cfg, httpapi.Deps{
		History:  history.NewStore(records),
		Notes:    notes.NewStore(records),
		Locker:   history.NewLocker(),
		Dialogue: engine,
		Speech:   bridge,
		Metrics:  metrics,
		Gatherer: registry,
	})

	cleanup := func() error {
		var errs []string
		if speech.cleanup != nil {
			if err := speech.cleanup(); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if err := records.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Engine:   engine,
		Bridge:   bridge,
		Janitor:  janitor,
		Metrics:  metrics,
		Registry: registry,
		Speech: SpeechInfo{
			Recognizer:  speech.recognizer.Name(),
			Synthesizer: speech.synthesizer.Name(),
			Detail:      speech.detail,
		},
		Cleanup: cleanup,
	}, nil
}
