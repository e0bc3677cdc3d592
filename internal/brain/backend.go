// Package brain turns user prompts and conversation transcripts into replies
// from a text-generation backend.
package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrBlocked is returned when the backend refused the prompt on safety grounds.
	ErrBlocked = errors.New("generation blocked by safety filter")
	// ErrUnavailable is returned by a backend that was never configured.
	ErrUnavailable = errors.New("generation backend unavailable")
)

type Request struct {
	Prompt string
}

type Response struct {
	Text string
}

// Backend is a text-generation service.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// Unavailable stands in for a backend that could not be constructed.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Name() string { return "unavailable" }

func (u Unavailable) Generate(context.Context, Request) (Response, error) {
	return Response{}, fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}

// Config controls backend construction.
type Config struct {
	Provider        string
	GeminiAPIKey    string
	GeminiModel     string
	GeminiBaseURL   string
	AnthropicAPIKey string
	AnthropicModel  string
	Timeout         time.Duration
}

// NewBackend never fails: a missing credential or construction error yields an
// Unavailable backend so the service can still start.
func NewBackend(cfg Config) Backend {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "gemini"
	}

	var (
		b   Backend
		err error
	)
	switch provider {
	case "auto":
		switch {
		case strings.TrimSpace(cfg.GeminiAPIKey) != "":
			b, err = NewGeminiBackend(cfg)
		case strings.TrimSpace(cfg.AnthropicAPIKey) != "":
			b, err = NewAnthropicBackend(cfg)
		default:
			err = errors.New("neither GEMINI_API_KEY nor ANTHROPIC_API_KEY is set")
		}
	case "gemini":
		b, err = NewGeminiBackend(cfg)
	case "anthropic":
		b, err = NewAnthropicBackend(cfg)
	case "mock":
		b = NewMockBackend()
	default:
		err = fmt.Errorf("unsupported generation provider %q", cfg.Provider)
	}
	if err != nil {
		log.Error().Err(err).Str("backend", provider).Msg("CRITICAL: generation backend not configured; chat will report unavailability")
		return Unavailable{Reason: err.Error()}
	}
	log.Info().Str("backend", b.Name()).Msg("generation backend configured")
	return b
}
