package brain

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/accessally/accessally/internal/reliability"
)

const (
	DefaultGeminiModel   = "gemini-1.5-flash"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
)

// GeminiBackend calls the generateContent REST method.
type GeminiBackend struct {
	client *resty.Client
	model  string
}

func NewGeminiBackend(cfg Config) (*GeminiBackend, error) {
	key := strings.TrimSpace(cfg.GeminiAPIKey)
	if key == "" {
		return nil, errors.New("GEMINI_API_KEY not found in environment variables")
	}
	model := strings.TrimSpace(cfg.GeminiModel)
	if model == "" {
		model = DefaultGeminiModel
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.GeminiBaseURL), "/")
	if base == "" {
		base = DefaultGeminiBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", key).
		SetTimeout(timeout)
	return &GeminiBackend{client: client, model: model}, nil
}

func (g *GeminiBackend) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (g *GeminiBackend) Generate(ctx context.Context, req Request) (Response, error) {
	var out geminiResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(geminiRequest{Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}}}).
		SetResult(&out).
		Post("/v1beta/models/" + url.PathEscape(g.model) + ":generateContent")
	if err != nil {
		return Response{}, fmt.Errorf("gemini request failed: %w", err)
	}
	if resp.IsError() {
		return Response{}, &reliability.StatusError{Backend: "gemini", Status: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}

	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return Response{}, fmt.Errorf("%w: %s", ErrBlocked, out.PromptFeedback.BlockReason)
	}
	if len(out.Candidates) == 0 {
		return Response{}, nil
	}
	cand := out.Candidates[0]
	switch cand.FinishReason {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST", "SPII":
		return Response{}, fmt.Errorf("%w: finish reason %s", ErrBlocked, cand.FinishReason)
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	return Response{Text: sb.String()}, nil
}
