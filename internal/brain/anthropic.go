package brain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

// AnthropicBackend calls the Messages API.
type AnthropicBackend struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicBackend(cfg Config, opts ...option.RequestOption) (*AnthropicBackend, error) {
	key := strings.TrimSpace(cfg.AnthropicAPIKey)
	if key == "" {
		return nil, errors.New("ANTHROPIC_API_KEY not found in environment variables")
	}
	model := strings.TrimSpace(cfg.AnthropicModel)
	if model == "" {
		model = DefaultAnthropicModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	base := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithMaxRetries(0),
	}
	c := anthropic.NewClient(append(base, opts...)...)
	return &AnthropicBackend{client: &c, model: model, maxTokens: 1024}, nil
}

func (a *AnthropicBackend) Name() string { return "anthropic" }

func (a *AnthropicBackend) Generate(ctx context.Context, req Request) (Response, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
	})
	if err != nil {
		return Response{}, fmt.Errorf("anthropic messages: %w", err)
	}
	if string(msg.StopReason) == "refusal" {
		return Response{}, fmt.Errorf("%w: stop reason refusal", ErrBlocked)
	}
	var sb strings.Builder
	for _, b := range msg.Content {
		if tb, ok := b.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(tb.Text)
		}
	}
	return Response{Text: sb.String()}, nil
}
