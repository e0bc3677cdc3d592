package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessally/accessally/internal/history"
	"github.com/accessally/accessally/internal/observability"
	"github.com/accessally/accessally/internal/reliability"
)

type stubBackend struct {
	resp    Response
	err     error
	calls   int
	prompts []string
}

func (s *stubBackend) Name() string { return "stub" }

func (s *stubBackend) Generate(_ context.Context, req Request) (Response, error) {
	s.calls++
	s.prompts = append(s.prompts, req.Prompt)
	return s.resp, s.err
}

func TestRespondOutcomes(t *testing.T) {
	cases := []struct {
		name string
		resp Response
		err  error
		want string
	}{
		{"ok", Response{Text: "Paris."}, nil, "Paris."},
		{"blocked", Response{}, fmt.Errorf("%w: SAFETY", ErrBlocked), MsgBlocked},
		{"empty", Response{Text: "  \n"}, nil, MsgEmptyResponse},
		{"error", Response{}, errors.New("connection reset"), MsgInternalError},
		{"status", Response{}, &reliability.StatusError{Backend: "stub", Status: 500}, MsgInternalError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &stubBackend{resp: tc.resp, err: tc.err}
			e := NewEngine(b, nil)
			assert.Equal(t, tc.want, e.Respond(context.Background(), "What is the capital of France?"))
			assert.Equal(t, 1, b.calls)
			assert.Equal(t, []string{"What is the capital of France?"}, b.prompts)
		})
	}
}

func TestRespondEmptyPromptSkipsBackend(t *testing.T) {
	b := &stubBackend{resp: Response{Text: "x"}}
	e := NewEngine(b, nil)
	assert.Equal(t, MsgEmptyPrompt, e.Respond(context.Background(), ""))
	assert.Zero(t, b.calls)
}

func TestUnavailableEngine(t *testing.T) {
	e := NewEngine(Unavailable{Reason: "GEMINI_API_KEY not set"}, nil)
	assert.False(t, e.Available())
	assert.Equal(t, MsgUnavailable, e.Respond(context.Background(), ""))
	assert.Equal(t, MsgUnavailable, e.Respond(context.Background(), "hi"))
	assert.Equal(t, MsgUnavailable, e.Summarize(context.Background(), nil, SummaryShort))
}

func TestSummarizeGuards(t *testing.T) {
	b := &stubBackend{resp: Response{Text: "summary"}}
	e := NewEngine(b, nil)

	assert.Equal(t, MsgNoHistory, e.Summarize(context.Background(), nil, SummaryShort))
	assert.Equal(t, MsgBlankHistory, e.Summarize(context.Background(), []history.Turn{{Role: history.RoleUser, Text: "  "}}, SummaryShort))
	assert.Zero(t, b.calls)
}

func TestSummarizePromptsByLength(t *testing.T) {
	turns := []history.Turn{
		{Role: history.RoleUser, Text: "What is the capital of France?"},
		{Role: history.RoleBot, Text: "Paris."},
	}
	b := &stubBackend{resp: Response{Text: "You asked about France."}}
	e := NewEngine(b, nil)

	assert.Equal(t, "You asked about France.", e.Summarize(context.Background(), turns, SummaryShort))
	assert.Equal(t, "You asked about France.", e.Summarize(context.Background(), turns, SummaryLong))
	require.Len(t, b.prompts, 2)

	transcript := "User: What is the capital of France?\nBot: Paris."
	assert.Equal(t, "Please provide a very concise, one or two sentence summary of the main topic discussed in the following conversation:\n\n---\n"+transcript+"\n---", b.prompts[0])
	assert.Contains(t, b.prompts[1], "detailed summary, covering the key topics")
	assert.Contains(t, b.prompts[1], transcript)
}

func TestSummarizeOutcomes(t *testing.T) {
	turns := []history.Turn{{Role: history.RoleUser, Text: "hi"}}
	cases := []struct {
		resp Response
		err  error
		want string
	}{
		{Response{}, ErrBlocked, MsgSummaryBlocked},
		{Response{Text: ""}, nil, MsgSummaryEmpty},
		{Response{}, context.DeadlineExceeded, MsgSummaryError},
	}
	for _, tc := range cases {
		e := NewEngine(&stubBackend{resp: tc.resp, err: tc.err}, nil)
		assert.Equal(t, tc.want, e.Summarize(context.Background(), turns, SummaryLong))
	}
}

func TestParseSummaryLength(t *testing.T) {
	l, err := ParseSummaryLength("")
	require.NoError(t, err)
	assert.Equal(t, SummaryShort, l)

	l, err = ParseSummaryLength("long")
	require.NoError(t, err)
	assert.Equal(t, SummaryLong, l)

	_, err = ParseSummaryLength("medium")
	assert.ErrorIs(t, err, ErrInvalidSummaryLength)
}

func TestEngineRecordsOutcomes(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry(), "test")
	e := NewEngine(&stubBackend{err: context.DeadlineExceeded}, m)
	e.Respond(context.Background(), "hi")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BackendOutcomes.WithLabelValues("stub", "error_timeout")))
}

func TestGenerationFailureLogsRetryable(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	cases := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("generate: %w", &reliability.StatusError{Backend: "stub", Status: 503}), true},
		{&reliability.StatusError{Backend: "stub", Status: 400}, false},
		{errors.New("boom"), false},
	}
	for _, tc := range cases {
		buf.Reset()
		e := NewEngine(&stubBackend{err: tc.err}, nil)
		assert.Equal(t, MsgInternalError, e.Respond(context.Background(), "hi"))

		var failed map[string]any
		for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
			var entry map[string]any
			require.NoError(t, json.Unmarshal(line, &entry))
			if entry["message"] == "generation failed" {
				failed = entry
			}
		}
		require.NotNil(t, failed, "no generation failure logged for %v", tc.err)
		assert.Equal(t, tc.want, failed["retryable"], "err %v", tc.err)
	}
}

func TestNewBackendDegradesToUnavailable(t *testing.T) {
	b := NewBackend(Config{Provider: "gemini"})
	u, ok := b.(Unavailable)
	require.True(t, ok)
	assert.Contains(t, u.Reason, "GEMINI_API_KEY")

	_, err := b.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, ok = NewBackend(Config{Provider: "anthropic"}).(Unavailable)
	assert.True(t, ok)
	_, ok = NewBackend(Config{Provider: "auto"}).(Unavailable)
	assert.True(t, ok)
	_, ok = NewBackend(Config{Provider: "llama"}).(Unavailable)
	assert.True(t, ok)
}

func TestNewBackendSelects(t *testing.T) {
	assert.Equal(t, "mock", NewBackend(Config{Provider: "mock"}).Name())
	assert.Equal(t, "gemini", NewBackend(Config{GeminiAPIKey: "k"}).Name())
	assert.Equal(t, "anthropic", NewBackend(Config{Provider: "auto", AnthropicAPIKey: "k"}).Name())
}

func TestMockBackend(t *testing.T) {
	m := NewMockBackend()
	resp, err := m.Generate(context.Background(), Request{Prompt: " hello "})
	require.NoError(t, err)
	assert.Equal(t, "I heard you: hello", resp.Text)

	_, err = m.Generate(context.Background(), Request{Prompt: "[blocked] stuff"})
	assert.ErrorIs(t, err, ErrBlocked)
}
