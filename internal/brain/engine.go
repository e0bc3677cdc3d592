package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/accessally/accessally/internal/history"
	"github.com/accessally/accessally/internal/observability"
	"github.com/accessally/accessally/internal/policy"
	"github.com/accessally/accessally/internal/reliability"
)

const (
	MsgUnavailable   = "Error: The AI Chatbot is currently unavailable."
	MsgEmptyPrompt   = "Please provide a message."
	MsgBlocked       = "I cannot respond to that request due to safety guidelines."
	MsgEmptyResponse = "I received an empty response. Could you try rephrasing?"
	MsgInternalError = "Sorry, I encountered an internal error while processing your request."

	MsgNoHistory      = "There is no conversation history to summarize."
	MsgBlankHistory   = "The conversation history appears empty."
	MsgSummaryBlocked = "I cannot summarize this conversation due to safety guidelines."
	MsgSummaryEmpty   = "I couldn't generate a summary for this conversation. It might be too short or lack clear topics."
	MsgSummaryError   = "Sorry, I couldn't summarize the conversation due to an internal error."
)

type SummaryLength string

const (
	SummaryShort SummaryLength = "short"
	SummaryLong  SummaryLength = "long"
)

var ErrInvalidSummaryLength = errors.New("invalid summary length")

// ParseSummaryLength accepts "short" (also the default for "") and "long".
func ParseSummaryLength(s string) (SummaryLength, error) {
	switch SummaryLength(s) {
	case "", SummaryShort:
		return SummaryShort, nil
	case SummaryLong:
		return SummaryLong, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSummaryLength, s)
	}
}

// Engine maps backend outcomes onto the fixed user-facing replies. It never
// returns an error; every failure becomes a sentence the user can hear.
type Engine struct {
	backend     Backend
	metrics     *observability.Metrics
	unavailable bool
}

func NewEngine(backend Backend, metrics *observability.Metrics) *Engine {
	_, unavailable := backend.(Unavailable)
	return &Engine{backend: backend, metrics: metrics, unavailable: unavailable}
}

func (e *Engine) Available() bool { return !e.unavailable }

func (e *Engine) BackendName() string { return e.backend.Name() }

// Respond answers a single prompt. No conversation history is sent.
func (e *Engine) Respond(ctx context.Context, prompt string) string {
	if e.unavailable {
		log.Error().Str("op", "brain.respond").Msg("generation backend not available")
		return MsgUnavailable
	}
	if prompt == "" {
		return MsgEmptyPrompt
	}
	log.Info().Str("backend", e.backend.Name()).Str("prompt", policy.LogPreview(prompt)).Msg("sending prompt")
	return e.generate(ctx, prompt, replies{
		blocked: MsgBlocked,
		empty:   MsgEmptyResponse,
		failed:  MsgInternalError,
	})
}

// Summarize digests a conversation at the requested length.
func (e *Engine) Summarize(ctx context.Context, turns []history.Turn, length SummaryLength) string {
	if e.unavailable {
		log.Error().Str("op", "brain.summarize").Msg("generation backend not available for summary")
		return MsgUnavailable
	}
	if len(turns) == 0 {
		return MsgNoHistory
	}
	transcript, blank := Transcript(turns)
	if blank {
		return MsgBlankHistory
	}
	log.Info().Str("backend", e.backend.Name()).Str("length", string(length)).Msg("requesting summary")
	return e.generate(ctx, SummaryPrompt(transcript, length), replies{
		blocked: MsgSummaryBlocked,
		empty:   MsgSummaryEmpty,
		failed:  MsgSummaryError,
	})
}

type replies struct {
	blocked, empty, failed string
}

func (e *Engine) generate(ctx context.Context, prompt string, r replies) string {
	name := e.backend.Name()
	resp, err := e.backend.Generate(ctx, Request{Prompt: prompt})
	switch {
	case errors.Is(err, ErrBlocked):
		log.Warn().Err(err).Str("backend", name).Msg("generation blocked")
		e.metrics.ObserveBackendOutcome(name, "blocked")
		return r.blocked
	case errors.Is(err, ErrUnavailable):
		e.metrics.ObserveBackendOutcome(name, "unavailable")
		return MsgUnavailable
	case err != nil:
		kind := reliability.Classify(err)
		log.Error().Err(err).
			Str("backend", name).
			Str("kind", kind).
			Bool("retryable", reliability.IsRetryable(err)).
			Msg("generation failed")
		e.metrics.ObserveBackendOutcome(name, "error_"+kind)
		return r.failed
	}
	if strings.TrimSpace(resp.Text) == "" {
		log.Warn().Str("backend", name).Msg("generation returned an empty response")
		e.metrics.ObserveBackendOutcome(name, "empty")
		return r.empty
	}
	e.metrics.ObserveBackendOutcome(name, "ok")
	return resp.Text
}

// Transcript renders turns as "Role: text" lines. blank reports whether no
// turn carries any text.
func Transcript(turns []history.Turn) (text string, blank bool) {
	lines := make([]string, 0, len(turns))
	blank = true
	for _, t := range turns {
		lines = append(lines, t.Role.Label()+": "+t.Text)
		if strings.TrimSpace(t.Text) != "" {
			blank = false
		}
	}
	return strings.Join(lines, "\n"), blank
}

func SummaryPrompt(transcript string, length SummaryLength) string {
	if length == SummaryLong {
		return "Please provide a detailed summary, covering the key topics, questions asked, and main conclusions or answers provided in the following conversation:\n\n---\n" + transcript + "\n---"
	}
	return "Please provide a very concise, one or two sentence summary of the main topic discussed in the following conversation:\n\n---\n" + transcript + "\n---"
}
