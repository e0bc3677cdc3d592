package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	status int
	body   string
	sent   []byte
}

func (f *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	f.sent, _ = io.ReadAll(req.Body)
	_ = req.Body.Close()
	resp := &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewReader([]byte(f.body))),
		Header:     make(http.Header),
		Request:    req,
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

func newTestAnthropic(t *testing.T, rt http.RoundTripper) *AnthropicBackend {
	t.Helper()
	a, err := NewAnthropicBackend(
		Config{AnthropicAPIKey: "test-key", AnthropicModel: "claude-test"},
		option.WithHTTPClient(&http.Client{Transport: rt}),
	)
	require.NoError(t, err)
	return a
}

func TestAnthropicGenerate(t *testing.T) {
	rt := &fakeTransport{status: 200, body: `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[{"type":"text","text":"Bonjour"}],"stop_reason":"end_turn"}`}
	resp, err := newTestAnthropic(t, rt).Generate(context.Background(), Request{Prompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", resp.Text)

	var sent struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rt.sent, &sent))
	assert.Equal(t, "claude-test", sent.Model)
	require.Len(t, sent.Messages, 1)
	assert.Equal(t, "user", sent.Messages[0].Role)
	assert.Equal(t, "hello", sent.Messages[0].Content[0].Text)
}

func TestAnthropicRefusalIsBlocked(t *testing.T) {
	rt := &fakeTransport{status: 200, body: `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"stop_reason":"refusal"}`}
	_, err := newTestAnthropic(t, rt).Generate(context.Background(), Request{Prompt: "hello"})
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestAnthropicHTTPError(t *testing.T) {
	rt := &fakeTransport{status: 400, body: `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`}
	_, err := newTestAnthropic(t, rt).Generate(context.Background(), Request{Prompt: "hello"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBlocked)
}
