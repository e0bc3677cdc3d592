package voice

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessally/accessally/internal/reliability"
)

func TestSplitForTTS(t *testing.T) {
	assert.Empty(t, splitForTTS("   ", 100))
	assert.Equal(t, []string{"hello world"}, splitForTTS("  hello   world ", 100))

	long := strings.Repeat("word ", 60)
	chunks := splitForTTS(long, 100)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
	}
	assert.Equal(t, strings.Join(strings.Fields(long), " "), strings.Join(chunks, " "))

	giant := strings.Repeat("é", 250)
	chunks = splitForTTS(giant, 100)
	require.Len(t, chunks, 3)
	assert.Equal(t, 50, utf8.RuneCountInString(chunks[2]))
}

func TestGTTSSynthesizeConcatenatesChunks(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/translate_tts", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "tw-ob", q.Get("client"))
		assert.Equal(t, "de", q.Get("tl"))
		mu.Lock()
		seen = append(seen, q.Get("q"))
		mu.Unlock()
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("[" + q.Get("idx") + "]"))
	}))
	defer srv.Close()

	g := NewGTTSSynthesizer(GTTSConfig{BaseURL: srv.URL})
	text := strings.Repeat("hallo ", 40)
	clip, err := g.Synthesize(context.Background(), text, "de")
	require.NoError(t, err)
	assert.Equal(t, "mp3", clip.Ext)
	assert.Equal(t, "[0][1][2]", string(clip.Data))
	assert.Len(t, seen, 3)
}

func TestGTTSSynthesizeUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGTTSSynthesizer(GTTSConfig{BaseURL: srv.URL})
	_, err := g.Synthesize(context.Background(), "hello", "en")
	var se *reliability.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Status)
	assert.Equal(t, reliability.KindRateLimited, reliability.Classify(err))
}

func TestGTTSSynthesizeNothingToSay(t *testing.T) {
	g := NewGTTSSynthesizer(GTTSConfig{BaseURL: "http://127.0.0.1:1"})
	_, err := g.Synthesize(context.Background(), " \n ", "en")
	assert.Error(t, err)
}
