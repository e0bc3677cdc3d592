package voice

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"

	"github.com/accessally/accessally/internal/reliability"
)

const (
	gttsDefaultBaseURL = "https://translate.google.com"
	gttsMaxChunkRunes  = 100
	gttsUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

type GTTSConfig struct {
	BaseURL string
	Timeout time.Duration
}

// GTTSSynthesizer fetches MP3 speech from the Google Translate TTS endpoint.
type GTTSSynthesizer struct {
	client *resty.Client
}

func NewGTTSSynthesizer(cfg GTTSConfig) *GTTSSynthesizer {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = gttsDefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client := resty.New().
		SetBaseURL(base).
		SetHeader("User-Agent", gttsUserAgent).
		SetHeader("Referer", base+"/").
		SetTimeout(timeout)
	return &GTTSSynthesizer{client: client}
}

func (g *GTTSSynthesizer) Name() string { return "gtts" }

// Synthesize requests each chunk in order and concatenates the MP3 frames.
func (g *GTTSSynthesizer) Synthesize(ctx context.Context, text, lang string) (Audio, error) {
	chunks := splitForTTS(text, gttsMaxChunkRunes)
	if len(chunks) == 0 {
		return Audio{}, fmt.Errorf("gtts: no speakable text")
	}
	if lang == "" {
		lang = "en"
	}

	var out []byte
	for i, chunk := range chunks {
		resp, err := g.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"ie":      "UTF-8",
				"client":  "tw-ob",
				"tl":      lang,
				"q":       chunk,
				"total":   strconv.Itoa(len(chunks)),
				"idx":     strconv.Itoa(i),
				"textlen": strconv.Itoa(utf8.RuneCountInString(chunk)),
			}).
			Get("/translate_tts")
		if err != nil {
			return Audio{}, fmt.Errorf("gtts request failed: %w", err)
		}
		if resp.IsError() {
			return Audio{}, &reliability.StatusError{Backend: "gtts", Status: resp.StatusCode(), Body: truncateBody(resp.String())}
		}
		out = append(out, resp.Body()...)
	}
	if len(out) == 0 {
		return Audio{}, fmt.Errorf("gtts: empty audio response")
	}
	return Audio{Data: out, Ext: "mp3"}, nil
}

// splitForTTS breaks text into pieces of at most max runes, preferring
// whitespace boundaries. Words longer than max are cut.
func splitForTTS(text string, max int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
		curLen = 0
	}
	for _, word := range strings.Fields(text) {
		wl := utf8.RuneCountInString(word)
		for wl > max {
			flush()
			r := []rune(word)
			chunks = append(chunks, string(r[:max]))
			word = string(r[max:])
			wl -= max
		}
		if curLen > 0 && curLen+1+wl > max {
			flush()
		}
		if curLen > 0 {
			cur.WriteByte(' ')
			curLen++
		}
		cur.WriteString(word)
		curLen += wl
	}
	flush()
	return chunks
}

func truncateBody(s string) string {
	const limit = 256
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
