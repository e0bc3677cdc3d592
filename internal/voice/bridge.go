package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/accessally/accessally/internal/audio"
	"github.com/accessally/accessally/internal/observability"
	"github.com/accessally/accessally/internal/reliability"
)

const (
	// TempWAVPrefix names the short-lived recognizer inputs in the audio dir.
	TempWAVPrefix = "temp_stt_"
	// DefaultURLPrefix is where the static handler serves the audio dir.
	DefaultURLPrefix = "/static/audio"
	DefaultLanguage  = "en"
)

type BridgeConfig struct {
	AudioDir  string
	URLPrefix string
	Language  string
}

// Bridge adapts the speech backends to the request handlers and owns the
// on-disk artifacts they produce.
type Bridge struct {
	decoder     audio.Decoder
	recognizer  Recognizer
	synthesizer Synthesizer
	metrics     *observability.Metrics

	audioDir  string
	urlPrefix string
	language  string
}

func NewBridge(cfg BridgeConfig, decoder audio.Decoder, recognizer Recognizer, synthesizer Synthesizer, metrics *observability.Metrics) (*Bridge, error) {
	if strings.TrimSpace(cfg.AudioDir) == "" {
		return nil, errors.New("voice bridge: audio dir is required")
	}
	if err := os.MkdirAll(cfg.AudioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}
	prefix := strings.TrimRight(cfg.URLPrefix, "/")
	if prefix == "" {
		prefix = DefaultURLPrefix
	}
	lang := strings.TrimSpace(cfg.Language)
	if lang == "" {
		lang = DefaultLanguage
	}
	return &Bridge{
		decoder:     decoder,
		recognizer:  recognizer,
		synthesizer: synthesizer,
		metrics:     metrics,
		audioDir:    cfg.AudioDir,
		urlPrefix:   prefix,
		language:    lang,
	}, nil
}

func (b *Bridge) AudioDir() string { return b.audioDir }

// Transcribe decodes an uploaded recording and runs it through the
// recognizer. The temporary WAV it writes is removed on every path.
// Failures are ErrUnrecognized or ErrServiceUnavailable.
func (b *Bridge) Transcribe(ctx context.Context, r io.Reader) (string, error) {
	pcm, err := b.decoder.Decode(ctx, r)
	if err != nil {
		if errors.Is(err, audio.ErrEmptyRecording) {
			log.Warn().Str("op", "voice.transcribe").Msg("recording decoded to no samples")
			b.metrics.ObserveTranscription("unrecognized")
			return "", ErrUnrecognized
		}
		log.Error().Err(err).Str("op", "voice.transcribe").Msg("audio conversion failed")
		b.metrics.ObserveTranscription("decode_error")
		return "", fmt.Errorf("%w: decode: %v", ErrServiceUnavailable, err)
	}

	wavPath := filepath.Join(b.audioDir, TempWAVPrefix+uuid.NewString()+".wav")
	defer func() {
		if err := os.Remove(wavPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", wavPath).Msg("failed to remove temporary wav")
		}
	}()
	if err := audio.WriteWAVPCM16LEFile(wavPath, pcm, audio.SampleRate); err != nil {
		log.Error().Err(err).Str("path", wavPath).Msg("failed to write temporary wav")
		b.metrics.ObserveTranscription("io_error")
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	text, err := b.recognizer.Recognize(ctx, wavPath)
	switch {
	case errors.Is(err, ErrUnrecognized):
		log.Warn().Str("backend", b.recognizer.Name()).Msg("speech recognition could not understand audio")
		b.metrics.ObserveTranscription("unrecognized")
		return "", ErrUnrecognized
	case err != nil:
		log.Error().Err(err).Str("backend", b.recognizer.Name()).Msg("speech recognition service error")
		b.metrics.ObserveTranscription("service_error")
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		b.metrics.ObserveTranscription("unrecognized")
		return "", ErrUnrecognized
	}
	b.metrics.ObserveTranscription("ok")
	return text, nil
}

// Synthesize renders text to a new artifact and returns its URL, or "" when
// text is empty or synthesis fails.
func (b *Bridge) Synthesize(ctx context.Context, text, lang string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if lang == "" {
		lang = b.language
	}

	start := time.Now()
	clip, err := b.synthesizer.Synthesize(ctx, text, lang)
	b.metrics.ObserveSynthesis(b.synthesizer.Name(), time.Since(start), err)
	if err != nil {
		log.Error().Err(err).
			Str("backend", b.synthesizer.Name()).
			Bool("retryable", reliability.IsRetryable(err)).
			Msg("text-to-speech failed")
		return ""
	}
	ext := strings.TrimPrefix(clip.Ext, ".")
	if ext == "" {
		ext = "mp3"
	}
	name := uuid.NewString() + "." + ext
	if err := os.WriteFile(filepath.Join(b.audioDir, name), clip.Data, 0o644); err != nil {
		log.Error().Err(err).Str("path", name).Msg("failed to write synthesized audio")
		return ""
	}
	return path.Join(b.urlPrefix, name)
}
