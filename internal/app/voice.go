package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/accessally/accessally/internal/audio"
	"github.com/accessally/accessally/internal/config"
	"github.com/accessally/accessally/internal/voice"
)

type speechSetup struct {
	recognizer  voice.Recognizer
	synthesizer voice.Synthesizer
	detail      string
	cleanup     func() error
}

func resolveSpeech(ctx context.Context, cfg config.Config) (speechSetup, error) {
	var setup speechSetup

	rec, recDetail, cleanup, err := resolveRecognizer(ctx, cfg)
	if err != nil {
		return speechSetup{}, err
	}
	setup.recognizer = rec
	setup.cleanup = cleanup

	syn, synDetail, err := resolveSynthesizer(cfg)
	if err != nil {
		if cleanup != nil {
			_ = cleanup()
		}
		return speechSetup{}, err
	}
	setup.synthesizer = syn
	setup.detail = fmt.Sprintf("stt=%s tts=%s", recDetail, synDetail)
	return setup, nil
}

func resolveRecognizer(ctx context.Context, cfg config.Config) (voice.Recognizer, string, func() error, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.STTProvider))
	if mode == "" {
		mode = "auto"
	}

	tryGoogle := func() (*voice.GoogleRecognizer, error) {
		return voice.NewGoogleRecognizer(ctx, voice.GoogleConfig{
			CredentialsFile: cfg.GoogleSpeechCredentialsFile,
			Language:        cfg.STTLanguage,
		})
	}
	tryWhisper := func() (*voice.WhisperRecognizer, error) {
		return voice.NewWhisperRecognizer(voice.WhisperConfig{
			CLI:       cfg.LocalWhisperCLI,
			ModelPath: cfg.LocalWhisperModelPath,
			Language:  cfg.STTLanguage,
		})
	}

	switch mode {
	case "google":
		g, err := tryGoogle()
		if err != nil {
			// Keep serving: uploads will get the service apology until credentials are fixed.
			log.Error().Err(err).Msg("google speech recognizer unavailable; audio uploads will fail")
			return voice.UnavailableRecognizer{Reason: err.Error()}, "unavailable (google init failed)", nil, nil
		}
		return g, "google", g.Close, nil
	case "whisper":
		w, err := tryWhisper()
		if err != nil {
			return nil, "", nil, fmt.Errorf("whisper recognizer init failed: %w", err)
		}
		return w, "whisper", nil, nil
	case "mock":
		return voice.NewMockRecognizer(), "mock", nil, nil
	case "auto":
		g, gErr := tryGoogle()
		if gErr == nil {
			return g, "google", g.Close, nil
		}
		w, wErr := tryWhisper()
		if wErr == nil {
			return w, "whisper (google unavailable)", nil, nil
		}
		log.Warn().
			AnErr("google_error", gErr).
			AnErr("whisper_error", wErr).
			Msg("no speech recognizer available; audio uploads will fail")
		reason := fmt.Sprintf("google: %v; whisper: %v", gErr, wErr)
		return voice.UnavailableRecognizer{Reason: reason}, "unavailable (google and whisper unavailable)", nil, nil
	default:
		return nil, "", nil, fmt.Errorf("invalid STT_PROVIDER: %q (expected auto|google|whisper|mock)", cfg.STTProvider)
	}
}

func resolveSynthesizer(cfg config.Config) (voice.Synthesizer, string, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.TTSProvider))
	if mode == "" {
		mode = "auto"
	}

	gtts := func() voice.Synthesizer {
		return voice.NewGTTSSynthesizer(voice.GTTSConfig{Timeout: cfg.BackendTimeout})
	}
	tryElevenLabs := func() (voice.Synthesizer, error) {
		return voice.NewElevenLabsSynthesizer(voice.ElevenLabsConfig{
			APIKey:    cfg.ElevenLabsAPIKey,
			WSBaseURL: cfg.ElevenLabsWSBaseURL,
			VoiceID:   cfg.ElevenLabsTTSVoiceID,
			ModelID:   cfg.ElevenLabsTTSModelID,
			Timeout:   cfg.BackendTimeout,
		})
	}

	switch mode {
	case "gtts":
		return gtts(), "gtts", nil
	case "elevenlabs":
		s, err := tryElevenLabs()
		if err == nil {
			return s, "elevenlabs", nil
		}
		// Be forgiving: a missing key falls back to gtts instead of refusing to start.
		log.Warn().Err(err).Msg("elevenlabs unavailable; falling back to gtts")
		return gtts(), "gtts (elevenlabs unavailable)", nil
	case "mock":
		return voice.NewMockSynthesizer(), "mock", nil
	case "auto":
		if strings.TrimSpace(cfg.ElevenLabsAPIKey) != "" {
			if s, err := tryElevenLabs(); err == nil {
				return s, "elevenlabs", nil
			}
		}
		return gtts(), "gtts", nil
	default:
		return nil, "", fmt.Errorf("invalid TTS_PROVIDER: %q (expected auto|gtts|elevenlabs|mock)", cfg.TTSProvider)
	}
}

// newDecoder returns the upload decoder. FFMPEG_PATH=none skips ffmpeg and
// accepts only WAV or raw PCM16LE uploads.
func newDecoder(cfg config.Config) audio.Decoder {
	if strings.EqualFold(strings.TrimSpace(cfg.FFmpegPath), "none") {
		return audio.PCMDecoder{}
	}
	return audio.NewFFmpegDecoder(cfg.FFmpegPath)
}
