package voice

import (
	"context"
	"fmt"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"github.com/accessally/accessally/internal/audio"
)

type GoogleConfig struct {
	CredentialsFile string
	Language        string
}

// GoogleRecognizer uses Cloud Speech-to-Text synchronous recognition.
type GoogleRecognizer struct {
	client   *speech.Client
	language string
}

// NewGoogleRecognizer falls back to Application Default Credentials when no
// credentials file is configured.
func NewGoogleRecognizer(ctx context.Context, cfg GoogleConfig) (*GoogleRecognizer, error) {
	var opts []option.ClientOption
	if f := strings.TrimSpace(cfg.CredentialsFile); f != "" {
		opts = append(opts, option.WithCredentialsFile(f))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	lang := strings.TrimSpace(cfg.Language)
	if lang == "" {
		lang = "en-US"
	}
	return &GoogleRecognizer{client: client, language: lang}, nil
}

func (g *GoogleRecognizer) Name() string { return "google" }

func (g *GoogleRecognizer) Recognize(ctx context.Context, wavPath string) (string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	pcm, rate, err := audio.ReadWAVPCM16LE(f)
	if err != nil {
		return "", err
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(rate),
			LanguageCode:    g.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		return "", fmt.Errorf("google speech recognize: %w", err)
	}

	text := bestTranscript(resp.GetResults())
	if text == "" {
		return "", ErrUnrecognized
	}
	return text, nil
}

// bestTranscript joins the top alternative of every result segment.
func bestTranscript(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func (g *GoogleRecognizer) Close() error {
	return g.client.Close()
}
