package voice

import (
	"context"
	"os"
	"unicode/utf8"

	"github.com/accessally/accessally/internal/audio"
)

// MockRecognizer is a local fallback used when no speech backend is configured.
// Silent recordings are reported as unrecognized.
type MockRecognizer struct {
	Text string
}

func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{Text: "simulated voice input"}
}

func (m *MockRecognizer) Name() string { return "mock" }

func (m *MockRecognizer) Recognize(_ context.Context, wavPath string) (string, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	pcm, _, err := audio.ReadWAVPCM16LE(f)
	if err != nil {
		return "", err
	}
	for _, b := range pcm {
		if b != 0 {
			return m.Text, nil
		}
	}
	return "", ErrUnrecognized
}

// MockSynthesizer produces silent WAV clips, roughly 60ms per character.
type MockSynthesizer struct{}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

func (m *MockSynthesizer) Name() string { return "mock" }

func (m *MockSynthesizer) Synthesize(_ context.Context, text, _ string) (Audio, error) {
	samples := utf8.RuneCountInString(text) * audio.SampleRate * 60 / 1000
	wav, err := audio.EncodeWAVPCM16LE(make([]byte, samples*2), audio.SampleRate)
	if err != nil {
		return Audio{}, err
	}
	return Audio{Data: wav, Ext: "wav"}, nil
}
