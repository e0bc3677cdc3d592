package voice

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrUnrecognized means the recognizer heard no intelligible speech.
	ErrUnrecognized = errors.New("speech not recognized")
	// ErrServiceUnavailable means the recognition backend failed.
	ErrServiceUnavailable = errors.New("speech recognition service unavailable")
)

// Recognizer transcribes a mono PCM16 WAV file. It returns ErrUnrecognized
// when no speech could be understood; any other error is a service failure.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, wavPath string) (string, error)
}

// Audio is an encoded speech clip. Ext is the file extension without a dot.
type Audio struct {
	Data []byte
	Ext  string
}

type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text, lang string) (Audio, error)
}

// UnavailableRecognizer stands in when no recognition backend could be built.
// Every call fails as a service failure so uploads get the usual apology.
type UnavailableRecognizer struct {
	Reason string
}

func (u UnavailableRecognizer) Name() string { return "unavailable" }

func (u UnavailableRecognizer) Recognize(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: %s", ErrServiceUnavailable, u.Reason)
}
