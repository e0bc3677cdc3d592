package voice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/accessally/accessally/internal/reliability"
)

type ElevenLabsConfig struct {
	APIKey       string
	WSBaseURL    string
	VoiceID      string
	ModelID      string
	OutputFormat string
	Timeout      time.Duration
}

// ElevenLabsSynthesizer renders a whole reply through the stream-input
// websocket and collects the audio frames into one clip.
type ElevenLabsSynthesizer struct {
	cfg ElevenLabsConfig
}

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) (*ElevenLabsSynthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("ELEVENLABS_API_KEY is required")
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		return nil, errors.New("ELEVENLABS_TTS_VOICE_ID is required")
	}
	if strings.TrimSpace(cfg.WSBaseURL) == "" {
		cfg.WSBaseURL = "wss://api.elevenlabs.io"
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	if strings.TrimSpace(cfg.OutputFormat) == "" {
		cfg.OutputFormat = "mp3_44100_128"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &ElevenLabsSynthesizer{cfg: cfg}, nil
}

func (e *ElevenLabsSynthesizer) Name() string { return "elevenlabs" }

// supportsLanguageCode reports whether the model accepts a language_code
// hint. Other models reject the request when it is present.
func supportsLanguageCode(modelID string) bool {
	switch strings.ToLower(strings.TrimSpace(modelID)) {
	case "eleven_turbo_v2_5", "eleven_flash_v2_5":
		return true
	default:
		return false
	}
}

type elevenMessage struct {
	Audio       string `json:"audio"`
	IsFinal     bool   `json:"isFinal"`
	Error       string `json:"error"`
	MessageType string `json:"message_type"`
}

func (e *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, lang string) (Audio, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, errors.New("elevenlabs: empty text")
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	u, err := url.Parse(strings.TrimRight(e.cfg.WSBaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(e.cfg.VoiceID) + "/stream-input")
	if err != nil {
		return Audio{}, err
	}
	q := u.Query()
	q.Set("model_id", e.cfg.ModelID)
	q.Set("output_format", e.cfg.OutputFormat)
	if lang != "" && supportsLanguageCode(e.cfg.ModelID) {
		q.Set("language_code", lang)
	}
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("xi-api-key", e.cfg.APIKey)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return Audio{}, &reliability.StatusError{Backend: "elevenlabs", Status: resp.StatusCode}
		}
		return Audio{}, fmt.Errorf("dial tts websocket: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for _, msg := range []map[string]any{
		{"text": " ", "voice_settings": map[string]any{"stability": 0.42, "similarity_boost": 0.85, "speed": 1.0}},
		{"text": strings.TrimSpace(text) + " ", "try_trigger_generation": true},
		{"text": ""},
	} {
		if err := conn.WriteJSON(msg); err != nil {
			return Audio{}, fmt.Errorf("write tts websocket: %w", err)
		}
	}

	var out []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Audio{}, ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && len(out) > 0 {
				break
			}
			return Audio{}, fmt.Errorf("read tts websocket: %w", err)
		}
		var msg elevenMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Error != "" {
			return Audio{}, fmt.Errorf("elevenlabs %s: %s (retryable=%t)", msg.MessageType, msg.Error,
				reliability.IsRetryableRealtimeMessageType(msg.MessageType))
		}
		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return Audio{}, fmt.Errorf("decode tts audio: %w", err)
			}
			out = append(out, chunk...)
		}
		if msg.IsFinal {
			break
		}
	}
	if len(out) == 0 {
		return Audio{}, errors.New("elevenlabs: no audio received")
	}
	return Audio{Data: out, Ext: "mp3"}, nil
}
