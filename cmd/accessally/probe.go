package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"

	"github.com/accessally/accessally/internal/audio"
)

type probeOptions struct {
	baseURL     string
	username    string
	turns       int
	texts       []string
	recognize   bool
	fetchAudio  bool
	clear       bool
	turnTimeout time.Duration
	interTurn   time.Duration
}

type probeChatResponse struct {
	BotResponse string  `json:"bot_response"`
	AudioURL    *string `json:"audio_url"`
}

type probeRecognizeResponse struct {
	RecognizedText string  `json:"recognized_text"`
	BotResponse    string  `json:"bot_response"`
	AudioURL       *string `json:"audio_url"`
}

type probeReport struct {
	Chat      []time.Duration
	Recognize []time.Duration
	Audio     []time.Duration
	NoAudio   int
}

var defaultProbeUtterances = []string{
	"Reply in three words: how are you?",
	"Reply in three words: what is today?",
	"Reply in three words: tell me something.",
}

func newProbeCmd() *cobra.Command {
	var (
		opts     probeOptions
		textsRaw string
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Replay synthetic turns against a running service and report latency",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.baseURL = strings.TrimRight(strings.TrimSpace(opts.baseURL), "/")
			if opts.baseURL == "" {
				return fmt.Errorf("base-url is required")
			}
			if opts.turns <= 0 {
				return fmt.Errorf("turns must be > 0")
			}
			opts.texts = splitUtterances(textsRaw)
			if len(opts.texts) == 0 {
				return fmt.Errorf("texts produced no non-empty utterances")
			}
			report, err := runProbe(cmd.Context(), opts, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			report.Print(cmd.OutOrStdout())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "base-url", "http://127.0.0.1:5000", "service base URL")
	f.StringVar(&opts.username, "username", "probe", "username the synthetic turns are recorded under")
	f.IntVar(&opts.turns, "turns", 5, "number of chat turns to replay")
	f.StringVar(&textsRaw, "texts", "", "utterances separated by '|' (optional)")
	f.BoolVar(&opts.recognize, "recognize", true, "also upload one synthetic recording to /recognize")
	f.BoolVar(&opts.fetchAudio, "fetch-audio", true, "download each returned audio_url")
	f.BoolVar(&opts.clear, "clear", true, "clear the probe user's records when done")
	f.DurationVar(&opts.turnTimeout, "turn-timeout", 60*time.Second, "per-request timeout")
	f.DurationVar(&opts.interTurn, "inter-turn", 0, "delay between turns")
	return cmd
}

func splitUtterances(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), defaultProbeUtterances...)
	}
	var out []string
	for _, part := range strings.Split(raw, "|") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func runProbe(ctx context.Context, opts probeOptions, progress io.Writer) (probeReport, error) {
	client := resty.New().
		SetBaseURL(opts.baseURL).
		SetTimeout(opts.turnTimeout)

	var report probeReport
	for i := 0; i < opts.turns; i++ {
		text := opts.texts[i%len(opts.texts)]
		fmt.Fprintf(progress, "probe: turn %d/%d text=%q\n", i+1, opts.turns, text)

		var out probeChatResponse
		start := time.Now()
		res, err := client.R().
			SetContext(ctx).
			SetBody(map[string]string{"username": opts.username, "message": text}).
			SetResult(&out).
			Post("/chat")
		if err != nil {
			return report, fmt.Errorf("turn %d chat: %w", i+1, err)
		}
		if res.StatusCode() != http.StatusOK {
			return report, fmt.Errorf("turn %d chat: HTTP %d: %s", i+1, res.StatusCode(), strings.TrimSpace(res.String()))
		}
		report.Chat = append(report.Chat, time.Since(start))

		if err := report.fetch(ctx, client, opts, out.AudioURL); err != nil {
			return report, fmt.Errorf("turn %d audio: %w", i+1, err)
		}
		if opts.interTurn > 0 && i < opts.turns-1 {
			time.Sleep(opts.interTurn)
		}
	}

	if opts.recognize {
		wav, err := audio.EncodeWAVPCM16LE(tonePCM(audio.SampleRate, 440, time.Second), audio.SampleRate)
		if err != nil {
			return report, err
		}
		var out probeRecognizeResponse
		start := time.Now()
		res, err := client.R().
			SetContext(ctx).
			SetFormData(map[string]string{"username": opts.username}).
			SetFileReader("audio_data", "probe.wav", bytes.NewReader(wav)).
			SetResult(&out).
			Post("/recognize")
		if err != nil {
			return report, fmt.Errorf("recognize: %w", err)
		}
		if res.StatusCode() != http.StatusOK {
			return report, fmt.Errorf("recognize: HTTP %d: %s", res.StatusCode(), strings.TrimSpace(res.String()))
		}
		report.Recognize = append(report.Recognize, time.Since(start))
		fmt.Fprintf(progress, "probe: recognized=%q\n", out.RecognizedText)
		if err := report.fetch(ctx, client, opts, out.AudioURL); err != nil {
			return report, fmt.Errorf("recognize audio: %w", err)
		}
	}

	if opts.clear {
		res, err := client.R().
			SetContext(ctx).
			SetBody(map[string]string{"username": opts.username}).
			Post("/clear")
		if err != nil {
			return report, fmt.Errorf("clear: %w", err)
		}
		if res.StatusCode() != http.StatusOK {
			return report, fmt.Errorf("clear: HTTP %d", res.StatusCode())
		}
	}
	return report, nil
}

func (r *probeReport) fetch(ctx context.Context, client *resty.Client, opts probeOptions, audioURL *string) error {
	if audioURL == nil {
		r.NoAudio++
		return nil
	}
	if !opts.fetchAudio {
		return nil
	}
	start := time.Now()
	res, err := client.R().SetContext(ctx).Get(*audioURL)
	if err != nil {
		return err
	}
	if res.StatusCode() != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d", *audioURL, res.StatusCode())
	}
	if len(res.Body()) == 0 {
		return fmt.Errorf("GET %s: empty body", *audioURL)
	}
	r.Audio = append(r.Audio, time.Since(start))
	return nil
}

func (r probeReport) Print(w io.Writer) {
	printLatency(w, "chat", r.Chat)
	printLatency(w, "recognize", r.Recognize)
	printLatency(w, "audio", r.Audio)
	if r.NoAudio > 0 {
		fmt.Fprintf(w, "probe: %d response(s) without audio\n", r.NoAudio)
	}
}

func printLatency(w io.Writer, name string, samples []time.Duration) {
	if len(samples) == 0 {
		return
	}
	fmt.Fprintf(w, "probe: %-9s n=%d p50=%s p95=%s max=%s\n",
		name, len(samples),
		percentile(samples, 0.50).Round(time.Millisecond),
		percentile(samples, 0.95).Round(time.Millisecond),
		percentile(samples, 1).Round(time.Millisecond))
}

// percentile uses nearest-rank on a sorted copy.
func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	rank = min(max(rank, 0), len(sorted)-1)
	return sorted[rank]
}

// tonePCM renders a sine tone as mono PCM16LE.
func tonePCM(sampleRate int, freq float64, d time.Duration) []byte {
	n := int(float64(sampleRate) * d.Seconds())
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		v := int16(0.3 * math.MaxInt16 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}
	return buf
}
