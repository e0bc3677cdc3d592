package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

type WhisperConfig struct {
	CLI       string
	ModelPath string
	Language  string
	Threads   int
}

// WhisperRecognizer runs the whisper.cpp CLI on each recording.
type WhisperRecognizer struct {
	cliPath   string
	modelPath string
	language  string
	threads   int
}

func NewWhisperRecognizer(cfg WhisperConfig) (*WhisperRecognizer, error) {
	cli := strings.TrimSpace(cfg.CLI)
	if cli == "" {
		cli = "whisper-cli"
	}
	cliPath, err := exec.LookPath(cli)
	if err != nil {
		return nil, fmt.Errorf("whisper.cpp CLI not found (%s)", cli)
	}
	modelPath := strings.TrimSpace(cfg.ModelPath)
	if modelPath == "" {
		return nil, fmt.Errorf("LOCAL_WHISPER_MODEL_PATH is required")
	}
	if !filepath.IsAbs(modelPath) {
		if abs, err := filepath.Abs(modelPath); err == nil {
			modelPath = abs
		}
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("whisper.cpp model not found: %s", modelPath)
	}
	lang := strings.TrimSpace(cfg.Language)
	if lang == "" {
		lang = "en"
	}
	// whisper wants a bare language code, not a locale.
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	threads := cfg.Threads
	if threads <= 0 {
		threads = min(max(runtime.NumCPU(), 2), 8)
	}
	return &WhisperRecognizer{
		cliPath:   cliPath,
		modelPath: modelPath,
		language:  strings.ToLower(lang),
		threads:   threads,
	}, nil
}

func (w *WhisperRecognizer) Name() string { return "whisper" }

func (w *WhisperRecognizer) Recognize(ctx context.Context, wavPath string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "accessally-whisper-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmpDir)
	outPrefix := filepath.Join(tmpDir, "out")

	args := []string{
		"-m", w.modelPath,
		"-f", wavPath,
		"-l", w.language,
		"-t", strconv.Itoa(w.threads),
		"-otxt",
		"-of", outPrefix,
		"-nt",
	}
	cmd := exec.CommandContext(ctx, w.cliPath, args...)
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("whisper.cpp interrupted: %w", ctxErr)
		}
		detail := strings.TrimSpace(stderr.String())
		// whisper.cpp is chatty; keep the tail.
		if len(detail) > 4<<10 {
			detail = strings.TrimSpace(detail[len(detail)-(4<<10):])
		}
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("whisper.cpp failed: %s", detail)
	}

	b, err := os.ReadFile(outPrefix + ".txt")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrUnrecognized
		}
		return "", err
	}
	text := cleanWhisperText(string(b))
	if text == "" {
		return "", ErrUnrecognized
	}
	return text, nil
}

// cleanWhisperText drops whisper's non-speech markers such as [BLANK_AUDIO].
func cleanWhisperText(raw string) string {
	fields := strings.Fields(raw)
	out := fields[:0]
	for _, f := range fields {
		if strings.HasPrefix(f, "[") && strings.HasSuffix(f, "]") {
			continue
		}
		if strings.HasPrefix(f, "(") && strings.HasSuffix(f, ")") {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}
