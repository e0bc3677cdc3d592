package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ErrEmptyRecording is returned when decoding produced no samples.
var ErrEmptyRecording = errors.New("audio: recording contains no samples")

// Decoder turns an uploaded recording of any container into mono 16 kHz
// PCM16LE samples.
type Decoder interface {
	Decode(ctx context.Context, r io.Reader) ([]byte, error)
}

// FFmpegDecoder pipes the recording through an ffmpeg binary.
type FFmpegDecoder struct {
	Path string
}

func NewFFmpegDecoder(path string) *FFmpegDecoder {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegDecoder{Path: path}
}

// Decode spools the recording to a temp file first: MP4/M4A uploads often
// carry their moov atom at the end and ffmpeg cannot seek a pipe.
func (d *FFmpegDecoder) Decode(ctx context.Context, r io.Reader) ([]byte, error) {
	in, err := spool(r)
	if err != nil {
		return nil, err
	}
	defer os.Remove(in)

	cmd := exec.CommandContext(ctx, d.Path,
		"-hide_banner", "-loglevel", "error",
		"-i", in,
		"-ac", "1",
		"-ar", strconv.Itoa(SampleRate),
		"-f", "s16le",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("ffmpeg decode failed: %w: %s", err, detail)
		}
		return nil, fmt.Errorf("ffmpeg decode failed: %w", err)
	}
	pcm := stdout.Bytes()
	if len(pcm) < 2 {
		return nil, ErrEmptyRecording
	}
	// Drop a dangling odd byte so the sample stream stays aligned.
	return pcm[:len(pcm)&^1], nil
}

func spool(r io.Reader) (string, error) {
	f, err := os.CreateTemp("", "accessally-upload-*")
	if err != nil {
		return "", fmt.Errorf("spool recording: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("spool recording: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("spool recording: %w", err)
	}
	return f.Name(), nil
}

// PCMDecoder passes input through unchanged, accepting either a WAV stream or
// raw PCM16LE. Useful when clients already upload 16 kHz mono audio.
type PCMDecoder struct{}

func (PCMDecoder) Decode(_ context.Context, r io.Reader) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	if bytes.HasPrefix(raw, []byte("RIFF")) {
		pcm, _, err := ReadWAVPCM16LE(bytes.NewReader(raw))
		if err != nil {
			return nil, err
		}
		raw = pcm
	}
	if len(raw) < 2 {
		return nil, ErrEmptyRecording
	}
	return raw[:len(raw)&^1], nil
}
