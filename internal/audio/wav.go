// Package audio converts uploaded recordings into the PCM16 WAV form the
// recognizers consume.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// SampleRate is the rate every decoded recording is resampled to.
const SampleRate = 16000

var ErrNotWAV = errors.New("audio: not a PCM16 WAV stream")

// wavHeader is the canonical 44-byte RIFF header for mono PCM16LE.
type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

func newWAVHeader(pcmLen, sampleRate int) wavHeader {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	return wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + pcmLen),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2),
		BlockAlign:    2,
		BitsPerSample: 16,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(pcmLen),
	}
}

// EncodeWAVPCM16LE wraps raw PCM16LE mono samples in a WAV container.
func EncodeWAVPCM16LE(pcm []byte, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	if err := WriteWAVPCM16LETo(&buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVPCM16LEFile writes raw PCM16LE mono samples to path as a WAV file.
func WriteWAVPCM16LEFile(path string, pcm []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAVPCM16LETo(f, pcm, sampleRate); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func WriteWAVPCM16LETo(out io.Writer, pcm []byte, sampleRate int) error {
	if err := binary.Write(out, binary.LittleEndian, newWAVHeader(len(pcm), sampleRate)); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := out.Write(pcm); err != nil {
		return fmt.Errorf("write wav samples: %w", err)
	}
	return nil
}

// MaxWAVDataBytes bounds the data chunk ReadWAVPCM16LE will allocate.
const MaxWAVDataBytes = 32 << 20

// ReadWAVPCM16LE parses a canonical mono PCM16 WAV and returns its samples
// and sample rate.
func ReadWAVPCM16LE(r io.Reader) ([]byte, int, error) {
	var h wavHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(h.RIFF[:]) != "RIFF" || string(h.WAVE[:]) != "WAVE" || string(h.Data[:]) != "data" ||
		h.AudioFormat != 1 || h.BitsPerSample != 16 || h.NumChannels != 1 {
		return nil, 0, ErrNotWAV
	}
	if h.DataSize > MaxWAVDataBytes {
		return nil, 0, fmt.Errorf("%w: data chunk of %d bytes exceeds %d", ErrNotWAV, h.DataSize, MaxWAVDataBytes)
	}
	pcm := make([]byte, h.DataSize)
	if _, err := io.ReadFull(r, pcm); err != nil {
		return nil, 0, fmt.Errorf("%w: truncated samples: %v", ErrNotWAV, err)
	}
	return pcm, int(h.SampleRate), nil
}
