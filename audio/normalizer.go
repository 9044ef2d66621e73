package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"vetvoice/validation"
)

var (
	ErrCorruptAudio = errors.New("audio payload could not be decoded")
	ErrEmptyInput   = errors.New("audio payload has zero duration")
)

// Normalizer converts an uploaded audio payload into the canonical waveform.
// WAV containers decode in process; compressed containers are transcoded to
// WAV by an ffmpeg subprocess first. Identical input bytes yield identical
// output bytes.
type Normalizer struct {
	logger     *zap.Logger
	ffmpegPath string
}

func NewNormalizer(logger *zap.Logger, ffmpegPath string) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Normalizer{logger: logger, ffmpegPath: ffmpegPath}
}

func (n *Normalizer) Normalize(ctx context.Context, data []byte, format validation.Format) (*Waveform, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	if format != validation.FormatWAV {
		transcoded, err := n.transcode(ctx, data, format)
		if err != nil {
			return nil, err
		}
		data = transcoded
	}

	wave, err := decodeWAV(data)
	if err != nil {
		return nil, err
	}

	n.logger.Debug("Audio normalized",
		zap.String("format", string(format)),
		zap.Float64("duration_seconds", wave.DurationSeconds()),
	)

	return wave, nil
}

func decodeWAV(data []byte) (*Waveform, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav container", ErrCorruptAudio)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptAudio, err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, ErrEmptyInput
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		return nil, fmt.Errorf("%w: no channels", ErrCorruptAudio)
	}
	rate := buf.Format.SampleRate
	if rate < 1 {
		return nil, fmt.Errorf("%w: invalid sample rate", ErrCorruptAudio)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth == 0 {
		bitDepth = canonicalBitDepth
	}
	scale := float64(int64(1) << (bitDepth - 1))

	// Downmix to mono by averaging channels.
	frames := len(buf.Data) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		mono[i] = sum / float64(channels) / scale
	}

	mono = resample(mono, rate, CanonicalSampleRate)
	if len(mono) == 0 {
		return nil, ErrEmptyInput
	}

	pcm := make([]byte, len(mono)*2)
	for i, s := range mono {
		v := math.Round(s * 32768)
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}

	return &Waveform{PCM: pcm, SampleRate: CanonicalSampleRate}, nil
}

// resample linearly interpolates samples from one rate to another.
func resample(samples []float64, from, to int) []float64 {
	if from == to || len(samples) == 0 {
		return samples
	}

	ratio := float64(from) / float64(to)
	outLen := int(float64(len(samples)) / ratio)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float64, outLen)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}

	return out
}

// transcode shells out to ffmpeg to turn a compressed container into a
// 16 kHz mono WAV. Temp files are used so ffmpeg can seek and finalize the
// output header.
func (n *Normalizer) transcode(ctx context.Context, data []byte, format validation.Format) ([]byte, error) {
	dir, err := os.MkdirTemp("", "vetvoice-audio-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input."+string(format))
	outPath := filepath.Join(dir, "output.wav")

	if err := os.WriteFile(inPath, data, 0o600); err != nil {
		return nil, err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, n.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", inPath,
		"-ac", "1",
		"-ar", fmt.Sprint(CanonicalSampleRate),
		"-f", "wav",
		outPath,
	)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		n.logger.Error("ffmpeg transcode failed",
			zap.String("format", string(format)),
			zap.String("stderr", stderr.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %s", ErrCorruptAudio, firstLine(stderr.String()))
	}

	return os.ReadFile(outPath)
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	if s == "" {
		return "decoder error"
	}
	return s
}
