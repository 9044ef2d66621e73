package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap/zaptest"

	"vetvoice/validation"
)

func makeWAV(t *testing.T, channels, sampleRate int, samples []int16) []byte {
	t.Helper()

	var buf bytes.Buffer
	dataLen := uint32(len(samples) * 2)
	byteRate := uint32(sampleRate * channels * 2)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	for _, s := range samples {
		binary.Write(&buf, binary.LittleEndian, s)
	}

	return buf.Bytes()
}

// sine returns count frames of a sine wave replicated across channels.
func sine(channels, count int) []int16 {
	samples := make([]int16, 0, count*channels)
	for i := 0; i < count; i++ {
		v := int16(10000 * math.Sin(2*math.Pi*440*float64(i)/16000))
		for c := 0; c < channels; c++ {
			samples = append(samples, v)
		}
	}
	return samples
}

func TestNormalizer_Normalize_CanonicalWAVPassesThrough(t *testing.T) {
	n := NewNormalizer(zaptest.NewLogger(t), "")

	data := makeWAV(t, 1, 16000, sine(1, 16000*3))

	wave, err := n.Normalize(context.Background(), data, validation.FormatWAV)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if wave.SampleRate != CanonicalSampleRate {
		t.Errorf("Expected sample rate %d, got %d", CanonicalSampleRate, wave.SampleRate)
	}
	if d := wave.DurationSeconds(); math.Abs(d-3.0) > 0.01 {
		t.Errorf("Expected duration ~3s, got %.3f", d)
	}
}

func TestNormalizer_Normalize_DownmixesStereo(t *testing.T) {
	n := NewNormalizer(zaptest.NewLogger(t), "")

	data := makeWAV(t, 2, 16000, sine(2, 16000))

	wave, err := n.Normalize(context.Background(), data, validation.FormatWAV)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if d := wave.DurationSeconds(); math.Abs(d-1.0) > 0.01 {
		t.Errorf("Expected duration ~1s after downmix, got %.3f", d)
	}
}

func TestNormalizer_Normalize_Resamples(t *testing.T) {
	n := NewNormalizer(zaptest.NewLogger(t), "")

	data := makeWAV(t, 1, 44100, sine(1, 44100*2))

	wave, err := n.Normalize(context.Background(), data, validation.FormatWAV)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if wave.SampleRate != CanonicalSampleRate {
		t.Errorf("Expected sample rate %d, got %d", CanonicalSampleRate, wave.SampleRate)
	}
	if d := wave.DurationSeconds(); math.Abs(d-2.0) > 0.01 {
		t.Errorf("Expected duration ~2s after resample, got %.3f", d)
	}
}

func TestNormalizer_Normalize_Deterministic(t *testing.T) {
	n := NewNormalizer(zaptest.NewLogger(t), "")

	data := makeWAV(t, 2, 44100, sine(2, 44100))

	first, err := n.Normalize(context.Background(), data, validation.FormatWAV)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	second, err := n.Normalize(context.Background(), data, validation.FormatWAV)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if !bytes.Equal(first.PCM, second.PCM) {
		t.Error("Identical input produced different output bytes")
	}
}

func TestNormalizer_Normalize_CorruptContainer(t *testing.T) {
	n := NewNormalizer(zaptest.NewLogger(t), "")

	data := append([]byte("RIFF\x10\x00\x00\x00WAVE"), []byte("garbage not chunks")...)

	_, err := n.Normalize(context.Background(), data, validation.FormatWAV)
	if !errors.Is(err, ErrCorruptAudio) && !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected decode error, got %v", err)
	}
}

func TestNormalizer_Normalize_EmptyPayload(t *testing.T) {
	n := NewNormalizer(zaptest.NewLogger(t), "")

	_, err := n.Normalize(context.Background(), nil, validation.FormatWAV)
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
}

func TestWaveform_WAVRoundTrip(t *testing.T) {
	original := &Waveform{
		PCM:        bytes.Repeat([]byte{0x12, 0x03}, 16000),
		SampleRate: CanonicalSampleRate,
	}

	decoded, err := decodeWAV(original.WAV())
	if err != nil {
		t.Fatalf("decodeWAV failed: %v", err)
	}

	if decoded.SampleRate != original.SampleRate {
		t.Errorf("Expected sample rate %d, got %d", original.SampleRate, decoded.SampleRate)
	}
	if !bytes.Equal(decoded.PCM, original.PCM) {
		t.Error("PCM did not survive the container round trip")
	}
}

func TestWaveform_DurationSeconds(t *testing.T) {
	w := &Waveform{PCM: make([]byte, 16000*2*3), SampleRate: 16000}
	if d := w.DurationSeconds(); math.Abs(d-3.0) > 1e-9 {
		t.Errorf("Expected 3s, got %f", d)
	}
}
