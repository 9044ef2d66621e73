package audio

import (
	"bytes"
	"encoding/binary"
)

const (
	// CanonicalSampleRate is the decoded representation the speech engine
	// expects: 16 kHz, mono, 16-bit linear PCM.
	CanonicalSampleRate = 16000
	canonicalBitDepth   = 16
)

// Waveform is the canonical decoded audio: little-endian 16-bit mono PCM.
type Waveform struct {
	PCM        []byte
	SampleRate int
}

// Frames returns the number of PCM samples.
func (w *Waveform) Frames() int {
	return len(w.PCM) / 2
}

// DurationSeconds returns the audio duration implied by the sample count.
func (w *Waveform) DurationSeconds() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(w.Frames()) / float64(w.SampleRate)
}

// WAV wraps the PCM data in a minimal RIFF/WAVE container. The header is
// fixed-size for 16-bit mono PCM, so it is assembled directly instead of
// routing through an encoder that requires an io.WriteSeeker.
func (w *Waveform) WAV() []byte {
	var buf bytes.Buffer

	dataLen := uint32(len(w.PCM))
	byteRate := uint32(w.SampleRate * canonicalBitDepth / 8)
	blockAlign := uint16(canonicalBitDepth / 8)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(w.SampleRate))
	binary.Write(&buf, binary.LittleEndian, byteRate)
	binary.Write(&buf, binary.LittleEndian, blockAlign)
	binary.Write(&buf, binary.LittleEndian, uint16(canonicalBitDepth))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(w.PCM)

	return buf.Bytes()
}
