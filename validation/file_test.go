package validation

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func wavPayload(dataLen int) []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint16(1))
	binary.Write(&buf, binary.LittleEndian, uint32(16000))
	binary.Write(&buf, binary.LittleEndian, uint32(32000))
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataLen))
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{"wav", wavPayload(4), FormatWAV},
		{"mp3 id3", append([]byte("ID3"), make([]byte, 16)...), FormatMP3},
		{"mp3 frame sync", append([]byte{0xFF, 0xFB, 0x90}, make([]byte, 16)...), FormatMP3},
		{"ogg", append([]byte("OggS"), make([]byte, 16)...), FormatOGG},
		{"flac", append([]byte("fLaC"), make([]byte, 16)...), FormatFLAC},
		{"webm", append([]byte{0x1A, 0x45, 0xDF, 0xA3}, make([]byte, 16)...), FormatWebM},
		{"m4a", append([]byte{0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'M', '4', 'A', ' '}, make([]byte, 16)...), FormatM4A},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.data)
			if err != nil {
				t.Fatalf("DetectFormat failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestDetectFormat_Unknown(t *testing.T) {
	_, err := DetectFormat([]byte("this is definitely not audio"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestValidateUpload_EmptyPayload(t *testing.T) {
	_, err := ValidateUpload(nil, []Format{FormatWAV})
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput, got %v", err)
	}
}

func TestValidateUpload_EmptyWAVData(t *testing.T) {
	_, err := ValidateUpload(wavPayload(0), []Format{FormatWAV})
	if !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Expected ErrEmptyInput for zero-length data chunk, got %v", err)
	}
}

func TestValidateUpload_FormatNotConfigured(t *testing.T) {
	ogg := append([]byte("OggS"), make([]byte, 16)...)

	_, err := ValidateUpload(ogg, []Format{FormatWAV})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestValidateUpload_Accepted(t *testing.T) {
	format, err := ValidateUpload(wavPayload(320), []Format{FormatWAV, FormatMP3})
	if err != nil {
		t.Fatalf("ValidateUpload failed: %v", err)
	}
	if format != FormatWAV {
		t.Errorf("Expected wav, got %s", format)
	}
}
