package validation

import (
	"bytes"
	"encoding/binary"
)

type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatOGG  Format = "ogg"
	FormatFLAC Format = "flac"
	FormatWebM Format = "webm"
	FormatM4A  Format = "m4a"
)

var magicBytes = map[Format][]byte{
	FormatOGG:  {0x4F, 0x67, 0x67, 0x53},
	FormatFLAC: {0x66, 0x4C, 0x61, 0x43},
	FormatWebM: {0x1A, 0x45, 0xDF, 0xA3},
}

// DetectFormat sniffs the container from the payload's leading bytes.
// Extension and declared content type are advisory only; the bytes decide.
func DetectFormat(data []byte) (Format, error) {
	if len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")) {
		return FormatWAV, nil
	}
	if len(data) >= 3 && (bytes.HasPrefix(data, []byte("ID3")) || isMP3FrameSync(data)) {
		return FormatMP3, nil
	}
	if len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")) {
		return FormatM4A, nil
	}
	for format, signature := range magicBytes {
		if bytes.HasPrefix(data, signature) {
			return format, nil
		}
	}
	return "", ErrUnsupportedFormat
}

func isMP3FrameSync(data []byte) bool {
	return data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

// ValidateUpload runs the synchronous input checks of the submission path:
// empty payloads and unrecognized or unconfigured containers are rejected
// before a task is ever created. WAV payloads with a zero-length data chunk
// are also caught here; compressed containers reveal a zero duration only
// during decoding.
func ValidateUpload(data []byte, supported []Format) (Format, error) {
	if len(data) == 0 {
		return "", ErrEmptyInput
	}

	format, err := DetectFormat(data)
	if err != nil {
		return "", err
	}

	allowed := false
	for _, f := range supported {
		if f == format {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", ErrUnsupportedFormat
	}

	if format == FormatWAV && wavDataSize(data) == 0 {
		return "", ErrEmptyInput
	}

	return format, nil
}

// wavDataSize walks the RIFF chunks and returns the size of the data chunk,
// or -1 if no data chunk is present (left for the decoder to reject).
func wavDataSize(data []byte) int {
	off := 12
	for off+8 <= len(data) {
		id := data[off : off+4]
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		if bytes.Equal(id, []byte("data")) {
			return size
		}
		off += 8 + size
		if size%2 == 1 {
			off++
		}
	}
	return -1
}
