package validation

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrEmptyInput        = errors.New("audio payload is empty")
	ErrFileTooLarge      = errors.New("file size exceeds upload limit")
)
