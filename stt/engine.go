package stt

import (
	"context"
	"errors"

	"vetvoice/audio"
)

// ErrRecognitionFailed marks genuine engine failures (crash, timeout,
// malformed output). An empty transcript from silence is a valid result.
var ErrRecognitionFailed = errors.New("speech recognition failed")

// Result captures recognizer output for one waveform.
type Result struct {
	Transcript string
	Confidence float64
}

// Engine abstracts the speech-to-text backend. Implementations are shared
// process-wide and reused across tasks; the pipeline gates concurrent use.
type Engine interface {
	Transcribe(ctx context.Context, wave *audio.Waveform) (*Result, error)
	Ready(ctx context.Context) bool
}
