package ner

import (
	"context"
	"errors"
)

// ErrExtractionFailed marks genuine engine failures only; a transcript with
// no recognizable entities yields empty sets, not an error.
var ErrExtractionFailed = errors.New("entity extraction failed")

// Entities are the categorized clinical terms found in a transcript.
// Both slices are deduplicated and sorted.
type Entities struct {
	Diagnoses  []string
	Treatments []string
}

// Engine abstracts the medical-entity extraction backend. Like the speech
// engine, one instance is shared across all tasks.
type Engine interface {
	Extract(ctx context.Context, transcript string) (*Entities, error)
	Ready(ctx context.Context) bool
}
