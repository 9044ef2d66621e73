package ner

import (
	"context"
	"sort"
	"strings"
)

// Veterinary term lists for the rule-based extractor. Multi-word terms are
// matched as whole phrases on word boundaries.
var diagnosisTerms = []string{
	"fever", "anemia", "infection", "ear infection", "inflammation",
	"arthritis", "dermatitis", "gastritis", "pneumonia", "diabetes",
	"cancer", "tumor", "fracture", "wound", "allergy", "parasites",
	"fleas", "ticks", "worms", "diarrhea", "vomiting", "seizure",
	"lameness", "lethargy", "elevated temperature", "otitis externa",
	"otitis media", "kennel cough", "conjunctivitis",
}

var treatmentTerms = []string{
	"antibiotic", "antibiotics", "doxycycline", "amoxicillin",
	"prednisone", "surgery", "vaccination", "medication", "therapy",
	"rest", "diet", "exercise", "bandage", "cast", "fluids",
	"pain relief", "anti-inflammatory", "deworming", "antifungal",
}

// RuleEngine extracts entities by dictionary lookup. It is deterministic,
// always ready, and safe for concurrent use.
type RuleEngine struct{}

func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

func (e *RuleEngine) Extract(ctx context.Context, transcript string) (*Entities, error) {
	text := strings.ToLower(transcript)

	return &Entities{
		Diagnoses:  matchTerms(text, diagnosisTerms),
		Treatments: matchTerms(text, treatmentTerms),
	}, nil
}

func (e *RuleEngine) Ready(ctx context.Context) bool {
	return true
}

func matchTerms(text string, terms []string) []string {
	found := make(map[string]struct{})
	for _, term := range terms {
		if containsPhrase(text, term) {
			found[term] = struct{}{}
		}
	}

	out := make([]string, 0, len(found))
	for term := range found {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}

// containsPhrase reports whether phrase occurs in text bounded by
// non-letter characters, so "rest" does not match inside "interested".
func containsPhrase(text, phrase string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		i += start

		before := i - 1
		after := i + len(phrase)
		leftOK := before < 0 || !isLetter(text[before])
		rightOK := after >= len(text) || !isLetter(text[after])
		if leftOK && rightOK {
			return true
		}

		start = i + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
