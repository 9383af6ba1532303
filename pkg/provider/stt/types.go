package stt

import "strings"

// AlternativeSeparator separates ranked alternatives in the strings returned
// by [Backend.ReceiveTranscript].
const AlternativeSeparator = ";"

// Transcript represents a speech-to-text result from a [Provider].
// Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the highest-confidence transcription.
	Text string

	// Alternatives holds ranked alternatives, highest confidence first. When
	// non-empty, Alternatives[0] equals Text.
	Alternatives []string

	// IsFinal indicates whether this is a final or an interim transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if the
	// provider does not report confidence.
	Confidence float64
}

// Joined returns up to n ranked alternatives joined with
// [AlternativeSeparator]. With n <= 1 or no alternatives it returns Text.
func (t Transcript) Joined(n int) string {
	if n <= 1 || len(t.Alternatives) == 0 {
		return t.Text
	}
	alts := t.Alternatives
	if len(alts) > n {
		alts = alts[:n]
	}
	return strings.Join(alts, AlternativeSeparator)
}

// SplitAlternatives splits a backend result string into its ranked
// alternatives, trimming surrounding whitespace and dropping empty entries.
func SplitAlternatives(s string) []string {
	parts := strings.Split(s, AlternativeSeparator)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
