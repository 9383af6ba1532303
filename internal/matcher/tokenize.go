package matcher

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Tokenize splits s into whitespace-separated words after NFC normalisation
// and Unicode case folding, so that "Scroll UP" and "scroll up" produce the
// same tokens and composed and decomposed accents compare equal.
func Tokenize(s string) []string {
	tokens, _ := split(s)
	return tokens
}

// split returns the folded tokens of s together with the same words in their
// original casing. Both slices have the same length.
func split(s string) (folded, raw []string) {
	raw = strings.Fields(norm.NFC.String(s))
	if len(raw) == 0 {
		return nil, nil
	}
	fold := cases.Fold()
	folded = make([]string, len(raw))
	for i, w := range raw {
		folded[i] = fold.String(w)
	}
	return folded, raw
}
