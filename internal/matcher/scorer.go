package matcher

import (
	"fmt"

	"github.com/antzucaro/matchr"
)

// Scorer measures the distance between one transcript word and one vocabulary
// word. Lower is closer; 0 is a perfect match. Implementations must be safe
// for concurrent use.
type Scorer interface {
	// Name returns the identifier used in configuration and diagnostics.
	Name() string

	// Distance returns the distance between a and b.
	Distance(a, b string) int
}

// Levenshtein scores words by their rune-wise edit distance.
type Levenshtein struct{}

// Name returns "levenshtein".
func (Levenshtein) Name() string { return "levenshtein" }

// Distance returns the Levenshtein distance between a and b.
func (Levenshtein) Distance(a, b string) int {
	return matchr.Levenshtein(a, b)
}

// Soundex scores words by comparing their four-character American Soundex
// codes position by position. The result is the number of differing positions
// (0–4), so two words that sound alike score 0 even when spelled differently.
type Soundex struct{}

// Name returns "soundex".
func (Soundex) Name() string { return "soundex" }

// Distance returns the number of positions in which the Soundex codes of a and
// b differ.
func (Soundex) Distance(a, b string) int {
	ca, cb := soundexCode(a), soundexCode(b)
	d := 0
	for i := range soundexLen {
		if ca[i] != cb[i] {
			d++
		}
	}
	return d
}

const soundexLen = 4

func soundexCode(s string) string {
	c := matchr.Soundex(s)
	for len(c) < soundexLen {
		c += "0"
	}
	return c[:soundexLen]
}

// Metaphone scores words by the smallest edit distance between any of their
// Double Metaphone codes. Words without a usable code (e.g. vowels only) fall
// back to plain Levenshtein distance.
type Metaphone struct{}

// Name returns "metaphone".
func (Metaphone) Name() string { return "metaphone" }

// Distance returns the minimum Levenshtein distance between the primary and
// secondary Double Metaphone codes of a and b.
func (Metaphone) Distance(a, b string) int {
	pa, sa := matchr.DoubleMetaphone(a)
	pb, sb := matchr.DoubleMetaphone(b)
	codesA := nonEmpty(pa, sa)
	codesB := nonEmpty(pb, sb)
	if len(codesA) == 0 || len(codesB) == 0 {
		return matchr.Levenshtein(a, b)
	}
	best := -1
	for _, x := range codesA {
		for _, y := range codesB {
			if d := matchr.Levenshtein(x, y); best < 0 || d < best {
				best = d
			}
		}
	}
	return best
}

func nonEmpty(codes ...string) []string {
	out := codes[:0]
	for _, c := range codes {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Scorers returns one instance of every built-in scorer, default first.
func Scorers() []Scorer {
	return []Scorer{Levenshtein{}, Soundex{}, Metaphone{}}
}

// ScorerByName returns the built-in scorer called name.
func ScorerByName(name string) (Scorer, error) {
	for _, s := range Scorers() {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("matcher: unknown scorer %q", name)
}
