// Package matcher resolves noisy speech-to-text transcripts into browser
// commands.
//
// The dispatch algorithm slides every phonetic variant of every vocabulary
// entry over the transcript tokens:
//
//  1. A variant is admissible at token i when the distance between token i
//     and the variant's first word is below [Threshold] and below the best
//     distance found so far.
//  2. Multi-word variants accumulate the distance of each following token
//     against the corresponding variant word. The match is confirmed only at
//     the variant's last word, and only if the total is still below both the
//     threshold and the best so far. Variants longer than the remaining
//     transcript never confirm.
//  3. Only strictly smaller distances replace the best match, so the first
//     match found in vocabulary, variant and position order wins ties.
//
// The parameter of a command that takes one starts at the token right after
// the matched phrase.
package matcher

import (
	"log/slog"
	"strings"

	"github.com/MrWong99/gazevoice/internal/command"
	"github.com/MrWong99/gazevoice/pkg/provider/stt"
)

// Threshold is the exclusive upper bound on the accumulated distance of an
// admissible match. One character-level error per phrase is tolerated.
const Threshold = 2

// Result is the best match of a transcript against a vocabulary subset.
type Result struct {
	// Entry is the matched vocabulary entry. Zero when Found is false.
	Entry command.Entry

	// Variant is the surface form that matched.
	Variant string

	// ParamIndex is the index of the first token after the matched phrase.
	ParamIndex int

	// Distance is the accumulated distance of the match.
	Distance int

	// Found reports whether any entry matched.
	Found bool
}

// Comparison is the result of one scorer in [Matcher.Compare].
type Comparison struct {
	Scorer string
	Result Result
}

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithScorer sets the word distance used for dispatch. Default: [Levenshtein].
func WithScorer(s Scorer) Option {
	return func(m *Matcher) {
		if s != nil {
			m.scorer = s
		}
	}
}

// Matcher is the command dispatcher. It holds no mutable state and all
// methods are safe for concurrent use; identical inputs always produce
// identical results.
type Matcher struct {
	scorer Scorer
}

// New returns a Matcher configured with opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{scorer: Levenshtein{}}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Scorer returns the scorer used for dispatch.
func (m *Matcher) Scorer() Scorer {
	return m.scorer
}

// Match finds the best entry for tokens. tokens must already be normalised
// with [Tokenize].
func (m *Matcher) Match(tokens []string, entries []command.Entry) Result {
	return match(m.scorer, tokens, entries)
}

func match(scorer Scorer, tokens []string, entries []command.Entry) Result {
	var best Result
	shortest := Threshold

	for _, e := range entries {
		for _, variant := range e.Variants {
			words := Tokenize(variant)
			if len(words) == 0 {
				continue
			}
			for i := range tokens {
				d := scorer.Distance(tokens[i], words[0])
				if d >= shortest {
					continue
				}
				if len(words) == 1 {
					best = Result{Entry: e, Variant: variant, ParamIndex: i + 1, Distance: d, Found: true}
					shortest = d
					slog.Debug("matcher: candidate", "scorer", scorer.Name(), "token", tokens[i], "variant", variant, "distance", d)
					continue
				}
				for j := 1; j < len(words) && i+j < len(tokens); j++ {
					d += scorer.Distance(tokens[i+j], words[j])
					if j == len(words)-1 && d < shortest {
						best = Result{Entry: e, Variant: variant, ParamIndex: i + len(words), Distance: d, Found: true}
						shortest = d
						slog.Debug("matcher: candidate", "scorer", scorer.Name(), "token", tokens[i+j], "variant", variant, "distance", d)
					}
				}
			}
		}
	}
	return best
}

// Resolve turns a single transcript into an action. Commands that take a
// parameter receive the words following the matched phrase in their original
// casing. Without a match, mode [command.ModeFree] yields
// [command.ParameterOnly] carrying the whole transcript as given, and
// [command.ModeCommand] yields [command.None]. An empty transcript always
// yields [command.None].
func (m *Matcher) Resolve(transcript string, entries []command.Entry, mode command.Mode) command.Action {
	if a, ok := m.resolve(transcript, entries); ok {
		return a
	}
	if mode == command.ModeFree && strings.TrimSpace(transcript) != "" {
		return command.Action{Command: command.ParameterOnly, Parameter: transcript}
	}
	return command.None
}

func (m *Matcher) resolve(transcript string, entries []command.Entry) (command.Action, bool) {
	tokens, raw := split(transcript)
	if len(tokens) == 0 {
		return command.None, false
	}
	r := m.Match(tokens, entries)
	if !r.Found {
		return command.None, false
	}
	a := command.Action{Command: r.Entry.ID}
	if r.Entry.TakesParameter && r.ParamIndex < len(raw) {
		a.Parameter = strings.Join(raw[r.ParamIndex:], " ")
	}
	return a, true
}

// ResolveAlternatives resolves a backend result carrying ';'-separated ranked
// alternatives, highest confidence first. Alternatives are evaluated from the
// lowest to the highest rank and every match replaces the previous one, so
// the highest-ranked alternative that matches wins. In [command.ModeFree] an
// unmatched alternative yields [command.ParameterOnly] with the
// highest-ranked alternative, untrimmed, as parameter.
func (m *Matcher) ResolveAlternatives(transcript string, entries []command.Entry, mode command.Mode) command.Action {
	alts := stt.SplitAlternatives(transcript)
	result := command.None
	for i := len(alts) - 1; i >= 0; i-- {
		if a, ok := m.resolve(alts[i], entries); ok {
			result = a
		} else if mode == command.ModeFree {
			result = command.Action{Command: command.ParameterOnly, Parameter: topAlternative(transcript)}
		}
	}
	return result
}

// topAlternative returns the first non-blank alternative of transcript
// exactly as the backend sent it.
func topAlternative(transcript string) string {
	for _, alt := range strings.Split(transcript, stt.AlternativeSeparator) {
		if strings.TrimSpace(alt) != "" {
			return alt
		}
	}
	return ""
}

// Compare matches tokens with every built-in scorer. It is used for
// diagnostics only and never affects dispatch.
func (m *Matcher) Compare(tokens []string, entries []command.Entry) []Comparison {
	scorers := Scorers()
	out := make([]Comparison, len(scorers))
	for i, s := range scorers {
		out[i] = Comparison{Scorer: s.Name(), Result: match(s, tokens, entries)}
	}
	return out
}
