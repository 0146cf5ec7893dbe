// Package moderation masks configured words in outbound message text before
// it is persisted. Marketplace chats typically mask profanity and attempts
// to move the deal off-platform.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Masker struct {
	machine     *goahocorasick.Machine
	replacement rune
}

// NewMasker builds an Aho-Corasick automaton over the normalized word list.
// Matching runs on a normalized view of the text (lowercased, punctuation and
// spacing stripped) so "p.a.l a b r a" still matches "palabra".
func NewMasker(words []string, replacement rune) (*Masker, error) {
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		if norm, _ := normalize(w); len(norm) > 0 {
			patterns = append(patterns, norm)
		}
	}
	if len(patterns) == 0 {
		return &Masker{replacement: replacement}, nil
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Masker{machine: machine, replacement: replacement}, nil
}

// Apply replaces every matched word with the replacement rune, preserving the
// original length and spacing of the matched region.
func (m *Masker) Apply(text string) string {
	if m.machine == nil || text == "" {
		return text
	}

	norm, origIdx := normalize(text)
	if len(norm) == 0 {
		return text
	}

	matches := m.machine.MultiPatternSearch(norm, false)
	if len(matches) == 0 {
		return text
	}

	out := []rune(text)
	for _, match := range matches {
		start := match.Pos
		end := start + len(match.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		// Mask the original span covered by the normalized match.
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			out[i] = m.replacement
		}
	}
	return string(out)
}

// normalize lowercases the text and drops punctuation, symbols and spacing,
// keeping a mapping from normalized positions back to original rune indexes.
func normalize(text string) ([]rune, []int) {
	runes := []rune(text)
	norm := make([]rune, 0, len(runes))
	origIdx := make([]int, 0, len(runes))
	for i, r := range runes {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) || unicode.IsSpace(r) {
			continue
		}
		norm = append(norm, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return norm, origIdx
}
