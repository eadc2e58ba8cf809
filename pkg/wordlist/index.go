package wordlist

import (
	"sort"
	"strings"
)

type langPair struct {
	source string
	target string
}

// Index is an in-memory lookup structure over a word list, keyed by
// language pair. It is immutable after BuildIndex returns, so concurrent
// reads from any number of sessions need no locking. One index per
// language pair is enough; rebuilding over the same entries is idempotent.
type Index struct {
	exact    map[langPair]map[string]*Entry
	variants map[langPair]map[string][]*Entry
	byBand   map[langPair]map[string][]*Entry
}

// BuildIndex constructs an index over the given entries. Lookup results do
// not depend on the order entries arrive in: when two entries share a
// surface form the lower frequency rank wins, ties broken by target word.
func BuildIndex(entries []Entry) *Index {
	sorted := make([]*Entry, 0, len(entries))
	for i := range entries {
		sorted = append(sorted, &entries[i])
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.FrequencyRank != b.FrequencyRank {
			return a.FrequencyRank < b.FrequencyRank
		}
		if a.SourceWord != b.SourceWord {
			return a.SourceWord < b.SourceWord
		}
		return a.TargetWord < b.TargetWord
	})

	idx := &Index{
		exact:    make(map[langPair]map[string]*Entry),
		variants: make(map[langPair]map[string][]*Entry),
		byBand:   make(map[langPair]map[string][]*Entry),
	}
	for _, e := range sorted {
		pair := langPair{e.SourceLang, e.TargetLang}

		exact := idx.exact[pair]
		if exact == nil {
			exact = make(map[string]*Entry)
			idx.exact[pair] = exact
		}
		if _, taken := exact[e.SourceWord]; !taken {
			exact[e.SourceWord] = e
		}

		vars := idx.variants[pair]
		if vars == nil {
			vars = make(map[string][]*Entry)
			idx.variants[pair] = vars
		}
		forms := append([]string{e.SourceWord}, e.Variants...)
		for _, form := range forms {
			key := strings.ToLower(form)
			vars[key] = append(vars[key], e)
		}

		bands := idx.byBand[pair]
		if bands == nil {
			bands = make(map[string][]*Entry)
			idx.byBand[pair] = bands
		}
		bands[e.ProficiencyBand] = append(bands[e.ProficiencyBand], e)
	}
	return idx
}

// Lookup returns the entry whose stored surface form equals word exactly,
// or nil. The comparison is case-sensitive.
func (idx *Index) Lookup(word, sourceLang, targetLang string) *Entry {
	exact := idx.exact[langPair{sourceLang, targetLang}]
	if exact == nil {
		return nil
	}
	return exact[word]
}

// LookupVariant returns the best entry matching word case-insensitively
// against stored surface forms and their variant lists, or nil. Entries
// were ranked at build time, so the first hit is the most common word.
func (idx *Index) LookupVariant(word, sourceLang, targetLang string) *Entry {
	vars := idx.variants[langPair{sourceLang, targetLang}]
	if vars == nil {
		return nil
	}
	matches := vars[strings.ToLower(word)]
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// LookupVariantInBand is LookupVariant restricted to entries of one
// proficiency band. Candidates keep their rank order, so the first band
// match is the most common one.
func (idx *Index) LookupVariantInBand(word, sourceLang, targetLang, band string) *Entry {
	vars := idx.variants[langPair{sourceLang, targetLang}]
	if vars == nil {
		return nil
	}
	for _, e := range vars[strings.ToLower(word)] {
		if e.ProficiencyBand == band {
			return e
		}
	}
	return nil
}

// ByProficiency returns the entries of one proficiency band ordered by
// ascending frequency rank. The returned slice is shared; callers must
// not modify it.
func (idx *Index) ByProficiency(sourceLang, targetLang, band string) []*Entry {
	bands := idx.byBand[langPair{sourceLang, targetLang}]
	if bands == nil {
		return nil
	}
	return bands[band]
}
