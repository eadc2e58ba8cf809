package inject

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/japaniel/lexibook/pkg/wordlist"
)

// Occurrence records one substitution: the original word, its replacement,
// the character offsets in the original text, and the matched entry.
type Occurrence struct {
	OriginalWord string
	ForeignWord  string
	StartOffset  int
	EndOffset    int
	Entry        *wordlist.Entry
}

// Result is the rendered chapter text plus every substitution made.
type Result struct {
	RenderedText string
	Occurrences  []Occurrence
}

// Injector replaces a controlled fraction of a chapter's words with their
// foreign-language translations. It is stateless and safe to share across
// any number of concurrent sessions; it never returns an error — absent
// languages or bands simply produce zero substitutions.
type Injector struct {
	Index *wordlist.Index
	// Tokenizer may be swapped for space-less scripts; nil means the
	// default word-boundary tokenizer.
	Tokenizer Tokenizer
}

// New creates an injector over the given index with the default tokenizer.
func New(idx *wordlist.Index) *Injector {
	return &Injector{Index: idx}
}

type candidate struct {
	token Token
	entry *wordlist.Entry
}

// Inject selects round(density × eligible) word occurrences and replaces
// each with its target-language form. Density 0 returns the text unchanged;
// density 1 replaces every eligible occurrence. At low density the most
// common words (lowest frequency rank) are chosen first, so a beginner
// setting surfaces the most learnable words; as density rises the selection
// grows toward the whole eligible set.
func (in *Injector) Inject(text, sourceLang, targetLang, band string, density float64) Result {
	if text == "" {
		return Result{}
	}
	if density < 0 {
		density = 0
	}
	if density > 1 {
		density = 1
	}

	tok := in.Tokenizer
	if tok == nil {
		tok = WordTokenizer{}
	}

	// Each token is probed at most once, so a span consumed by a prior
	// match can never be re-matched within the same pass.
	var eligible []candidate
	for _, t := range tok.Tokenize(text) {
		entry := in.match(t, sourceLang, targetLang, band)
		if entry == nil {
			continue
		}
		eligible = append(eligible, candidate{token: t, entry: entry})
	}

	targetCount := int(math.Round(density * float64(len(eligible))))
	if targetCount < 0 {
		targetCount = 0
	}
	if targetCount > len(eligible) {
		targetCount = len(eligible)
	}
	if targetCount == 0 {
		return Result{RenderedText: text}
	}

	// Rank-first selection: order candidates by frequency rank (position
	// breaks ties), take a prefix, then restore text order for rendering.
	// A larger density always selects a superset of a smaller one.
	byRank := make([]candidate, len(eligible))
	copy(byRank, eligible)
	sort.SliceStable(byRank, func(i, j int) bool {
		if byRank[i].entry.FrequencyRank != byRank[j].entry.FrequencyRank {
			return byRank[i].entry.FrequencyRank < byRank[j].entry.FrequencyRank
		}
		return byRank[i].token.Start < byRank[j].token.Start
	})
	selected := byRank[:targetCount]
	sort.Slice(selected, func(i, j int) bool {
		return selected[i].token.Start < selected[j].token.Start
	})

	var sb strings.Builder
	occurrences := make([]Occurrence, 0, len(selected))
	prev := 0
	for _, c := range selected {
		if c.token.Start < prev {
			continue // overlap guard; tokenizers should never produce this
		}
		replacement := matchCase(c.token.Text, c.entry.TargetWord)
		sb.WriteString(text[prev:c.token.Start])
		sb.WriteString(replacement)
		prev = c.token.End

		occurrences = append(occurrences, Occurrence{
			OriginalWord: c.token.Text,
			ForeignWord:  replacement,
			StartOffset:  c.token.Start,
			EndOffset:    c.token.End,
			Entry:        c.entry,
		})
	}
	sb.WriteString(text[prev:])

	return Result{RenderedText: sb.String(), Occurrences: occurrences}
}

// match probes exact then variant lookup for the surface form, then for the
// base form when the tokenizer provided one. Only entries of the requested
// band are eligible.
func (in *Injector) match(t Token, sourceLang, targetLang, band string) *wordlist.Entry {
	for _, form := range []string{t.Text, t.Base} {
		if form == "" {
			continue
		}
		if e := in.Index.Lookup(form, sourceLang, targetLang); e != nil && e.ProficiencyBand == band {
			return e
		}
		if e := in.Index.LookupVariantInBand(form, sourceLang, targetLang, band); e != nil {
			return e
		}
	}
	return nil
}

// matchCase capitalizes the replacement's first letter when the original
// token was capitalized.
func matchCase(original, replacement string) string {
	first, _ := utf8.DecodeRuneInString(original)
	if !unicode.IsUpper(first) {
		return replacement
	}
	r, size := utf8.DecodeRuneInString(replacement)
	if r == utf8.RuneError || unicode.IsUpper(r) {
		return replacement
	}
	return string(unicode.ToUpper(r)) + replacement[size:]
}
