package inject

import (
	"strings"
	"testing"

	"github.com/japaniel/lexibook/pkg/wordlist"
)

func beginnerIndex() *wordlist.Index {
	return wordlist.BuildIndex([]wordlist.Entry{
		{SourceWord: "cat", TargetWord: "γάτα", SourceLang: "en", TargetLang: "el", ProficiencyBand: "beginner", FrequencyRank: 10, Variants: []string{"cats"}},
		{SourceWord: "the", TargetWord: "ο", SourceLang: "en", TargetLang: "el", ProficiencyBand: "beginner", FrequencyRank: 1},
		{SourceWord: "sat", TargetWord: "κάθισε", SourceLang: "en", TargetLang: "el", ProficiencyBand: "beginner", FrequencyRank: 500},
		{SourceWord: "mat", TargetWord: "χαλάκι", SourceLang: "en", TargetLang: "el", ProficiencyBand: "beginner", FrequencyRank: 900},
		{SourceWord: "ontology", TargetWord: "οντολογία", SourceLang: "en", TargetLang: "el", ProficiencyBand: "advanced", FrequencyRank: 9000},
	})
}

func TestInjectSingleMatchScenario(t *testing.T) {
	idx := wordlist.BuildIndex([]wordlist.Entry{
		{SourceWord: "cat", TargetWord: "γάτα", SourceLang: "en", TargetLang: "el", ProficiencyBand: "beginner", FrequencyRank: 10},
	})
	in := New(idx)

	res := in.Inject("The cat sat on the mat.", "en", "el", "beginner", 1.0)
	if res.RenderedText != "The γάτα sat on the mat." {
		t.Errorf("rendered text: got %q", res.RenderedText)
	}
	if len(res.Occurrences) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(res.Occurrences))
	}
	occ := res.Occurrences[0]
	if occ.OriginalWord != "cat" || occ.ForeignWord != "γάτα" {
		t.Errorf("occurrence words: %+v", occ)
	}
	if occ.StartOffset != 4 || occ.EndOffset != 7 {
		t.Errorf("offsets: got [%d,%d), want [4,7)", occ.StartOffset, occ.EndOffset)
	}
	if occ.Entry == nil || occ.Entry.SourceWord != "cat" {
		t.Errorf("matched entry missing: %+v", occ.Entry)
	}
}

func TestInjectOffsetsRoundTrip(t *testing.T) {
	text := "The cat sat on the mat. The cats sat; the cat ran up, onto the mat!"
	in := New(beginnerIndex())

	for _, density := range []float64{0.1, 0.25, 0.5, 0.75, 1.0} {
		res := in.Inject(text, "en", "el", "beginner", density)

		// Offsets reference the original text exactly.
		for _, occ := range res.Occurrences {
			if got := text[occ.StartOffset:occ.EndOffset]; got != occ.OriginalWord {
				t.Fatalf("density %v: span [%d,%d) is %q, want %q",
					density, occ.StartOffset, occ.EndOffset, got, occ.OriginalWord)
			}
		}

		// Re-rendering from the original plus occurrences reproduces the
		// output, so reverting each span reproduces the input.
		var sb strings.Builder
		prev := 0
		for _, occ := range res.Occurrences {
			sb.WriteString(text[prev:occ.StartOffset])
			sb.WriteString(occ.ForeignWord)
			prev = occ.EndOffset
		}
		sb.WriteString(text[prev:])
		if sb.String() != res.RenderedText {
			t.Fatalf("density %v: rebuilt text differs from rendered output", density)
		}
	}
}

func TestInjectDensityMonotonic(t *testing.T) {
	text := "The cat sat on the mat. The cats sat; the cat ran up, onto the mat!"
	in := New(beginnerIndex())

	full := in.Inject(text, "en", "el", "beginner", 1.0)
	eligible := len(full.Occurrences)
	if eligible == 0 {
		t.Fatal("expected eligible occurrences in fixture text")
	}

	prev := -1
	for _, density := range []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0} {
		res := in.Inject(text, "en", "el", "beginner", density)
		n := len(res.Occurrences)
		if n < prev {
			t.Fatalf("density %v produced %d occurrences, fewer than %d at lower density", density, n, prev)
		}
		prev = n

		if density == 0 {
			if n != 0 || res.RenderedText != text {
				t.Errorf("density 0 must leave text unchanged, got %d occurrences", n)
			}
		}
		if density == 1 && n != eligible {
			t.Errorf("density 1: got %d occurrences, want all %d eligible", n, eligible)
		}
	}
}

func TestInjectNoOverlappingOccurrences(t *testing.T) {
	text := "the cat the cat the cat mat mat sat sat sat"
	in := New(beginnerIndex())
	res := in.Inject(text, "en", "el", "beginner", 1.0)
	if len(res.Occurrences) < 2 {
		t.Fatalf("expected several occurrences, got %d", len(res.Occurrences))
	}
	for i := 1; i < len(res.Occurrences); i++ {
		prev, cur := res.Occurrences[i-1], res.Occurrences[i]
		if cur.StartOffset < prev.EndOffset {
			t.Fatalf("occurrences overlap: [%d,%d) and [%d,%d)",
				prev.StartOffset, prev.EndOffset, cur.StartOffset, cur.EndOffset)
		}
	}
}

func TestInjectLowDensityPrefersCommonWords(t *testing.T) {
	// "the" has the lowest frequency rank by far, so a density that
	// selects only a few occurrences must pick "the" before "mat".
	text := "the mat and the mat and the mat"
	in := New(beginnerIndex())

	res := in.Inject(text, "en", "el", "beginner", 0.5)
	if len(res.Occurrences) != 3 {
		t.Fatalf("expected 3 of 6 occurrences, got %d", len(res.Occurrences))
	}
	for _, occ := range res.Occurrences {
		if occ.Entry.SourceWord != "the" {
			t.Errorf("low density selected %q before the most common word", occ.OriginalWord)
		}
	}
}

func TestInjectCapitalizationPreserved(t *testing.T) {
	in := New(beginnerIndex())
	res := in.Inject("Cats everywhere.", "en", "el", "beginner", 1.0)
	if len(res.Occurrences) != 1 {
		t.Fatalf("expected variant match for Cats, got %d occurrences", len(res.Occurrences))
	}
	if res.Occurrences[0].ForeignWord != "Γάτα" {
		t.Errorf("replacement not capitalized: got %q", res.Occurrences[0].ForeignWord)
	}
	if !strings.HasPrefix(res.RenderedText, "Γάτα") {
		t.Errorf("rendered text: %q", res.RenderedText)
	}
}

func TestInjectEdgeCases(t *testing.T) {
	in := New(beginnerIndex())

	if res := in.Inject("", "en", "el", "beginner", 1.0); res.RenderedText != "" || len(res.Occurrences) != 0 {
		t.Errorf("empty text: %+v", res)
	}

	text := "the cat sat"
	if res := in.Inject(text, "en", "el", "nosuchband", 1.0); res.RenderedText != text || len(res.Occurrences) != 0 {
		t.Errorf("unknown band should degrade to no substitutions: %+v", res)
	}
	if res := in.Inject(text, "fr", "el", "beginner", 1.0); res.RenderedText != text || len(res.Occurrences) != 0 {
		t.Errorf("unknown language should degrade to no substitutions: %+v", res)
	}

	// Words with no exact or variant match are never replaced.
	res := in.Inject("zebra quagga okapi", "en", "el", "beginner", 1.0)
	if len(res.Occurrences) != 0 {
		t.Errorf("unmatched words replaced: %+v", res.Occurrences)
	}

	// Density outside [0,1] is clamped rather than misbehaving.
	if res := in.Inject(text, "en", "el", "beginner", 7.5); len(res.Occurrences) != 3 {
		t.Errorf("clamped density 1: got %d occurrences", len(res.Occurrences))
	}
	if res := in.Inject(text, "en", "el", "beginner", -1); len(res.Occurrences) != 0 {
		t.Errorf("clamped density 0: got %d occurrences", len(res.Occurrences))
	}
}

func TestWordTokenizerOffsets(t *testing.T) {
	text := "Don't stop; it's well-known — very well-known!"
	tokens := WordTokenizer{}.Tokenize(text)
	want := []string{"Don't", "stop", "it's", "well-known", "very", "well-known"}
	if len(tokens) != len(want) {
		t.Fatalf("got %d tokens, want %d: %+v", len(tokens), len(want), tokens)
	}
	for i, w := range want {
		if tokens[i].Text != w {
			t.Errorf("token %d: got %q, want %q", i, tokens[i].Text, w)
		}
		if text[tokens[i].Start:tokens[i].End] != w {
			t.Errorf("token %d offsets wrong: [%d,%d)", i, tokens[i].Start, tokens[i].End)
		}
	}
}

func TestWordTokenizerEmpty(t *testing.T) {
	if tokens := (WordTokenizer{}).Tokenize(""); len(tokens) != 0 {
		t.Errorf("expected no tokens, got %+v", tokens)
	}
	if tokens := (WordTokenizer{}).Tokenize("... --- !!!"); len(tokens) != 0 {
		t.Errorf("punctuation-only text produced tokens: %+v", tokens)
	}
}
