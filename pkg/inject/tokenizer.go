package inject

import (
	"regexp"
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// Token is one word occurrence with its byte offsets in the original text.
// Base carries a dictionary form when the tokenizer knows one (morphological
// tokenizers); it is empty otherwise.
type Token struct {
	Text  string
	Base  string
	Start int
	End   int
}

// Tokenizer splits text into word tokens, preserving offsets so the text
// outside matched spans can be reproduced byte-identically.
type Tokenizer interface {
	Tokenize(text string) []Token
}

// Word runs with internal apostrophes or hyphens count as one token
// ("don't", "well-known").
var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’-][\p{L}\p{N}]+)*`)

// WordTokenizer splits on word boundaries. It is the default for
// space-delimited scripts.
type WordTokenizer struct{}

// Tokenize returns every word-boundary-delimited token with offsets.
func (WordTokenizer) Tokenize(text string) []Token {
	locs := wordRe.FindAllStringIndex(text, -1)
	tokens := make([]Token, 0, len(locs))
	for _, loc := range locs {
		tokens = append(tokens, Token{
			Text:  text[loc[0]:loc[1]],
			Start: loc[0],
			End:   loc[1],
		})
	}
	return tokens
}

// JapaneseTokenizer segments space-less Japanese text morphologically so
// word lookup works on meaningful units. The base form (lemma) is exposed
// so inflected occurrences can match dictionary-form entries.
type JapaneseTokenizer struct {
	t *tokenizer.Tokenizer
}

// NewJapaneseTokenizer creates a tokenizer backed by the IPA dictionary.
func NewJapaneseTokenizer() (*JapaneseTokenizer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &JapaneseTokenizer{t: t}, nil
}

// Tokenize segments text and computes offsets by walking the surfaces in
// order; kagome emits them contiguously.
func (jt *JapaneseTokenizer) Tokenize(text string) []Token {
	var tokens []Token
	cursor := 0
	for _, tok := range jt.t.Tokenize(text) {
		if tok.Class == tokenizer.DUMMY {
			continue
		}
		surface := tok.Surface
		idx := strings.Index(text[cursor:], surface)
		if idx < 0 {
			continue
		}
		start := cursor + idx
		cursor = start + len(surface)

		if strings.TrimSpace(surface) == "" {
			continue
		}

		// IPA feature 6 is the base form (lemma) when known.
		base := ""
		if features := tok.Features(); len(features) > 6 && features[6] != "*" && features[6] != surface {
			base = features[6]
		}

		tokens = append(tokens, Token{
			Text:  surface,
			Base:  base,
			Start: start,
			End:   cursor,
		})
	}
	return tokens
}
