package wordlist

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is one row of a bilingual frequency-ranked word list.
// Entries are immutable reference data, loaded once per language pair.
type Entry struct {
	SourceWord      string
	TargetWord      string
	SourceLang      string
	TargetLang      string
	ProficiencyBand string
	// FrequencyRank orders entries by how common the source word is;
	// lower means more common.
	FrequencyRank int
	PartOfSpeech  string
	// Variants are alternate surface forms: plurals, conjugations.
	Variants      []string
	Pronunciation string
}

// jsonRow matches the bundled/downloaded word-list format.
type jsonRow struct {
	Source        string   `json:"source"`
	Target        string   `json:"target"`
	Rank          int      `json:"rank"`
	Band          string   `json:"band"`
	POS           string   `json:"pos"`
	Variants      []string `json:"variants"`
	Pronunciation string   `json:"pronunciation"`
}

// LoadJSON reads a word list for one language pair from a JSON file.
// Both a {"words": [...]} wrapper and a bare array are accepted.
// Rows missing source or target are silently skipped.
func LoadJSON(path, sourceLang, targetLang string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJSON(f, sourceLang, targetLang)
}

// ReadJSON is LoadJSON over an arbitrary reader.
func ReadJSON(r io.Reader, sourceLang, targetLang string) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rows []jsonRow
	// Try the object wrapper first { "words": [...] }
	var wrapper struct {
		Words []jsonRow `json:"words"`
	}
	if err := json.Unmarshal(data, &wrapper); err == nil && len(wrapper.Words) > 0 {
		rows = wrapper.Words
	} else if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse word list as object or array: %w", err)
	}

	var entries []Entry
	for _, row := range rows {
		e, ok := entryFromRow(row, sourceLang, targetLang)
		if !ok {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func entryFromRow(row jsonRow, sourceLang, targetLang string) (Entry, bool) {
	source := strings.TrimSpace(row.Source)
	target := strings.TrimSpace(row.Target)
	if source == "" || target == "" {
		return Entry{}, false
	}
	variants := make([]string, 0, len(row.Variants))
	for _, v := range row.Variants {
		if v = strings.TrimSpace(v); v != "" {
			variants = append(variants, v)
		}
	}
	return Entry{
		SourceWord:      source,
		TargetWord:      target,
		SourceLang:      sourceLang,
		TargetLang:      targetLang,
		ProficiencyBand: strings.TrimSpace(row.Band),
		FrequencyRank:   row.Rank,
		PartOfSpeech:    strings.TrimSpace(row.POS),
		Variants:        variants,
		Pronunciation:   strings.TrimSpace(row.Pronunciation),
	}, true
}
