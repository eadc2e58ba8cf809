package wordlist

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXConfig maps spreadsheet columns to word-list fields.
// Columns are letters ("A", "B", ...); an empty letter means the field is
// not present in the sheet.
type XLSXConfig struct {
	SheetName           string
	StartRow            int // 1-based; rows before it are skipped
	SourceColumn        string
	TargetColumn        string
	RankColumn          string
	BandColumn          string
	POSColumn           string
	VariantsColumn      string // comma- or semicolon-separated surface forms
	PronunciationColumn string
}

// DefaultXLSXConfig returns the conventional layout: source, target, rank,
// band, part of speech, variants, pronunciation in columns A-G with a
// header row.
func DefaultXLSXConfig() XLSXConfig {
	return XLSXConfig{
		SheetName:           "Sheet1",
		StartRow:            2,
		SourceColumn:        "A",
		TargetColumn:        "B",
		RankColumn:          "C",
		BandColumn:          "D",
		POSColumn:           "E",
		VariantsColumn:      "F",
		PronunciationColumn: "G",
	}
}

// LoadXLSX reads a word list for one language pair from a spreadsheet.
// Rows missing source or target are skipped, like the JSON loader.
func LoadXLSX(path, sourceLang, targetLang string, cfg XLSXConfig) ([]Entry, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(cfg.SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from %q: %w", cfg.SheetName, err)
	}

	var entries []Entry
	for i, row := range rows {
		if i < cfg.StartRow-1 {
			continue
		}
		source := cellValue(row, cfg.SourceColumn)
		target := cellValue(row, cfg.TargetColumn)
		if source == "" || target == "" {
			continue
		}
		rank, _ := strconv.Atoi(cellValue(row, cfg.RankColumn))
		entries = append(entries, Entry{
			SourceWord:      source,
			TargetWord:      target,
			SourceLang:      sourceLang,
			TargetLang:      targetLang,
			ProficiencyBand: cellValue(row, cfg.BandColumn),
			FrequencyRank:   rank,
			PartOfSpeech:    cellValue(row, cfg.POSColumn),
			Variants:        splitVariants(cellValue(row, cfg.VariantsColumn)),
			Pronunciation:   cellValue(row, cfg.PronunciationColumn),
		})
	}
	return entries, nil
}

func cellValue(row []string, column string) string {
	if column == "" {
		return ""
	}
	idx, err := excelize.ColumnNameToNumber(column)
	if err != nil || idx < 1 || idx > len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx-1])
}

func splitVariants(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
