package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/japaniel/lexibook/pkg/epub"
	"github.com/japaniel/lexibook/pkg/ingest"
	"github.com/japaniel/lexibook/pkg/inject"
	"github.com/japaniel/lexibook/pkg/srs"
	"github.com/japaniel/lexibook/pkg/vocab"
	"github.com/japaniel/lexibook/pkg/wordlist"

	_ "github.com/mattn/go-sqlite3"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// .env provides defaults; flags override.
	_ = godotenv.Load()

	bookFlag := flag.String("book", "", "Path to an e-book (.epub) or plain-text file")
	dbFlag := flag.String("db", envOr("LEXIBOOK_DB", "lexibook.db"), "Path to SQLite database")
	listFlag := flag.String("wordlist", envOr("LEXIBOOK_WORDLIST", ""), "Path to a word list (.json or .xlsx)")
	sourceFlag := flag.String("source-lang", envOr("LEXIBOOK_SOURCE_LANG", "en"), "Language of the book text")
	targetFlag := flag.String("target-lang", envOr("LEXIBOOK_TARGET_LANG", "es"), "Language being learned")
	bandFlag := flag.String("band", "beginner", "Proficiency band to draw words from")
	densityFlag := flag.Float64("density", 0.3, "Fraction of eligible words to substitute (0..1)")
	saveFlag := flag.Bool("save-words", false, "Save every injected word as a vocabulary item")
	dueFlag := flag.Bool("due", false, "List vocabulary items due for review and exit")
	gradeFlag := flag.Int64("grade", 0, "Vocabulary item id to review (use with -quality)")
	qualityFlag := flag.Int("quality", -1, "Recall quality 0..5 for -grade")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn, err := sql.Open("sqlite3", *dbFlag)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer conn.Close()
	if err := vocab.InitDB(conn); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if *dueFlag {
		listDue(conn)
		return
	}
	if *gradeFlag > 0 {
		gradeItem(conn, *gradeFlag, *qualityFlag)
		return
	}

	if *bookFlag == "" || *listFlag == "" {
		log.Fatal("Please provide -book and -wordlist (or -due / -grade)")
	}

	entries, err := loadWordList(*listFlag, *sourceFlag, *targetFlag)
	if err != nil {
		log.Fatalf("Failed to load word list: %v", err)
	}
	fmt.Printf("Loaded %d word list entries (%s -> %s)\n", len(entries), *sourceFlag, *targetFlag)
	index := wordlist.BuildIndex(entries)

	chapters, extractor, meta := loadBook(*bookFlag)
	fmt.Printf("Title: %s\n", meta.Title)
	fmt.Printf("Extracted %d linear chapters\n", len(chapters))

	bookID, err := vocab.CreateOrGetBook(conn, meta.Title, meta.Creator, meta.Language, meta.Identifier)
	if err != nil {
		log.Fatalf("Failed to persist book: %v", err)
	}

	injector := inject.New(index)
	if *sourceFlag == "ja" {
		jt, err := inject.NewJapaneseTokenizer()
		if err != nil {
			log.Fatalf("Failed to create Japanese tokenizer: %v", err)
		}
		injector.Tokenizer = jt
	}

	saved := make(map[string]bool)
	pipeline := ingest.NewPipeline(conn, extractor, injector)
	pipeline.SourceLang = *sourceFlag
	pipeline.TargetLang = *targetFlag
	pipeline.Band = *bandFlag
	pipeline.Density = *densityFlag
	pipeline.Logger = log.Default()
	pipeline.OnChapter = func(ch *epub.Chapter, res inject.Result) {
		fmt.Printf("  %3d. %-40s %5d words, %d substitutions\n",
			ch.OrderIndex+1, ch.Title, ch.WordCount, len(res.Occurrences))
		if !*saveFlag {
			return
		}
		for _, occ := range res.Occurrences {
			key := occ.Entry.SourceWord
			if saved[key] {
				continue
			}
			saved[key] = true
			item := srs.NewItem(occ.Entry.SourceWord, occ.Entry.TargetWord, *sourceFlag, *targetFlag)
			item.OriginBookID = meta.Identifier
			if _, err := vocab.SaveItem(conn, item); err != nil {
				log.Printf("Warning: failed to save %q: %v", key, err)
			}
		}
	}

	total, err := pipeline.Run(ctx, bookID, chapters)
	if err != nil {
		log.Fatalf("Processing failed: %v", err)
	}
	fmt.Printf("Processing complete. Injected %d word occurrences.\n", total)
	if *saveFlag {
		fmt.Printf("Saved %d vocabulary items.\n", len(saved))
	}
}

// loadBook opens the path as an e-book container; a file that is not a
// parseable container is treated as a single untitled plain-text chapter.
func loadBook(path string) ([]*epub.Chapter, *epub.ChapterExtractor, epub.Metadata) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", path, err)
	}

	archive, zipErr := epub.NewZipArchive(data)
	if zipErr == nil {
		pkg, err := epub.OpenArchive(archive)
		if err == nil {
			extractor := epub.NewChapterExtractor(archive)
			extractor.Logger = log.Default()
			return extractor.ExtractAllLinear(pkg), extractor, pkg.Metadata
		}
		if !errors.Is(err, epub.ErrMalformedContainer) {
			log.Fatalf("Failed to open container: %v", err)
		}
		log.Printf("Warning: %v; falling back to plain text", err)
	}

	// Plain-text fallback: one chapter, title from the file name.
	text := string(data)
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if title == "" {
		title = "Untitled"
	}
	ch := &epub.Chapter{
		ID:        "text",
		Title:     title,
		Content:   text,
		WordCount: len(strings.Fields(text)),
	}
	return []*epub.Chapter{ch}, epub.NewChapterExtractor(nil), epub.Metadata{Title: title}
}

func loadWordList(path, sourceLang, targetLang string) ([]wordlist.Entry, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return wordlist.LoadXLSX(path, sourceLang, targetLang, wordlist.DefaultXLSXConfig())
	}
	return wordlist.LoadJSON(path, sourceLang, targetLang)
}

func listDue(conn *sql.DB) {
	items, err := vocab.ListDue(conn, time.Now(), 0)
	if err != nil {
		log.Fatalf("Failed to list due items: %v", err)
	}
	if len(items) == 0 {
		fmt.Println("Nothing due for review.")
		return
	}
	for _, item := range items {
		fmt.Printf("%5d  %-20s %-20s ef=%.2f interval=%dd reviews=%d [%s]\n",
			item.ID, item.SourceWord, item.TargetWord,
			item.EaseFactor, item.IntervalDays, item.ReviewCount, item.Status)
	}
}

func gradeItem(conn *sql.DB, id int64, quality int) {
	if quality < 0 || quality > 5 {
		log.Fatal("Please provide -quality between 0 and 5")
	}
	item, err := vocab.GetItem(conn, id)
	if err != nil {
		log.Fatalf("Failed to load item %d: %v", id, err)
	}
	updated := srs.Review(item, quality)
	if err := vocab.ApplyReview(conn, updated); err != nil {
		log.Fatalf("Failed to persist review: %v", err)
	}
	fmt.Printf("%s -> %s: interval %dd -> %dd, ef %.2f -> %.2f, status %s\n",
		item.SourceWord, item.TargetWord,
		item.IntervalDays, updated.IntervalDays,
		item.EaseFactor, updated.EaseFactor, updated.Status)
}
