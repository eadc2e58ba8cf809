package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/japaniel/lexibook/pkg/epub"
	"github.com/japaniel/lexibook/pkg/inject"
	"github.com/japaniel/lexibook/pkg/vocab"
	"github.com/japaniel/lexibook/pkg/wordlist"

	_ "github.com/mattn/go-sqlite3"
)

func setupPipelineDB(t *testing.T) (*sql.DB, int64) {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := vocab.InitDB(db); err != nil {
		t.Fatalf("init db: %v", err)
	}
	bookID, err := vocab.CreateOrGetBook(db, "Pipeline Book", "", "en", "test-book")
	if err != nil {
		t.Fatalf("create book: %v", err)
	}
	return db, bookID
}

func testChapters(n int) []*epub.Chapter {
	chapters := make([]*epub.Chapter, n)
	for i := range chapters {
		chapters[i] = &epub.Chapter{
			ID:         fmt.Sprintf("c%d", i),
			Title:      fmt.Sprintf("Chapter %d", i+1),
			OrderIndex: i,
			Content:    fmt.Sprintf("<html><body><p>The cat sat on the mat in chapter %d.</p></body></html>", i+1),
			WordCount:  10,
		}
	}
	return chapters
}

func testInjector() *inject.Injector {
	idx := wordlist.BuildIndex([]wordlist.Entry{
		{SourceWord: "cat", TargetWord: "γάτα", SourceLang: "en", TargetLang: "el", ProficiencyBand: "beginner", FrequencyRank: 10},
		{SourceWord: "mat", TargetWord: "χαλάκι", SourceLang: "en", TargetLang: "el", ProficiencyBand: "beginner", FrequencyRank: 900},
	})
	return inject.New(idx)
}

func testPipeline(db *sql.DB) *Pipeline {
	p := NewPipeline(db, epub.NewChapterExtractor(nil), testInjector())
	p.SourceLang = "en"
	p.TargetLang = "el"
	p.Band = "beginner"
	p.Density = 1.0
	return p
}

func TestPipelineProcessesAllChapters(t *testing.T) {
	db, bookID := setupPipelineDB(t)
	chapters := testChapters(5)

	p := testPipeline(db)
	var seen []string
	p.OnChapter = func(ch *epub.Chapter, res inject.Result) {
		seen = append(seen, ch.ID)
		if len(res.Occurrences) == 0 {
			t.Errorf("chapter %s: no injections", ch.ID)
		}
	}
	var lastProgress int
	p.OnProgress = func(current, total int) {
		if total != 5 {
			t.Errorf("progress total: %d", total)
		}
		if current < lastProgress {
			t.Errorf("progress went backwards: %d after %d", current, lastProgress)
		}
		lastProgress = current
	}

	total, err := p.Run(context.Background(), bookID, chapters)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Every chapter injects "cat" and "mat" once.
	if total != 10 {
		t.Errorf("total injected: got %d, want 10", total)
	}

	// OnChapter is delivered in reading order despite parallel workers.
	if len(seen) != 5 {
		t.Fatalf("expected 5 chapter callbacks, got %d", len(seen))
	}
	for i, id := range seen {
		if want := fmt.Sprintf("c%d", i); id != want {
			t.Errorf("callback %d: got %s, want %s", i, id, want)
		}
	}
	if lastProgress != 5 {
		t.Errorf("final progress: %d", lastProgress)
	}

	// Chapter records and the checkpoint are persisted.
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM chapters WHERE book_id = ?`, bookID).Scan(&count); err != nil {
		t.Fatalf("count chapters: %v", err)
	}
	if count != 5 {
		t.Errorf("persisted chapters: %d", count)
	}
	idx, err := vocab.GetBookProgress(db, bookID)
	if err != nil {
		t.Fatalf("GetBookProgress failed: %v", err)
	}
	if idx != 4 {
		t.Errorf("checkpoint: got %d, want 4", idx)
	}
}

func TestPipelineResumesFromCheckpoint(t *testing.T) {
	db, bookID := setupPipelineDB(t)
	chapters := testChapters(4)

	// Pretend the first two chapters were already processed.
	if err := vocab.UpdateBookProgress(db, bookID, 1); err != nil {
		t.Fatalf("seed progress: %v", err)
	}

	p := testPipeline(db)
	var seen []string
	p.OnChapter = func(ch *epub.Chapter, res inject.Result) {
		seen = append(seen, ch.ID)
	}

	if _, err := p.Run(context.Background(), bookID, chapters); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(seen) != 2 || seen[0] != "c2" || seen[1] != "c3" {
		t.Errorf("resume processed wrong chapters: %v", seen)
	}

	// A fully processed book is a no-op.
	seen = nil
	total, err := p.Run(context.Background(), bookID, chapters)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if total != 0 || len(seen) != 0 {
		t.Errorf("completed book reprocessed: total=%d seen=%v", total, seen)
	}
}

type failingPool struct{ err error }

func (p *failingPool) Start(ctx context.Context)                    {}
func (p *failingPool) Submit(job Job) error                         { return p.err }
func (p *failingPool) SubmitCtx(ctx context.Context, job Job) error { return p.err }
func (p *failingPool) Close()                                       {}

func TestPipelineSurfacesSubmitErrors(t *testing.T) {
	db, bookID := setupPipelineDB(t)

	boom := errors.New("submit rejected")
	p := testPipeline(db)
	p.PoolFactory = func(workers, queue int) WorkerPoolInterface {
		return &failingPool{err: boom}
	}

	if _, err := p.Run(context.Background(), bookID, testChapters(3)); !errors.Is(err, boom) {
		t.Errorf("Run: got %v, want the submit error", err)
	}
}

func TestPipelineCanceledContext(t *testing.T) {
	db, bookID := setupPipelineDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := testPipeline(db)
	total, err := p.Run(ctx, bookID, testChapters(3))
	if err != nil {
		t.Fatalf("canceled run should stop cleanly, got %v", err)
	}
	if total != 0 {
		t.Errorf("canceled run injected %d occurrences", total)
	}
}
