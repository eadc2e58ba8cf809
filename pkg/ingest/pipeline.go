package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/japaniel/lexibook/pkg/epub"
	"github.com/japaniel/lexibook/pkg/inject"
	"github.com/japaniel/lexibook/pkg/vocab"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing
// implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// Pipeline processes a whole book: for every extracted chapter it runs
// plain-text extraction and foreign-word injection on a worker pool, then
// persists chapter records and injection counts through batched writes.
// Processing resumes from the last checkpointed chapter on re-runs.
type Pipeline struct {
	DB        *sql.DB
	Extractor *epub.ChapterExtractor
	Injector  *inject.Injector

	SourceLang string
	TargetLang string
	Band       string
	Density    float64

	BatchSize int
	Workers   int

	// Logger is used for informational messages (e.g. resume status). nil means no logging.
	Logger *log.Logger
	// OnProgress is called periodically with processed and total chapter counts.
	OnProgress func(current, total int)
	// OnChapter receives each injection result in reading order before it
	// is persisted; the app layer uses it to map occurrences onto spans.
	OnChapter func(ch *epub.Chapter, res inject.Result)

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewPipeline creates a pipeline with default batching and concurrency.
func NewPipeline(db *sql.DB, extractor *epub.ChapterExtractor, injector *inject.Injector) *Pipeline {
	return &Pipeline{
		DB:        db,
		Extractor: extractor,
		Injector:  injector,
		BatchSize: 8,
		Workers:   4,
	}
}

type processedChapter struct {
	Index   int
	Chapter *epub.Chapter
	Result  inject.Result
}

// Run processes the given chapters for one book and returns the total
// number of injected word occurrences. Chapters at or before the book's
// checkpoint are skipped.
func (p *Pipeline) Run(ctx context.Context, bookID int64, chapters []*epub.Chapter) (int, error) {
	lastProcessed, err := vocab.GetBookProgress(p.DB, bookID)
	if err != nil {
		if p.Logger != nil {
			p.Logger.Printf("Warning: failed to retrieve progress: %v", err)
		}
		lastProcessed = -1
	}
	if lastProcessed >= 0 && p.Logger != nil {
		p.Logger.Printf("Resuming book %d from chapter index %d", bookID, lastProcessed+1)
	}

	total := len(chapters)
	startIdx := lastProcessed + 1
	if startIdx >= total {
		return 0, nil
	}

	var wp WorkerPoolInterface
	if p.PoolFactory != nil {
		wp = p.PoolFactory(p.Workers, p.Workers*2)
	} else {
		wp = NewWorkerPool(p.Workers, p.Workers*2)
	}
	resultCh := make(chan processedChapter, p.Workers*2)

	bw := NewBatchWriter(p.DB, p.BatchSize, 100*time.Millisecond)
	var batchErr error
	var batchErrMu sync.Mutex
	bw.OnError = func(e error) {
		batchErrMu.Lock()
		if batchErr == nil {
			batchErr = e
		}
		batchErrMu.Unlock()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp.Start(ctx)

	var totalInjected int64
	doneCh := make(chan error, 1)

	// Consumer: restore reading order, surface results, persist.
	go func() {
		defer close(doneCh)
		buffer := make(map[int]processedChapter)
		nextIdx := startIdx

		for res := range resultCh {
			buffer[res.Index] = res

			for {
				item, ok := buffer[nextIdx]
				if !ok {
					break
				}
				delete(buffer, nextIdx)

				if p.OnChapter != nil {
					p.OnChapter(item.Chapter, item.Result)
				}

				current := item
				err := bw.Submit(func(ctx context.Context, tx *sql.Tx) error {
					injected := len(current.Result.Occurrences)
					_, err := vocab.UpsertChapter(tx, bookID, current.Chapter.ID, current.Chapter.Title,
						current.Chapter.OrderIndex, current.Chapter.WordCount, injected)
					if err != nil {
						return fmt.Errorf("failed to persist chapter %s: %w", current.Chapter.ID, err)
					}
					if err := vocab.UpdateBookProgress(tx, bookID, current.Index); err != nil {
						return fmt.Errorf("failed to save progress: %w", err)
					}
					atomic.AddInt64(&totalInjected, int64(injected))
					return nil
				})
				if err != nil {
					cancel()
					doneCh <- err
					return
				}

				if p.OnProgress != nil {
					p.OnProgress(nextIdx+1, total)
				}
				nextIdx++
			}
		}
		doneCh <- nil
	}()

	// Producer: submit one injection job per chapter.
Loop:
	for i := startIdx; i < total; i++ {
		select {
		case <-ctx.Done():
			break Loop
		default:
		}

		idx := i
		ch := chapters[i]

		job := func(ctx context.Context) error {
			text := p.Extractor.PlainText(ch)
			res := p.Injector.Inject(text, p.SourceLang, p.TargetLang, p.Band, p.Density)
			select {
			case resultCh <- processedChapter{Index: idx, Chapter: ch, Result: res}:
			case <-ctx.Done():
			}
			return nil
		}

		if err := wp.SubmitCtx(ctx, job); err != nil {
			if err == ctx.Err() || err == ErrPoolClosed {
				break Loop
			}
			wp.Close()
			close(resultCh)
			<-doneCh
			_ = bw.Close()
			return 0, err
		}
	}

	// No more jobs: drain workers, then tell the consumer we're done.
	wp.Close()
	close(resultCh)

	runErr := <-doneCh

	if err := bw.Close(); err != nil && runErr == nil {
		runErr = err
	}
	batchErrMu.Lock()
	if batchErr != nil && runErr == nil {
		runErr = batchErr
	}
	batchErrMu.Unlock()

	if runErr == nil {
		if err := ctx.Err(); err != nil && err != context.Canceled {
			runErr = err
		}
	}
	return int(atomic.LoadInt64(&totalInjected)), runErr
}
