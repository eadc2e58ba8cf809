package vocab

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/japaniel/lexibook/pkg/srs"
)

// SaveItem inserts a vocabulary item or refreshes the context of an
// existing one, returning its id. Saving the same word twice for the same
// language pair does not reset review progress.
func SaveItem(db DBExecutor, item srs.Item) (int64, error) {
	source := strings.TrimSpace(item.SourceWord)
	if source == "" {
		return 0, fmt.Errorf("source word must be non-empty")
	}
	if item.Status == "" {
		item.Status = srs.StatusNew
	}
	if item.EaseFactor == 0 {
		item.EaseFactor = 2.5
	}
	addedAt := item.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}

	var id int64
	query := `INSERT INTO vocabulary (source_word, target_word, source_lang, target_lang, context_sentence, origin_book_id, added_at, review_count, ease_factor, interval_days, status)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(source_word, source_lang, target_lang)
			  DO UPDATE SET
			    target_word = excluded.target_word,
				context_sentence = COALESCE(NULLIF(excluded.context_sentence, ''), vocabulary.context_sentence),
				origin_book_id = COALESCE(NULLIF(excluded.origin_book_id, ''), vocabulary.origin_book_id)
			  RETURNING id`
	err := db.QueryRow(query, source, item.TargetWord, item.SourceLang, item.TargetLang,
		item.ContextSentence, item.OriginBookID, addedAt,
		item.ReviewCount, item.EaseFactor, item.IntervalDays, string(item.Status)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert vocabulary item: %w", err)
	}
	return id, nil
}

// GetItem loads one vocabulary item by id.
func GetItem(db DBExecutor, id int64) (srs.Item, error) {
	row := db.QueryRow(`SELECT id, source_word, target_word, source_lang, target_lang, context_sentence, origin_book_id, added_at, last_reviewed_at, review_count, ease_factor, interval_days, status
		FROM vocabulary WHERE id = ?`, id)
	return scanItem(row.Scan)
}

// ListActive returns every item not yet learned, oldest first.
func ListActive(db DBExecutor) ([]srs.Item, error) {
	rows, err := db.Query(`SELECT id, source_word, target_word, source_lang, target_lang, context_sentence, origin_book_id, added_at, last_reviewed_at, review_count, ease_factor, interval_days, status
		FROM vocabulary WHERE status != ? ORDER BY added_at, id`, string(srs.StatusLearned))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []srs.Item
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ListDue returns up to limit items due for review at the given time, in
// review priority order.
func ListDue(db DBExecutor, now time.Time, limit int) ([]srs.Item, error) {
	active, err := ListActive(db)
	if err != nil {
		return nil, err
	}
	return srs.NextDue(active, now, limit), nil
}

// ApplyReview persists the scheduler's output for an item.
func ApplyReview(db DBExecutor, item srs.Item) error {
	if item.ID <= 0 {
		return fmt.Errorf("item id must be positive")
	}
	var last interface{}
	if item.LastReviewedAt != nil {
		last = *item.LastReviewedAt
	}
	_, err := db.Exec(`UPDATE vocabulary SET last_reviewed_at = ?, review_count = ?, ease_factor = ?, interval_days = ?, status = ? WHERE id = ?`,
		last, item.ReviewCount, item.EaseFactor, item.IntervalDays, string(item.Status), item.ID)
	return err
}

// DeleteItem removes one vocabulary item.
func DeleteItem(db DBExecutor, id int64) error {
	_, err := db.Exec(`DELETE FROM vocabulary WHERE id = ?`, id)
	return err
}

// ClearAll removes every vocabulary item.
func ClearAll(db DBExecutor) error {
	_, err := db.Exec(`DELETE FROM vocabulary`)
	return err
}

func scanItem(scan func(dest ...interface{}) error) (srs.Item, error) {
	var item srs.Item
	var context, origin sql.NullString
	var last sql.NullTime
	var status string
	err := scan(&item.ID, &item.SourceWord, &item.TargetWord, &item.SourceLang, &item.TargetLang,
		&context, &origin, &item.AddedAt, &last, &item.ReviewCount, &item.EaseFactor, &item.IntervalDays, &status)
	if err != nil {
		return srs.Item{}, err
	}
	if context.Valid {
		item.ContextSentence = context.String
	}
	if origin.Valid {
		item.OriginBookID = origin.String
	}
	if last.Valid {
		t := last.Time
		item.LastReviewedAt = &t
	}
	item.Status = srs.Status(status)
	return item, nil
}

// CreateOrGetBook returns an existing book id or inserts a new book record.
func CreateOrGetBook(db DBExecutor, title, creator, language, identifier string) (int64, error) {
	trimmedTitle := strings.TrimSpace(title)
	if trimmedTitle == "" {
		trimmedTitle = "Untitled"
	}

	const maxRetries = 3

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := db.QueryRow(`SELECT id FROM books WHERE title = ? AND identifier = ?`, trimmedTitle, identifier).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}

		res, err := db.Exec(`INSERT INTO books (title, creator, language, identifier) VALUES (?, ?, ?, ?)`,
			trimmedTitle, creator, language, identifier)
		if err != nil {
			// Another connection may have inserted the same book; retry the SELECT.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, err
		}
		return res.LastInsertId()
	}

	return 0, fmt.Errorf("could not create or get book after %d retries", maxRetries)
}

// UpsertChapter records one processed chapter for a book.
func UpsertChapter(db DBExecutor, bookID int64, itemID, title string, orderIndex, wordCount, injectedCount int) (int64, error) {
	if bookID <= 0 {
		return 0, fmt.Errorf("bookID must be positive")
	}
	var id int64
	err := db.QueryRow(`INSERT INTO chapters (book_id, item_id, title, order_index, word_count, injected_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id, item_id) DO UPDATE SET
		  title = excluded.title,
		  order_index = excluded.order_index,
		  word_count = excluded.word_count,
		  injected_count = excluded.injected_count
		RETURNING id`, bookID, itemID, title, orderIndex, wordCount, injectedCount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert chapter: %w", err)
	}
	return id, nil
}

// GetBookProgress returns the last processed chapter index for a book.
func GetBookProgress(db DBExecutor, bookID int64) (int, error) {
	var index int
	err := db.QueryRow(`SELECT last_chapter FROM books WHERE id = ?`, bookID).Scan(&index)
	if err != nil {
		return 0, err
	}
	return index, nil
}

// UpdateBookProgress updates the last processed chapter index.
func UpdateBookProgress(db DBExecutor, bookID int64, index int) error {
	_, err := db.Exec(`UPDATE books SET last_chapter = ? WHERE id = ?`, index, bookID)
	return err
}
