// Package vocab is the SQLite persistence collaborator for vocabulary
// items and book/chapter records. The scheduling core never touches this
// package; it computes next states and callers persist them here.
package vocab

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

const migrationsSQL = `
CREATE TABLE IF NOT EXISTS books (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	creator TEXT NOT NULL DEFAULT '',
	language TEXT NOT NULL DEFAULT '',
	identifier TEXT NOT NULL DEFAULT '',
	added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_chapter INTEGER NOT NULL DEFAULT -1,
	UNIQUE(title, identifier)
);

CREATE TABLE IF NOT EXISTS chapters (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	book_id INTEGER NOT NULL REFERENCES books(id),
	item_id TEXT NOT NULL,
	title TEXT NOT NULL DEFAULT '',
	order_index INTEGER NOT NULL,
	word_count INTEGER NOT NULL DEFAULT 0,
	injected_count INTEGER NOT NULL DEFAULT 0,
	UNIQUE(book_id, item_id)
);

CREATE TABLE IF NOT EXISTS vocabulary (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_word TEXT NOT NULL,
	target_word TEXT NOT NULL,
	source_lang TEXT NOT NULL,
	target_lang TEXT NOT NULL,
	context_sentence TEXT NOT NULL DEFAULT '',
	origin_book_id TEXT NOT NULL DEFAULT '',
	added_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_reviewed_at TIMESTAMP,
	review_count INTEGER NOT NULL DEFAULT 0,
	ease_factor REAL NOT NULL DEFAULT 2.5,
	interval_days INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'new',
	UNIQUE(source_word, source_lang, target_lang)
);

CREATE INDEX IF NOT EXISTS idx_vocabulary_status ON vocabulary(status);
CREATE INDEX IF NOT EXISTS idx_chapters_book ON chapters(book_id)
`

// InitDB runs migrations on the given DB connection using the embedded SQL.
func InitDB(db *sql.DB) error {
	stmts := strings.Split(migrationsSQL, ";")
	for _, s := range stmts {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}
