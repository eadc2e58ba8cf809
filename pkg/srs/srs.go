// Package srs implements the SM-2 derived review scheduler. Everything here
// is a pure computation over vocabulary items; persistence of the updated
// item is the caller's responsibility.
package srs

import (
	"math"
	"sort"
	"time"
)

// Status is the learning state of a vocabulary item.
type Status string

const (
	StatusNew      Status = "new"
	StatusLearning Status = "learning"
	StatusReview   Status = "review"
	StatusLearned  Status = "learned"
)

// Quality thresholds: answers of 3 and above count as correct.
const (
	passThreshold    = 3
	learnedThreshold = 4
	minEaseFactor    = 1.3
)

// Item is one vocabulary item under spaced repetition.
type Item struct {
	ID              int64
	SourceWord      string
	TargetWord      string
	SourceLang      string
	TargetLang      string
	ContextSentence string
	OriginBookID    string
	AddedAt         time.Time
	LastReviewedAt  *time.Time
	ReviewCount     int
	// EaseFactor never drops below 1.3.
	EaseFactor   float64
	IntervalDays int
	Status       Status
}

// NewItem returns a fresh item with the standard SM-2 starting state.
func NewItem(sourceWord, targetWord, sourceLang, targetLang string) Item {
	return Item{
		SourceWord: sourceWord,
		TargetWord: targetWord,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		AddedAt:    time.Now(),
		EaseFactor: 2.5,
		Status:     StatusNew,
	}
}

// Review applies one recall-quality rating (0..5) and returns the updated
// item. See ReviewAt for the transition rules.
func Review(item Item, quality int) Item {
	return ReviewAt(item, quality, time.Now())
}

// ReviewAt is Review with an explicit review time.
//
// An incorrect answer (quality < 3) resets the interval to zero and drops
// the item back to learning; the ease factor is left alone. A correct
// answer walks the interval ladder 0 → 1 → 6 → round(interval × EF) and
// adjusts the ease factor by the SM-2 formula, floored at 1.3. An item
// graduates to learned after five reviews ending on a confident answer.
func ReviewAt(item Item, quality int, now time.Time) Item {
	if quality < 0 {
		quality = 0
	}
	if quality > 5 {
		quality = 5
	}

	item.ReviewCount++
	item.LastReviewedAt = &now

	if quality < passThreshold {
		item.IntervalDays = 0
		item.Status = StatusLearning
		return item
	}

	switch item.IntervalDays {
	case 0:
		item.IntervalDays = 1
	case 1:
		item.IntervalDays = 6
	default:
		item.IntervalDays = int(math.Round(float64(item.IntervalDays) * item.EaseFactor))
	}

	q := float64(quality)
	ef := item.EaseFactor + (0.1 - (5-q)*(0.08+(5-q)*0.02))
	if ef < minEaseFactor {
		ef = minEaseFactor
	}
	item.EaseFactor = ef

	switch {
	case item.ReviewCount >= 5 && quality >= learnedThreshold:
		item.Status = StatusLearned
	case item.ReviewCount >= 2:
		item.Status = StatusReview
	default:
		item.Status = StatusLearning
	}
	return item
}

// Due reports whether the item should be shown for review at the given
// time. Items that have never been reviewed are always due; learned items
// never are.
func Due(item Item, now time.Time) bool {
	if item.Status == StatusLearned {
		return false
	}
	if item.LastReviewedAt == nil {
		return true
	}
	next := item.LastReviewedAt.Add(time.Duration(item.IntervalDays) * 24 * time.Hour)
	return !next.After(now)
}

// NextDue returns up to limit due items in review priority order:
// never-reviewed items first, then hardest (lowest ease factor), then most
// overdue. limit <= 0 means no limit.
func NextDue(items []Item, now time.Time, limit int) []Item {
	var due []Item
	for _, item := range items {
		if Due(item, now) {
			due = append(due, item)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		a, b := due[i], due[j]
		if (a.ReviewCount == 0) != (b.ReviewCount == 0) {
			return a.ReviewCount == 0
		}
		if a.EaseFactor != b.EaseFactor {
			return a.EaseFactor < b.EaseFactor
		}
		switch {
		case a.LastReviewedAt == nil:
			return b.LastReviewedAt != nil
		case b.LastReviewedAt == nil:
			return false
		default:
			return a.LastReviewedAt.Before(*b.LastReviewedAt)
		}
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}
