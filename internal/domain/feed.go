// Package domain – feed view types.
//
// This file defines the read-side shapes consumed by the feed layer: the
// sort modes, the cursor page envelope returned by fetchers, and the tagged
// FeedEntry variant that a rendered sequence is made of. FeedEntry exists so
// that week separators are represented explicitly instead of as memes with
// duck-typed optional fields; every consumer must branch on Kind.
package domain

import (
	"fmt"
	"time"
)

// SortMode selects the ranking strategy of a feed. Each mode produces a
// distinct cache key and carries its own staleness and GC policy.
type SortMode string

// Supported sort modes.
const (
	SortLatest SortMode = "latest"
	SortHot    SortMode = "hot"
	SortRandom SortMode = "random"
)

// Valid reports whether m is one of the supported sort modes.
func (m SortMode) Valid() bool {
	switch m {
	case SortLatest, SortHot, SortRandom:
		return true
	}
	return false
}

// Page is one fetched slice of a ranked feed.
//
// Invariants:
//   - HasMore == false implies NextCursor == "" (no continuation issued).
//   - Total is advisory: exact for latest, skippable for hot after the first
//     page, approximate for random. Nothing may branch on its exactness.
type Page struct {
	Items      []Meme `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
	Total      *int64 `json:"total,omitempty"`
}

// EntryKind discriminates the FeedEntry variant.
type EntryKind string

// FeedEntry kinds.
const (
	EntryMeme      EntryKind = "meme"
	EntrySeparator EntryKind = "separator"
)

// WeekSeparator is a synthetic marker between two adjacent memes whose
// creation times fall in different calendar weeks. It is derived at render
// time and never persisted or sent on the wire by the fetchers.
type WeekSeparator struct {
	// ID is derived from the meme the separator precedes.
	ID string `json:"id"`
	// Weeks is the whole-week difference between the two neighbours.
	Weeks int `json:"weeks"`
}

// FeedEntry is the tagged union of a meme and a week separator. Exactly one
// of Meme / Separator is non-nil, matching Kind.
type FeedEntry struct {
	Kind      EntryKind      `json:"kind"`
	Meme      *Meme          `json:"meme,omitempty"`
	Separator *WeekSeparator `json:"separator,omitempty"`
}

// MemeEntry wraps m as a feed entry.
func MemeEntry(m Meme) FeedEntry {
	return FeedEntry{Kind: EntryMeme, Meme: &m}
}

// SeparatorEntry builds a separator entry preceding the meme with beforeID.
func SeparatorEntry(beforeID string, weeks int) FeedEntry {
	return FeedEntry{
		Kind:      EntrySeparator,
		Separator: &WeekSeparator{ID: fmt.Sprintf("sep-%s-%d", beforeID, weeks), Weeks: weeks},
	}
}

// WeekStart returns the UTC midnight of the Monday of t's calendar week.
// Two memes belong to the same feed week iff their WeekStart values match.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	weekday := (int(t.Weekday()) + 6) % 7 // Monday = 0
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, -weekday)
}

// WeeksBetween returns the whole-week difference between the calendar weeks
// of a and b. The result is non-negative when a is in a later week than b.
func WeeksBetween(a, b time.Time) int {
	return int(WeekStart(a).Sub(WeekStart(b)) / (7 * 24 * time.Hour))
}
