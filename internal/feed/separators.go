// Package feed – week-separator injection.
//
// This is a presentation-time transform: it runs over the flattened
// accumulated sequence on every render pass and is never persisted into a
// cache bucket. It depends only on the items' own timestamps, so running it
// twice over the same input yields the same output.
package feed

import "github.com/tbourn/go-meme-backend/internal/domain"

// WithWeekSeparators converts memes into the tagged entry sequence,
// inserting exactly one separator between each adjacent pair whose creation
// times fall in different calendar weeks. The separator carries the
// whole-week difference and precedes the older item of the pair.
func WithWeekSeparators(memes []domain.Meme) []domain.FeedEntry {
	entries := make([]domain.FeedEntry, 0, len(memes))
	for i, m := range memes {
		if i > 0 {
			if weeks := domain.WeeksBetween(memes[i-1].CreatedAt, m.CreatedAt); weeks != 0 {
				if weeks < 0 {
					weeks = -weeks
				}
				entries = append(entries, domain.SeparatorEntry(m.ID, weeks))
			}
		}
		entries = append(entries, domain.MemeEntry(m))
	}
	return entries
}
