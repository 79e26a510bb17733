// Package feed – cursor page fetchers.
//
// A Fetcher resolves one page of a ranked feed for a single sort mode. It is
// pure request/response: no caching, no retries, no knowledge of buckets.
// Failures are wrapped in *FetchError carrying the mode name and the
// underlying cause; retry policy belongs to the cache manager alone.
package feed

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-meme-backend/internal/domain"
	"github.com/tbourn/go-meme-backend/internal/repo"
)

// Fetcher fetches one page of a ranked feed.
//
// cursor is an opaque token from the previous page ("" starts the chain),
// pageSize must be positive, and filters optionally restricts media types.
// Invariant on the result: HasMore == false implies NextCursor == "".
type Fetcher interface {
	FetchPage(ctx context.Context, cursor string, pageSize int, filters []string) (*domain.Page, error)
}

// FetchError wraps an upstream failure with the sort mode it belongs to.
type FetchError struct {
	Mode domain.SortMode
	Err  error
}

// Error implements the error interface.
func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s page: %v", e.Mode, e.Err) }

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error { return e.Err }

// NewFetchers builds the standard fetcher set over the given database.
func NewFetchers(db *gorm.DB) map[domain.SortMode]Fetcher {
	return map[domain.SortMode]Fetcher{
		domain.SortLatest: NewLatestFetcher(db),
		domain.SortHot:    NewHotFetcher(db, true),
		domain.SortRandom: NewRandomFetcher(db),
	}
}

// --- latest ---

type latestFetcher struct {
	db *gorm.DB
}

// NewLatestFetcher returns the strictly reverse-chronological fetcher. Its
// cursor is the keyset of the last returned item, so already-issued pages
// are never reordered by concurrent inserts.
func NewLatestFetcher(db *gorm.DB) Fetcher { return &latestFetcher{db: db} }

func (f *latestFetcher) FetchPage(ctx context.Context, cursor string, pageSize int, filters []string) (*domain.Page, error) {
	var after *repo.LatestKey
	if cursor != "" {
		var c latestCursor
		if err := decodeCursor(cursor, &c); err != nil {
			return nil, &FetchError{Mode: domain.SortLatest, Err: err}
		}
		after = &repo.LatestKey{CreatedAt: time.Unix(0, c.CreatedAt).UTC(), ID: c.ID}
	}

	// One extra row decides HasMore without a second count query.
	memes, err := repo.ListMemesLatest(ctx, f.db, after, pageSize+1, filters)
	if err != nil {
		return nil, &FetchError{Mode: domain.SortLatest, Err: err}
	}
	page := &domain.Page{}
	if len(memes) > pageSize {
		memes = memes[:pageSize]
		page.HasMore = true
	}
	page.Items = memes
	if page.HasMore {
		last := memes[len(memes)-1]
		page.NextCursor = encodeCursor(latestCursor{CreatedAt: last.CreatedAt.UnixNano(), ID: last.ID})
	}
	if cursor == "" {
		if n, err := repo.CountMemes(ctx, f.db, filters); err == nil {
			page.Total = &n
		}
	}
	return page, nil
}

// --- hot ---

type hotFetcher struct {
	db *gorm.DB
	// skipCount omits recomputing Total after the first page of a session;
	// the rank beyond page one never changes what the client already shows.
	skipCount bool
}

// NewHotFetcher returns the popularity-ranked fetcher. The ranking score is
// computed upstream (vote counter here stands in for it); the cursor
// addresses a rank position, not a stable item key.
func NewHotFetcher(db *gorm.DB, skipCount bool) Fetcher {
	return &hotFetcher{db: db, skipCount: skipCount}
}

func (f *hotFetcher) FetchPage(ctx context.Context, cursor string, pageSize int, filters []string) (*domain.Page, error) {
	offset := 0
	if cursor != "" {
		var c rankCursor
		if err := decodeCursor(cursor, &c); err != nil {
			return nil, &FetchError{Mode: domain.SortHot, Err: err}
		}
		offset = c.Rank
	}

	memes, err := repo.ListMemesByRank(ctx, f.db, offset, pageSize+1, filters)
	if err != nil {
		return nil, &FetchError{Mode: domain.SortHot, Err: err}
	}
	page := &domain.Page{}
	if len(memes) > pageSize {
		memes = memes[:pageSize]
		page.HasMore = true
	}
	page.Items = memes
	if page.HasMore {
		page.NextCursor = encodeCursor(rankCursor{Rank: offset + len(memes)})
	}
	if cursor == "" || !f.skipCount {
		if n, err := repo.CountMemes(ctx, f.db, filters); err == nil {
			page.Total = &n
		}
	}
	return page, nil
}

// --- random ---

type randomFetcher struct {
	db *gorm.DB

	mu      sync.Mutex
	session uint64
	order   []string

	// seed is a test seam; defaults to the wall clock.
	seed func() int64
}

// NewRandomFetcher returns the per-session shuffled fetcher. An empty cursor
// starts a new session: the candidate id set is loaded once and shuffled,
// and subsequent cursors address positions inside that frozen permutation.
// Cursors from an abandoned session are rejected with ErrBadCursor since the
// new ordering gives their positions a different meaning.
func NewRandomFetcher(db *gorm.DB) Fetcher {
	return &randomFetcher{db: db, seed: func() int64 { return time.Now().UnixNano() }}
}

func (f *randomFetcher) FetchPage(ctx context.Context, cursor string, pageSize int, filters []string) (*domain.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	pos := 0
	if cursor == "" {
		ids, err := repo.ListMemeIDs(ctx, f.db, filters)
		if err != nil {
			return nil, &FetchError{Mode: domain.SortRandom, Err: err}
		}
		rng := rand.New(rand.NewSource(f.seed()))
		rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
		f.order = ids
		f.session++
	} else {
		var c randomCursor
		if err := decodeCursor(cursor, &c); err != nil {
			return nil, &FetchError{Mode: domain.SortRandom, Err: err}
		}
		if c.Session != f.session || c.Pos < 0 || c.Pos > len(f.order) {
			return nil, &FetchError{Mode: domain.SortRandom, Err: ErrBadCursor}
		}
		pos = c.Pos
	}

	end := pos + pageSize
	if end > len(f.order) {
		end = len(f.order)
	}
	slice := f.order[pos:end]

	memes, err := repo.GetMemesByIDs(ctx, f.db, slice)
	if err != nil {
		return nil, &FetchError{Mode: domain.SortRandom, Err: err}
	}
	// Reassemble in permutation order; the IN query returns rows unordered.
	byID := make(map[string]domain.Meme, len(memes))
	for _, m := range memes {
		byID[m.ID] = m
	}
	items := make([]domain.Meme, 0, len(slice))
	for _, id := range slice {
		if m, ok := byID[id]; ok {
			items = append(items, m)
		}
	}

	page := &domain.Page{Items: items, HasMore: end < len(f.order)}
	if page.HasMore {
		page.NextCursor = encodeCursor(randomCursor{Session: f.session, Pos: end})
	}
	// Approximate by construction: the session snapshot, not the live table.
	n := int64(len(f.order))
	page.Total = &n
	return page, nil
}
