// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Meme model,
// including the ranked page queries behind the per-mode feed fetchers.
//
// The repository follows a "thin" approach: it performs persistence and simple
// query composition, leaving cursor semantics and caching policy to the feed
// package. Page queries take explicit ordering keys or rank offsets; they never
// see the opaque cursor tokens the transport uses.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-meme-backend/internal/domain"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("not found")

// LatestKey is the keyset position of a meme in the reverse-chronological
// ordering: strictly older rows sort after it. ID breaks creation-time ties
// so the ordering is total and stable under concurrent inserts.
type LatestKey struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// CreateMeme inserts a meme, generating its ID and timestamp when unset.
// Publishing is outside the feed core; this exists for seeds and tests.
func CreateMeme(ctx context.Context, db *gorm.DB, m *domain.Meme) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Title == "" {
		m.Title = "Untitled"
	}
	if m.FileType == "" {
		m.FileType = domain.FileTypeImage
	}
	return db.WithContext(ctx).Create(m).Error
}

// GetMeme returns the meme with id, or ErrNotFound.
func GetMeme(ctx context.Context, db *gorm.DB, id string) (*domain.Meme, error) {
	var m domain.Meme
	err := db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMemesLatest returns up to limit memes strictly older than the given
// keyset position (or the newest memes when after is nil), newest first.
// A non-empty filters slice restricts the file types returned.
func ListMemesLatest(ctx context.Context, db *gorm.DB, after *LatestKey, limit int, filters []string) ([]domain.Meme, error) {
	q := db.WithContext(ctx).Model(&domain.Meme{}).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if after != nil {
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	if len(filters) > 0 {
		q = q.Where("file_type IN ?", filters)
	}
	var memes []domain.Meme
	err := q.Find(&memes).Error
	return memes, err
}

// ListMemesByRank returns up to limit memes starting at the given rank in
// the popularity ordering (vote count descending, id ascending as the
// deterministic tie-break). Rank addressing is how the hot-mode cursor
// resumes a session; the score itself is computed upstream of this core.
func ListMemesByRank(ctx context.Context, db *gorm.DB, offset, limit int, filters []string) ([]domain.Meme, error) {
	q := db.WithContext(ctx).Model(&domain.Meme{}).
		Order("vote_count DESC, id ASC").
		Offset(offset).
		Limit(limit)
	if len(filters) > 0 {
		q = q.Where("file_type IN ?", filters)
	}
	var memes []domain.Meme
	err := q.Find(&memes).Error
	return memes, err
}

// ListMemeIDs returns the ids of every meme matching filters, id-ordered.
// The random fetcher shuffles this set once per session.
func ListMemeIDs(ctx context.Context, db *gorm.DB, filters []string) ([]string, error) {
	q := db.WithContext(ctx).Model(&domain.Meme{}).Order("id ASC")
	if len(filters) > 0 {
		q = q.Where("file_type IN ?", filters)
	}
	var ids []string
	err := q.Pluck("id", &ids).Error
	return ids, err
}

// GetMemesByIDs loads the given memes in no particular order; callers that
// care about ordering (the random fetcher) reassemble by id.
func GetMemesByIDs(ctx context.Context, db *gorm.DB, ids []string) ([]domain.Meme, error) {
	if len(ids) == 0 {
		return []domain.Meme{}, nil
	}
	var memes []domain.Meme
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&memes).Error
	return memes, err
}

// CountMemes returns the number of memes matching filters.
func CountMemes(ctx context.Context, db *gorm.DB, filters []string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Meme{})
	if len(filters) > 0 {
		q = q.Where("file_type IN ?", filters)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// MarkMemeHasTips flags the meme as tipped. Returns ErrNotFound when no row
// was updated so the caller can log the failed secondary write.
func MarkMemeHasTips(ctx context.Context, db *gorm.DB, memeID string) error {
	res := db.WithContext(ctx).Model(&domain.Meme{}).
		Where("id = ?", memeID).
		Update("has_tips", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
