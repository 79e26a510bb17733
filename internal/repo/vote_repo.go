// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Vote model.
//
// Error semantics:
//   - A second vote by the same user on the same meme relies on the database
//     unique constraint and is returned as ErrDuplicate. The service layer
//     decides whether that surfaces to the caller.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-meme-backend/internal/domain"
)

// CreateVote records that voter voted on memeID and bumps the meme's
// denormalized vote counter in the same transaction. The counter is only
// ever incremented; ErrDuplicate is returned when the (meme, voter) pair
// already exists and nothing is written.
func CreateVote(ctx context.Context, db *gorm.DB, memeID, voter string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists domain.Meme
		if err := tx.Select("id").First(&exists, "id = ?", memeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		v := &domain.Vote{
			ID:            uuid.NewString(),
			MemeID:        memeID,
			VoterUsername: voter,
			CreatedAt:     time.Now().UTC(),
		}
		if err := tx.Create(v).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return err
		}
		return tx.Model(&domain.Meme{}).
			Where("id = ?", memeID).
			Update("vote_count", gorm.Expr("vote_count + 1")).Error
	})
}

// ListVotedMemeIDs returns the distinct meme ids voter has voted on. This is
// the bulk query behind the vote-cache snapshot: one round trip per refresh
// instead of one existence check per rendered item.
func ListVotedMemeIDs(ctx context.Context, db *gorm.DB, voter string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&domain.Vote{}).
		Where("voter_username = ?", voter).
		Distinct().
		Pluck("meme_id", &ids).Error
	return ids, err
}

// isUniqueViolation detects unique-constraint violations across drivers
// that may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "duplicate key")
}
