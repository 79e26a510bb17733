// Package services – VoteService
//
// Thin use-case wrapper over the vote repository: validates input, maps
// storage errors onto the service sentinels, and returns the updated
// counter so handlers never re-read the meme row.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-meme-backend/internal/domain"
	"github.com/tbourn/go-meme-backend/internal/repo"
)

// VoteService implements the vote use-case: one vote per (voter, meme),
// bumping the meme's denormalized counter atomically with the insert.
type VoteService struct {
	// DB is the database handle used for all vote operations.
	DB *gorm.DB
}

// Cast records a vote by voter on memeID and returns the meme with its
// updated counter.
//
// Error mapping:
//   - unknown meme id          -> ErrMemeNotFound
//   - repeated (voter, meme)   -> ErrDuplicateVote
//   - blank voter              -> ErrMissingUser
//   - blank meme id            -> ErrMissingMeme
func (s *VoteService) Cast(ctx context.Context, voter, memeID string) (*domain.Meme, error) {
	tr := otel.Tracer("services/VoteService")
	ctx, span := tr.Start(ctx, "Cast",
		trace.WithAttributes(
			attribute.String("meme.id", memeID),
			attribute.String("vote.voter", voter),
		),
	)
	defer span.End()

	if strings.TrimSpace(voter) == "" {
		return nil, ErrMissingUser
	}
	if strings.TrimSpace(memeID) == "" {
		return nil, ErrMissingMeme
	}

	if err := repo.CreateVote(ctx, s.DB, memeID, voter); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, ErrMemeNotFound
		case errors.Is(err, repo.ErrDuplicate):
			return nil, ErrDuplicateVote
		default:
			return nil, err
		}
	}

	m, err := repo.GetMeme(ctx, s.DB, memeID)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// VotedMemeIDs returns every meme id the user has voted on. This is the
// bulk projection behind the per-user vote snapshot.
func (s *VoteService) VotedMemeIDs(ctx context.Context, user string) ([]string, error) {
	if strings.TrimSpace(user) == "" {
		return nil, ErrMissingUser
	}
	return repo.ListVotedMemeIDs(ctx, s.DB, user)
}
