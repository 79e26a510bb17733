// Vote HTTP handler.
//
// This file exposes the vote write path:
//   - POST /memes/{id}/vote
//
// One vote per (voter, meme) is enforced by the storage layer; the handler
// translates a repeat vote into 409 rather than hiding it. The viewer's
// local vote snapshot is invalidated on success so the next feed read
// re-syncs instead of serving the pre-vote state for up to an hour.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-meme-backend/internal/services"
)

// VoteResponse reports the outcome of a vote, including the meme's updated
// counter so clients never re-read the meme.
type VoteResponse struct {
	Success   bool   `json:"success" example:"true"`
	MemeID    string `json:"meme_id" example:"4f9b8a51-7c1d-4e0a-9f32-d5f6a7b8c9d0"`
	VoteCount int64  `json:"vote_count" example:"42"`
}

// CastVote godoc
// @ID          castVote
// @Summary     Vote on a meme
// @Description Records one vote by the requesting user on the meme and bumps its counter.
// @Description Voting twice on the same meme returns 409.
// @Tags        Votes
// @Produce     json
//
// @Param       X-User-ID header string true "Voter identity" example(wallet123)
// @Param       id        path   string true "Meme ID (UUID)" format(uuid)
//
// @Success     200  {object}  handlers.VoteResponse
// @Failure     400  {object}  handlers.ErrorResponse "Missing voter or malformed meme id"
// @Failure     404  {object}  handlers.ErrorResponse "Meme not found"
// @Failure     409  {object}  handlers.ErrorResponse "Already voted"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /memes/{id}/vote [post]
func (h *Handlers) CastVote(c *gin.Context) {
	ctx := c.Request.Context()

	memeID := c.Param("id")
	if _, err := uuid.Parse(memeID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "meme id must be a UUID")
		return
	}
	voter := userID(c)
	if voter == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "voter identity required")
		return
	}

	m, err := h.voteSvc.Cast(ctx, voter, memeID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMemeNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "meme not found")
		case errors.Is(err, services.ErrDuplicateVote):
			fail(c, http.StatusConflict, ErrCodeConflict, "already voted on this meme")
		case errors.Is(err, services.ErrMissingUser), errors.Is(err, services.ErrMissingMeme):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	// Drop the voter's snapshot so their next read reflects this vote.
	if h.votePool != nil {
		h.votePool.Invalidate(voter)
	}

	ok(c, http.StatusOK, VoteResponse{Success: true, MemeID: m.ID, VoteCount: m.VoteCount})
}
