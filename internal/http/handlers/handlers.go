// Handler wiring.
//
// This file groups the HTTP endpoints behind a single Handlers value and
// defines the service contracts they consume. Handlers are transport-thin:
// they validate and normalize inputs, delegate to application services or
// the feed cache manager, and translate results (including sentinel errors)
// into HTTP responses.
package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-meme-backend/internal/domain"
	"github.com/tbourn/go-meme-backend/internal/feed"
	"github.com/tbourn/go-meme-backend/internal/http/middleware"
	"github.com/tbourn/go-meme-backend/internal/services"
	"github.com/tbourn/go-meme-backend/internal/votes"
)

//
// Service contracts (context-aware)
//

// NotificationService defines the ledger operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type NotificationService interface {
	// CreateTip validates and appends a tip record, best-effort flagging the meme.
	CreateTip(ctx context.Context, in services.TipInput) (*domain.Notification, error)
	// CreateLike appends a like record; a self-like succeeds without creating one.
	CreateLike(ctx context.Context, in services.LikeInput) (bool, *domain.Notification, error)
	// Feed returns the merged, read-annotated notification view for user.
	Feed(ctx context.Context, user string, limit int) (*services.NotificationFeed, error)
	// MarkClicked adds one notification id to the user's clicked set.
	MarkClicked(ctx context.Context, user, notificationID string) error
	// MarkAllRead stamps the user's last-read watermark.
	MarkAllRead(ctx context.Context, user string) error
}

// VoteService defines the vote write path consumed by HTTP handlers.
type VoteService interface {
	// Cast records one vote per (voter, meme) and returns the updated meme.
	Cast(ctx context.Context, voter, memeID string) (*domain.Meme, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for the feed, votes, and the
// notification ledger. The feed manager and vote pool are concrete because
// the handlers drive their acquire/release and per-identity snapshot
// protocols directly.
type Handlers struct {
	feedMgr  *feed.Manager
	votePool *votes.Pool
	notifSvc NotificationService
	voteSvc  VoteService
}

// New constructs a Handlers instance bound to the given collaborators.
func New(mgr *feed.Manager, pool *votes.Pool, notifSvc NotificationService, voteSvc VoteService) *Handlers {
	return &Handlers{feedMgr: mgr, votePool: pool, notifSvc: notifSvc, voteSvc: voteSvc}
}

// userID extracts the viewer identity from Gin context (set by upstream
// middleware). If absent, it falls back to the "X-User-ID" header. An empty
// result means an anonymous viewer; endpoints that require an identity
// reject it themselves.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

// serviceDB exposes the notification service's database handle for the
// idempotency record lookups, when the concrete implementation carries one.
func (h *Handlers) serviceDB() *gorm.DB {
	if svc, ok := h.notifSvc.(*services.NotificationService); ok {
		return svc.DB
	}
	return nil
}

// idempotencyKey reads the validated Idempotency-Key if the upstream
// validator stashed one, falling back to the raw header.
func idempotencyKey(c *gin.Context) string {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k
	}
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}
