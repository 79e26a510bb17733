// Feed HTTP handler.
//
// This file exposes the paginated feed read endpoint:
//   - GET /feed   (cursor pagination over latest / hot / random)
//
// The handler is a thin consumer of the feed cache manager: it attaches to
// the (mode, filter) bucket for the duration of the request, serves the
// cached window when mounting onto a fresh bucket, advances the cursor
// chain otherwise, and detaches on the way out. Week separators are
// computed over the flattened accumulated window at render time, and each
// meme is annotated with the viewer's vote state from that viewer's own
// pooled snapshot when an identity is present.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-meme-backend/internal/domain"
	"github.com/tbourn/go-meme-backend/internal/feed"
	"github.com/tbourn/go-meme-backend/internal/http/middleware"
	"github.com/tbourn/go-meme-backend/internal/utils"
	"github.com/tbourn/go-meme-backend/internal/votes"
)

//
// DTOs
//

// FeedEntryView is one element of the rendered feed sequence: either a meme
// (with the viewer's vote annotation) or a synthetic week separator.
type FeedEntryView struct {
	// Type discriminates the variant: "meme" or "separator".
	Type string `json:"type" example:"meme"`
	// ID is the meme id or the derived separator id.
	ID string `json:"id" example:"4f9b8a51-7c1d-4e0a-9f32-d5f6a7b8c9d0"`
	// Meme is set for meme entries only.
	Meme *domain.Meme `json:"meme,omitempty"`
	// ViewerHasVoted is present when a viewer identity accompanied the
	// request; absent for anonymous reads.
	ViewerHasVoted *bool `json:"viewer_has_voted,omitempty"`
	// Weeks is the whole-week gap carried by separator entries.
	Weeks int `json:"weeks,omitempty"`
}

// FeedResponse is the JSON envelope for one feed read.
type FeedResponse struct {
	Mode       string          `json:"mode"`
	Filter     string          `json:"filter,omitempty"`
	Entries    []FeedEntryView `json:"entries"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
	// Total is advisory; clients must not treat it as exact.
	Total *int64 `json:"total,omitempty"`
}

// clampFeedPageSize parses pageSize from query parameters, applying the
// default and cap.
func clampFeedPageSize(c *gin.Context) int {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	n := utils.AtoiDefault(c.Query("pageSize"), defaultPageSize)
	if n < 1 {
		n = 1
	}
	if n > maxPageSize {
		n = maxPageSize
	}
	return n
}

// GetFeed godoc
// @ID          getFeed
// @Summary     Read a page of the meme feed
// @Description Returns a cursor-paginated slice of the feed for the requested sort mode.
// @Description An empty cursor starts (or re-serves) the window; a non-empty cursor must be
// @Description the exact next_cursor of the previous response for the same mode and filter.
// @Tags        Feed
// @Produce     json
//
// @Param       X-User-ID header string false "Viewer identity used for vote annotations"  example(wallet123)
// @Param       mode      query  string false "Sort mode: latest, hot, or random"          default(latest)
// @Param       cursor    query  string false "Opaque continuation cursor from the previous page"
// @Param       pageSize  query  int    false "Items per page"  minimum(1) maximum(100) default(20)
// @Param       filter    query  string false "Media-type filter (image, gif, video)"
//
// @Success     200  {object}  handlers.FeedResponse
// @Failure     400  {object}  handlers.ErrorResponse "Unknown mode or broken cursor chain"
// @Failure     409  {object}  handlers.ErrorResponse "Feed session changed mid-request"
// @Failure     500  {object}  handlers.ErrorResponse "Upstream fetch failed after retries"
// @Router      /feed [get]
func (h *Handlers) GetFeed(c *gin.Context) {
	ctx := c.Request.Context()

	mode := domain.SortMode(c.DefaultQuery("mode", string(domain.SortLatest)))
	if !mode.Valid() {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "mode must be one of latest, hot, random")
		return
	}
	filter := strings.TrimSpace(c.Query("filter"))
	cursor := c.Query("cursor")
	pageSize := clampFeedPageSize(c)

	key := feed.Key{Mode: mode, Filter: filter}
	if err := h.feedMgr.Acquire(key); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "mode must be one of latest, hot, random")
		return
	}
	defer h.feedMgr.Release(key)

	// Point a viewer-scoped snapshot at the viewer before anything is
	// rendered. Each identity gets its own synchronizer from the pool, so
	// concurrent viewers never read each other's snapshot. A failed sync
	// degrades to "not voted" lookups rather than failing the read.
	viewer := userID(c)
	var viewerVotes *votes.Synchronizer
	if h.votePool != nil && viewer != "" {
		viewerVotes = h.votePool.For(viewer)
		if err := viewerVotes.SetUser(ctx, viewer); err != nil {
			middleware.LoggerFrom(c).Warn().
				Err(err).
				Str("viewer", viewer).
				Msg("vote snapshot sync failed; serving unannotated")
		}
	}

	var newCount int
	fullWindow := false
	if cursor == "" && h.feedMgr.Fresh(key) {
		// Re-mount onto a still-fresh bucket: serve the accumulated window
		// without touching upstream.
		fullWindow = true
	} else {
		page, err := h.feedMgr.NextPage(ctx, key, cursor, pageSize)
		switch {
		case err == nil:
			newCount = len(page.Items)
		case errors.Is(err, feed.ErrNoMorePages):
			newCount = 0
		case errors.Is(err, feed.ErrCursorMismatch), errors.Is(err, feed.ErrBadCursor):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cursor does not continue this feed; restart from an empty cursor")
			return
		case errors.Is(err, feed.ErrStaleContext):
			fail(c, http.StatusConflict, ErrCodeConflict, "feed changed while fetching; retry")
			return
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
			return
		}
	}

	window := h.feedMgr.Items(key)
	if fullWindow {
		newCount = len(window)
	}

	nextCursor, hasMore, total := h.feedMgr.State(key)
	ok(c, http.StatusOK, FeedResponse{
		Mode:       string(mode),
		Filter:     filter,
		Entries:    h.renderEntries(window, newCount, viewerVotes),
		NextCursor: nextCursor,
		HasMore:    hasMore,
		Total:      total,
	})
}

// renderEntries runs the week-separator transform over the flattened
// accumulated window, then returns the tail covering the newCount most
// recently fetched items. Running over the whole window means a week
// boundary falling between two pages still yields its separator, carried by
// the later page. Each meme is annotated from the viewer's snapshot;
// annotation is skipped entirely for anonymous viewers (nil viewerVotes) so
// "false" is never conflated with "unknown".
func (h *Handlers) renderEntries(window []domain.Meme, newCount int, viewerVotes *votes.Synchronizer) []FeedEntryView {
	entries := feed.WithWeekSeparators(window)

	// Skip entries belonging to already-served pages. A boundary separator
	// sits between the last served meme and the first new one, so it lands
	// in the tail.
	skip := len(window) - newCount
	if skip < 0 {
		skip = 0
	}
	start := 0
	for start < len(entries) && skip > 0 {
		if entries[start].Kind == domain.EntryMeme {
			skip--
		}
		start++
	}

	out := make([]FeedEntryView, 0, len(entries)-start)
	for _, e := range entries[start:] {
		switch e.Kind {
		case domain.EntryMeme:
			v := FeedEntryView{Type: string(e.Kind), ID: e.Meme.ID, Meme: e.Meme}
			if viewerVotes != nil {
				voted := viewerVotes.HasVoted(e.Meme.ID)
				v.ViewerHasVoted = &voted
			}
			out = append(out, v)
		case domain.EntrySeparator:
			out = append(out, FeedEntryView{
				Type:  string(e.Kind),
				ID:    e.Separator.ID,
				Weeks: e.Separator.Weeks,
			})
		}
	}
	return out
}
