package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-meme-backend/internal/domain"
	"github.com/tbourn/go-meme-backend/internal/feed"
	"github.com/tbourn/go-meme-backend/internal/repo"
	"github.com/tbourn/go-meme-backend/internal/services"
	"github.com/tbourn/go-meme-backend/internal/votes"
)

// handlerEnv wires the real services, feed manager and vote pool over an
// in-memory database, with routes registered the way the router registers
// them.
type handlerEnv struct {
	db   *gorm.DB
	r    *gin.Engine
	mgr  *feed.Manager
	pool *votes.Pool
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	models := []any{
		&domain.Meme{},
		&domain.Vote{},
		&domain.Notification{},
		&domain.ReadMarker{},
		&domain.NotificationClick{},
		&domain.Idempotency{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cfg := feed.Config{
		Policies: map[domain.SortMode]feed.Policy{
			domain.SortLatest: {StaleAfter: 10 * time.Second, GCDelay: 5 * time.Minute},
			domain.SortHot:    {StaleAfter: 60 * time.Second, GCDelay: 5 * time.Minute},
			domain.SortRandom: {StaleAfter: 0, GCDelay: 0},
		},
		Backoff: feed.Backoff{Base: time.Millisecond, Cap: time.Millisecond, MaxAttempts: 1},
	}
	mgr := feed.NewManager(cfg, feed.NewFetchers(db))
	t.Cleanup(mgr.Dispose)

	pool := votes.NewPool(votes.SourceFunc(func(ctx context.Context, voter string) ([]string, error) {
		return repo.ListVotedMemeIDs(ctx, db, voter)
	}), nil, time.Hour)

	h := New(mgr, pool, &services.NotificationService{DB: db}, &services.VoteService{DB: db})

	r := gin.New()
	r.GET("/feed", h.GetFeed)
	r.POST("/memes/:id/vote", h.CastVote)
	r.GET("/notifications", h.ListNotifications)
	r.POST("/notifications/like", h.CreateLike)
	r.POST("/notifications/tips", h.CreateTip)
	r.POST("/notifications/mark-read", h.MarkRead)

	return &handlerEnv{db: db, r: r, mgr: mgr, pool: pool}
}

func (e *handlerEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func (e *handlerEnv) seedMeme(t *testing.T, id string, at time.Time) {
	t.Helper()
	m := &domain.Meme{ID: id, OwnerUsername: "owner", CreatedAt: at}
	if err := repo.CreateMeme(context.Background(), e.db, m); err != nil {
		t.Fatalf("seed meme %s: %v", id, err)
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status=%d want=%d body=%s", w.Code, want, w.Body.String())
	}
}
