package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-meme-backend/internal/domain"
	"github.com/tbourn/go-meme-backend/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
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
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedTippableMeme(t *testing.T, db *gorm.DB, id string) {
	t.Helper()
	m := &domain.Meme{ID: id, OwnerUsername: "owner"}
	if err := repo.CreateMeme(context.Background(), db, m); err != nil {
		t.Fatalf("seed meme: %v", err)
	}
}

func validTip(memeID string) TipInput {
	return TipInput{
		RecipientWallet: "wallet-recipient",
		SenderWallet:    "wallet-sender",
		MemeID:          memeID,
		Amount:          1.5,
		TransactionID:   "tx-123",
	}
}

func TestCreateTip_Success_SetsHasTips(t *testing.T) {
	db := newServiceDB(t)
	seedTippableMeme(t, db, "m-1")
	svc := &NotificationService{DB: db}

	n, err := svc.CreateTip(context.Background(), validTip("m-1"))
	if err != nil {
		t.Fatalf("CreateTip: %v", err)
	}
	if n.Kind != domain.NotificationKindTip || n.RecipientUsername != "wallet-recipient" {
		t.Fatalf("unexpected record: %+v", n)
	}
	if n.Amount == nil || *n.Amount != 1.5 {
		t.Fatalf("unexpected amount: %v", n.Amount)
	}
	if n.TokenSymbol != "SOL" {
		t.Fatalf("expected default token symbol, got %q", n.TokenSymbol)
	}
	if n.MemeTitle != "Untitled" {
		t.Fatalf("expected default title, got %q", n.MemeTitle)
	}

	m, err := repo.GetMeme(context.Background(), db, "m-1")
	if err != nil || !m.HasTips {
		t.Fatalf("expected has_tips set, got (%+v, %v)", m, err)
	}
}

func TestCreateTip_ValidationWritesNothing(t *testing.T) {
	db := newServiceDB(t)
	seedTippableMeme(t, db, "m-1")
	svc := &NotificationService{DB: db}

	cases := []struct {
		name    string
		mutate  func(*TipInput)
		wantErr error
	}{
		{"missing recipient", func(in *TipInput) { in.RecipientWallet = "  " }, ErrMissingRecipient},
		{"missing sender", func(in *TipInput) { in.SenderWallet = "" }, ErrMissingActor},
		{"missing meme", func(in *TipInput) { in.MemeID = "" }, ErrMissingMeme},
		{"zero amount", func(in *TipInput) { in.Amount = 0 }, ErrInvalidAmount},
		{"negative amount", func(in *TipInput) { in.Amount = -2 }, ErrInvalidAmount},
		{"missing transaction", func(in *TipInput) { in.TransactionID = " " }, ErrMissingTransaction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validTip("m-1")
			tc.mutate(&in)
			if _, err := svc.CreateTip(context.Background(), in); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	// No partial state: neither ledger entries nor the has-tips flag.
	count, err := repo.CountNotificationsByMeme(context.Background(), db, "m-1")
	if err != nil || count != 0 {
		t.Fatalf("expected empty ledger, got (%d, %v)", count, err)
	}
	m, err := repo.GetMeme(context.Background(), db, "m-1")
	if err != nil || m.HasTips {
		t.Fatalf("expected has_tips untouched, got (%+v, %v)", m, err)
	}
}

func TestCreateTip_FlagFailureDoesNotFailTip(t *testing.T) {
	db := newServiceDB(t)
	svc := &NotificationService{DB: db}

	// The meme does not exist, so the secondary has-tips write fails. The
	// tip itself must still be recorded.
	n, err := svc.CreateTip(context.Background(), validTip("ghost-meme"))
	if err != nil {
		t.Fatalf("CreateTip: %v", err)
	}
	count, err := repo.CountNotificationsByMeme(context.Background(), db, "ghost-meme")
	if err != nil || count != 1 {
		t.Fatalf("expected recorded tip, got (%d, %v)", count, err)
	}
	if n.TransactionID != "tx-123" {
		t.Fatalf("unexpected record: %+v", n)
	}
}

func TestCreateTip_TokenSymbolOverride(t *testing.T) {
	db := newServiceDB(t)
	seedTippableMeme(t, db, "m-1")

	svc := &NotificationService{DB: db, TokenSymbol: "BONK"}
	n, err := svc.CreateTip(context.Background(), validTip("m-1"))
	if err != nil || n.TokenSymbol != "BONK" {
		t.Fatalf("expected configured default, got (%+v, %v)", n, err)
	}

	in := validTip("m-1")
	in.TransactionID = "tx-456"
	in.TokenSymbol = "ETH"
	n2, err := svc.CreateTip(context.Background(), in)
	if err != nil || n2.TokenSymbol != "ETH" {
		t.Fatalf("explicit symbol must win, got (%+v, %v)", n2, err)
	}
}

func TestCreateLike_SelfLikeIsSilentNoOp(t *testing.T) {
	db := newServiceDB(t)
	svc := &NotificationService{DB: db}

	created, n, err := svc.CreateLike(context.Background(), LikeInput{
		MemeID:    "m-1",
		MemeOwner: "alice",
		Liker:     "alice",
	})
	if err != nil {
		t.Fatalf("self-like must not error: %v", err)
	}
	if created || n != nil {
		t.Fatalf("self-like must not create, got (%v, %+v)", created, n)
	}
	count, err := repo.CountNotificationsByMeme(context.Background(), db, "m-1")
	if err != nil || count != 0 {
		t.Fatalf("self-like wrote to the ledger: (%d, %v)", count, err)
	}
}

func TestCreateLike_SuccessAndValidation(t *testing.T) {
	db := newServiceDB(t)
	svc := &NotificationService{DB: db}

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	created, n, err := svc.CreateLike(context.Background(), LikeInput{
		MemeID:    "m-1",
		MemeOwner: "alice",
		Liker:     "bob",
		MemeTitle: "cat on keyboard",
		Timestamp: &ts,
	})
	if err != nil || !created {
		t.Fatalf("CreateLike: (%v, %v)", created, err)
	}
	if n.Kind != domain.NotificationKindLike || n.RecipientUsername != "alice" || n.ActorUsername != "bob" {
		t.Fatalf("unexpected record: %+v", n)
	}
	if !n.CreatedAt.Equal(ts) {
		t.Fatalf("expected caller timestamp honored, got %v", n.CreatedAt)
	}

	if _, _, err := svc.CreateLike(context.Background(), LikeInput{MemeID: "m-1", MemeOwner: "alice"}); !errors.Is(err, ErrMissingActor) {
		t.Fatalf("expected ErrMissingActor, got %v", err)
	}
	if _, _, err := svc.CreateLike(context.Background(), LikeInput{MemeID: "m-1", Liker: "bob"}); !errors.Is(err, ErrMissingRecipient) {
		t.Fatalf("expected ErrMissingRecipient, got %v", err)
	}
	if _, _, err := svc.CreateLike(context.Background(), LikeInput{MemeOwner: "alice", Liker: "bob"}); !errors.Is(err, ErrMissingMeme) {
		t.Fatalf("expected ErrMissingMeme, got %v", err)
	}
}

func seedLike(t *testing.T, svc *NotificationService, id string, at time.Time) string {
	t.Helper()
	_, n, err := svc.CreateLike(context.Background(), LikeInput{
		MemeID:    id,
		MemeOwner: "alice",
		Liker:     "bob",
		Timestamp: &at,
	})
	if err != nil {
		t.Fatalf("seed like %s: %v", id, err)
	}
	return n.ID
}

func TestFeed_UnreadDerivedFromWatermarkAndClicks(t *testing.T) {
	db := newServiceDB(t)
	svc := &NotificationService{DB: db}
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	id1 := seedLike(t, svc, "m-1", base.Add(100*time.Second))
	seedLike(t, svc, "m-2", base.Add(200*time.Second))
	id3 := seedLike(t, svc, "m-3", base.Add(300*time.Second))

	// Watermark between the first and second notifications.
	if err := repo.StampLastRead(context.Background(), db, "alice", base.Add(150*time.Second)); err != nil {
		t.Fatalf("stamp: %v", err)
	}

	feed, err := svc.Feed(context.Background(), "alice", 50)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(feed.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(feed.Items))
	}
	if feed.UnreadCount != 2 {
		t.Fatalf("expected 2 unread, got %d", feed.UnreadCount)
	}
	// Newest first; only the oldest is under the watermark.
	if !feed.Items[2].Read || feed.Items[2].ID != id1 {
		t.Fatalf("expected oldest item read: %+v", feed.Items[2])
	}

	// Clicking the newest clears it independently of the watermark.
	if err := svc.MarkClicked(context.Background(), "alice", id3); err != nil {
		t.Fatalf("MarkClicked: %v", err)
	}
	feed, err = svc.Feed(context.Background(), "alice", 50)
	if err != nil {
		t.Fatalf("Feed after click: %v", err)
	}
	if feed.UnreadCount != 1 {
		t.Fatalf("expected 1 unread after click, got %d", feed.UnreadCount)
	}
	if !feed.Items[0].Read {
		t.Fatalf("clicked item must read as read: %+v", feed.Items[0])
	}
}

func TestFeed_MergesKindsNewestFirst(t *testing.T) {
	db := newServiceDB(t)
	seedTippableMeme(t, db, "m-1")
	svc := &NotificationService{DB: db}
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	seedLike(t, svc, "m-1", base.Add(time.Minute))
	// Tips are addressed by wallet; use the same recipient string so both
	// kinds land in one feed.
	in := validTip("m-1")
	in.RecipientWallet = "alice"
	tip, err := svc.CreateTip(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateTip: %v", err)
	}

	feed, err := svc.Feed(context.Background(), "alice", 50)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("expected both kinds, got %d items", len(feed.Items))
	}
	// The tip was created "now", far after the fixed like timestamp.
	if feed.Items[0].ID != tip.ID || feed.Items[0].Kind != domain.NotificationKindTip {
		t.Fatalf("unexpected head: %+v", feed.Items[0])
	}
	if feed.UnreadCount != 2 {
		t.Fatalf("expected everything unread, got %d", feed.UnreadCount)
	}
}

func TestFeed_LimitAndMissingUser(t *testing.T) {
	db := newServiceDB(t)
	svc := &NotificationService{DB: db}
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		seedLike(t, svc, fmt.Sprintf("m-%d", i), base.Add(time.Duration(i)*time.Minute))
	}

	feed, err := svc.Feed(context.Background(), "alice", 3)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(feed.Items) != 3 {
		t.Fatalf("expected limit applied, got %d", len(feed.Items))
	}
	if feed.Items[0].MemeID != "m-4" {
		t.Fatalf("expected newest first, got %+v", feed.Items[0])
	}

	if _, err := svc.Feed(context.Background(), "  ", 3); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
}

func TestFeed_UnreadCountCoversWholeLedger(t *testing.T) {
	db := newServiceDB(t)
	svc := &NotificationService{DB: db}
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var oldest string
	for i := 0; i < 5; i++ {
		id := seedLike(t, svc, fmt.Sprintf("m-%d", i), base.Add(time.Duration(i)*time.Minute))
		if i == 0 {
			oldest = id
		}
	}

	// Two items per page, five unread across the ledger.
	feed, err := svc.Feed(context.Background(), "alice", 2)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("expected limit applied, got %d", len(feed.Items))
	}
	if feed.UnreadCount != 5 {
		t.Fatalf("unread count must cover the whole ledger, got %d", feed.UnreadCount)
	}

	// Clicking an entry outside the served window still lowers the count.
	if err := svc.MarkClicked(context.Background(), "alice", oldest); err != nil {
		t.Fatalf("MarkClicked: %v", err)
	}
	feed, err = svc.Feed(context.Background(), "alice", 2)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if feed.UnreadCount != 4 {
		t.Fatalf("expected 4 unread after the click, got %d", feed.UnreadCount)
	}
}

func TestMarkClicked_IdempotentAndValidated(t *testing.T) {
	db := newServiceDB(t)
	svc := &NotificationService{DB: db}

	if err := svc.MarkClicked(context.Background(), "alice", "n-1"); err != nil {
		t.Fatalf("first click: %v", err)
	}
	if err := svc.MarkClicked(context.Background(), "alice", "n-1"); err != nil {
		t.Fatalf("repeat click: %v", err)
	}
	ids, err := repo.ListClickedIDs(context.Background(), db, "alice")
	if err != nil || len(ids) != 1 {
		t.Fatalf("expected one clicked id, got (%v, %v)", ids, err)
	}

	if err := svc.MarkClicked(context.Background(), "", "n-1"); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
	if err := svc.MarkClicked(context.Background(), "alice", " "); !errors.Is(err, ErrMissingNotification) {
		t.Fatalf("expected ErrMissingNotification, got %v", err)
	}
}

func TestMarkAllRead_ZeroesUnread(t *testing.T) {
	db := newServiceDB(t)
	svc := &NotificationService{DB: db}
	base := time.Now().UTC().Add(-time.Hour)

	seedLike(t, svc, "m-1", base)
	seedLike(t, svc, "m-2", base.Add(time.Minute))

	if err := svc.MarkAllRead(context.Background(), "alice"); err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	feed, err := svc.Feed(context.Background(), "alice", 50)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if feed.UnreadCount != 0 {
		t.Fatalf("expected zero unread, got %d", feed.UnreadCount)
	}
	if err := svc.MarkAllRead(context.Background(), ""); !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
}

func TestDisplayTitle(t *testing.T) {
	long := strings.Repeat("Ab", 50)
	lower := strings.Repeat("z", 90)
	cases := []struct {
		in   string
		want string
	}{
		{"", "Untitled"},
		{"   ", "Untitled"},
		{"cat  on \t keyboard", "Cat On Keyboard"},
		{"Already Cased", "Already Cased"},
		{"top 10 memes", "top 10 memes"}, // digits suppress recasing
		{long, long[:80]},
		{lower, "Z" + strings.Repeat("z", 79)}, // clipped first, then recased
	}
	for _, c := range cases {
		if got := displayTitle(c.in); got != c.want {
			t.Fatalf("displayTitle(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
