// Package services – NotificationService
//
// This file implements the NotificationService, which owns the append-only
// tip/like ledger and the per-user read markers derived from it. Records
// are validated before anything is written; required identifiers are never
// defaulted, display fields are. The "has tips" flag on the tipped meme is
// a two-step saga whose second step is best-effort: its failure is logged
// and surfaced nowhere, because the tip itself has already been recorded.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// the acting/receiving identities and the referenced meme id.
package services

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-meme-backend/internal/domain"
	"github.com/tbourn/go-meme-backend/internal/repo"
)

const (
	// defaultTitle replaces an absent meme title in notification records.
	defaultTitle = "Untitled"

	// defaultTokenSymbol is used when a tip does not name its token.
	defaultTokenSymbol = "SOL"

	titleMaxRunes = 80
)

// NotificationService implements the use-cases around the notification
// ledger: recording tips and likes, deriving read state, and the two
// mark-read operations.
type NotificationService struct {
	// DB is the database handle used for all ledger operations.
	DB *gorm.DB

	// TokenSymbol overrides the default token symbol substituted into tips
	// that do not carry one. Empty keeps the package default.
	TokenSymbol string
}

// TipInput is the payload for CreateTip. RecipientWallet, SenderWallet,
// MemeID, Amount and TransactionID are required; the rest are display
// fields with self-consistent defaults.
type TipInput struct {
	RecipientWallet  string
	SenderWallet     string
	MemeID           string
	Amount           float64
	TransactionID    string
	PriceAtSend      *float64
	TokenSymbol      string
	MemeTitle        string
	MemeImageURL     string
	MemeThumbnailURL string
	MemeFileType     string
}

// LikeInput is the payload for CreateLike. MemeID, MemeOwner and Liker are
// required.
type LikeInput struct {
	MemeID           string
	MemeOwner        string
	Liker            string
	MemeTitle        string
	MemeImageURL     string
	MemeThumbnailURL string
	MemeFileType     string
	Timestamp        *time.Time
}

// NotificationView is one ledger entry annotated with derived read state.
type NotificationView struct {
	domain.Notification
	Read bool `json:"read"`
}

// NotificationFeed is the merged, ranked, deduplicated read-side view.
type NotificationFeed struct {
	Items       []NotificationView `json:"items"`
	UnreadCount int                `json:"unread_count"`
}

// CreateTip validates the payload, appends a tip record, and best-effort
// flags the tipped meme.
//
// Semantics:
//   - Required identifiers (recipient, sender, meme id, transaction id) and
//     a positive amount are rejected with the matching sentinel before any
//     write; there is no partial state on validation failure.
//   - Missing display fields get defaults: title "Untitled", token symbol
//     the configured default. Identifiers are never defaulted.
//   - After the record is written, the meme's has-tips flag is updated
//     outside the transaction. A failure there is logged as a warning and
//     does not fail the tip — the two writes are intentionally not atomic.
func (s *NotificationService) CreateTip(ctx context.Context, in TipInput) (*domain.Notification, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "CreateTip",
		trace.WithAttributes(
			attribute.String("meme.id", in.MemeID),
			attribute.String("tip.recipient", in.RecipientWallet),
		),
	)
	defer span.End()

	switch {
	case strings.TrimSpace(in.RecipientWallet) == "":
		return nil, ErrMissingRecipient
	case strings.TrimSpace(in.SenderWallet) == "":
		return nil, ErrMissingActor
	case strings.TrimSpace(in.MemeID) == "":
		return nil, ErrMissingMeme
	case in.Amount <= 0:
		return nil, ErrInvalidAmount
	case strings.TrimSpace(in.TransactionID) == "":
		return nil, ErrMissingTransaction
	}

	token := strings.TrimSpace(in.TokenSymbol)
	if token == "" {
		token = s.tokenSymbol()
	}
	amount := in.Amount

	n := &domain.Notification{
		ID:                uuid.NewString(),
		Kind:              domain.NotificationKindTip,
		RecipientUsername: in.RecipientWallet,
		ActorUsername:     in.SenderWallet,
		MemeID:            in.MemeID,
		MemeTitle:         displayTitle(in.MemeTitle),
		MemeImageURL:      in.MemeImageURL,
		MemeThumbnailURL:  in.MemeThumbnailURL,
		MemeFileType:      in.MemeFileType,
		Amount:            &amount,
		PriceAtSend:       in.PriceAtSend,
		TokenSymbol:       token,
		TransactionID:     in.TransactionID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := repo.CreateNotification(ctx, s.DB, n); err != nil {
		return nil, err
	}

	// Secondary best-effort write. Compensation policy: logging only.
	if err := repo.MarkMemeHasTips(ctx, s.DB, in.MemeID); err != nil {
		log.Warn().
			Err(err).
			Str("meme_id", in.MemeID).
			Str("tip_id", n.ID).
			Msg("tip recorded but has-tips flag update failed")
	}

	return n, nil
}

// CreateLike validates the payload and appends a like record.
//
// A self-like (liker equals meme owner) is a recognized no-op: it reports
// success with created == false and writes nothing, so users cannot notify
// themselves while callers still see a distinct outcome from a failure.
func (s *NotificationService) CreateLike(ctx context.Context, in LikeInput) (created bool, n *domain.Notification, err error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "CreateLike",
		trace.WithAttributes(
			attribute.String("meme.id", in.MemeID),
			attribute.String("like.actor", in.Liker),
		),
	)
	defer span.End()

	switch {
	case strings.TrimSpace(in.Liker) == "":
		return false, nil, ErrMissingActor
	case strings.TrimSpace(in.MemeOwner) == "":
		return false, nil, ErrMissingRecipient
	case strings.TrimSpace(in.MemeID) == "":
		return false, nil, ErrMissingMeme
	}

	if in.Liker == in.MemeOwner {
		return false, nil, nil
	}

	ts := time.Now().UTC()
	if in.Timestamp != nil {
		ts = in.Timestamp.UTC()
	}
	n = &domain.Notification{
		ID:                uuid.NewString(),
		Kind:              domain.NotificationKindLike,
		RecipientUsername: in.MemeOwner,
		ActorUsername:     in.Liker,
		MemeID:            in.MemeID,
		MemeTitle:         displayTitle(in.MemeTitle),
		MemeImageURL:      in.MemeImageURL,
		MemeThumbnailURL:  in.MemeThumbnailURL,
		MemeFileType:      in.MemeFileType,
		CreatedAt:         ts,
	}
	if err := repo.CreateNotification(ctx, s.DB, n); err != nil {
		return false, nil, err
	}
	return true, n, nil
}

// Feed returns the merged notification view for user: tip and like ledger
// entries ranked newest first, deduplicated by id, each annotated with the
// derived read flag. UnreadCount is computed from the filtered set on every
// call — it is never a stored counter, so it cannot drift.
//
// A notification is read when its timestamp is at or before the user's
// last-read watermark, or its id is in the user's clicked set.
func (s *NotificationService) Feed(ctx context.Context, user string, limit int) (*NotificationFeed, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Feed",
		trace.WithAttributes(attribute.String("user.id", user)),
	)
	defer span.End()

	if strings.TrimSpace(user) == "" {
		return nil, ErrMissingUser
	}

	// The ledger is stored per event type; read both and merge.
	tips, err := repo.ListNotificationsByKind(ctx, s.DB, user, domain.NotificationKindTip, limit)
	if err != nil {
		return nil, err
	}
	likes, err := repo.ListNotificationsByKind(ctx, s.DB, user, domain.NotificationKindLike, limit)
	if err != nil {
		return nil, err
	}

	merged := make([]domain.Notification, 0, len(tips)+len(likes))
	seen := make(map[string]struct{}, len(tips)+len(likes))
	for _, n := range append(tips, likes...) {
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		merged = append(merged, n)
	}
	sort.Slice(merged, func(i, j int) bool {
		if !merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].CreatedAt.After(merged[j].CreatedAt)
		}
		return merged[i].ID > merged[j].ID
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}

	marker, err := repo.GetReadMarker(ctx, s.DB, user)
	if err != nil {
		return nil, err
	}
	clickedIDs, err := repo.ListClickedIDs(ctx, s.DB, user)
	if err != nil {
		return nil, err
	}
	clicked := make(map[string]struct{}, len(clickedIDs))
	for _, id := range clickedIDs {
		clicked[id] = struct{}{}
	}

	// The count runs over the whole ledger, not the limited window above:
	// a user with more unread entries than the page holds still sees the
	// full number.
	unread, err := repo.CountUnreadNotifications(ctx, s.DB, user, marker.LastReadAt)
	if err != nil {
		return nil, err
	}

	feed := &NotificationFeed{
		Items:       make([]NotificationView, 0, len(merged)),
		UnreadCount: int(unread),
	}
	for _, n := range merged {
		read := false
		if marker.LastReadAt != nil && !n.CreatedAt.After(*marker.LastReadAt) {
			read = true
		}
		if _, ok := clicked[n.ID]; ok {
			read = true
		}
		feed.Items = append(feed.Items, NotificationView{Notification: n, Read: read})
	}
	return feed, nil
}

// MarkClicked records notificationID in the user's clicked set. Clicking an
// already-clicked id is a no-op; the operation is additive and idempotent.
func (s *NotificationService) MarkClicked(ctx context.Context, user, notificationID string) error {
	if strings.TrimSpace(user) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(notificationID) == "" {
		return ErrMissingNotification
	}
	return repo.AddClickedNotification(ctx, s.DB, user, notificationID)
}

// MarkAllRead stamps "now" as the user's last-read watermark, marking every
// existing notification as read without touching the clicked set.
func (s *NotificationService) MarkAllRead(ctx context.Context, user string) error {
	if strings.TrimSpace(user) == "" {
		return ErrMissingUser
	}
	return repo.StampLastRead(ctx, s.DB, user, time.Now().UTC())
}

func (s *NotificationService) tokenSymbol() string {
	if s.TokenSymbol != "" {
		return s.TokenSymbol
	}
	return defaultTokenSymbol
}

var titleCaser = cases.Title(language.English)

// displayTitle normalizes a raw meme title for notification display:
// whitespace collapsed, clipped to a sane length, empty replaced with the
// default, and shouting-free all-lowercase titles given title casing.
func displayTitle(raw string) string {
	t := strings.Join(strings.Fields(raw), " ")
	if t == "" {
		return defaultTitle
	}
	if utf8.RuneCountInString(t) > titleMaxRunes {
		t = string([]rune(t)[:titleMaxRunes])
	}
	if t == strings.ToLower(t) && !strings.ContainsFunc(t, unicode.IsDigit) {
		return titleCaser.String(t)
	}
	return t
}
