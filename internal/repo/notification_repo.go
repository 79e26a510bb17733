// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// notification ledger and the per-user read-marker records.
//
// The ledger is append-only: rows are created once and never rewritten.
// Read state lives entirely in the marker tables and is merged back in at
// read time by the service layer. Marker updates are deliberate merge-writes
// (single-column upsert, insert-or-ignore) so concurrent markers never
// clobber each other's unrelated fields.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-meme-backend/internal/domain"
)

// CreateNotification appends one ledger entry. The caller is responsible for
// having generated the ID and timestamp.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	return db.WithContext(ctx).Create(n).Error
}

// ListNotificationsByRecipient returns the newest limit entries addressed to
// user, newest first. A limit <= 0 returns everything.
func ListNotificationsByRecipient(ctx context.Context, db *gorm.DB, user string, limit int) ([]domain.Notification, error) {
	q := db.WithContext(ctx).
		Where("recipient_username = ?", user).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Notification
	err := q.Find(&out).Error
	return out, err
}

// ListNotificationsByKind returns the newest limit entries of one kind
// addressed to user, newest first. A limit <= 0 returns everything.
func ListNotificationsByKind(ctx context.Context, db *gorm.DB, user, kind string, limit int) ([]domain.Notification, error) {
	q := db.WithContext(ctx).
		Where("recipient_username = ? AND kind = ?", user, kind).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Notification
	err := q.Find(&out).Error
	return out, err
}

// CountNotificationsByMeme returns the number of ledger entries referencing
// memeID. Used by tests to assert the self-like no-op wrote nothing.
func CountNotificationsByMeme(ctx context.Context, db *gorm.DB, memeID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("meme_id = ?", memeID).
		Count(&n).Error
	return n, err
}

// GetReadMarker returns the user's read marker, or a zero-valued marker when
// none has been written yet (never having marked anything read is a valid
// state, not an error).
func GetReadMarker(ctx context.Context, db *gorm.DB, user string) (*domain.ReadMarker, error) {
	var m domain.ReadMarker
	err := db.WithContext(ctx).First(&m, "user_id = ?", user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.ReadMarker{UserID: user}, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// StampLastRead upserts the coarse watermark: everything created at or
// before ts is considered read. Only the last_read_at column is touched on
// conflict so the write merges with, rather than replaces, the marker row.
func StampLastRead(ctx context.Context, db *gorm.DB, user string, ts time.Time) error {
	m := &domain.ReadMarker{UserID: user, LastReadAt: &ts, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_read_at", "updated_at"}),
	}).Create(m).Error
}

// AddClickedNotification adds notificationID to the user's clicked set.
// Re-clicking an already-clicked id is a no-op (insert-or-ignore), which
// gives the operation its idempotence.
func AddClickedNotification(ctx context.Context, db *gorm.DB, user, notificationID string) error {
	c := &domain.NotificationClick{
		UserID:         user,
		NotificationID: notificationID,
		CreatedAt:      time.Now().UTC(),
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(c).Error
}

// CountUnreadNotifications counts every ledger entry addressed to user that
// is newer than the watermark and absent from the user's clicked set. It
// counts the full ledger, never a page of it, so the result stays exact no
// matter how the caller limits its item listing. A nil watermark leaves
// only the clicked-set exclusion.
func CountUnreadNotifications(ctx context.Context, db *gorm.DB, user string, lastRead *time.Time) (int64, error) {
	clicked := db.Model(&domain.NotificationClick{}).
		Select("notification_id").
		Where("user_id = ?", user)
	q := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("recipient_username = ?", user).
		Where("id NOT IN (?)", clicked)
	if lastRead != nil {
		q = q.Where("created_at > ?", *lastRead)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}

// ListClickedIDs returns the ids in the user's clicked set.
func ListClickedIDs(ctx context.Context, db *gorm.DB, user string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).Model(&domain.NotificationClick{}).
		Where("user_id = ?", user).
		Pluck("notification_id", &ids).Error
	return ids, err
}
