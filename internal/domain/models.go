// Package domain defines the persistence models for memes, votes, the
// notification ledger, and per-user read markers. These types are mapped
// with GORM and form the core data layer of the meme-feed application.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Notification kinds recorded in the ledger.
const (
	NotificationKindTip  = "tip"
	NotificationKindLike = "like"
)

// Media types carried by a meme. Used as the feed filter dimension.
const (
	FileTypeImage = "image"
	FileTypeGif   = "gif"
	FileTypeVideo = "video"
)

// Meme represents a published content item. Memes are immutable once
// published except for the monotonically non-decreasing vote counter and
// the has-tips flag, both of which are bumped by secondary write paths.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - OwnerUsername: identity of the publisher; indexed for ownership checks.
//   - Title / Tag: display metadata.
//   - ImageURL / ThumbnailURL / FileType: media references.
//   - VoteCount: denormalized counter, never decremented.
//   - HasTips: set best-effort when a tip referencing the meme is recorded.
//   - CreatedAt: publish time; drives the latest-mode ordering key.
type Meme struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	OwnerUsername string    `json:"owner_username" gorm:"type:varchar(64);not null;index:idx_meme_owner"`
	Title         string    `json:"title"          gorm:"type:varchar(255);not null;default:'Untitled'"`
	Tag           string    `json:"tag"            gorm:"type:varchar(64)"`
	ImageURL      string    `json:"image_url"      gorm:"type:text"`
	ThumbnailURL  string    `json:"thumbnail_url"  gorm:"type:text"`
	FileType      string    `json:"file_type"      gorm:"type:varchar(16);not null;default:'image';index:idx_meme_filetype"`
	VoteCount     int64     `json:"vote_count"     gorm:"not null;default:0;index:idx_meme_votes"`
	HasTips       bool      `json:"has_tips"       gorm:"not null;default:false"`
	CreatedAt     time.Time `json:"created_at"     gorm:"index:idx_meme_created"`
}

// TableName returns the database table name for Meme.
func (Meme) TableName() string { return "memes" }

// Vote records that a user voted on a meme. One row per (voter, meme),
// enforced by a unique index; the vote-cache snapshot is a bulk projection
// of this table filtered by voter.
type Vote struct {
	ID            string    `json:"id"             gorm:"type:char(36);primaryKey"`
	MemeID        string    `json:"meme_id"        gorm:"type:char(36);not null;index;uniqueIndex:ux_vote_meme_voter"`
	VoterUsername string    `json:"voter_username" gorm:"type:varchar(64);not null;index;uniqueIndex:ux_vote_meme_voter"`
	CreatedAt     time.Time `json:"created_at"`

	// Meme is the voted item. Votes are cascade-deleted with their meme.
	Meme Meme `json:"-" gorm:"foreignKey:MemeID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Vote.
func (Vote) TableName() string { return "votes" }

// Notification is one append-only ledger entry, discriminated by Kind
// ("tip" or "like"). Records are created once and never rewritten; the
// read flag clients observe is derived from the recipient's ReadMarker
// and clicked set, not stored here.
//
// Monetary fields (Amount, PriceAtSend, TokenSymbol, TransactionID) are
// populated for tips only.
type Notification struct {
	ID                string         `json:"id"                 gorm:"type:char(36);primaryKey"`
	Kind              string         `json:"kind"               gorm:"type:varchar(16);not null;check:kind IN ('tip','like');index:idx_notif_kind"`
	RecipientUsername string         `json:"recipient"          gorm:"type:varchar(64);not null;index:idx_notif_recipient,priority:1"`
	ActorUsername     string         `json:"actor"              gorm:"type:varchar(64);not null"`
	MemeID            string         `json:"meme_id"            gorm:"type:char(36);not null;index"`
	MemeTitle         string         `json:"meme_title"         gorm:"type:varchar(255)"`
	MemeImageURL      string         `json:"meme_image_url"     gorm:"type:text"`
	MemeThumbnailURL  string         `json:"meme_thumbnail_url" gorm:"type:text"`
	MemeFileType      string         `json:"meme_file_type"     gorm:"type:varchar(16)"`
	Amount            *float64       `json:"amount,omitempty"`
	PriceAtSend       *float64       `json:"price_at_send,omitempty"`
	TokenSymbol       string         `json:"token_symbol,omitempty"   gorm:"type:varchar(16)"`
	TransactionID     string         `json:"transaction_id,omitempty" gorm:"type:varchar(128)"`
	CreatedAt         time.Time      `json:"created_at"         gorm:"index:idx_notif_recipient,priority:2"`
	DeletedAt         gorm.DeletedAt `json:"-"                  gorm:"index"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// ReadMarker is the per-user coarse read watermark: every notification
// created at or before LastReadAt counts as read. Updates are merge-writes
// of this single column, never full-row overwrites.
type ReadMarker struct {
	UserID     string     `json:"user_id" gorm:"type:varchar(64);primaryKey"`
	LastReadAt *time.Time `json:"last_read_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName returns the database table name for ReadMarker.
func (ReadMarker) TableName() string { return "read_markers" }

// NotificationClick is one element of a user's fine-grained clicked set.
// Inserting the same (user, notification) pair twice is a no-op, which is
// what makes mark-clicked idempotent.
type NotificationClick struct {
	UserID         string    `json:"user_id"         gorm:"type:varchar(64);not null;primaryKey"`
	NotificationID string    `json:"notification_id" gorm:"type:char(36);not null;primaryKey"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name for NotificationClick.
func (NotificationClick) TableName() string { return "notification_clicks" }
