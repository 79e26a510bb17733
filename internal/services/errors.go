// Package services defines the business logic for the meme feed: the
// notification ledger (tips, likes, read state) and the vote write path.
// This file centralizes common service-level error values so that they can
// be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

// Validation errors: rejected before any write, so no partial state exists.
var (
	// ErrMissingRecipient is returned when a notification write lacks the
	// recipient identity (meme owner or tip recipient wallet).
	ErrMissingRecipient = errors.New("recipient identity is required")

	// ErrMissingActor is returned when the acting identity (liker or tip
	// sender) is absent.
	ErrMissingActor = errors.New("actor identity is required")

	// ErrMissingMeme is returned when the content-item id is absent.
	ErrMissingMeme = errors.New("meme id is required")

	// ErrInvalidAmount is returned when a tip amount is absent or not
	// strictly positive.
	ErrInvalidAmount = errors.New("tip amount must be positive")

	// ErrMissingTransaction is returned when a tip lacks its transaction id.
	ErrMissingTransaction = errors.New("transaction id is required")

	// ErrMissingNotification is returned when mark-clicked lacks the
	// notification id.
	ErrMissingNotification = errors.New("notification id is required")

	// ErrMissingUser is returned when a read-state operation lacks the user
	// identity.
	ErrMissingUser = errors.New("user identity is required")
)

// Vote errors.
var (
	// ErrMemeNotFound indicates the referenced meme does not exist.
	ErrMemeNotFound = errors.New("meme not found")

	// ErrDuplicateVote is returned when the user has already voted on the
	// meme.
	ErrDuplicateVote = errors.New("vote already exists")
)
