// Package feed implements the feed-pagination core: per-mode cursor page
// fetchers, the mode-keyed cache manager with staleness and GC policy, and
// the render-time week-separator transform.
//
// Cursors are opaque continuation tokens. Their payload differs per sort
// mode (keyset for latest, rank for hot, session position for random) and
// they are never comparable across modes or sessions. Callers must echo a
// token exactly as issued; this file only concerns itself with the
// encoding, not with chain validation (that lives in the cache manager).
package feed

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// ErrBadCursor indicates a continuation token that could not be decoded or
// that belongs to a different mode or session.
var ErrBadCursor = errors.New("malformed or foreign cursor")

// latestCursor is the keyset position after which the next latest-mode page
// starts. Stable under concurrent inserts: new memes sort before every
// already-issued key and never reshuffle fetched pages.
type latestCursor struct {
	CreatedAt int64  `json:"t"` // UnixNano of the last item's creation time
	ID        string `json:"id"`
}

// rankCursor addresses a position in the hot-mode popularity ranking.
type rankCursor struct {
	Rank int `json:"rank"`
}

// randomCursor addresses a position within one random session's shuffled
// ordering. Session identifies the shuffle; a cursor from an older session
// is rejected rather than silently re-interpreted against a new ordering.
type randomCursor struct {
	Session uint64 `json:"session"`
	Pos     int    `json:"pos"`
}

func encodeCursor(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		// All cursor payloads are plain structs; this cannot fail at runtime.
		panic(err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(s string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return ErrBadCursor
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrBadCursor
	}
	return nil
}
