// Notification HTTP handlers.
//
// This file exposes the REST endpoints around the notification ledger:
//   - POST /notifications/like       (append a like record)
//   - POST /notifications/tips      (append a tip record)
//   - POST /notifications/mark-read (clicked-set add or last-read stamp)
//   - GET  /notifications           (merged, read-annotated view)
//
// Handlers are transport-thin: they validate and map the wire payloads,
// delegate to NotificationService, and translate sentinel errors into the
// standard envelope.
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user, meme, key), the handler returns the recorded
// outcome and sets `Idempotency-Replayed: true`.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-meme-backend/internal/repo"
	"github.com/tbourn/go-meme-backend/internal/services"
	"github.com/tbourn/go-meme-backend/internal/utils"
)

// idempotencyTTL is how long a recorded notification POST outcome can be
// replayed.
const idempotencyTTL = 24 * time.Hour

//
// DTOs
//

// CreateLikeRequest is the JSON payload for recording a like.
type CreateLikeRequest struct {
	MemeID            string     `json:"memeId" binding:"required" example:"4f9b8a51-7c1d-4e0a-9f32-d5f6a7b8c9d0"`
	MemeOwnerUsername string     `json:"memeOwnerUsername" binding:"required" example:"alice"`
	LikerUsername     string     `json:"likerUsername" binding:"required" example:"bob"`
	MemeTitle         string     `json:"memeTitle,omitempty" example:"cat on keyboard"`
	MemeImageURL      string     `json:"memeImageUrl,omitempty"`
	MemeThumbnailURL  string     `json:"memeThumbnailUrl,omitempty"`
	MemeFileType      string     `json:"memeFileType,omitempty" example:"image"`
	Timestamp         *time.Time `json:"timestamp,omitempty"`
}

// CreateLikeResponse reports the outcome of a like request. A self-like is
// a success with no record; Message distinguishes it for the caller.
type CreateLikeResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"like notification created"`
}

// CreateTipRequest is the JSON payload for recording a tip.
type CreateTipRequest struct {
	RecipientWallet  string   `json:"recipientWallet" binding:"required" example:"walletRecipient"`
	SenderWallet     string   `json:"senderWallet" binding:"required" example:"walletSender"`
	MemeID           string   `json:"memeId" binding:"required" example:"4f9b8a51-7c1d-4e0a-9f32-d5f6a7b8c9d0"`
	Amount           float64  `json:"amount" binding:"required" example:"0.5"`
	TransactionID    string   `json:"transactionId" binding:"required" example:"5Kd3..."`
	PriceAtSend      *float64 `json:"priceAtSend,omitempty"`
	TokenSymbol      string   `json:"tokenSymbol,omitempty" example:"SOL"`
	MemeTitle        string   `json:"memeTitle,omitempty"`
	MemeImageURL     string   `json:"memeImageUrl,omitempty"`
	MemeThumbnailURL string   `json:"memeThumbnailUrl,omitempty"`
	MemeFileType     string   `json:"memeFileType,omitempty"`
}

// CreateTipResponse reports the outcome of a tip request.
type CreateTipResponse struct {
	Success bool   `json:"success" example:"true"`
	TipID   string `json:"tipId" example:"9c1d4e0a-4f9b-8a51-32d5-f6a7b8c9d04f"`
}

// MarkReadRequest is the JSON payload for the mark-read endpoint. Either
// Wallet or Username identifies the user; with ClickedNotificationID set
// the call adds to the clicked set, without it the call stamps the
// last-read watermark.
type MarkReadRequest struct {
	Wallet                string `json:"wallet,omitempty" example:"wallet123"`
	Username              string `json:"username,omitempty" example:"alice"`
	ClickedNotificationID string `json:"clickedNotificationId,omitempty"`
}

// MarkReadResponse reports the outcome of a mark-read request.
type MarkReadResponse struct {
	Success bool `json:"success" example:"true"`
}

//
// Handlers
//

// CreateLike godoc
// @ID          createLike
// @Summary     Record a like notification
// @Description Appends a like record for the meme owner. A like by the owner on their own
// @Description meme succeeds without creating a record.
// @Tags        Notifications
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key header string false "Idempotency key for safe retries"
// @Param       body body handlers.CreateLikeRequest true "Like payload"
//
// @Success     200  {object}  handlers.CreateLikeResponse
// @Failure     400  {object}  handlers.ErrorResponse "Missing required fields"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /notifications/like [post]
func (h *Handlers) CreateLike(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateLikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "memeId, memeOwnerUsername and likerUsername are required")
		return
	}

	// Replay path.
	idemKey := idempotencyKey(c)
	if idemKey != "" {
		if db := h.serviceDB(); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, req.LikerUsername, req.MemeID, idemKey, time.Now().UTC()); err == nil && rec != nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, CreateLikeResponse{Success: true, Message: "like notification created"})
				return
			}
		}
	}

	created, n, err := h.notifSvc.CreateLike(ctx, services.LikeInput{
		MemeID:           req.MemeID,
		MemeOwner:        req.MemeOwnerUsername,
		Liker:            req.LikerUsername,
		MemeTitle:        req.MemeTitle,
		MemeImageURL:     req.MemeImageURL,
		MemeThumbnailURL: req.MemeThumbnailURL,
		MemeFileType:     req.MemeFileType,
		Timestamp:        req.Timestamp,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingActor),
			errors.Is(err, services.ErrMissingRecipient),
			errors.Is(err, services.ErrMissingMeme):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	msg := "like notification created"
	if !created {
		msg = "self-like ignored"
	}

	// Store path, best effort. A self-like has no record to replay, so
	// nothing is stored for it.
	if idemKey != "" && created && n != nil {
		if db := h.serviceDB(); db != nil {
			_, _ = repo.CreateIdempotency(ctx, db, req.LikerUsername, req.MemeID, idemKey, n.ID, http.StatusOK, idempotencyTTL)
		}
	}

	ok(c, http.StatusOK, CreateLikeResponse{Success: true, Message: msg})
}

// CreateTip godoc
// @ID          createTip
// @Summary     Record a tip notification
// @Description Appends a tip record and best-effort flags the tipped meme. A failure of
// @Description the flag update does not fail the tip.
// @Tags        Notifications
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key header string false "Idempotency key for safe retries"
// @Param       body body handlers.CreateTipRequest true "Tip payload"
//
// @Success     200  {object}  handlers.CreateTipResponse
// @Failure     400  {object}  handlers.ErrorResponse "Missing required fields or non-positive amount"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /notifications/tips [post]
func (h *Handlers) CreateTip(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateTipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipientWallet, senderWallet, memeId, amount and transactionId are required")
		return
	}

	// Replay path.
	idemKey := idempotencyKey(c)
	if idemKey != "" {
		if db := h.serviceDB(); db != nil {
			if rec, err := repo.GetIdempotency(ctx, db, req.SenderWallet, req.MemeID, idemKey, time.Now().UTC()); err == nil && rec != nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, CreateTipResponse{Success: true, TipID: rec.RecordID})
				return
			}
		}
	}

	n, err := h.notifSvc.CreateTip(ctx, services.TipInput{
		RecipientWallet:  req.RecipientWallet,
		SenderWallet:     req.SenderWallet,
		MemeID:           req.MemeID,
		Amount:           req.Amount,
		TransactionID:    req.TransactionID,
		PriceAtSend:      req.PriceAtSend,
		TokenSymbol:      req.TokenSymbol,
		MemeTitle:        req.MemeTitle,
		MemeImageURL:     req.MemeImageURL,
		MemeThumbnailURL: req.MemeThumbnailURL,
		MemeFileType:     req.MemeFileType,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingRecipient),
			errors.Is(err, services.ErrMissingActor),
			errors.Is(err, services.ErrMissingMeme),
			errors.Is(err, services.ErrInvalidAmount),
			errors.Is(err, services.ErrMissingTransaction):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}

	// Store path, best effort.
	if idemKey != "" {
		if db := h.serviceDB(); db != nil {
			_, _ = repo.CreateIdempotency(ctx, db, req.SenderWallet, req.MemeID, idemKey, n.ID, http.StatusOK, idempotencyTTL)
		}
	}

	ok(c, http.StatusOK, CreateTipResponse{Success: true, TipID: n.ID})
}

// MarkRead godoc
// @ID          markNotificationsRead
// @Summary     Mark notifications read
// @Description With clickedNotificationId set, adds that notification to the user's clicked
// @Description set (idempotent). Without it, stamps the user's last-read watermark, marking
// @Description everything created so far as read.
// @Tags        Notifications
// @Accept      json
// @Produce     json
//
// @Param       body body handlers.MarkReadRequest true "Identity plus optional clicked id"
//
// @Success     200  {object}  handlers.MarkReadResponse
// @Failure     400  {object}  handlers.ErrorResponse "Neither wallet nor username present"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /notifications/mark-read [post]
func (h *Handlers) MarkRead(c *gin.Context) {
	ctx := c.Request.Context()

	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "wallet or username required")
		return
	}
	user := strings.TrimSpace(req.Wallet)
	if user == "" {
		user = strings.TrimSpace(req.Username)
	}
	if user == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "wallet or username required")
		return
	}

	var err error
	if req.ClickedNotificationID != "" {
		err = h.notifSvc.MarkClicked(ctx, user, req.ClickedNotificationID)
	} else {
		err = h.notifSvc.MarkAllRead(ctx, user)
	}
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingUser), errors.Is(err, services.ErrMissingNotification):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, MarkReadResponse{Success: true})
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List a user's notifications
// @Description Returns the merged tip/like view for the user, newest first, deduplicated,
// @Description each entry annotated with derived read state, plus the derived unread count.
// @Tags        Notifications
// @Produce     json
//
// @Param       user  query  string  true  "Recipient identity (wallet or username)"
// @Param       limit query  int     false "Maximum entries returned" minimum(1) maximum(200) default(50)
//
// @Success     200  {object}  services.NotificationFeed
// @Failure     400  {object}  handlers.ErrorResponse "Missing user"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()

	user := strings.TrimSpace(c.Query("user"))
	if user == "" {
		user = userID(c)
	}
	if user == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user required")
		return
	}

	const (
		defaultLimit = 50
		maxLimit     = 200
	)
	limit := utils.AtoiDefault(c.Query("limit"), defaultLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	feed, err := h.notifSvc.Feed(ctx, user, limit)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingUser):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, feed)
}
