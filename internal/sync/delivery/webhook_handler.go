package delivery

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"time"

	accountdomain "mailsync-backend/internal/account/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	maxPushBody   = 64 << 10
	ingestTimeout = 30 * time.Second
)

// PushIngester enqueues work for a raw push body.
type PushIngester interface {
	HandlePush(ctx context.Context, body []byte) error
}

// WebhookHandler receives Gmail push notifications from Pub/Sub.
type WebhookHandler struct {
	ingest PushIngester
	token  string
	log    zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler. When token is set the
// request must carry it in the "token" query parameter.
func NewWebhookHandler(ingest PushIngester, token string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{ingest: ingest, token: token, log: log}
}

// HandleGmailPush acknowledges first and processes in the background, so a
// slow or failing enqueue never triggers Pub/Sub redelivery storms.
// POST /api/webhooks/gmail
func (h *WebhookHandler) HandleGmailPush(c *gin.Context) {
	if h.token != "" && subtle.ConstantTimeCompare([]byte(c.Query("token")), []byte(h.token)) != 1 {
		c.Status(http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPushBody))
	c.Status(http.StatusNoContent)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to read push body")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()
		if err := h.ingest.HandlePush(ctx, body); err != nil {
			if errors.Is(err, accountdomain.ErrAccountNotFound) {
				return
			}
			h.log.Error().Err(err).Msg("failed to ingest push notification")
		}
	}()
}
