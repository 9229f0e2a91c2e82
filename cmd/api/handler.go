package api

import (
	"net/http"
	"time"

	accountDelivery "mailsync-backend/internal/account/delivery"
	authUsecase "mailsync-backend/internal/auth/usecase"
	labelDelivery "mailsync-backend/internal/label/delivery"
	syncDelivery "mailsync-backend/internal/sync/delivery"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase    authUsecase.AuthUsecase
	accountHandler *accountDelivery.AccountHandler
	labelHandler   *labelDelivery.LabelHandler
	syncHandler    *syncDelivery.SyncHandler
	webhookHandler *syncDelivery.WebhookHandler
}

func NewHandler(
	authUc authUsecase.AuthUsecase,
	accountHandler *accountDelivery.AccountHandler,
	labelHandler *labelDelivery.LabelHandler,
	syncHandler *syncDelivery.SyncHandler,
	webhookHandler *syncDelivery.WebhookHandler,
) *Handler {
	return &Handler{
		authUsecase:    authUc,
		accountHandler: accountHandler,
		labelHandler:   labelHandler,
		syncHandler:    syncHandler,
		webhookHandler: webhookHandler,
	}
}

// Router builds the gin engine with CORS and all routes.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	SetupRoutes(r, h.authUsecase, h.accountHandler, h.labelHandler, h.syncHandler, h.webhookHandler)
	return r
}

// Server wraps the router in an http.Server so the caller can shut it down.
func (h *Handler) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
