package api

import (
	"net/http"

	accountDelivery "mailsync-backend/internal/account/delivery"
	"mailsync-backend/internal/auth/delivery"
	authUsecase "mailsync-backend/internal/auth/usecase"
	labelDelivery "mailsync-backend/internal/label/delivery"
	syncDelivery "mailsync-backend/internal/sync/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	authUsecase authUsecase.AuthUsecase,
	accountHandler *accountDelivery.AccountHandler,
	labelHandler *labelDelivery.LabelHandler,
	syncHandler *syncDelivery.SyncHandler,
	webhookHandler *syncDelivery.WebhookHandler,
) {
	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})

		// Gmail push endpoint, authenticated by the optional verification token
		api.POST("/webhooks/gmail", webhookHandler.HandleGmailPush)

		// Account routes (protected)
		accounts := api.Group("/accounts")
		accounts.Use(delivery.AuthMiddleware(authUsecase))
		{
			accounts.GET("", accountHandler.GetAccounts)
			accounts.POST("", accountHandler.LinkAccount)
			accounts.POST("/:id/activate", accountHandler.ActivateAccount)
			accounts.POST("/:id/watch", accountHandler.StartWatch)
			accounts.DELETE("/:id/watch", accountHandler.StopWatch)
			accounts.POST("/:id/sync", syncHandler.TriggerFullSync)
			accounts.GET("/:id/sync/runs", syncHandler.GetSyncRuns)
			accounts.PATCH("/:id/messages/:messageId/labels", syncHandler.ModifyLabels)
		}

		// Label routes (protected)
		labels := api.Group("/labels")
		labels.Use(delivery.AuthMiddleware(authUsecase))
		{
			labels.GET("", labelHandler.GetLabels)
			labels.POST("", labelHandler.CreateLabel)
			labels.POST("/defaults", labelHandler.CreateDefaultLabels)
		}
	}
}
