package delivery

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	accountdomain "mailsync-backend/internal/account/domain"
	accountusecase "mailsync-backend/internal/account/usecase"
	emaildomain "mailsync-backend/internal/email/domain"
	syncdomain "mailsync-backend/internal/sync/domain"
	"mailsync-backend/internal/sync/repository"
	"mailsync-backend/pkg/gmail"

	"github.com/gin-gonic/gin"
)

// FullSyncScheduler queues a full sync job.
type FullSyncScheduler interface {
	EnqueueFullSync(ctx context.Context, account *accountdomain.GmailAccount) error
}

// LabelModifier applies a Gmail label change and mirrors it locally.
type LabelModifier interface {
	Modify(ctx context.Context, account *accountdomain.GmailAccount, gmailMessageID string, add, remove []string) (*emaildomain.Message, error)
}

// SyncHandler exposes manual sync triggers
type SyncHandler struct {
	accounts accountusecase.AccountUsecase
	sched    FullSyncScheduler
	modifier LabelModifier
	runs     repository.SyncRunRepository
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(accounts accountusecase.AccountUsecase, sched FullSyncScheduler, modifier LabelModifier, runs repository.SyncRunRepository) *SyncHandler {
	return &SyncHandler{accounts: accounts, sched: sched, modifier: modifier, runs: runs}
}

type ModifyLabelsRequest struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

// TriggerFullSync POST /api/accounts/:id/sync
func (h *SyncHandler) TriggerFullSync(c *gin.Context) {
	account, ok := h.ownedAccount(c)
	if !ok {
		return
	}
	if err := h.sched.EnqueueFullSync(c.Request.Context(), account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "full sync queued"})
}

// GetSyncRuns GET /api/accounts/:id/sync/runs?limit=20
func (h *SyncHandler) GetSyncRuns(c *gin.Context) {
	account, ok := h.ownedAccount(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	runs, err := h.runs.LatestByAccount(account.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []*syncdomain.SyncRun{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// ModifyLabels PATCH /api/accounts/:id/messages/:messageId/labels
func (h *SyncHandler) ModifyLabels(c *gin.Context) {
	account, ok := h.ownedAccount(c)
	if !ok {
		return
	}
	var req ModifyLabelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Add) == 0 && len(req.Remove) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "add or remove is required"})
		return
	}

	msg, err := h.modifier.Modify(c.Request.Context(), account, c.Param("messageId"), req.Add, req.Remove)
	if err != nil {
		if gmail.IsNotFound(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if msg == nil {
		c.JSON(http.StatusAccepted, gin.H{"message": "labels updated on gmail; message not mirrored yet"})
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *SyncHandler) ownedAccount(c *gin.Context) (*accountdomain.GmailAccount, bool) {
	account, err := h.accounts.Get(c.GetString("userID"), c.Param("id"))
	if err != nil {
		if errors.Is(err, accountdomain.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return nil, false
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	return account, true
}
