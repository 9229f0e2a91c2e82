package delivery

import (
	"errors"
	"net/http"

	accountdomain "mailsync-backend/internal/account/domain"
	"mailsync-backend/internal/account/dto"
	"mailsync-backend/internal/account/usecase"

	"github.com/gin-gonic/gin"
)

// AccountHandler handles linked Gmail account requests
type AccountHandler struct {
	accountUsecase usecase.AccountUsecase
	watchUsecase   usecase.WatchUsecase
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountUsecase usecase.AccountUsecase, watchUsecase usecase.WatchUsecase) *AccountHandler {
	return &AccountHandler{
		accountUsecase: accountUsecase,
		watchUsecase:   watchUsecase,
	}
}

// LinkAccount stores OAuth tokens for a mailbox and starts syncing it
// POST /api/accounts
func (h *AccountHandler) LinkAccount(c *gin.Context) {
	userID := c.GetString("userID")

	var req dto.LinkAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.accountUsecase.Link(c.Request.Context(), userID, &req)
	if err != nil {
		if errors.Is(err, usecase.ErrAccountOwnedElsewhere) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toResponse(account))
}

// GetAccounts lists the caller's linked accounts
// GET /api/accounts
func (h *AccountHandler) GetAccounts(c *gin.Context) {
	accounts, err := h.accountUsecase.List(c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]dto.AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toResponse(a))
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

// ActivateAccount re-runs activation (default labels, watch, full sync)
// POST /api/accounts/:id/activate
func (h *AccountHandler) ActivateAccount(c *gin.Context) {
	account, ok := h.ownedAccount(c)
	if !ok {
		return
	}
	if err := h.accountUsecase.Activate(c.Request.Context(), account); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "activation queued"})
}

// StartWatch POST /api/accounts/:id/watch
func (h *AccountHandler) StartWatch(c *gin.Context) {
	account, ok := h.ownedAccount(c)
	if !ok {
		return
	}
	if err := h.watchUsecase.StartWatch(c.Request.Context(), account.ID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "watch active"})
}

// StopWatch DELETE /api/accounts/:id/watch
func (h *AccountHandler) StopWatch(c *gin.Context) {
	account, ok := h.ownedAccount(c)
	if !ok {
		return
	}
	if err := h.watchUsecase.StopWatch(c.Request.Context(), account.ID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "watch stopped"})
}

func (h *AccountHandler) ownedAccount(c *gin.Context) (*accountdomain.GmailAccount, bool) {
	account, err := h.accountUsecase.Get(c.GetString("userID"), c.Param("id"))
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

func toResponse(a *accountdomain.GmailAccount) dto.AccountResponse {
	return dto.AccountResponse{
		ID:            a.ID,
		GmailAddress:  a.GmailAddress,
		LastHistoryID: a.LastHistoryID,
		WatchExpiry:   a.WatchExpiry,
		CreatedAt:     a.CreatedAt,
	}
}
