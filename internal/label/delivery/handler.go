package delivery

import (
	"errors"
	"net/http"

	"mailsync-backend/internal/label/dto"
	"mailsync-backend/internal/label/repository"
	"mailsync-backend/internal/label/usecase"

	"github.com/gin-gonic/gin"
)

// LabelHandler handles user label requests
type LabelHandler struct {
	labelUsecase usecase.LabelUsecase
}

// NewLabelHandler creates a new LabelHandler
func NewLabelHandler(labelUsecase usecase.LabelUsecase) *LabelHandler {
	return &LabelHandler{labelUsecase: labelUsecase}
}

// GetLabels GET /api/labels
func (h *LabelHandler) GetLabels(c *gin.Context) {
	labels, err := h.labelUsecase.List(c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"labels": labels})
}

// CreateLabel creates a label and classifies recent mail against it in the background
// POST /api/labels
func (h *LabelHandler) CreateLabel(c *gin.Context) {
	var req dto.CreateLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	label, err := h.labelUsecase.Create(c.GetString("userID"), &req)
	if err != nil {
		switch {
		case errors.Is(err, usecase.ErrLabelNameRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, repository.ErrDuplicateLabel):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, label)
}

// CreateDefaultLabels POST /api/labels/defaults
func (h *LabelHandler) CreateDefaultLabels(c *gin.Context) {
	userID := c.GetString("userID")
	if err := h.labelUsecase.EnsureDefaults(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	labels, err := h.labelUsecase.List(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"labels": labels})
}
