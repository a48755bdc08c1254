package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/michaelayoade/dotmac-collab/backend/internal/collab"
	"github.com/michaelayoade/dotmac-collab/backend/internal/store"
)

type ConflictHandlers struct {
	conflicts *store.ConflictStore
}

func NewConflictHandlers(conflicts *store.ConflictStore) *ConflictHandlers {
	return &ConflictHandlers{conflicts: conflicts}
}

func (h *ConflictHandlers) ListOpenConflicts(c *gin.Context) {
	docID := c.Param("docId")
	list, err := h.conflicts.ListOpenConflicts(c.Request.Context(), docID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "CONFLICT_RESOLUTION_FAILED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "conflicts": list})
}

type resolveConflictRequest struct {
	Strategy string `json:"strategy" binding:"required"`
}

func (h *ConflictHandlers) ResolveConflict(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	docID := c.Param("docId")
	conflictID := c.Param("conflictId")
	var req resolveConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.conflicts.ResolveConflict(c.Request.Context(), docID, conflictID, collab.ResolutionStrategy(req.Strategy))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": "CONFLICT_RESOLUTION_FAILED", "conflictId": conflictID})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "CONFLICT_RESOLUTION_FAILED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "conflictId": conflictID, "resolved": true})
}
