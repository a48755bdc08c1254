package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/michaelayoade/dotmac-collab/backend/internal/collab"
	"github.com/michaelayoade/dotmac-collab/backend/internal/store"
)

type SuggestionHandlers struct {
	suggestions *store.SuggestionStore
}

func NewSuggestionHandlers(suggestions *store.SuggestionStore) *SuggestionHandlers {
	return &SuggestionHandlers{suggestions: suggestions}
}

func (h *SuggestionHandlers) ListSuggestions(c *gin.Context) {
	docID := c.Param("docId")
	list, err := h.suggestions.ListSuggestions(c.Request.Context(), docID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "OPERATION_FAILED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "suggestions": list})
}

type createSuggestionRequest struct {
	OriginalText  string `json:"originalText"`
	SuggestedText string `json:"suggestedText"`
	Start         int    `json:"start"`
	End           int    `json:"end"`
}

func (h *SuggestionHandlers) CreateSuggestion(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	docID := c.Param("docId")
	var req createSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sg := collab.Suggestion{
		ID:            uuid.NewString(),
		DocID:         docID,
		AuthorID:      userID,
		AuthorName:    c.GetString("username"),
		OriginalText:  req.OriginalText,
		SuggestedText: req.SuggestedText,
		Start:         req.Start,
		End:           req.End,
		Status:        collab.SuggestionPending,
		CreatedAt:     time.Now(),
	}
	if err := h.suggestions.CreateSuggestion(c.Request.Context(), sg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "OPERATION_FAILED"})
		return
	}
	c.JSON(http.StatusOK, sg)
}

type patchSuggestionRequest struct {
	Status string `json:"status" binding:"required"`
}

// PatchSuggestion records a review decision; pending is not a valid target
// and terminal suggestions stay as they are.
func (h *SuggestionHandlers) PatchSuggestion(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	docID := c.Param("docId")
	suggestionID := c.Param("suggestionId")
	var req patchSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status := collab.SuggestionStatus(req.Status)
	if !status.Terminal() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be accepted, rejected or withdrawn"})
		return
	}

	list, err := h.suggestions.ListSuggestions(c.Request.Context(), docID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "OPERATION_FAILED"})
		return
	}
	var target *collab.Suggestion
	for i := range list {
		if list[i].ID == suggestionID {
			target = &list[i]
			break
		}
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "OPERATION_FAILED", "suggestionId": suggestionID})
		return
	}
	if target.Status.Terminal() {
		c.JSON(http.StatusOK, target)
		return
	}

	now := time.Now()
	target.Status = status
	target.ReviewerID = userID
	target.ReviewedAt = &now
	if err := h.suggestions.UpdateSuggestion(c.Request.Context(), *target); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "OPERATION_FAILED", "suggestionId": suggestionID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": "OPERATION_FAILED"})
		return
	}
	c.JSON(http.StatusOK, target)
}
