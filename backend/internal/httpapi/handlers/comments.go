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

type CommentHandlers struct {
	comments *store.CommentStore
}

func NewCommentHandlers(comments *store.CommentStore) *CommentHandlers {
	return &CommentHandlers{comments: comments}
}

func (h *CommentHandlers) ListComments(c *gin.Context) {
	docID := c.Param("docId")
	list, err := h.comments.ListComments(c.Request.Context(), docID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "OPERATION_FAILED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "comments": list})
}

type createCommentRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *CommentHandlers) CreateComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	docID := c.Param("docId")
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	comment := collab.Comment{
		ID:         uuid.NewString(),
		DocID:      docID,
		AuthorID:   userID,
		AuthorName: c.GetString("username"),
		Body:       req.Body,
		CreatedAt:  time.Now(),
	}
	if err := h.comments.CreateComment(c.Request.Context(), comment); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "OPERATION_FAILED"})
		return
	}
	c.JSON(http.StatusOK, comment)
}

type patchCommentRequest struct {
	Body     *string `json:"body"`
	Resolved *bool   `json:"resolved"`
}

// PatchComment updates body and/or resolution state of one comment.
func (h *CommentHandlers) PatchComment(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	docID := c.Param("docId")
	commentID := c.Param("commentId")
	var req patchCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	list, err := h.comments.ListComments(c.Request.Context(), docID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "OPERATION_FAILED"})
		return
	}
	var target *collab.Comment
	for i := range list {
		if list[i].ID == commentID {
			target = &list[i]
			break
		}
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": "OPERATION_FAILED", "commentId": commentID})
		return
	}

	if req.Body != nil {
		target.Body = *req.Body
	}
	if req.Resolved != nil && *req.Resolved && !target.Resolved {
		now := time.Now()
		target.Resolved = true
		target.ResolvedBy = userID
		target.ResolvedAt = &now
	}
	if err := h.comments.UpdateComment(c.Request.Context(), *target); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "OPERATION_FAILED", "commentId": commentID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": "OPERATION_FAILED"})
		return
	}
	c.JSON(http.StatusOK, target)
}

func (h *CommentHandlers) DeleteComment(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	docID := c.Param("docId")
	commentID := c.Param("commentId")
	if err := h.comments.DeleteComment(c.Request.Context(), docID, commentID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "OPERATION_FAILED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "commentId": commentID, "deleted": true})
}
