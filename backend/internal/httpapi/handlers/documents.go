package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/michaelayoade/dotmac-collab/backend/internal/collab"
	"github.com/michaelayoade/dotmac-collab/backend/internal/store"
)

// DocumentHandlers exposes the document store over HTTP: fetch, full
// update, and the lock endpoints.
type DocumentHandlers struct {
	docs    *store.DocumentStore
	locker  collab.Locker
	lockTTL time.Duration
}

func NewDocumentHandlers(docs *store.DocumentStore, locker collab.Locker, lockTTL time.Duration) *DocumentHandlers {
	return &DocumentHandlers{docs: docs, locker: locker, lockTTL: lockTTL}
}

func currentUser(c *gin.Context) (uint64, bool) {
	v, exists := c.Get("userId")
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user context missing"})
		return 0, false
	}
	userID, ok := v.(uint64)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user id"})
		return 0, false
	}
	return userID, true
}

type createDocumentRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

func (h *DocumentHandlers) CreateDocument(c *gin.Context) {
	ownerID, ok := currentUser(c)
	if !ok {
		return
	}
	var req createDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m := store.DocumentModel{
		ID:        uuid.NewString(),
		Title:     req.Title,
		OwnerID:   ownerID,
		Content:   req.Content,
		WordCount: len(strings.Fields(req.Content)),
		CharCount: utf8.RuneCountInString(req.Content),
	}
	if err := h.docs.CreateDocument(c.Request.Context(), m); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": m.ID, "ownerId": ownerID, "title": m.Title, "createdAt": time.Now().Format(time.RFC3339)})
}

func (h *DocumentHandlers) GetDocument(c *gin.Context) {
	docID := c.Param("docId")
	m, err := h.docs.GetDocumentModel(c.Request.Context(), docID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"code": "DOCUMENT_NOT_FOUND", "docId": docID})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, m)
}

type putDocumentRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Version  uint64 `json:"version"`
	Archived bool   `json:"archived"`
}

func (h *DocumentHandlers) PutDocument(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	docID := c.Param("docId")
	var req putDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m := store.DocumentModel{
		ID:        docID,
		Title:     req.Title,
		Content:   req.Content,
		Version:   req.Version,
		WordCount: len(strings.Fields(req.Content)),
		CharCount: utf8.RuneCountInString(req.Content),
		Archived:  req.Archived,
	}
	if err := h.docs.PutDocument(c.Request.Context(), m); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "DOCUMENT_NOT_FOUND", "docId": docID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"code": "SAVE_FAILED"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "version": req.Version})
}

func (h *DocumentHandlers) LockDocument(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	docID := c.Param("docId")
	if err := h.locker.Lock(c.Request.Context(), docID, userID, h.lockTTL); err != nil {
		c.JSON(http.StatusConflict, gin.H{"code": "LOCK_FAILED", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "locked": true, "lockedBy": userID})
}

func (h *DocumentHandlers) UnlockDocument(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	docID := c.Param("docId")
	if err := h.locker.Unlock(c.Request.Context(), docID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": "LOCK_FAILED", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"docId": docID, "locked": false})
}
