package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/timmy/thumbcraft/internal/logger"
	"github.com/timmy/thumbcraft/internal/storage"
)

type contentTyper interface {
	ContentType(key string) string
}

// FileHandler serves stored objects for backends without their own public URL.
type FileHandler struct {
	storage storage.ObjectStorage
}

// NewFileHandler creates a new file handler.
func NewFileHandler(objectStorage storage.ObjectStorage) *FileHandler {
	return &FileHandler{storage: objectStorage}
}

// Serve handles GET /api/v1/files/*key.
func (h *FileHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" || strings.Contains(key, "..") {
		c.Status(http.StatusNotFound)
		return
	}

	rc, err := h.storage.Download(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.Status(http.StatusNotFound)
			return
		}
		logger.With(logger.Fields{"storage_path": key}).Error(c.Request.Context(), "Failed to read object: %v", err)
		c.Status(http.StatusBadGateway)
		return
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		c.Status(http.StatusBadGateway)
		return
	}

	contentType := ""
	if ct, ok := h.storage.(contentTyper); ok {
		contentType = ct.ContentType(key)
	}
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}

	// Keys embed a timestamp and random token, so content never changes.
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, contentType, data)
}
