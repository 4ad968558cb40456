package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/thumbcraft/internal/api/middleware"
	"github.com/timmy/thumbcraft/internal/domain"
	"github.com/timmy/thumbcraft/internal/service"
)

// ThumbnailHandler handles generation and history endpoints.
type ThumbnailHandler struct {
	thumbnails *service.ThumbnailService
}

// NewThumbnailHandler creates a new thumbnail handler.
// Parameters:
//   - thumbnails: pipeline and history service.
//
// Returns:
//   - *ThumbnailHandler: initialized handler.
func NewThumbnailHandler(thumbnails *service.ThumbnailService) *ThumbnailHandler {
	return &ThumbnailHandler{thumbnails: thumbnails}
}

// GenerateResponse is the success body of POST /api/v1/thumbnails/generate.
type GenerateResponse struct {
	Success         bool              `json:"success"`
	ThumbnailURL    string            `json:"thumbnailUrl"`
	HistoryRecorded bool              `json:"historyRecorded"`
	Thumbnail       *domain.Thumbnail `json:"thumbnail,omitempty"`
}

// HistoryResponse is one page of history.
type HistoryResponse struct {
	Success    bool               `json:"success"`
	Thumbnails []domain.Thumbnail `json:"thumbnails"`
	Total      int64              `json:"total"`
	Limit      int                `json:"limit"`
	Offset     int                `json:"offset"`
}

// Generate handles POST /api/v1/thumbnails/generate.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *ThumbnailHandler) Generate(c *gin.Context) {
	var req service.GenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Requisição inválida")
		return
	}
	req.UserID = middleware.UserID(c)

	result, err := h.thumbnails.Generate(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenerateResponse{
		Success:         true,
		ThumbnailURL:    result.ThumbnailURL,
		HistoryRecorded: result.HistoryRecorded,
		Thumbnail:       result.Thumbnail,
	})
}

// List handles GET /api/v1/thumbnails.
func (h *ThumbnailHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)

	thumbs, total, err := h.thumbnails.ListHistory(c.Request.Context(), middleware.UserID(c), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	c.JSON(http.StatusOK, HistoryResponse{
		Success:    true,
		Thumbnails: thumbs,
		Total:      total,
		Limit:      limit,
		Offset:     offset,
	})
}

// Get handles GET /api/v1/thumbnails/:id.
func (h *ThumbnailHandler) Get(c *gin.Context) {
	thumb, err := h.thumbnails.GetHistory(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "thumbnail": thumb})
}

// Delete handles DELETE /api/v1/thumbnails/:id.
func (h *ThumbnailHandler) Delete(c *gin.Context) {
	if err := h.thumbnails.DeleteHistory(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
