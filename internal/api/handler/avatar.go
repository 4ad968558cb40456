package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/thumbcraft/internal/api/middleware"
	"github.com/timmy/thumbcraft/internal/service"
)

// AvatarHandler handles the avatar library.
type AvatarHandler struct {
	avatars  *service.AvatarService
	maxBytes int64
}

// NewAvatarHandler creates a new avatar handler. maxBytes is the per-file ceiling.
func NewAvatarHandler(avatars *service.AvatarService, maxBytes int64) *AvatarHandler {
	return &AvatarHandler{avatars: avatars, maxBytes: maxBytes}
}

type renameAvatarRequest struct {
	Name string `json:"name"`
}

// Create handles POST /api/v1/avatars (multipart: name, photos[]).
func (h *AvatarHandler) Create(c *gin.Context) {
	files, err := formFiles(c, "photos", h.maxBytes)
	if err != nil {
		badRequest(c, "Envie as fotos como multipart/form-data no campo photos")
		return
	}

	avatar, err := h.avatars.Create(c.Request.Context(), middleware.UserID(c), c.PostForm("name"), files)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "avatar": avatar})
}

// List handles GET /api/v1/avatars.
func (h *AvatarHandler) List(c *gin.Context) {
	avatars, err := h.avatars.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "avatars": avatars, "total": len(avatars)})
}

// Get handles GET /api/v1/avatars/:id.
func (h *AvatarHandler) Get(c *gin.Context) {
	avatar, err := h.avatars.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "avatar": avatar})
}

// Rename handles PATCH /api/v1/avatars/:id.
func (h *AvatarHandler) Rename(c *gin.Context) {
	var req renameAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Requisição inválida")
		return
	}
	avatar, err := h.avatars.Rename(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "avatar": avatar})
}

// AddPhoto handles POST /api/v1/avatars/:id/photos (multipart: photo).
func (h *AvatarHandler) AddPhoto(c *gin.Context) {
	fh, err := c.FormFile("photo")
	if err != nil {
		badRequest(c, "Envie a foto no campo photo")
		return
	}
	file, err := readFile(fh, h.maxBytes)
	if err != nil {
		badRequest(c, "Não foi possível ler o arquivo enviado")
		return
	}

	avatar, err := h.avatars.AddPhoto(c.Request.Context(), middleware.UserID(c), c.Param("id"), file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "avatar": avatar})
}

// RemovePhoto handles DELETE /api/v1/avatars/:id/photos/:photoId.
func (h *AvatarHandler) RemovePhoto(c *gin.Context) {
	avatar, err := h.avatars.RemovePhoto(c.Request.Context(), middleware.UserID(c), c.Param("id"), c.Param("photoId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "avatar": avatar})
}

// Delete handles DELETE /api/v1/avatars/:id.
func (h *AvatarHandler) Delete(c *gin.Context) {
	if err := h.avatars.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
