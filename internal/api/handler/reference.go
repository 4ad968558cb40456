package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/thumbcraft/internal/api/middleware"
	"github.com/timmy/thumbcraft/internal/service"
)

// ReferenceHandler handles the reference library.
type ReferenceHandler struct {
	references *service.ReferenceService
	maxBytes   int64
}

// NewReferenceHandler creates a new reference handler. maxBytes is the per-file ceiling.
func NewReferenceHandler(references *service.ReferenceService, maxBytes int64) *ReferenceHandler {
	return &ReferenceHandler{references: references, maxBytes: maxBytes}
}

// Create handles POST /api/v1/references (multipart: file, category, description).
func (h *ReferenceHandler) Create(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "Envie a imagem no campo file")
		return
	}
	file, err := readFile(fh, h.maxBytes)
	if err != nil {
		badRequest(c, "Não foi possível ler o arquivo enviado")
		return
	}

	ref, err := h.references.Create(c.Request.Context(), middleware.UserID(c), c.PostForm("category"), c.PostForm("description"), file)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "reference": ref})
}

// List handles GET /api/v1/references?category=.
func (h *ReferenceHandler) List(c *gin.Context) {
	refs, err := h.references.List(c.Request.Context(), middleware.UserID(c), c.Query("category"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "references": refs, "total": len(refs)})
}

// Get handles GET /api/v1/references/:id.
func (h *ReferenceHandler) Get(c *gin.Context) {
	ref, err := h.references.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reference": ref})
}

// Update handles PUT /api/v1/references/:id. Absent form fields are left
// unchanged; a file replaces the stored image.
func (h *ReferenceHandler) Update(c *gin.Context) {
	var upd service.ReferenceUpdate
	if v, ok := c.GetPostForm("category"); ok {
		upd.Category = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		upd.Description = &v
	}
	if fh, err := c.FormFile("file"); err == nil {
		file, err := readFile(fh, h.maxBytes)
		if err != nil {
			badRequest(c, "Não foi possível ler o arquivo enviado")
			return
		}
		upd.File = &file
	}

	ref, err := h.references.Update(c.Request.Context(), middleware.UserID(c), c.Param("id"), upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "reference": ref})
}

// Delete handles DELETE /api/v1/references/:id.
func (h *ReferenceHandler) Delete(c *gin.Context) {
	if err := h.references.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
