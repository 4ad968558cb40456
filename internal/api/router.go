package api

import (
	"github.com/gin-gonic/gin"
	"github.com/timmy/thumbcraft/internal/api/handler"
	"github.com/timmy/thumbcraft/internal/api/middleware"
	"github.com/timmy/thumbcraft/internal/config"
	"github.com/timmy/thumbcraft/internal/logger"
	"github.com/timmy/thumbcraft/internal/service"
	"github.com/timmy/thumbcraft/internal/storage"
)

// Services groups what the handlers call into.
type Services struct {
	Thumbnails *service.ThumbnailService
	Avatars    *service.AvatarService
	References *service.ReferenceService
	Storage    storage.ObjectStorage
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(cfg *config.Config, svc Services, log *logger.Logger) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.Upload.MaxBytes

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS(cfg.Server.CORS, cfg.Server.UserHeader))

	healthHandler := handler.NewHealthHandler(cfg.Provider.Model)
	thumbnailHandler := handler.NewThumbnailHandler(svc.Thumbnails)
	avatarHandler := handler.NewAvatarHandler(svc.Avatars, cfg.Upload.MaxBytes)
	referenceHandler := handler.NewReferenceHandler(svc.References, cfg.Upload.MaxBytes)
	fileHandler := handler.NewFileHandler(svc.Storage)

	r.GET("/health", healthHandler.Health)

	v1 := r.Group("/api/v1")
	{
		// Stored images are referenced from <img> tags, so no identity here.
		v1.GET("/files/*key", fileHandler.Serve)

		owned := v1.Group("", middleware.RequireUser(cfg.Server.UserHeader))

		// Generation and history
		owned.POST("/thumbnails/generate", thumbnailHandler.Generate)
		owned.GET("/thumbnails", thumbnailHandler.List)
		owned.GET("/thumbnails/:id", thumbnailHandler.Get)
		owned.DELETE("/thumbnails/:id", thumbnailHandler.Delete)

		// Avatars
		owned.POST("/avatars", avatarHandler.Create)
		owned.GET("/avatars", avatarHandler.List)
		owned.GET("/avatars/:id", avatarHandler.Get)
		owned.PATCH("/avatars/:id", avatarHandler.Rename)
		owned.DELETE("/avatars/:id", avatarHandler.Delete)
		owned.POST("/avatars/:id/photos", avatarHandler.AddPhoto)
		owned.DELETE("/avatars/:id/photos/:photoId", avatarHandler.RemovePhoto)

		// References
		owned.POST("/references", referenceHandler.Create)
		owned.GET("/references", referenceHandler.List)
		owned.GET("/references/:id", referenceHandler.Get)
		owned.PUT("/references/:id", referenceHandler.Update)
		owned.DELETE("/references/:id", referenceHandler.Delete)
	}

	return r
}
