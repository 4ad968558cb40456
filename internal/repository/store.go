package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/thumbcraft/internal/config"
	"github.com/timmy/thumbcraft/internal/domain"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("record not found")

// ErrPhotoLimit is returned when adding or removing a photo would move an
// avatar outside its allowed photo count.
var ErrPhotoLimit = errors.New("avatar photo limit reached")

// AvatarStore persists avatars and their photos.
type AvatarStore interface {
	CreateAvatar(ctx context.Context, avatar *domain.Avatar) error
	GetAvatarByID(ctx context.Context, id string) (*domain.Avatar, error)
	ListAvatarsByUser(ctx context.Context, userID string) ([]domain.Avatar, error)
	UpdateAvatarName(ctx context.Context, id, name string) error
	// AddAvatarPhoto fails with ErrPhotoLimit if the avatar would exceed
	// maxPhotos. The check and the write are atomic; maxPhotos <= 0 means no bound.
	AddAvatarPhoto(ctx context.Context, photo *domain.AvatarPhoto, maxPhotos int) error
	// DeleteAvatarPhoto fails with ErrPhotoLimit if the avatar would drop
	// below minPhotos. The check and the write are atomic.
	DeleteAvatarPhoto(ctx context.Context, avatarID, photoID string, minPhotos int) error
	DeleteAvatar(ctx context.Context, id string) error
}

// ReferenceStore persists reference images.
type ReferenceStore interface {
	CreateReference(ctx context.Context, ref *domain.Reference) error
	GetReferenceByID(ctx context.Context, id string) (*domain.Reference, error)
	// ListReferencesByUser filters by category unless it is empty.
	ListReferencesByUser(ctx context.Context, userID string, category domain.ReferenceCategory) ([]domain.Reference, error)
	UpdateReference(ctx context.Context, ref *domain.Reference) error
	DeleteReference(ctx context.Context, id string) error
}

// ThumbnailStore persists generation history.
type ThumbnailStore interface {
	CreateThumbnail(ctx context.Context, thumb *domain.Thumbnail) error
	GetThumbnailByID(ctx context.Context, id string) (*domain.Thumbnail, error)
	ListThumbnailsByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Thumbnail, int64, error)
	DeleteThumbnail(ctx context.Context, id string) error
}

// Stores groups the persistence contracts used by the services.
type Stores struct {
	Avatars    AvatarStore
	References ReferenceStore
	Thumbnails ThumbnailStore

	closeFn func() error
}

// Close releases the underlying connection, if any.
func (s *Stores) Close() error {
	if s == nil || s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// Open selects the persistence backend once at process start.
// Parameters:
//   - cfg: database configuration; Driver "memory" selects the in-process store.
//
// Returns:
//   - *Stores: stores sharing one backend.
//   - error: non-nil if the database cannot be opened.
func Open(cfg *config.DatabaseConfig) (*Stores, error) {
	if cfg.Driver == "memory" {
		mem := NewMemoryStore()
		return &Stores{Avatars: mem, References: mem, Thumbnails: mem}, nil
	}

	db, err := InitDB(cfg)
	if err != nil {
		return nil, err
	}
	return NewGormStores(db), nil
}

// NewGormStores wires the gorm repositories around an open handle.
func NewGormStores(db *gorm.DB) *Stores {
	return &Stores{
		Avatars:    NewAvatarRepository(db),
		References: NewReferenceRepository(db),
		Thumbnails: NewThumbnailRepository(db),
		closeFn: func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return fmt.Errorf("failed to get sql.DB instance: %w", err)
			}
			return sqlDB.Close()
		},
	}
}

func translateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
