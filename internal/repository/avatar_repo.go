package repository

import (
	"context"
	"time"

	"github.com/timmy/thumbcraft/internal/domain"
	"gorm.io/gorm"
)

// AvatarRepository handles avatar and avatar photo rows.
type AvatarRepository struct {
	db *gorm.DB
}

// NewAvatarRepository creates a new AvatarRepository.
// Parameters:
//   - db: GORM database handle used for queries.
//
// Returns:
//   - *AvatarRepository: repository instance bound to db.
func NewAvatarRepository(db *gorm.DB) *AvatarRepository {
	return &AvatarRepository{db: db}
}

func orderedPhotos(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC, created_at ASC")
}

// CreateAvatar inserts an avatar together with its photos.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - avatar: avatar with Photos populated.
//
// Returns:
//   - error: non-nil if the insert fails.
func (r *AvatarRepository) CreateAvatar(ctx context.Context, avatar *domain.Avatar) error {
	return r.db.WithContext(ctx).Create(avatar).Error
}

// GetAvatarByID retrieves an avatar with photos in insertion order.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: avatar ID.
//
// Returns:
//   - *domain.Avatar: avatar if found.
//   - error: ErrNotFound if no row matches.
func (r *AvatarRepository) GetAvatarByID(ctx context.Context, id string) (*domain.Avatar, error) {
	var avatar domain.Avatar
	err := r.db.WithContext(ctx).
		Preload("Photos", orderedPhotos).
		First(&avatar, "id = ?", id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &avatar, nil
}

// ListAvatarsByUser returns a user's avatars, newest first.
func (r *AvatarRepository) ListAvatarsByUser(ctx context.Context, userID string) ([]domain.Avatar, error) {
	var avatars []domain.Avatar
	err := r.db.WithContext(ctx).
		Preload("Photos", orderedPhotos).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&avatars).Error
	return avatars, err
}

// UpdateAvatarName renames an avatar.
func (r *AvatarRepository) UpdateAvatarName(ctx context.Context, id, name string) error {
	res := r.db.WithContext(ctx).Model(&domain.Avatar{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"name": name, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// touchAvatar bumps updated_at. Being the first write of a photo
// transaction, it holds the avatar row lock until commit, so concurrent
// photo edits of one avatar run one after another.
func touchAvatar(tx *gorm.DB, avatarID string) error {
	res := tx.Model(&domain.Avatar{}).Where("id = ?", avatarID).Update("updated_at", time.Now())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func countPhotos(tx *gorm.DB, avatarID string) (int64, error) {
	var n int64
	err := tx.Model(&domain.AvatarPhoto{}).Where("avatar_id = ?", avatarID).Count(&n).Error
	return n, err
}

// AddAvatarPhoto appends a photo unless the avatar already holds maxPhotos.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - photo: photo row; AvatarID selects the parent.
//   - maxPhotos: upper bound after the insert; <= 0 disables it.
//
// Returns:
//   - error: ErrNotFound for a missing avatar, ErrPhotoLimit when full.
func (r *AvatarRepository) AddAvatarPhoto(ctx context.Context, photo *domain.AvatarPhoto, maxPhotos int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchAvatar(tx, photo.AvatarID); err != nil {
			return err
		}
		if maxPhotos > 0 {
			n, err := countPhotos(tx, photo.AvatarID)
			if err != nil {
				return err
			}
			if n >= int64(maxPhotos) {
				return ErrPhotoLimit
			}
		}
		return tx.Create(photo).Error
	})
}

// DeleteAvatarPhoto removes one photo belonging to avatarID unless that
// would leave fewer than minPhotos.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - avatarID: parent avatar.
//   - photoID: photo to remove.
//   - minPhotos: lower bound after the delete; <= 0 disables it.
//
// Returns:
//   - error: ErrNotFound if the photo is not on that avatar, ErrPhotoLimit at the minimum.
func (r *AvatarRepository) DeleteAvatarPhoto(ctx context.Context, avatarID, photoID string, minPhotos int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := touchAvatar(tx, avatarID); err != nil {
			return err
		}
		res := tx.Where("id = ? AND avatar_id = ?", photoID, avatarID).Delete(&domain.AvatarPhoto{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if minPhotos > 0 {
			n, err := countPhotos(tx, avatarID)
			if err != nil {
				return err
			}
			if n < int64(minPhotos) {
				return ErrPhotoLimit
			}
		}
		return nil
	})
}

// DeleteAvatar removes an avatar and its photo rows.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: avatar ID.
//
// Returns:
//   - error: ErrNotFound if the avatar does not exist.
func (r *AvatarRepository) DeleteAvatar(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("avatar_id = ?", id).Delete(&domain.AvatarPhoto{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&domain.Avatar{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
