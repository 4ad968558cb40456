package repository

import (
	"context"

	"github.com/timmy/thumbcraft/internal/domain"
	"gorm.io/gorm"
)

// ThumbnailRepository handles generation history rows.
type ThumbnailRepository struct {
	db *gorm.DB
}

// NewThumbnailRepository creates a new ThumbnailRepository.
func NewThumbnailRepository(db *gorm.DB) *ThumbnailRepository {
	return &ThumbnailRepository{db: db}
}

// CreateThumbnail inserts a history record.
func (r *ThumbnailRepository) CreateThumbnail(ctx context.Context, thumb *domain.Thumbnail) error {
	return r.db.WithContext(ctx).Create(thumb).Error
}

// GetThumbnailByID retrieves a history record by its ID.
func (r *ThumbnailRepository) GetThumbnailByID(ctx context.Context, id string) (*domain.Thumbnail, error) {
	var thumb domain.Thumbnail
	if err := r.db.WithContext(ctx).First(&thumb, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &thumb, nil
}

// ListThumbnailsByUser returns one page of a user's history, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owning user.
//   - limit: maximum rows to return.
//   - offset: rows to skip.
//
// Returns:
//   - []domain.Thumbnail: the requested page.
//   - int64: total number of rows for the user.
//   - error: non-nil if either query fails.
func (r *ThumbnailRepository) ListThumbnailsByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Thumbnail, int64, error) {
	var total int64
	base := r.db.WithContext(ctx).Model(&domain.Thumbnail{}).Where("user_id = ?", userID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var thumbs []domain.Thumbnail
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&thumbs).Error
	if err != nil {
		return nil, 0, err
	}
	return thumbs, total, nil
}

// DeleteThumbnail removes one history row. Referenced avatars and
// references are left untouched.
func (r *ThumbnailRepository) DeleteThumbnail(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Thumbnail{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
