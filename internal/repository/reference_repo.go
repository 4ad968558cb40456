package repository

import (
	"context"

	"github.com/timmy/thumbcraft/internal/domain"
	"gorm.io/gorm"
)

// ReferenceRepository handles reference image rows.
type ReferenceRepository struct {
	db *gorm.DB
}

// NewReferenceRepository creates a new ReferenceRepository.
func NewReferenceRepository(db *gorm.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// CreateReference inserts a new reference record.
func (r *ReferenceRepository) CreateReference(ctx context.Context, ref *domain.Reference) error {
	return r.db.WithContext(ctx).Create(ref).Error
}

// GetReferenceByID retrieves a reference by its ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: reference ID.
//
// Returns:
//   - *domain.Reference: reference if found.
//   - error: ErrNotFound if no row matches.
func (r *ReferenceRepository) GetReferenceByID(ctx context.Context, id string) (*domain.Reference, error) {
	var ref domain.Reference
	if err := r.db.WithContext(ctx).First(&ref, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &ref, nil
}

// ListReferencesByUser lists a user's references, newest first.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owning user.
//   - category: optional filter; empty lists every category.
//
// Returns:
//   - []domain.Reference: matching references.
//   - error: non-nil if the query fails.
func (r *ReferenceRepository) ListReferencesByUser(ctx context.Context, userID string, category domain.ReferenceCategory) ([]domain.Reference, error) {
	var refs []domain.Reference
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Order("created_at DESC").Find(&refs).Error
	return refs, err
}

// UpdateReference saves every column of ref.
func (r *ReferenceRepository) UpdateReference(ctx context.Context, ref *domain.Reference) error {
	res := r.db.WithContext(ctx).Model(&domain.Reference{}).
		Where("id = ?", ref.ID).
		Select("category", "image_url", "storage_path", "file_name", "file_size", "mime_type", "description", "updated_at").
		Updates(ref)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteReference removes a reference by ID.
func (r *ReferenceRepository) DeleteReference(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Reference{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
