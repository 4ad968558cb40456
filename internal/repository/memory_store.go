package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/timmy/thumbcraft/internal/domain"
)

// MemoryStore is an ephemeral in-process backend satisfying AvatarStore,
// ReferenceStore and ThumbnailStore. Every read returns a copy.
type MemoryStore struct {
	mu         sync.RWMutex
	avatars    map[string]*domain.Avatar
	references map[string]*domain.Reference
	thumbnails map[string]*domain.Thumbnail
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		avatars:    make(map[string]*domain.Avatar),
		references: make(map[string]*domain.Reference),
		thumbnails: make(map[string]*domain.Thumbnail),
	}
}

func copyAvatar(a *domain.Avatar) *domain.Avatar {
	out := *a
	out.Photos = append([]domain.AvatarPhoto(nil), a.Photos...)
	out.SortPhotos()
	return &out
}

func copyThumbnail(t *domain.Thumbnail) *domain.Thumbnail {
	out := *t
	out.ReferenceIDs = append(domain.StringArray{}, t.ReferenceIDs...)
	return &out
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	if updated != nil && updated.IsZero() {
		*updated = now
	}
}

// CreateAvatar stores a copy of avatar and its photos.
func (m *MemoryStore) CreateAvatar(ctx context.Context, avatar *domain.Avatar) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stamp(&avatar.CreatedAt, &avatar.UpdatedAt)
	for i := range avatar.Photos {
		avatar.Photos[i].AvatarID = avatar.ID
		stamp(&avatar.Photos[i].CreatedAt, nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.avatars[avatar.ID] = copyAvatar(avatar)
	return nil
}

// GetAvatarByID returns a copy of the avatar or ErrNotFound.
func (m *MemoryStore) GetAvatarByID(ctx context.Context, id string) (*domain.Avatar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.avatars[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAvatar(a), nil
}

// ListAvatarsByUser returns a user's avatars, newest first.
func (m *MemoryStore) ListAvatarsByUser(ctx context.Context, userID string) ([]domain.Avatar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Avatar, 0)
	for _, a := range m.avatars {
		if a.UserID == userID {
			out = append(out, *copyAvatar(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateAvatarName renames an avatar.
func (m *MemoryStore) UpdateAvatarName(ctx context.Context, id, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.avatars[id]
	if !ok {
		return ErrNotFound
	}
	a.Name = name
	a.UpdatedAt = time.Now()
	return nil
}

// AddAvatarPhoto appends a photo to an existing avatar holding fewer than maxPhotos.
func (m *MemoryStore) AddAvatarPhoto(ctx context.Context, photo *domain.AvatarPhoto, maxPhotos int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stamp(&photo.CreatedAt, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.avatars[photo.AvatarID]
	if !ok {
		return ErrNotFound
	}
	if maxPhotos > 0 && len(a.Photos) >= maxPhotos {
		return ErrPhotoLimit
	}
	a.Photos = append(a.Photos, *photo)
	a.UpdatedAt = time.Now()
	return nil
}

// DeleteAvatarPhoto removes one photo from an avatar that keeps at least minPhotos.
func (m *MemoryStore) DeleteAvatarPhoto(ctx context.Context, avatarID, photoID string, minPhotos int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.avatars[avatarID]
	if !ok {
		return ErrNotFound
	}
	for i := range a.Photos {
		if a.Photos[i].ID == photoID {
			if minPhotos > 0 && len(a.Photos)-1 < minPhotos {
				return ErrPhotoLimit
			}
			a.Photos = append(a.Photos[:i:i], a.Photos[i+1:]...)
			a.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

// DeleteAvatar removes an avatar and its photos.
func (m *MemoryStore) DeleteAvatar(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.avatars[id]; !ok {
		return ErrNotFound
	}
	delete(m.avatars, id)
	return nil
}

// CreateReference stores a copy of ref.
func (m *MemoryStore) CreateReference(ctx context.Context, ref *domain.Reference) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stamp(&ref.CreatedAt, &ref.UpdatedAt)
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ref
	m.references[ref.ID] = &cp
	return nil
}

// GetReferenceByID returns a copy of the reference or ErrNotFound.
func (m *MemoryStore) GetReferenceByID(ctx context.Context, id string) (*domain.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.references[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// ListReferencesByUser lists a user's references, optionally by category.
func (m *MemoryStore) ListReferencesByUser(ctx context.Context, userID string, category domain.ReferenceCategory) ([]domain.Reference, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Reference, 0)
	for _, r := range m.references {
		if r.UserID != userID {
			continue
		}
		if category != "" && r.Category != category {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateReference replaces the stored reference, keeping its owner and creation time.
func (m *MemoryStore) UpdateReference(ctx context.Context, ref *domain.Reference) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.references[ref.ID]
	if !ok {
		return ErrNotFound
	}
	cp := *ref
	cp.UserID = existing.UserID
	cp.CreatedAt = existing.CreatedAt
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	m.references[ref.ID] = &cp
	return nil
}

// DeleteReference removes a reference.
func (m *MemoryStore) DeleteReference(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.references[id]; !ok {
		return ErrNotFound
	}
	delete(m.references, id)
	return nil
}

// CreateThumbnail stores a copy of thumb.
func (m *MemoryStore) CreateThumbnail(ctx context.Context, thumb *domain.Thumbnail) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stamp(&thumb.CreatedAt, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thumbnails[thumb.ID] = copyThumbnail(thumb)
	return nil
}

// GetThumbnailByID returns a copy of the record or ErrNotFound.
func (m *MemoryStore) GetThumbnailByID(ctx context.Context, id string) (*domain.Thumbnail, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.thumbnails[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyThumbnail(t), nil
}

// ListThumbnailsByUser returns one page of a user's history, newest first.
func (m *MemoryStore) ListThumbnailsByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Thumbnail, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	m.mu.RLock()
	all := make([]domain.Thumbnail, 0)
	for _, t := range m.thumbnails {
		if t.UserID == userID {
			all = append(all, *copyThumbnail(t))
		}
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return []domain.Thumbnail{}, total, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, total, nil
}

// DeleteThumbnail removes one history record.
func (m *MemoryStore) DeleteThumbnail(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.thumbnails[id]; !ok {
		return ErrNotFound
	}
	delete(m.thumbnails, id)
	return nil
}

var (
	_ AvatarStore    = (*MemoryStore)(nil)
	_ ReferenceStore = (*MemoryStore)(nil)
	_ ThumbnailStore = (*MemoryStore)(nil)
	_ AvatarStore    = (*AvatarRepository)(nil)
	_ ReferenceStore = (*ReferenceRepository)(nil)
	_ ThumbnailStore = (*ThumbnailRepository)(nil)
)
