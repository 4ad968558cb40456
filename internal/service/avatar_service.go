package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/timmy/thumbcraft/internal/domain"
	"github.com/timmy/thumbcraft/internal/logger"
	"github.com/timmy/thumbcraft/internal/repository"
)

const maxAvatarNameLength = 100

const msgAvatarNotFound = "Avatar não encontrado"

// AvatarService manages the avatar library.
type AvatarService struct {
	store     repository.AvatarStore
	uploader  *StorageUploader
	minPhotos int
	maxPhotos int
}

// NewAvatarService creates an AvatarService enforcing minPhotos..maxPhotos per avatar.
func NewAvatarService(store repository.AvatarStore, uploader *StorageUploader, minPhotos, maxPhotos int) *AvatarService {
	return &AvatarService{store: store, uploader: uploader, minPhotos: minPhotos, maxPhotos: maxPhotos}
}

func (s *AvatarService) log(ctx context.Context) *logger.Logger {
	return logger.FromContext(ctx).WithField(logger.FieldComponent, "avatars")
}

func validAvatarName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalidInput("Informe o nome do avatar")
	}
	if utf8.RuneCountInString(name) > maxAvatarNameLength {
		return "", invalidInput("O nome deve ter no máximo %d caracteres", maxAvatarNameLength)
	}
	return name, nil
}

// storePhoto validates and uploads one file, returning the unsaved row.
func (s *AvatarService) storePhoto(ctx context.Context, userID, avatarID string, position int, file FileUpload) (*domain.AvatarPhoto, error) {
	info, err := InspectImage(file.Data)
	if err != nil {
		return nil, err
	}
	up, err := s.uploader.UploadBytes(ctx, userID, FolderAvatars, file.Data, info.MimeType)
	if err != nil {
		return nil, err
	}
	return &domain.AvatarPhoto{
		ID:          uuid.NewString(),
		AvatarID:    avatarID,
		Position:    position,
		ImageURL:    up.URL,
		StoragePath: up.StoragePath,
		FileName:    file.FileName,
		FileSize:    info.Size,
		MimeType:    info.MimeType,
		Width:       info.Width,
		Height:      info.Height,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Create stores the photos and creates the avatar. Uploaded objects are
// removed again if any later step fails.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owner.
//   - name: display name.
//   - files: between minPhotos and maxPhotos images.
//
// Returns:
//   - *domain.Avatar: created avatar with photos in upload order.
//   - error: validation, FileTooLarge, UploadFailed or internal error.
func (s *AvatarService) Create(ctx context.Context, userID, name string, files []FileUpload) (*domain.Avatar, error) {
	name, err := validAvatarName(name)
	if err != nil {
		return nil, err
	}
	if len(files) < s.minPhotos || len(files) > s.maxPhotos {
		return nil, invalidInput("Envie entre %d e %d fotos", s.minPhotos, s.maxPhotos)
	}
	for _, f := range files {
		if err := s.uploader.checkSize(int64(len(f.Data))); err != nil {
			return nil, err
		}
		if _, err := InspectImage(f.Data); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	avatar := &domain.Avatar{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	var uploaded []string
	for i, f := range files {
		photo, err := s.storePhoto(ctx, userID, avatar.ID, i, f)
		if err != nil {
			s.uploader.deleteQuietly(ctx, uploaded...)
			return nil, err
		}
		uploaded = append(uploaded, photo.StoragePath)
		avatar.Photos = append(avatar.Photos, *photo)
	}

	if err := s.store.CreateAvatar(ctx, avatar); err != nil {
		s.uploader.deleteQuietly(ctx, uploaded...)
		return nil, internalError("", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldAvatarID: avatar.ID,
		logger.FieldCount:    len(avatar.Photos),
	}).Info("Avatar created")
	return avatar, nil
}

// List returns the caller's avatars.
func (s *AvatarService) List(ctx context.Context, userID string) ([]domain.Avatar, error) {
	avatars, err := s.store.ListAvatarsByUser(ctx, userID)
	if err != nil {
		return nil, internalError("", err)
	}
	return avatars, nil
}

// Get returns one of the caller's avatars.
func (s *AvatarService) Get(ctx context.Context, userID, id string) (*domain.Avatar, error) {
	avatar, err := s.store.GetAvatarByID(ctx, id)
	if err != nil {
		return nil, storeError(err, msgAvatarNotFound)
	}
	if avatar.UserID != userID {
		return nil, notFoundError(msgAvatarNotFound, nil)
	}
	avatar.SortPhotos()
	return avatar, nil
}

// Rename changes the display name. History keeps the old name snapshot.
func (s *AvatarService) Rename(ctx context.Context, userID, id, name string) (*domain.Avatar, error) {
	name, err := validAvatarName(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	if err := s.store.UpdateAvatarName(ctx, id, name); err != nil {
		return nil, storeError(err, msgAvatarNotFound)
	}
	return s.Get(ctx, userID, id)
}

// AddPhoto appends a photo while the avatar is below maxPhotos.
func (s *AvatarService) AddPhoto(ctx context.Context, userID, id string, file FileUpload) (*domain.Avatar, error) {
	avatar, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if len(avatar.Photos) >= s.maxPhotos {
		return nil, s.tooManyPhotos()
	}

	photo, err := s.storePhoto(ctx, userID, avatar.ID, avatar.NextPosition(), file)
	if err != nil {
		return nil, err
	}
	// The store re-checks the bound atomically; a concurrent add may have
	// filled the avatar since the read above.
	if err := s.store.AddAvatarPhoto(ctx, photo, s.maxPhotos); err != nil {
		s.uploader.deleteQuietly(ctx, photo.StoragePath)
		if errors.Is(err, repository.ErrPhotoLimit) {
			return nil, s.tooManyPhotos()
		}
		return nil, storeError(err, msgAvatarNotFound)
	}
	return s.Get(ctx, userID, id)
}

// RemovePhoto deletes a photo while the avatar stays at or above minPhotos.
func (s *AvatarService) RemovePhoto(ctx context.Context, userID, id, photoID string) (*domain.Avatar, error) {
	avatar, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	photo, ok := avatar.PhotoByID(photoID)
	if !ok {
		return nil, notFoundError("Foto não encontrada", nil)
	}
	if len(avatar.Photos) <= s.minPhotos {
		return nil, s.tooFewPhotos()
	}
	storagePath := photo.StoragePath

	if err := s.store.DeleteAvatarPhoto(ctx, avatar.ID, photoID, s.minPhotos); err != nil {
		if errors.Is(err, repository.ErrPhotoLimit) {
			return nil, s.tooFewPhotos()
		}
		return nil, storeError(err, "Foto não encontrada")
	}
	s.uploader.deleteQuietly(ctx, storagePath)
	return s.Get(ctx, userID, id)
}

func (s *AvatarService) tooManyPhotos() error {
	return invalidInput("O avatar pode ter no máximo %d fotos", s.maxPhotos)
}

func (s *AvatarService) tooFewPhotos() error {
	return invalidInput("O avatar precisa de pelo menos %d fotos", s.minPhotos)
}

// Delete removes the avatar, its photo rows and every stored photo object.
func (s *AvatarService) Delete(ctx context.Context, userID, id string) error {
	avatar, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteAvatar(ctx, avatar.ID); err != nil {
		return storeError(err, msgAvatarNotFound)
	}

	paths := make([]string, 0, len(avatar.Photos))
	for _, p := range avatar.Photos {
		paths = append(paths, p.StoragePath)
	}
	s.uploader.deleteQuietly(ctx, paths...)

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldAvatarID: avatar.ID,
		logger.FieldCount:    len(paths),
	}).Info("Avatar deleted")
	return nil
}
