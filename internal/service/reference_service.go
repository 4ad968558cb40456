package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/timmy/thumbcraft/internal/domain"
	"github.com/timmy/thumbcraft/internal/logger"
	"github.com/timmy/thumbcraft/internal/repository"
)

const maxReferenceDescriptionLength = 500

const msgReferenceNotFound = "Referência não encontrada"

// ReferenceUpdate carries the fields to change; nil leaves a field as is.
type ReferenceUpdate struct {
	Category    *string
	Description *string
	File        *FileUpload
}

// ReferenceService manages the reference library.
type ReferenceService struct {
	store    repository.ReferenceStore
	uploader *StorageUploader
}

// NewReferenceService creates a ReferenceService.
func NewReferenceService(store repository.ReferenceStore, uploader *StorageUploader) *ReferenceService {
	return &ReferenceService{store: store, uploader: uploader}
}

func parseCategory(raw string) (domain.ReferenceCategory, error) {
	c, err := domain.ParseReferenceCategory(raw)
	if err != nil {
		return "", invalidInput("Categoria inválida: use thumbnail, logo, icon ou background")
	}
	return c, nil
}

func validDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if utf8.RuneCountInString(desc) > maxReferenceDescriptionLength {
		return "", invalidInput("A descrição deve ter no máximo %d caracteres", maxReferenceDescriptionLength)
	}
	return desc, nil
}

// Create uploads file and records it as a reference.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owner.
//   - category: one of thumbnail, logo, icon, background.
//   - description: optional free text.
//   - file: the image.
//
// Returns:
//   - *domain.Reference: created reference.
//   - error: validation, FileTooLarge, UploadFailed or internal error.
func (s *ReferenceService) Create(ctx context.Context, userID, category, description string, file FileUpload) (*domain.Reference, error) {
	cat, err := parseCategory(category)
	if err != nil {
		return nil, err
	}
	desc, err := validDescription(description)
	if err != nil {
		return nil, err
	}
	info, err := InspectImage(file.Data)
	if err != nil {
		return nil, err
	}

	up, err := s.uploader.UploadBytes(ctx, userID, FolderReferences, file.Data, info.MimeType)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ref := &domain.Reference{
		ID:          uuid.NewString(),
		UserID:      userID,
		Category:    cat,
		ImageURL:    up.URL,
		StoragePath: up.StoragePath,
		FileName:    file.FileName,
		FileSize:    info.Size,
		MimeType:    info.MimeType,
		Description: desc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateReference(ctx, ref); err != nil {
		s.uploader.deleteQuietly(ctx, up.StoragePath)
		return nil, internalError("", err)
	}
	return ref, nil
}

// List returns the caller's references, optionally for one category.
func (s *ReferenceService) List(ctx context.Context, userID, category string) ([]domain.Reference, error) {
	var cat domain.ReferenceCategory
	if strings.TrimSpace(category) != "" {
		c, err := parseCategory(category)
		if err != nil {
			return nil, err
		}
		cat = c
	}
	refs, err := s.store.ListReferencesByUser(ctx, userID, cat)
	if err != nil {
		return nil, internalError("", err)
	}
	return refs, nil
}

// Get returns one of the caller's references.
func (s *ReferenceService) Get(ctx context.Context, userID, id string) (*domain.Reference, error) {
	ref, err := s.store.GetReferenceByID(ctx, id)
	if err != nil {
		return nil, storeError(err, msgReferenceNotFound)
	}
	if ref.UserID != userID {
		return nil, notFoundError(msgReferenceNotFound, nil)
	}
	return ref, nil
}

// Update edits category and description and optionally replaces the file.
// A replaced file's old object is removed after the row is saved.
func (s *ReferenceService) Update(ctx context.Context, userID, id string, upd ReferenceUpdate) (*domain.Reference, error) {
	ref, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if upd.Category != nil {
		if ref.Category, err = parseCategory(*upd.Category); err != nil {
			return nil, err
		}
	}
	if upd.Description != nil {
		if ref.Description, err = validDescription(*upd.Description); err != nil {
			return nil, err
		}
	}

	var oldPath, newPath string
	if upd.File != nil {
		info, err := InspectImage(upd.File.Data)
		if err != nil {
			return nil, err
		}
		up, err := s.uploader.UploadBytes(ctx, userID, FolderReferences, upd.File.Data, info.MimeType)
		if err != nil {
			return nil, err
		}
		oldPath, newPath = ref.StoragePath, up.StoragePath
		ref.ImageURL = up.URL
		ref.StoragePath = up.StoragePath
		ref.FileName = upd.File.FileName
		ref.FileSize = info.Size
		ref.MimeType = info.MimeType
	}
	ref.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateReference(ctx, ref); err != nil {
		s.uploader.deleteQuietly(ctx, newPath)
		return nil, storeError(err, msgReferenceNotFound)
	}
	if oldPath != "" {
		s.uploader.deleteQuietly(ctx, oldPath)
	}
	return ref, nil
}

// Delete removes the reference row and its stored object.
func (s *ReferenceService) Delete(ctx context.Context, userID, id string) error {
	ref, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteReference(ctx, ref.ID); err != nil {
		return storeError(err, msgReferenceNotFound)
	}
	s.uploader.deleteQuietly(ctx, ref.StoragePath)

	logger.With(logger.Fields{"reference_id": ref.ID}).Info(ctx, "Reference deleted")
	return nil
}
