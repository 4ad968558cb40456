package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/timmy/thumbcraft/internal/logger"
	"github.com/timmy/thumbcraft/internal/storage"
)

// Storage folders, one per asset type.
const (
	FolderThumbnails = "thumbnails"
	FolderAvatars    = "avatars"
	FolderReferences = "references"
)

// UploadResult describes a stored object.
type UploadResult struct {
	URL         string
	StoragePath string
	MimeType    string
	Size        int64
	Attempts    int
}

// StorageUploader writes images to object storage under per-user paths,
// retrying transient failures according to policy.
type StorageUploader struct {
	storage  storage.ObjectStorage
	fetcher  *ImageFetcher
	policy   RetryPolicy
	maxBytes int64
	now      func() time.Time
}

// NewStorageUploader creates a StorageUploader.
func NewStorageUploader(objectStorage storage.ObjectStorage, fetcher *ImageFetcher, policy RetryPolicy, maxBytes int64) *StorageUploader {
	return &StorageUploader{
		storage:  objectStorage,
		fetcher:  fetcher,
		policy:   policy,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

func uploadFailed(err error) *PipelineError {
	return &PipelineError{Kind: KindUploadFailed, Stage: StageUploading, Message: msgUploadFailed, Err: err}
}

// UploadGenerated acquires the image behind locator (data URL or http(s))
// and stores it under the thumbnails folder.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: owner; becomes part of the object path.
//   - locator: provider image locator.
//
// Returns:
//   - *UploadResult: public URL and storage path.
//   - error: FileTooLarge over the ceiling, UploadFailed otherwise.
func (u *StorageUploader) UploadGenerated(ctx context.Context, userID, locator string) (*UploadResult, error) {
	img, err := u.fetcher.Fetch(ctx, locator)
	if err != nil {
		if errors.Is(err, ErrFileTooLarge) {
			return nil, err
		}
		return nil, uploadFailed(fmt.Errorf("failed to acquire generated image: %w", err))
	}
	return u.UploadBytes(ctx, userID, FolderThumbnails, img.Data, img.MimeType)
}

// UploadBytes stores data under folder/userID/<millis>-<token>.<ext>.
func (u *StorageUploader) UploadBytes(ctx context.Context, userID, folder string, data []byte, mimeType string) (*UploadResult, error) {
	size := int64(len(data))
	if err := u.checkSize(size); err != nil {
		return nil, err
	}
	mimeType = resolveMimeType(mimeType, data)
	key := u.objectKey(userID, folder, mimeType)

	attempts, err := RetryTransient(ctx, u.policy, storage.IsTransient, func(ctx context.Context, attempt int) error {
		return u.storage.Upload(ctx, key, bytes.NewReader(data), size, storage.UploadOptions{
			ContentType: mimeType,
			Overwrite:   true,
		})
	})
	if err != nil {
		logger.With(logger.Fields{"storage_path": key}).
			WithAttempt(attempts).
			Error(ctx, "Upload failed: %v", err)
		return nil, uploadFailed(err)
	}

	logger.With(logger.Fields{
		logger.FieldSize: size,
		"storage_path":   key,
	}).WithAttempt(attempts).Info(ctx, "Image uploaded")

	return &UploadResult{
		URL:         u.storage.GetURL(key),
		StoragePath: key,
		MimeType:    mimeType,
		Size:        size,
		Attempts:    attempts,
	}, nil
}

// checkSize rejects payloads above the upload ceiling.
func (u *StorageUploader) checkSize(size int64) error {
	if size > u.maxBytes {
		return u.fetcher.tooLarge(size)
	}
	return nil
}

// Delete removes a stored object. Empty paths are ignored.
func (u *StorageUploader) Delete(ctx context.Context, storagePath string) error {
	if storagePath == "" {
		return nil
	}
	return u.storage.Delete(ctx, storagePath)
}

// deleteQuietly removes objects and only logs failures.
func (u *StorageUploader) deleteQuietly(ctx context.Context, paths ...string) {
	for _, p := range paths {
		if err := u.Delete(ctx, p); err != nil {
			logger.With(logger.Fields{"storage_path": p}).Warn(ctx, "Failed to delete stored object: %v", err)
		}
	}
}

func (u *StorageUploader) objectKey(userID, folder, mimeType string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	name := fmt.Sprintf("%d-%s%s", u.now().UnixMilli(), token, extensionFor(mimeType))
	return path.Join(folder, pathSegment(userID), name)
}

// pathSegment maps an id onto one key segment that cannot climb or split
// the key.
func pathSegment(id string) string {
	seg := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.', r == '@':
			return r
		}
		return '_'
	}, id)
	if strings.Trim(seg, ".") == "" {
		return "_"
	}
	return seg
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".png"
}
