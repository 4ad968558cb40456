package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/timmy/thumbcraft/internal/domain"
	"github.com/timmy/thumbcraft/internal/repository"
	"github.com/timmy/thumbcraft/internal/storage"
)

const testMaxBytes = 10 * 1024 * 1024

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

var errServiceUnavailable = &storage.OpError{Op: "upload", Key: "k", Transient: true, Err: errors.New("503 ServiceUnavailable")}
var errValidationRejected = &storage.OpError{Op: "upload", Key: "k", Err: errors.New("400 InvalidArgument")}

// scriptedStorage fails Upload with the queued errors, then delegates.
type scriptedStorage struct {
	*storage.MemoryStorage
	mu       sync.Mutex
	failures []error
	uploads  int
}

func newScriptedStorage(failures ...error) *scriptedStorage {
	return &scriptedStorage{MemoryStorage: storage.NewMemoryStorage("/api/v1/files"), failures: failures}
}

func (s *scriptedStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, opts storage.UploadOptions) error {
	s.mu.Lock()
	s.uploads++
	var err error
	if len(s.failures) > 0 {
		err = s.failures[0]
		s.failures = s.failures[1:]
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStorage.Upload(ctx, key, r, size, opts)
}

func (s *scriptedStorage) uploadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

var fastRetry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

func newTestUploader(objectStorage storage.ObjectStorage) *StorageUploader {
	return NewStorageUploader(objectStorage, NewImageFetcher(5*time.Second, 0, testMaxBytes), fastRetry, testMaxBytes)
}

// seedAvatar stores an avatar with n photos for userID.
func seedAvatar(t *testing.T, store repository.AvatarStore, id, userID string, n int) *domain.Avatar {
	t.Helper()
	base := time.Now().UTC()
	a := &domain.Avatar{ID: id, UserID: userID, Name: "Avatar " + id, CreatedAt: base, UpdatedAt: base}
	for i := 0; i < n; i++ {
		a.Photos = append(a.Photos, domain.AvatarPhoto{
			ID:          fmt.Sprintf("%s-photo-%d", id, i),
			AvatarID:    id,
			Position:    i,
			ImageURL:    fmt.Sprintf("https://cdn.example.com/avatars/%s/%d.png", id, i),
			StoragePath: fmt.Sprintf("avatars/%s/%s/%d.png", userID, id, i),
			MimeType:    "image/png",
			CreatedAt:   base.Add(time.Duration(i) * time.Millisecond),
		})
	}
	if err := store.CreateAvatar(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	return a
}

func seedReference(t *testing.T, store repository.ReferenceStore, id, userID string, cat domain.ReferenceCategory) *domain.Reference {
	t.Helper()
	r := &domain.Reference{
		ID: id, UserID: userID, Category: cat,
		ImageURL: "https://cdn.example.com/references/" + id + ".png",
	}
	if err := store.CreateReference(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	return r
}

func intPtr(i int) *int { return &i }
