package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/timmy/thumbcraft/internal/domain"
	"github.com/timmy/thumbcraft/internal/repository"
)

func photoFiles(t *testing.T, n int) []FileUpload {
	t.Helper()
	files := make([]FileUpload, n)
	for i := range files {
		files[i] = FileUpload{FileName: "face.png", Data: pngBytes(t, 10+i, 10)}
	}
	return files
}

func newAvatarService(t *testing.T) (*AvatarService, *repository.MemoryStore, *scriptedStorage) {
	t.Helper()
	store := repository.NewMemoryStore()
	st := newScriptedStorage()
	return NewAvatarService(store, newTestUploader(st), 3, 10), store, st
}

func TestAvatarServiceCreate(t *testing.T) {
	tests := []struct {
		name    string
		avatar  string
		files   int
		wantErr error
	}{
		{name: "minimum photos", avatar: "Me", files: 3},
		{name: "maximum photos", avatar: "Me", files: 10},
		{name: "too few photos", avatar: "Me", files: 2, wantErr: ErrValidation},
		{name: "too many photos", avatar: "Me", files: 11, wantErr: ErrValidation},
		{name: "blank name", avatar: "  ", files: 3, wantErr: ErrValidation},
		{name: "long name", avatar: strings.Repeat("n", 101), files: 3, wantErr: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, st := newAvatarService(t)
			avatar, err := svc.Create(context.Background(), "u1", tt.avatar, photoFiles(t, tt.files))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if st.uploadCount() != 0 {
					t.Errorf("uploads = %d after rejected create", st.uploadCount())
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if len(avatar.Photos) != tt.files {
				t.Fatalf("photos = %d", len(avatar.Photos))
			}
			for i, p := range avatar.Photos {
				if p.Position != i || p.MimeType != "image/png" || p.Width != 10+i || p.Height != 10 {
					t.Errorf("photo %d = %+v", i, p)
				}
				if !strings.HasPrefix(p.StoragePath, "avatars/u1/") {
					t.Errorf("StoragePath = %q", p.StoragePath)
				}
			}
		})
	}
}

func TestAvatarServiceRejectsNonImages(t *testing.T) {
	svc, _, st := newAvatarService(t)
	files := photoFiles(t, 3)
	files[1] = FileUpload{FileName: "notes.txt", Data: []byte("just some text")}

	if _, err := svc.Create(context.Background(), "u1", "Me", files); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if st.uploadCount() != 0 {
		t.Errorf("uploads = %d", st.uploadCount())
	}
}

func TestAvatarServiceRejectsOversizedPhoto(t *testing.T) {
	svc, _, st := newAvatarService(t)
	files := photoFiles(t, 3)
	files[2] = FileUpload{FileName: "huge.png", Data: append(pngBytes(t, 2, 2), make([]byte, testMaxBytes)...)}

	if _, err := svc.Create(context.Background(), "u1", "Me", files); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("err = %v, want file too large", err)
	}
	if st.uploadCount() != 0 {
		t.Errorf("uploads = %d", st.uploadCount())
	}
}

func TestAvatarServiceCleansUpAfterUploadFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	// First upload succeeds, second fails permanently.
	st := newScriptedStorage(nil, errValidationRejected)
	svc := NewAvatarService(store, newTestUploader(st), 3, 10)

	_, err := svc.Create(context.Background(), "u1", "Me", photoFiles(t, 3))
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("err = %v, want upload failed", err)
	}
	if n := st.Len(); n != 0 {
		t.Errorf("%d orphaned objects", n)
	}
	if avatars, _ := store.ListAvatarsByUser(context.Background(), "u1"); len(avatars) != 0 {
		t.Errorf("avatar stored after failure")
	}
}

func TestAvatarServicePhotoLimits(t *testing.T) {
	svc, _, st := newAvatarService(t)
	ctx := context.Background()

	avatar, err := svc.Create(ctx, "u1", "Me", photoFiles(t, 3))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.RemovePhoto(ctx, "u1", avatar.ID, avatar.Photos[0].ID); !errors.Is(err, ErrValidation) {
		t.Errorf("removing below minimum: err = %v", err)
	}

	for i := 0; i < 7; i++ {
		if avatar, err = svc.AddPhoto(ctx, "u1", avatar.ID, FileUpload{FileName: "x.png", Data: pngBytes(t, 5, 5)}); err != nil {
			t.Fatalf("AddPhoto #%d: %v", i, err)
		}
	}
	if len(avatar.Photos) != 10 {
		t.Fatalf("photos = %d", len(avatar.Photos))
	}
	if _, err := svc.AddPhoto(ctx, "u1", avatar.ID, FileUpload{FileName: "x.png", Data: pngBytes(t, 5, 5)}); !errors.Is(err, ErrValidation) {
		t.Errorf("adding above maximum: err = %v", err)
	}

	removed := avatar.Photos[0]
	avatar, err = svc.RemovePhoto(ctx, "u1", avatar.ID, removed.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := avatar.PhotoByID(removed.ID); ok || len(avatar.Photos) != 9 {
		t.Errorf("photo not removed, %d photos", len(avatar.Photos))
	}
	if ok, _ := st.Exists(ctx, removed.StoragePath); ok {
		t.Error("removed photo object still stored")
	}

	if _, err := svc.RemovePhoto(ctx, "u1", avatar.ID, "unknown"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("unknown photo: err = %v", err)
	}
}

func TestAvatarServiceOwnership(t *testing.T) {
	svc, _, st := newAvatarService(t)
	ctx := context.Background()

	avatar, err := svc.Create(ctx, "u1", "Me", photoFiles(t, 3))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Get(ctx, "u2", avatar.ID); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("foreign Get: %v", err)
	}
	if _, err := svc.Rename(ctx, "u2", avatar.ID, "Mine"); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("foreign Rename: %v", err)
	}
	if err := svc.Delete(ctx, "u2", avatar.ID); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("foreign Delete: %v", err)
	}
	if list, _ := svc.List(ctx, "u2"); len(list) != 0 {
		t.Errorf("foreign List = %d", len(list))
	}

	renamed, err := svc.Rename(ctx, "u1", avatar.ID, "  Studio look ")
	if err != nil || renamed.Name != "Studio look" {
		t.Fatalf("Rename() = %v, %v", renamed, err)
	}

	if err := svc.Delete(ctx, "u1", avatar.ID); err != nil {
		t.Fatal(err)
	}
	if st.Len() != 0 {
		t.Errorf("%d objects left after avatar delete", st.Len())
	}
	if _, err := svc.Get(ctx, "u1", avatar.ID); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("deleted avatar still readable: %v", err)
	}
}

func TestReferenceService(t *testing.T) {
	store := repository.NewMemoryStore()
	st := newScriptedStorage()
	svc := NewReferenceService(store, newTestUploader(st))
	ctx := context.Background()

	logo, err := svc.Create(ctx, "u1", " LOGO ", "channel logo", FileUpload{FileName: "logo.png", Data: pngBytes(t, 4, 4)})
	if err != nil {
		t.Fatal(err)
	}
	if logo.Category != domain.ReferenceCategoryLogo || logo.MimeType != "image/png" || !strings.HasPrefix(logo.StoragePath, "references/u1/") {
		t.Errorf("reference = %+v", logo)
	}
	if _, err := svc.Create(ctx, "u1", "background", "", FileUpload{FileName: "bg.jpg", Data: jpegBytes(t, 4, 4)}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Create(ctx, "u1", "banner", "", FileUpload{Data: pngBytes(t, 2, 2)}); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown category: %v", err)
	}
	if _, err := svc.Create(ctx, "u1", "icon", strings.Repeat("d", 501), FileUpload{Data: pngBytes(t, 2, 2)}); !errors.Is(err, ErrValidation) {
		t.Errorf("long description: %v", err)
	}

	all, err := svc.List(ctx, "u1", "")
	if err != nil || len(all) != 2 {
		t.Fatalf("List all = %d, %v", len(all), err)
	}
	logos, err := svc.List(ctx, "u1", "logo")
	if err != nil || len(logos) != 1 || logos[0].ID != logo.ID {
		t.Fatalf("List logo = %v, %v", logos, err)
	}
	if _, err := svc.List(ctx, "u1", "banner"); !errors.Is(err, ErrValidation) {
		t.Errorf("bad filter: %v", err)
	}

	if _, err := svc.Get(ctx, "u2", logo.ID); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("foreign Get: %v", err)
	}

	icon := "icon"
	desc := "new description"
	oldPath := logo.StoragePath
	updated, err := svc.Update(ctx, "u1", logo.ID, ReferenceUpdate{
		Category:    &icon,
		Description: &desc,
		File:        &FileUpload{FileName: "icon.jpg", Data: jpegBytes(t, 8, 8)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Category != domain.ReferenceCategoryIcon || updated.Description != desc || updated.MimeType != "image/jpeg" {
		t.Errorf("updated = %+v", updated)
	}
	if ok, _ := st.Exists(ctx, oldPath); ok {
		t.Error("replaced object still stored")
	}
	if ok, _ := st.Exists(ctx, updated.StoragePath); !ok {
		t.Error("replacement object missing")
	}

	if err := svc.Delete(ctx, "u2", logo.ID); !errors.Is(err, ErrAssetNotFound) {
		t.Errorf("foreign Delete: %v", err)
	}
	if err := svc.Delete(ctx, "u1", logo.ID); err != nil {
		t.Fatal(err)
	}
	if ok, _ := st.Exists(ctx, updated.StoragePath); ok {
		t.Error("deleted reference object still stored")
	}
	if rest, _ := svc.List(ctx, "u1", ""); len(rest) != 1 {
		t.Errorf("references left = %d", len(rest))
	}
}

// lagStore delays photo writes so concurrent callers all pass the
// service's pre-checks before any write lands.
type lagStore struct {
	*repository.MemoryStore
}

func (l lagStore) AddAvatarPhoto(ctx context.Context, photo *domain.AvatarPhoto, maxPhotos int) error {
	time.Sleep(20 * time.Millisecond)
	return l.MemoryStore.AddAvatarPhoto(ctx, photo, maxPhotos)
}

func (l lagStore) DeleteAvatarPhoto(ctx context.Context, avatarID, photoID string, minPhotos int) error {
	time.Sleep(20 * time.Millisecond)
	return l.MemoryStore.DeleteAvatarPhoto(ctx, avatarID, photoID, minPhotos)
}

func TestAvatarServiceConcurrentPhotoEdits(t *testing.T) {
	ctx := context.Background()

	run := func(n int, op func(i int) error) (ok, rejected int) {
		var (
			mu sync.Mutex
			wg sync.WaitGroup
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := op(i)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, ErrValidation):
					rejected++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()
		return ok, rejected
	}

	t.Run("removes stop at the minimum", func(t *testing.T) {
		st := newScriptedStorage()
		svc := NewAvatarService(lagStore{repository.NewMemoryStore()}, newTestUploader(st), 3, 10)
		avatar, err := svc.Create(ctx, "u1", "Studio", photoFiles(t, 4))
		if err != nil {
			t.Fatal(err)
		}

		ok, rejected := run(2, func(i int) error {
			_, err := svc.RemovePhoto(ctx, "u1", avatar.ID, avatar.Photos[i].ID)
			return err
		})
		if ok != 1 || rejected != 1 {
			t.Errorf("ok = %d, rejected = %d, want 1 and 1", ok, rejected)
		}
		got, _ := svc.Get(ctx, "u1", avatar.ID)
		if len(got.Photos) != 3 || st.Len() != 3 {
			t.Errorf("photos = %d, stored objects = %d, want 3 and 3", len(got.Photos), st.Len())
		}
	})

	t.Run("adds stop at the maximum", func(t *testing.T) {
		st := newScriptedStorage()
		svc := NewAvatarService(lagStore{repository.NewMemoryStore()}, newTestUploader(st), 3, 10)
		avatar, err := svc.Create(ctx, "u1", "Studio", photoFiles(t, 9))
		if err != nil {
			t.Fatal(err)
		}

		extra := photoFiles(t, 3)
		ok, rejected := run(3, func(i int) error {
			_, err := svc.AddPhoto(ctx, "u1", avatar.ID, extra[i])
			return err
		})
		if ok != 1 || rejected != 2 {
			t.Errorf("ok = %d, rejected = %d, want 1 and 2", ok, rejected)
		}
		got, _ := svc.Get(ctx, "u1", avatar.ID)
		if len(got.Photos) != 10 || st.Len() != 10 {
			t.Errorf("photos = %d, stored objects = %d, want 10 and 10", len(got.Photos), st.Len())
		}
	})
}
