package repository

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/timmy/thumbcraft/internal/config"
	"github.com/timmy/thumbcraft/internal/domain"
)

// backends returns every store implementation the services can be wired to.
func backends(t *testing.T) map[string]*Stores {
	t.Helper()

	sqliteStores, err := Open(&config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "thumbcraft.db"),
		AutoMigrate: true,
		LogLevel:    "silent",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqliteStores.Close() })

	memStores, err := Open(&config.DatabaseConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}

	return map[string]*Stores{"sqlite": sqliteStores, "memory": memStores}
}

func newAvatar(id, userID string, photos int, base time.Time) *domain.Avatar {
	a := &domain.Avatar{ID: id, UserID: userID, Name: "avatar " + id, CreatedAt: base, UpdatedAt: base}
	for i := 0; i < photos; i++ {
		a.Photos = append(a.Photos, domain.AvatarPhoto{
			ID:        fmt.Sprintf("%s-p%d", id, i),
			AvatarID:  id,
			Position:  i,
			ImageURL:  fmt.Sprintf("https://cdn.example.com/%s/%d.png", id, i),
			FileName:  fmt.Sprintf("%d.png", i),
			FileSize:  1024,
			MimeType:  "image/png",
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return a
}

func TestAvatarStore(t *testing.T) {
	for name, stores := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := stores.Avatars
			base := time.Now().Add(-time.Hour).UTC()

			if err := s.CreateAvatar(ctx, newAvatar("a1", "u1", 3, base)); err != nil {
				t.Fatalf("CreateAvatar() error = %v", err)
			}
			if err := s.CreateAvatar(ctx, newAvatar("a2", "u1", 3, base.Add(time.Minute))); err != nil {
				t.Fatalf("CreateAvatar() error = %v", err)
			}
			if err := s.CreateAvatar(ctx, newAvatar("a3", "u2", 3, base)); err != nil {
				t.Fatalf("CreateAvatar() error = %v", err)
			}

			got, err := s.GetAvatarByID(ctx, "a1")
			if err != nil {
				t.Fatalf("GetAvatarByID() error = %v", err)
			}
			if len(got.Photos) != 3 || got.Photos[0].ID != "a1-p0" || got.Photos[2].ID != "a1-p2" {
				t.Fatalf("photos out of order: %+v", got.Photos)
			}

			list, err := s.ListAvatarsByUser(ctx, "u1")
			if err != nil {
				t.Fatalf("ListAvatarsByUser() error = %v", err)
			}
			if len(list) != 2 || list[0].ID != "a2" {
				t.Fatalf("ListAvatarsByUser() = %d avatars, first %q", len(list), list[0].ID)
			}

			if err := s.UpdateAvatarName(ctx, "a1", "renamed"); err != nil {
				t.Fatalf("UpdateAvatarName() error = %v", err)
			}
			extra := &domain.AvatarPhoto{
				ID: "a1-p3", AvatarID: "a1", Position: 3, ImageURL: "https://cdn.example.com/a1/3.png",
				CreatedAt: base.Add(time.Second),
			}
			if err := s.AddAvatarPhoto(ctx, extra, 10); err != nil {
				t.Fatalf("AddAvatarPhoto() error = %v", err)
			}
			if err := s.DeleteAvatarPhoto(ctx, "a1", "a1-p0", 3); err != nil {
				t.Fatalf("DeleteAvatarPhoto() error = %v", err)
			}

			got, _ = s.GetAvatarByID(ctx, "a1")
			if got.Name != "renamed" {
				t.Errorf("Name = %q, want renamed", got.Name)
			}
			ids := []string{}
			for _, p := range got.Photos {
				ids = append(ids, p.ID)
			}
			if fmt.Sprint(ids) != "[a1-p1 a1-p2 a1-p3]" {
				t.Errorf("photos after edit = %v", ids)
			}

			if err := s.DeleteAvatarPhoto(ctx, "a2", "a1-p1", 0); !errors.Is(err, ErrNotFound) {
				t.Errorf("deleting a photo through the wrong avatar: err = %v, want ErrNotFound", err)
			}
			if err := s.AddAvatarPhoto(ctx, &domain.AvatarPhoto{ID: "x", AvatarID: "missing"}, 10); !errors.Is(err, ErrNotFound) {
				t.Errorf("AddAvatarPhoto(missing avatar) err = %v, want ErrNotFound", err)
			}

			if err := s.DeleteAvatar(ctx, "a1"); err != nil {
				t.Fatalf("DeleteAvatar() error = %v", err)
			}
			if _, err := s.GetAvatarByID(ctx, "a1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetAvatarByID(deleted) err = %v, want ErrNotFound", err)
			}
			if err := s.DeleteAvatar(ctx, "a1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("DeleteAvatar(twice) err = %v, want ErrNotFound", err)
			}
			if err := s.UpdateAvatarName(ctx, "a1", "x"); !errors.Is(err, ErrNotFound) {
				t.Errorf("UpdateAvatarName(deleted) err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestReferenceStore(t *testing.T) {
	for name, stores := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := stores.References
			base := time.Now().Add(-time.Hour).UTC()

			refs := []*domain.Reference{
				{ID: "r1", UserID: "u1", Category: domain.ReferenceCategoryLogo, ImageURL: "https://cdn/r1.png", CreatedAt: base, UpdatedAt: base},
				{ID: "r2", UserID: "u1", Category: domain.ReferenceCategoryBackground, ImageURL: "https://cdn/r2.png", CreatedAt: base.Add(time.Minute), UpdatedAt: base},
				{ID: "r3", UserID: "u2", Category: domain.ReferenceCategoryLogo, ImageURL: "https://cdn/r3.png", CreatedAt: base, UpdatedAt: base},
			}
			for _, r := range refs {
				if err := s.CreateReference(ctx, r); err != nil {
					t.Fatalf("CreateReference(%s) error = %v", r.ID, err)
				}
			}

			all, err := s.ListReferencesByUser(ctx, "u1", "")
			if err != nil || len(all) != 2 || all[0].ID != "r2" {
				t.Fatalf("ListReferencesByUser(all) = %v, %v", all, err)
			}
			logos, err := s.ListReferencesByUser(ctx, "u1", domain.ReferenceCategoryLogo)
			if err != nil || len(logos) != 1 || logos[0].ID != "r1" {
				t.Fatalf("ListReferencesByUser(logo) = %v, %v", logos, err)
			}

			upd := *refs[0]
			upd.Category = domain.ReferenceCategoryIcon
			upd.Description = "flat icon"
			upd.UpdatedAt = time.Now().UTC()
			if err := s.UpdateReference(ctx, &upd); err != nil {
				t.Fatalf("UpdateReference() error = %v", err)
			}
			got, err := s.GetReferenceByID(ctx, "r1")
			if err != nil {
				t.Fatalf("GetReferenceByID() error = %v", err)
			}
			if got.Category != domain.ReferenceCategoryIcon || got.Description != "flat icon" || got.UserID != "u1" {
				t.Errorf("updated reference = %+v", got)
			}

			if err := s.DeleteReference(ctx, "r1"); err != nil {
				t.Fatalf("DeleteReference() error = %v", err)
			}
			if _, err := s.GetReferenceByID(ctx, "r1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetReferenceByID(deleted) err = %v, want ErrNotFound", err)
			}
			missing := domain.Reference{ID: "nope", Category: domain.ReferenceCategoryLogo}
			if err := s.UpdateReference(ctx, &missing); !errors.Is(err, ErrNotFound) {
				t.Errorf("UpdateReference(missing) err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestThumbnailStore(t *testing.T) {
	for name, stores := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := stores.Thumbnails
			base := time.Now().Add(-time.Hour).UTC()

			for i := 0; i < 5; i++ {
				th := &domain.Thumbnail{
					ID:        fmt.Sprintf("t%d", i),
					UserID:    "u1",
					AvatarID:  "a1",
					Prompt:    "prompt",
					TextIdea:  "idea",
					ImageURL:  fmt.Sprintf("https://cdn/t%d.png", i),
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
				}
				if i == 0 {
					th.ReferenceIDs = domain.StringArray{"r1", "r2"}
				}
				if err := s.CreateThumbnail(ctx, th); err != nil {
					t.Fatalf("CreateThumbnail() error = %v", err)
				}
			}

			page, total, err := s.ListThumbnailsByUser(ctx, "u1", 2, 1)
			if err != nil {
				t.Fatalf("ListThumbnailsByUser() error = %v", err)
			}
			if total != 5 || len(page) != 2 || page[0].ID != "t3" || page[1].ID != "t2" {
				t.Fatalf("page = %v (total %d)", page, total)
			}

			got, err := s.GetThumbnailByID(ctx, "t0")
			if err != nil {
				t.Fatalf("GetThumbnailByID() error = %v", err)
			}
			if len(got.ReferenceIDs) != 2 || got.ReferenceIDs[1] != "r2" {
				t.Errorf("ReferenceIDs = %v", got.ReferenceIDs)
			}
			got, _ = s.GetThumbnailByID(ctx, "t1")
			if got.ReferenceIDs == nil || len(got.ReferenceIDs) != 0 {
				t.Errorf("ReferenceIDs for no references = %#v, want empty", got.ReferenceIDs)
			}

			empty, total, err := s.ListThumbnailsByUser(ctx, "u2", 10, 0)
			if err != nil || total != 0 || len(empty) != 0 {
				t.Errorf("ListThumbnailsByUser(u2) = %v, %d, %v", empty, total, err)
			}
		})
	}
}

func TestDeletingThumbnailKeepsAssets(t *testing.T) {
	for name, stores := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC()

			if err := stores.Avatars.CreateAvatar(ctx, newAvatar("a1", "u1", 3, base)); err != nil {
				t.Fatal(err)
			}
			ref := &domain.Reference{ID: "r1", UserID: "u1", Category: domain.ReferenceCategoryLogo, ImageURL: "https://cdn/r1.png"}
			if err := stores.References.CreateReference(ctx, ref); err != nil {
				t.Fatal(err)
			}
			th := &domain.Thumbnail{
				ID: "t1", UserID: "u1", AvatarID: "a1", Prompt: "p", TextIdea: "idea",
				ReferenceIDs: domain.StringArray{"r1"}, ImageURL: "https://cdn/t1.png",
			}
			if err := stores.Thumbnails.CreateThumbnail(ctx, th); err != nil {
				t.Fatal(err)
			}

			if err := stores.Thumbnails.DeleteThumbnail(ctx, "t1"); err != nil {
				t.Fatalf("DeleteThumbnail() error = %v", err)
			}
			if err := stores.Thumbnails.DeleteThumbnail(ctx, "t1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("DeleteThumbnail(twice) err = %v, want ErrNotFound", err)
			}
			if a, err := stores.Avatars.GetAvatarByID(ctx, "a1"); err != nil || len(a.Photos) != 3 {
				t.Errorf("avatar after thumbnail delete = %v, %v", a, err)
			}
			if _, err := stores.References.GetReferenceByID(ctx, "r1"); err != nil {
				t.Errorf("reference after thumbnail delete: %v", err)
			}
		})
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(&config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("Open(oracle) should fail")
	}
}

func TestAvatarPhotoBounds(t *testing.T) {
	for name, stores := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := stores.Avatars
			base := time.Now().UTC()
			if err := s.CreateAvatar(ctx, newAvatar("b1", "u1", 3, base)); err != nil {
				t.Fatalf("CreateAvatar() error = %v", err)
			}

			if err := s.DeleteAvatarPhoto(ctx, "b1", "b1-p0", 3); !errors.Is(err, ErrPhotoLimit) {
				t.Errorf("delete at minimum: err = %v, want ErrPhotoLimit", err)
			}
			if err := s.DeleteAvatarPhoto(ctx, "b1", "nope", 3); !errors.Is(err, ErrNotFound) {
				t.Errorf("delete unknown photo: err = %v, want ErrNotFound", err)
			}
			add := func(i int) error {
				return s.AddAvatarPhoto(ctx, &domain.AvatarPhoto{
					ID: fmt.Sprintf("b1-x%d", i), AvatarID: "b1", Position: 3 + i, CreatedAt: base,
				}, 4)
			}
			if err := add(0); err != nil {
				t.Fatalf("add below maximum: err = %v", err)
			}
			if err := add(1); !errors.Is(err, ErrPhotoLimit) {
				t.Errorf("add at maximum: err = %v, want ErrPhotoLimit", err)
			}

			got, err := s.GetAvatarByID(ctx, "b1")
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Photos) != 4 {
				t.Errorf("photos = %d, want 4 (rejected writes must not apply)", len(got.Photos))
			}
		})
	}
}

func TestMemoryStoreConcurrentPhotoEditsKeepBounds(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.CreateAvatar(ctx, newAvatar("c1", "u1", 4, time.Now())); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.DeleteAvatarPhoto(ctx, "c1", fmt.Sprintf("c1-p%d", i), 3)
		}(i)
	}
	wg.Wait()
	if got, _ := s.GetAvatarByID(ctx, "c1"); len(got.Photos) != 3 {
		t.Errorf("after concurrent removes: %d photos, want 3", len(got.Photos))
	}

	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.AddAvatarPhoto(ctx, &domain.AvatarPhoto{ID: fmt.Sprintf("c1-n%d", i), AvatarID: "c1"}, 10)
		}(i)
	}
	wg.Wait()
	if got, _ := s.GetAvatarByID(ctx, "c1"); len(got.Photos) != 10 {
		t.Errorf("after concurrent adds: %d photos, want 10", len(got.Photos))
	}
}
