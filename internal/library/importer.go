package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/timmy/thumbcraft/internal/domain"
	"github.com/timmy/thumbcraft/internal/logger"
	"github.com/timmy/thumbcraft/internal/service"
)

type avatarCreator interface {
	Create(ctx context.Context, userID, name string, files []service.FileUpload) (*domain.Avatar, error)
}

type referenceCreator interface {
	Create(ctx context.Context, userID, category, description string, file service.FileUpload) (*domain.Reference, error)
}

// Stats summarizes one import run.
type Stats struct {
	TotalItems    int `json:"total_items"`
	AvatarsAdded  int `json:"avatars_added"`
	ReferencesAdd int `json:"references_added"`
	FailedItems   int `json:"failed_items"`
}

// Importer loads an import directory into a user's library.
type Importer struct {
	avatars    avatarCreator
	references referenceCreator
}

// NewImporter creates an Importer.
func NewImporter(avatars avatarCreator, references referenceCreator) *Importer {
	return &Importer{avatars: avatars, references: references}
}

// Import creates one avatar or reference per manifest item for userID.
// Failing items are logged and counted; the run continues.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - dir: import directory.
//   - userID: owner of the created assets.
//
// Returns:
//   - *Stats: counts for the run.
//   - error: non-nil if the manifest is unreadable or ctx is cancelled.
func (im *Importer) Import(ctx context.Context, dir, userID string) (*Stats, error) {
	items, problems, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	stats := &Stats{TotalItems: len(items) + len(problems), FailedItems: len(problems)}
	for line, perr := range problems {
		logger.With(logger.Fields{"line": line}).Warn(ctx, "Skipping manifest line: %v", perr)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		files, err := readFiles(dir, item.Files)
		if err != nil {
			stats.FailedItems++
			logger.With(logger.Fields{"line": item.Line}).Warn(ctx, "Skipping manifest item: %v", err)
			continue
		}

		switch item.Kind {
		case KindAvatar:
			avatar, err := im.avatars.Create(ctx, userID, item.Name, files)
			if err != nil {
				stats.FailedItems++
				logger.With(logger.Fields{"line": item.Line}).Warn(ctx, "Avatar import failed: %v", err)
				continue
			}
			stats.AvatarsAdded++
			logger.With(logger.Fields{logger.FieldAvatarID: avatar.ID}).Info(ctx, "Avatar imported: %s", avatar.Name)
		case KindReference:
			ref, err := im.references.Create(ctx, userID, item.Category, item.Description, files[0])
			if err != nil {
				stats.FailedItems++
				logger.With(logger.Fields{"line": item.Line}).Warn(ctx, "Reference import failed: %v", err)
				continue
			}
			stats.ReferencesAdd++
			logger.With(logger.Fields{"reference_id": ref.ID}).Info(ctx, "Reference imported")
		}
	}

	return stats, nil
}

func readFiles(dir string, names []string) ([]service.FileUpload, error) {
	files := make([]service.FileUpload, 0, len(names))
	for _, name := range names {
		p, err := imagePath(dir, name)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		files = append(files, service.FileUpload{FileName: filepath.Base(name), Data: data})
	}
	return files, nil
}
