package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/thumbcraft/internal/domain"
	"github.com/timmy/thumbcraft/internal/repository"
)

// HistoryEntry is the provenance of one completed generation.
type HistoryEntry struct {
	UserID           string
	AvatarID         string
	AvatarName       string
	Prompt           string
	TextIdea         string
	ImageURL         string
	StoragePath      string
	ReferenceIDs     []string
	AdditionalPrompt string
}

// HistoryRecorder writes thumbnail history records.
type HistoryRecorder struct {
	store repository.ThumbnailStore
	now   func() time.Time
}

// NewHistoryRecorder creates a HistoryRecorder.
func NewHistoryRecorder(store repository.ThumbnailStore) *HistoryRecorder {
	return &HistoryRecorder{store: store, now: time.Now}
}

// Record creates exactly one record with a fresh id and server timestamp.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - entry: provenance to persist.
//
// Returns:
//   - *domain.Thumbnail: the stored record.
//   - error: PersistenceFailed if the write does not succeed.
func (h *HistoryRecorder) Record(ctx context.Context, entry HistoryEntry) (*domain.Thumbnail, error) {
	refs := domain.StringArray{}
	refs = append(refs, entry.ReferenceIDs...)

	thumb := &domain.Thumbnail{
		ID:               uuid.NewString(),
		UserID:           entry.UserID,
		AvatarID:         entry.AvatarID,
		AvatarName:       entry.AvatarName,
		Prompt:           entry.Prompt,
		TextIdea:         entry.TextIdea,
		ReferenceIDs:     refs,
		AdditionalPrompt: strings.TrimSpace(entry.AdditionalPrompt),
		ImageURL:         entry.ImageURL,
		StoragePath:      entry.StoragePath,
		CreatedAt:        h.now().UTC(),
	}

	if err := h.store.CreateThumbnail(ctx, thumb); err != nil {
		return nil, &PipelineError{Kind: KindPersistenceFailed, Stage: StageRecording, Message: msgPersistence, Err: err}
	}
	return thumb, nil
}
