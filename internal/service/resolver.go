package service

import (
	"context"
	"errors"
	"strings"

	"github.com/timmy/thumbcraft/internal/domain"
	"github.com/timmy/thumbcraft/internal/logger"
	"github.com/timmy/thumbcraft/internal/repository"
)

// PhotoSelector picks an avatar photo. PhotoID wins over Index; with
// neither set the first photo is used.
type PhotoSelector struct {
	PhotoID string
	Index   *int
}

// ResolvedAvatar is the avatar and the photo chosen for generation.
type ResolvedAvatar struct {
	Avatar *domain.Avatar
	Photo  domain.AvatarPhoto
}

// AssetResolver turns request identifiers into stored assets owned by the caller.
type AssetResolver struct {
	avatars    repository.AvatarStore
	references repository.ReferenceStore
}

// NewAssetResolver creates an AssetResolver.
func NewAssetResolver(avatars repository.AvatarStore, references repository.ReferenceStore) *AssetResolver {
	return &AssetResolver{avatars: avatars, references: references}
}

func avatarNotFound(err error) *PipelineError {
	return &PipelineError{Kind: KindAssetNotFound, Stage: StageResolvingAssets, Message: "Avatar não encontrado", Err: err}
}

// ResolveAvatar loads the avatar and selects one photo.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - userID: caller; avatars of other users are reported as not found.
//   - avatarID: avatar to load.
//   - sel: photo selector.
//
// Returns:
//   - *ResolvedAvatar: avatar and selected photo.
//   - error: AssetNotFound if the avatar or the selected photo does not exist.
func (r *AssetResolver) ResolveAvatar(ctx context.Context, userID, avatarID string, sel PhotoSelector) (*ResolvedAvatar, error) {
	avatar, err := r.avatars.GetAvatarByID(ctx, strings.TrimSpace(avatarID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, avatarNotFound(err)
		}
		return nil, internalError(StageResolvingAssets, err)
	}
	if avatar.UserID != userID {
		return nil, avatarNotFound(nil)
	}
	if len(avatar.Photos) == 0 {
		return nil, &PipelineError{Kind: KindAssetNotFound, Stage: StageResolvingAssets, Message: "O avatar não possui fotos"}
	}
	avatar.SortPhotos()

	var photo *domain.AvatarPhoto
	switch {
	case sel.PhotoID != "":
		p, ok := avatar.PhotoByID(sel.PhotoID)
		if !ok {
			return nil, &PipelineError{Kind: KindAssetNotFound, Stage: StageResolvingAssets, Message: "Foto do avatar não encontrada"}
		}
		photo = p
	case sel.Index != nil:
		idx := *sel.Index
		if idx < 0 || idx >= len(avatar.Photos) {
			return nil, &PipelineError{Kind: KindAssetNotFound, Stage: StageResolvingAssets, Message: "Foto do avatar não encontrada"}
		}
		photo = &avatar.Photos[idx]
	default:
		photo = &avatar.Photos[0]
	}

	return &ResolvedAvatar{Avatar: avatar, Photo: *photo}, nil
}

// ResolveReferences loads the caller's references in request order.
// Unknown, foreign or duplicate ids are dropped without failing the request.
func (r *AssetResolver) ResolveReferences(ctx context.Context, userID string, ids []string) []domain.Reference {
	seen := make(map[string]bool, len(ids))
	out := make([]domain.Reference, 0, len(ids))

	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		ref, err := r.references.GetReferenceByID(ctx, id)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				logger.With(logger.Fields{"reference_id": id}).Warn(ctx, "Dropping reference after lookup error: %v", err)
			}
			continue
		}
		if ref.UserID != userID {
			continue
		}
		out = append(out, *ref)
	}

	if dropped := len(seen) - len(out); dropped > 0 {
		logger.With(logger.Fields{logger.FieldCount: dropped}).Debug(ctx, "Dropped unresolved references")
	}
	return out
}
