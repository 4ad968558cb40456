package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/timmy/thumbcraft/internal/domain"
	"github.com/timmy/thumbcraft/internal/logger"
	"github.com/timmy/thumbcraft/internal/prompts"
	"github.com/timmy/thumbcraft/internal/repository"
)

// Stage is a step of the generation pipeline.
type Stage string

const (
	StageValidating      Stage = "validating"
	StageResolvingAssets Stage = "resolving_assets"
	StageComposing       Stage = "composing"
	StageGenerating      Stage = "generating"
	StageUploading       Stage = "uploading"
	StageRecording       Stage = "recording"
	StageDone            Stage = "done"
)

type assetResolver interface {
	ResolveAvatar(ctx context.Context, userID, avatarID string, sel PhotoSelector) (*ResolvedAvatar, error)
	ResolveReferences(ctx context.Context, userID string, ids []string) []domain.Reference
}

type imageGenerator interface {
	Generate(ctx context.Context, prompt string, images []SourceImage) (ImageResult, error)
}

type imageUploader interface {
	UploadGenerated(ctx context.Context, userID, locator string) (*UploadResult, error)
	Delete(ctx context.Context, storagePath string) error
}

type historyRecorder interface {
	Record(ctx context.Context, entry HistoryEntry) (*domain.Thumbnail, error)
}

// GenerationResult is the outcome of a successful run. HistoryRecorded and
// UsedProviderURL expose degraded successes.
type GenerationResult struct {
	ThumbnailURL    string
	StoragePath     string
	Prompt          string
	Thumbnail       *domain.Thumbnail
	HistoryRecorded bool
	UsedProviderURL bool
}

// ThumbnailService runs the generation pipeline and serves generation history.
type ThumbnailService struct {
	resolver   assetResolver
	generator  imageGenerator
	uploader   imageUploader
	history    historyRecorder
	thumbnails repository.ThumbnailStore
	timeout    time.Duration
}

// ThumbnailServiceConfig holds the collaborators of ThumbnailService.
type ThumbnailServiceConfig struct {
	Resolver   assetResolver
	Generator  imageGenerator
	Uploader   imageUploader
	History    historyRecorder
	Thumbnails repository.ThumbnailStore
	// Timeout bounds one Generate call; zero means no extra bound.
	Timeout time.Duration
}

// NewThumbnailService creates a ThumbnailService.
func NewThumbnailService(cfg ThumbnailServiceConfig) *ThumbnailService {
	return &ThumbnailService{
		resolver:   cfg.Resolver,
		generator:  cfg.Generator,
		uploader:   cfg.Uploader,
		history:    cfg.History,
		thumbnails: cfg.Thumbnails,
		timeout:    cfg.Timeout,
	}
}

func enter(ctx context.Context, stage Stage) context.Context {
	ctx = logger.WithField(ctx, logger.FieldStage, string(stage))
	logger.CtxDebug(ctx, "Entering stage")
	return ctx
}

// Generate runs Validating, ResolvingAssets, Composing, Generating,
// Uploading and Recording in order.
//
// An upload failure falls back to the provider's own URL when it has one.
// A history failure after the image is stored is logged and reported via
// HistoryRecorded=false, never as an error.
//
// Parameters:
//   - ctx: request context; the configured timeout is applied on top.
//   - req: generation request.
//
// Returns:
//   - *GenerationResult: final URL and provenance.
//   - error: *PipelineError describing the terminal failure.
func (s *ThumbnailService) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	started := time.Now()
	ctx = logger.WithFields(ctx, logger.Fields{
		logger.FieldUserID:   req.UserID,
		logger.FieldAvatarID: req.AvatarID,
	})

	stageCtx := enter(ctx, StageValidating)
	if err := req.Validate(); err != nil {
		logger.With(logger.Fields{"code": errorCode(err)}).Info(stageCtx, "Generation request rejected")
		return nil, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	stageCtx = enter(ctx, StageResolvingAssets)
	resolved, err := s.resolver.ResolveAvatar(stageCtx, req.UserID, req.AvatarID, req.photoSelector())
	if err != nil {
		return nil, s.fail(stageCtx, StageResolvingAssets, err)
	}
	refs := s.resolver.ResolveReferences(stageCtx, req.UserID, req.References)

	enter(ctx, StageComposing)
	textIdea := strings.TrimSpace(req.TextIdea)
	prompt := prompts.ComposeThumbnailPrompt(textIdea, len(refs) > 0, req.AdditionalPrompt)

	stageCtx = enter(ctx, StageGenerating)
	images := make([]SourceImage, 0, len(refs)+1)
	images = append(images, SourceImage{
		Label:       "avatar",
		URL:         resolved.Photo.ImageURL,
		StoragePath: resolved.Photo.StoragePath,
	})
	refIDs := make([]string, 0, len(refs))
	for _, ref := range refs {
		images = append(images, SourceImage{
			Label:       "reference:" + string(ref.Category),
			URL:         ref.ImageURL,
			StoragePath: ref.StoragePath,
		})
		refIDs = append(refIDs, ref.ID)
	}
	image, err := s.generator.Generate(stageCtx, prompt, images)
	if err != nil {
		return nil, s.fail(stageCtx, StageGenerating, err)
	}

	result := &GenerationResult{Prompt: prompt}

	stageCtx = enter(ctx, StageUploading)
	uploaded, err := s.uploader.UploadGenerated(stageCtx, req.UserID, image.Locator)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.fail(stageCtx, StageUploading, err)
		}
		providerURL, ok := image.ProviderURL()
		if !ok {
			return nil, s.fail(stageCtx, StageUploading, err)
		}
		logger.With(nil).WithStatus("provider_url_fallback").
			Warn(stageCtx, "Upload failed, returning provider URL: %v", err)
		result.ThumbnailURL = providerURL
		result.UsedProviderURL = true
	} else {
		result.ThumbnailURL = uploaded.URL
		result.StoragePath = uploaded.StoragePath
	}

	stageCtx = enter(ctx, StageRecording)
	thumb, err := s.history.Record(stageCtx, HistoryEntry{
		UserID:           req.UserID,
		AvatarID:         resolved.Avatar.ID,
		AvatarName:       resolved.Avatar.Name,
		Prompt:           prompt,
		TextIdea:         textIdea,
		ImageURL:         result.ThumbnailURL,
		StoragePath:      result.StoragePath,
		ReferenceIDs:     refIDs,
		AdditionalPrompt: req.AdditionalPrompt,
	})
	if err != nil {
		logger.With(nil).WithStatus("history_not_recorded").
			Warn(stageCtx, "History record failed, image kept: %v", err)
	} else {
		result.Thumbnail = thumb
		result.HistoryRecorded = true
	}

	logger.With(logger.Fields{
		logger.FieldCount:  len(refs),
		"history_recorded": result.HistoryRecorded,
		"provider_url":     result.UsedProviderURL,
	}).WithStage(string(StageDone)).Since(started).Info(ctx, "Thumbnail generated")

	return result, nil
}

// fail tags err with the stage it happened in and logs it. Timeouts
// become internal errors.
func (s *ThumbnailService) fail(ctx context.Context, stage Stage, err error) error {
	var pe *PipelineError
	if !errors.As(err, &pe) || (errors.Is(err, context.DeadlineExceeded) && pe.Kind != KindInternal) {
		pe = internalError(stage, err)
	} else if pe.Stage == "" {
		cp := *pe
		cp.Stage = stage
		pe = &cp
	}
	logger.With(logger.Fields{"kind": string(pe.Kind)}).Error(ctx, "Generation failed: %v", pe)
	return pe
}

func errorCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// ListHistory returns one page of the caller's history, newest first.
func (s *ThumbnailService) ListHistory(ctx context.Context, userID string, limit, offset int) ([]domain.Thumbnail, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	thumbs, total, err := s.thumbnails.ListThumbnailsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, 0, internalError("", err)
	}
	return thumbs, total, nil
}

// GetHistory returns one of the caller's records.
func (s *ThumbnailService) GetHistory(ctx context.Context, userID, id string) (*domain.Thumbnail, error) {
	thumb, err := s.thumbnails.GetThumbnailByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "Miniatura não encontrada")
	}
	if thumb.UserID != userID {
		return nil, notFoundError("Miniatura não encontrada", nil)
	}
	return thumb, nil
}

// DeleteHistory removes one record and, best effort, its stored image.
// Avatars and references it points to are never touched.
func (s *ThumbnailService) DeleteHistory(ctx context.Context, userID, id string) error {
	thumb, err := s.GetHistory(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.thumbnails.DeleteThumbnail(ctx, thumb.ID); err != nil {
		return storeError(err, "Miniatura não encontrada")
	}
	if thumb.StoragePath != "" {
		if err := s.uploader.Delete(ctx, thumb.StoragePath); err != nil {
			logger.With(logger.Fields{logger.FieldThumbnailID: thumb.ID}).
				Warn(ctx, "Failed to delete thumbnail object: %v", err)
		}
	}
	return nil
}
