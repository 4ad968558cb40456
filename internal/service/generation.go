package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/thumbcraft/internal/config"
	"github.com/timmy/thumbcraft/internal/logger"
	"golang.org/x/sync/errgroup"
)

// SourceImage is an image sent to the provider alongside the prompt.
// StoragePath, when set, is the object key the image was uploaded under.
type SourceImage struct {
	Label       string
	URL         string
	StoragePath string
}

// GenerationClient calls an OpenAI-compatible chat completions endpoint
// that answers with a generated image.
type GenerationClient struct {
	client   *resty.Client
	fetcher  *ImageFetcher
	model    string
	endpoint string
}

// NewGenerationClient creates a new GenerationClient.
// Parameters:
//   - cfg: provider configuration including model, API key and base URL.
//   - fetcher: used to inline source images before sending.
//
// Returns:
//   - *GenerationClient: initialized provider client.
func NewGenerationClient(cfg *config.ProviderConfig, fetcher *ImageFetcher) *GenerationClient {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}

	return &GenerationClient{
		client:   client,
		fetcher:  fetcher,
		model:    cfg.Model,
		endpoint: baseURL + "/chat/completions",
	}
}

// GetModel returns the model name being used.
func (c *GenerationClient) GetModel() string {
	return c.model
}

// OpenAI-compatible Chat Completion API request structures
type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Modalities []string      `json:"modalities"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []interface{} `json:"content"`
}

type chatTextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatImageContent struct {
	Type     string       `json:"type"`
	ImageURL chatImageURL `json:"image_url"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

// Generate sends one request with the prompt and images and returns the
// extracted image. The call is never retried here.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - prompt: composed instruction text.
//   - images: source images in order; the avatar photo comes first.
//
// Returns:
//   - ImageResult: URL-shaped or base64-shaped image.
//   - error: GenerationFailed on transport or non-2xx, ImageExtractionFailed on an unusable body.
func (c *GenerationClient) Generate(ctx context.Context, prompt string, images []SourceImage) (ImageResult, error) {
	content := []interface{}{chatTextContent{Type: "text", Text: prompt}}
	for _, locator := range c.inlineImages(ctx, images) {
		content = append(content, chatImageContent{Type: "image_url", ImageURL: chatImageURL{URL: locator}})
	}

	req := chatRequest{
		Model:      c.model,
		Messages:   []chatMessage{{Role: "user", Content: content}},
		Modalities: []string{"image", "text"},
	}

	start := time.Now()
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return ImageResult{}, internalError(StageGenerating, ctx.Err())
		}
		return ImageResult{}, &PipelineError{
			Kind: KindGenerationFailed, Stage: StageGenerating, Message: GenerationFailedMessage,
			Err: fmt.Errorf("failed to call provider: %w", err),
		}
	}

	logger.With(logger.Fields{
		logger.FieldSize: len(httpResp.Body()),
		"model":          c.model,
	}).WithStatus(httpResp.StatusCode()).Since(start).Info(ctx, "Provider responded")

	if httpResp.StatusCode() < 200 || httpResp.StatusCode() >= 300 {
		return ImageResult{}, &PipelineError{
			Kind: KindGenerationFailed, Stage: StageGenerating, Message: GenerationFailedMessage,
			Err: fmt.Errorf("provider returned HTTP %d: %s", httpResp.StatusCode(), truncate(string(httpResp.Body()), 512)),
		}
	}

	return ParseImageResponse(httpResp.Body())
}

// inlineImages converts each source image to a data URL concurrently.
// An image that cannot be fetched is sent as its original URL; entries
// without any URL are skipped. Order is preserved.
func (c *GenerationClient) inlineImages(ctx context.Context, images []SourceImage) []string {
	locators := make([]string, len(images))
	var eg errgroup.Group
	eg.SetLimit(4)

	for i, img := range images {
		if strings.TrimSpace(img.URL) == "" && img.StoragePath == "" {
			continue
		}
		eg.Go(func() error {
			if strings.HasPrefix(img.URL, "data:") {
				locators[i] = img.URL
				return nil
			}
			fetched, err := c.fetcher.FetchSource(ctx, img)
			if err != nil {
				logger.With(logger.Fields{"image": img.Label}).Warn(ctx, "Sending image by URL after inline failure: %v", err)
				locators[i] = img.URL
				return nil
			}
			locators[i] = EncodeDataURL(fetched.MimeType, fetched.Data)
			return nil
		})
	}
	_ = eg.Wait()

	out := make([]string, 0, len(locators))
	for _, l := range locators {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
