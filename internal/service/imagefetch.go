package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/timmy/thumbcraft/internal/logger"
	"github.com/timmy/thumbcraft/internal/storage"
	"golang.org/x/sync/singleflight"
)

// FetchedImage is an image held in memory with its content type.
type FetchedImage struct {
	Data     []byte
	MimeType string
}

// ImageFetcher acquires image bytes from object storage, http(s) URLs or
// data URLs, rejecting anything larger than maxBytes.
type ImageFetcher struct {
	client   *resty.Client
	cache    *cache.Cache
	group    singleflight.Group
	store    storage.ObjectStorage
	maxBytes int64
}

// NewImageFetcher creates an ImageFetcher.
// Parameters:
//   - timeout: per-request HTTP timeout.
//   - cacheTTL: lifetime of cached source images; zero disables caching.
//   - maxBytes: size ceiling for a decoded image.
//
// Returns:
//   - *ImageFetcher: ready to use fetcher.
func NewImageFetcher(timeout, cacheTTL time.Duration, maxBytes int64) *ImageFetcher {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "image/*")

	var c *cache.Cache
	if cacheTTL > 0 {
		c = cache.New(cacheTTL, 2*cacheTTL)
	}

	return &ImageFetcher{client: client, cache: c, maxBytes: maxBytes}
}

// WithStorage lets FetchSource read stored images by key instead of by
// their public URL, which may be relative or private.
func (f *ImageFetcher) WithStorage(objectStorage storage.ObjectStorage) *ImageFetcher {
	f.store = objectStorage
	return f
}

func (f *ImageFetcher) tooLarge(size int64) *PipelineError {
	return &PipelineError{
		Kind:    KindFileTooLarge,
		Message: fmt.Sprintf("A imagem excede o limite de %d MB", f.maxBytes/(1024*1024)),
		Err:     fmt.Errorf("image is %d bytes, limit %d", size, f.maxBytes),
	}
}

// Fetch returns the bytes behind locator without caching.
func (f *ImageFetcher) Fetch(ctx context.Context, locator string) (*FetchedImage, error) {
	switch {
	case strings.HasPrefix(locator, "data:"):
		data, mimeType, err := ParseDataURL(locator)
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > f.maxBytes {
			return nil, f.tooLarge(int64(len(data)))
		}
		return &FetchedImage{Data: data, MimeType: resolveMimeType(mimeType, data)}, nil
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return f.download(ctx, locator)
	default:
		return nil, fmt.Errorf("unsupported image locator %q", truncate(locator, 32))
	}
}

// FetchSource loads a stored source image. With a storage backend and a
// StoragePath the object is read directly; otherwise, or when that read
// fails, img.URL goes through Fetch. Results are cached and concurrent
// requests for the same image share one load.
func (f *ImageFetcher) FetchSource(ctx context.Context, img SourceImage) (*FetchedImage, error) {
	key := "url:" + img.URL
	if f.store != nil && img.StoragePath != "" {
		key = "object:" + img.StoragePath
	}
	if f.cache != nil {
		if v, ok := f.cache.Get(key); ok {
			return v.(*FetchedImage), nil
		}
	}

	v, err, _ := f.group.Do(key, func() (interface{}, error) {
		fetched, err := f.loadSource(ctx, img)
		if err != nil {
			return nil, err
		}
		if f.cache != nil {
			f.cache.SetDefault(key, fetched)
		}
		return fetched, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*FetchedImage), nil
}

func (f *ImageFetcher) loadSource(ctx context.Context, img SourceImage) (*FetchedImage, error) {
	if f.store == nil || img.StoragePath == "" {
		return f.Fetch(ctx, img.URL)
	}
	fetched, err := f.readObject(ctx, img.StoragePath)
	if err == nil {
		return fetched, nil
	}
	if img.URL == "" {
		return nil, err
	}
	logger.With(logger.Fields{"storage_path": img.StoragePath}).Warn(ctx, "Stored image unreadable, fetching by URL: %v", err)
	return f.Fetch(ctx, img.URL)
}

func (f *ImageFetcher) readObject(ctx context.Context, key string) (*FetchedImage, error) {
	body, err := f.store.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored image: %w", err)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read stored image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, f.tooLarge(int64(len(data)))
	}
	return &FetchedImage{Data: data, MimeType: resolveMimeType("", data)}, nil
}

func (f *ImageFetcher) download(ctx context.Context, url string) (*FetchedImage, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("failed to fetch image: HTTP %d", resp.StatusCode())
	}

	data, err := io.ReadAll(io.LimitReader(body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, f.tooLarge(int64(len(data)))
	}

	declared, _, _ := mime.ParseMediaType(resp.Header().Get("Content-Type"))
	return &FetchedImage{Data: data, MimeType: resolveMimeType(declared, data)}, nil
}

// resolveMimeType keeps a declared image type and otherwise sniffs the bytes.
func resolveMimeType(declared string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	detected, _, _ := mime.ParseMediaType(mimetype.Detect(data).String())
	return detected
}

var errMalformedDataURL = errors.New("malformed data URL")

// ParseDataURL decodes a base64 data URL into bytes and its declared media type.
func ParseDataURL(s string) ([]byte, string, error) {
	if !strings.HasPrefix(s, "data:") {
		return nil, "", errMalformedDataURL
	}
	header, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return nil, "", errMalformedDataURL
	}
	params := strings.Split(header, ";")
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		return nil, "", fmt.Errorf("%w: only base64 payloads are supported", errMalformedDataURL)
	}

	data, err := decodeBase64(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errMalformedDataURL, err)
	}
	return data, strings.ToLower(strings.TrimSpace(params[0])), nil
}

// EncodeDataURL renders bytes as a base64 data URL.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func decodeBase64(payload string) ([]byte, error) {
	payload = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, payload)
	// Providers differ on alphabet and padding.
	enc := base64.StdEncoding
	if strings.ContainsAny(payload, "-_") {
		enc = base64.URLEncoding
	}
	if strings.HasSuffix(payload, "=") || len(payload)%4 == 0 {
		if data, err := enc.DecodeString(payload); err == nil {
			return data, nil
		}
	}
	return enc.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(payload, "="))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
