package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ImageResultKind tags the shape an image arrived in.
type ImageResultKind int

const (
	ResultUnrecognized ImageResultKind = iota
	// ResultURL is an entry tagged as an image URL; the locator is returned unchanged.
	ResultURL
	// ResultBase64 is raw base64 image data, normalized to a data URL.
	ResultBase64
)

func (k ImageResultKind) String() string {
	switch k {
	case ResultURL:
		return "url"
	case ResultBase64:
		return "base64"
	default:
		return "unrecognized"
	}
}

// ImageResult is the image extracted from a provider response.
type ImageResult struct {
	Kind    ImageResultKind
	Locator string
}

// ProviderURL returns the locator when it is a remote http(s) URL the
// provider hosts, which can stand in for a stored copy.
func (r ImageResult) ProviderURL() (string, bool) {
	if r.Kind != ResultURL {
		return "", false
	}
	if strings.HasPrefix(r.Locator, "https://") || strings.HasPrefix(r.Locator, "http://") {
		return r.Locator, true
	}
	return "", false
}

// chatCompletionResponse is the subset of the OpenAI-compatible response
// that can carry images.
type chatCompletionResponse struct {
	Choices []struct {
		Message chatResponseMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string      `json:"message"`
		Code    interface{} `json:"code,omitempty"`
	} `json:"error,omitempty"`
}

type chatResponseMessage struct {
	Content json.RawMessage `json:"content"`
	Images  []contentPart   `json:"images"`
}

// contentPart covers the image-bearing part shapes seen across providers.
type contentPart struct {
	Type       string          `json:"type"`
	ImageURL   json.RawMessage `json:"image_url,omitempty"`
	Data       string          `json:"data,omitempty"`
	B64JSON    string          `json:"b64_json,omitempty"`
	ImageData  string          `json:"image_data,omitempty"`
	MimeType   string          `json:"mime_type,omitempty"`
	InlineData *struct {
		MimeType string `json:"mime_type"`
		Data     string `json:"data"`
	} `json:"inline_data,omitempty"`
}

// url reads image_url as either {"url": "..."} or a bare string.
func (p contentPart) url() string {
	raw := bytes.TrimSpace(p.ImageURL)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.URL != "" {
		return strings.TrimSpace(obj.URL)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}

func (p contentPart) base64Payload() string {
	for _, candidate := range []string{p.Data, p.B64JSON, p.ImageData} {
		if strings.TrimSpace(candidate) != "" {
			return strings.TrimSpace(candidate)
		}
	}
	if p.InlineData != nil {
		return strings.TrimSpace(p.InlineData.Data)
	}
	return ""
}

// classifyImagePart maps one part to a result. Adding a provider shape
// means adding a case here.
func classifyImagePart(p contentPart) ImageResult {
	switch strings.ToLower(p.Type) {
	case "image_url":
		if u := p.url(); u != "" {
			return ImageResult{Kind: ResultURL, Locator: u}
		}
	case "image", "image_data", "image_base64", "inline_data", "output_image":
		if data := p.base64Payload(); data != "" {
			return ImageResult{Kind: ResultBase64, Locator: normalizeBase64Image(data)}
		}
		if u := p.url(); u != "" {
			return ImageResult{Kind: ResultURL, Locator: u}
		}
	}
	return ImageResult{Kind: ResultUnrecognized}
}

var (
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// normalizeBase64Image returns payload as a data URL. Unprefixed payloads
// are sniffed for PNG or JPEG and default to PNG.
func normalizeBase64Image(payload string) string {
	if strings.HasPrefix(payload, "data:") {
		return payload
	}
	return "data:" + sniffBase64Mime(payload) + ";base64," + payload
}

func sniffBase64Mime(payload string) string {
	// 12 base64 chars decode to 9 bytes, enough for both signatures
	head := payload
	if len(head) > 12 {
		head = head[:12]
	}
	decoded, _ := decodeBase64(head)
	switch {
	case bytes.HasPrefix(decoded, pngMagic):
		return "image/png"
	case bytes.HasPrefix(decoded, jpegMagic):
		return "image/jpeg"
	default:
		return "image/png"
	}
}

var (
	errNoChoices = errors.New("response has no choices")
	errNoImage   = errors.New("response has no recognizable image")
)

func extractionFailed(err error) *PipelineError {
	return &PipelineError{Kind: KindImageExtractionFailed, Stage: StageGenerating, Message: GenerationFailedMessage, Err: err}
}

// ParseImageResponse extracts the first image from a successful provider
// response body. Images listed in message.images win over content parts.
// Any body it cannot understand fails with ImageExtractionFailed.
func ParseImageResponse(body []byte) (ImageResult, error) {
	var resp chatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ImageResult{}, extractionFailed(err)
	}
	if len(resp.Choices) == 0 {
		if resp.Error != nil {
			return ImageResult{}, &PipelineError{
				Kind: KindGenerationFailed, Stage: StageGenerating, Message: GenerationFailedMessage,
				Err: errors.New(resp.Error.Message),
			}
		}
		return ImageResult{}, extractionFailed(errNoChoices)
	}

	for _, choice := range resp.Choices {
		for _, part := range choice.Message.Images {
			if res := classifyImagePart(part); res.Kind != ResultUnrecognized {
				return res, nil
			}
		}
		var parts []contentPart
		if err := json.Unmarshal(choice.Message.Content, &parts); err == nil {
			for _, part := range parts {
				if res := classifyImagePart(part); res.Kind != ResultUnrecognized {
					return res, nil
				}
			}
		}
	}
	return ImageResult{}, extractionFailed(errNoImage)
}
