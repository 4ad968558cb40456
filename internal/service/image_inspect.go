package service

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// FileUpload is an uploaded file as received from the client.
type FileUpload struct {
	FileName string
	Data     []byte
}

// ImageInfo describes a validated uploaded image.
type ImageInfo struct {
	MimeType string
	Width    int
	Height   int
	Size     int64
}

// InspectImage sniffs the content type and decodes the image header.
// Only png, jpeg, gif and webp are accepted.
func InspectImage(data []byte) (*ImageInfo, error) {
	if len(data) == 0 {
		return nil, invalidInput("Arquivo vazio")
	}
	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return nil, invalidInput("O arquivo enviado não é uma imagem (%s)", detected.String())
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, invalidInput("Formato de imagem não suportado")
	}

	mimeType := "image/" + format
	if format == "jpeg" {
		mimeType = "image/jpeg"
	}
	return &ImageInfo{
		MimeType: mimeType,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Size:     int64(len(data)),
	}, nil
}
