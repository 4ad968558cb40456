package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/timmy/thumbcraft/internal/logger"
	"github.com/timmy/thumbcraft/internal/service"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind service.ErrorKind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindAssetNotFound:
		return http.StatusNotFound
	case service.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case service.KindGenerationFailed, service.KindImageExtractionFailed:
		return http.StatusBadGateway
	case service.KindUploadFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {success:false, error} with the status of err's kind.
// The internal cause is logged, never returned.
func respondError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	status := statusFor(kind)

	body := gin.H{
		"success": false,
		"error":   service.UserMessage(err),
	}
	var pe *service.PipelineError
	if errors.As(err, &pe) && pe.Code != "" {
		body["code"] = pe.Code
	}

	if status >= http.StatusInternalServerError {
		logger.With(logger.Fields{"kind": string(kind)}).Error(c.Request.Context(), "Request failed: %v", err)
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   message,
	})
}

// queryInt reads a non-negative integer query parameter.
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// readFile loads one multipart file, reading at most limit+1 bytes so the
// size ceiling is enforced downstream.
func readFile(fh *multipart.FileHeader, limit int64) (service.FileUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return service.FileUpload{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return service.FileUpload{}, err
	}
	return service.FileUpload{FileName: fh.Filename, Data: data}, nil
}

// formFiles loads every file under field.
func formFiles(c *gin.Context, field string, limit int64) ([]service.FileUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	headers := form.File[field]
	files := make([]service.FileUpload, 0, len(headers))
	for _, fh := range headers {
		f, err := readFile(fh, limit)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
