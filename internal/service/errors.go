package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/thumbcraft/internal/repository"
)

// ErrorKind classifies pipeline and library failures.
type ErrorKind string

const (
	KindValidation            ErrorKind = "validation"
	KindAssetNotFound         ErrorKind = "asset_not_found"
	KindGenerationFailed      ErrorKind = "generation_failed"
	KindImageExtractionFailed ErrorKind = "image_extraction_failed"
	KindFileTooLarge          ErrorKind = "file_too_large"
	KindUploadFailed          ErrorKind = "upload_failed"
	KindPersistenceFailed     ErrorKind = "persistence_failed"
	KindInternal              ErrorKind = "internal"
)

// Validation codes.
const (
	CodeMissingAvatar           = "MissingAvatar"
	CodeMissingText             = "MissingText"
	CodeTextTooLong             = "TextTooLong"
	CodeAdditionalPromptTooLong = "AdditionalPromptTooLong"
	CodeInvalidInput            = "InvalidInput"
)

// GenerationFailedMessage is shown for both provider transport failures and
// unrecognized provider payloads.
const GenerationFailedMessage = "Falha na geração, tente novamente"

const (
	msgUploadFailed = "Falha ao salvar a imagem, tente novamente"
	msgInternal     = "Erro interno, tente novamente"
	msgTimeout      = "Tempo limite excedido, tente novamente"
	msgPersistence  = "Falha ao salvar os dados, tente novamente"
)

// PipelineError carries the failure kind, the stage it happened in and a
// message safe to show to the end user.
type PipelineError struct {
	Kind    ErrorKind
	Code    string
	Stage   Stage
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	label := string(e.Kind)
	if e.Code != "" {
		label += "/" + e.Code
	}
	if e.Stage != "" {
		label = string(e.Stage) + ": " + label
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", label, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", label, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is matches on Kind, and on Code when the target sets one.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == "" || t.Code == e.Code)
}

// Sentinels for errors.Is.
var (
	ErrValidation            = &PipelineError{Kind: KindValidation}
	ErrMissingAvatar         = &PipelineError{Kind: KindValidation, Code: CodeMissingAvatar}
	ErrMissingText           = &PipelineError{Kind: KindValidation, Code: CodeMissingText}
	ErrTextTooLong           = &PipelineError{Kind: KindValidation, Code: CodeTextTooLong}
	ErrAdditionalTooLong     = &PipelineError{Kind: KindValidation, Code: CodeAdditionalPromptTooLong}
	ErrAssetNotFound         = &PipelineError{Kind: KindAssetNotFound}
	ErrGenerationFailed      = &PipelineError{Kind: KindGenerationFailed}
	ErrImageExtractionFailed = &PipelineError{Kind: KindImageExtractionFailed}
	ErrFileTooLarge          = &PipelineError{Kind: KindFileTooLarge}
	ErrUploadFailed          = &PipelineError{Kind: KindUploadFailed}
	ErrPersistenceFailed     = &PipelineError{Kind: KindPersistenceFailed}
	ErrInternal              = &PipelineError{Kind: KindInternal}
)

func validationError(code, message string) *PipelineError {
	return &PipelineError{Kind: KindValidation, Code: code, Stage: StageValidating, Message: message}
}

func invalidInput(format string, args ...interface{}) *PipelineError {
	return &PipelineError{Kind: KindValidation, Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(message string, err error) *PipelineError {
	return &PipelineError{Kind: KindAssetNotFound, Message: message, Err: err}
}

func internalError(stage Stage, err error) *PipelineError {
	msg := msgInternal
	if errors.Is(err, context.DeadlineExceeded) {
		msg = msgTimeout
	}
	return &PipelineError{Kind: KindInternal, Stage: stage, Message: msg, Err: err}
}

// storeError maps repository failures: missing rows become not found, the rest internal.
func storeError(err error, notFoundMsg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundError(notFoundMsg, err)
	}
	return internalError("", err)
}

// KindOf returns the kind carried by err, or KindInternal.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindInternal
}

// UserMessage returns the end-user text for err. Generation and extraction
// failures share one message.
func UserMessage(err error) string {
	var pe *PipelineError
	if !errors.As(err, &pe) {
		return msgInternal
	}
	switch pe.Kind {
	case KindGenerationFailed, KindImageExtractionFailed:
		return GenerationFailedMessage
	case KindUploadFailed:
		return msgUploadFailed
	case KindPersistenceFailed:
		return msgPersistence
	}
	if pe.Message != "" {
		return pe.Message
	}
	return msgInternal
}
