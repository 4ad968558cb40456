package service

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxTextIdeaLength bounds the trimmed text idea, in characters.
	MaxTextIdeaLength = 50
	// MaxAdditionalPromptLength bounds the trimmed additional prompt, in characters.
	MaxAdditionalPromptLength = 500
)

// GenerationRequest is the inbound request for one thumbnail generation.
type GenerationRequest struct {
	UserID           string   `json:"-"`
	AvatarID         string   `json:"avatarId"`
	AvatarPhotoID    string   `json:"avatarPhotoId,omitempty"`
	AvatarPhotoIndex *int     `json:"avatarPhotoIndex,omitempty"`
	References       []string `json:"references"`
	TextIdea         string   `json:"textIdea"`
	AdditionalPrompt string   `json:"additionalPrompt,omitempty"`
}

// Validate checks field presence and lengths. It performs no I/O.
func (r *GenerationRequest) Validate() error {
	if strings.TrimSpace(r.AvatarID) == "" {
		return validationError(CodeMissingAvatar, "Selecione um avatar")
	}

	idea := strings.TrimSpace(r.TextIdea)
	if idea == "" {
		return validationError(CodeMissingText, "Informe a ideia do texto")
	}
	if utf8.RuneCountInString(idea) > MaxTextIdeaLength {
		return validationError(CodeTextTooLong, "O texto deve ter no máximo 50 caracteres")
	}

	if utf8.RuneCountInString(strings.TrimSpace(r.AdditionalPrompt)) > MaxAdditionalPromptLength {
		return validationError(CodeAdditionalPromptTooLong, "As instruções adicionais devem ter no máximo 500 caracteres")
	}
	return nil
}

// photoSelector returns the selector for the avatar photo.
func (r *GenerationRequest) photoSelector() PhotoSelector {
	return PhotoSelector{PhotoID: strings.TrimSpace(r.AvatarPhotoID), Index: r.AvatarPhotoIndex}
}
