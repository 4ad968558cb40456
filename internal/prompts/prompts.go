package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Thumbnail Generation Prompts
// ============================================================================

// ThumbnailBasePrompt frames the generation around the quoted text idea.
const ThumbnailBasePrompt = `Create a high-impact YouTube thumbnail in 16:9 landscape format (1280x720) for a video about "%s".
Use bold, saturated colors, strong contrast and a clear focal point that reads well at small sizes.
If text is rendered, keep it short, large and legible.`

// FacePreservationClause pins the subject to the attached avatar photo.
const FacePreservationClause = `The person in the thumbnail must be the person shown in the attached avatar image. Take the face from that image and preserve their identity, skin tone, hairstyle and facial features exactly; do not beautify, age or alter them. Give them an expressive reaction that matches the topic.`

// ReferenceClause is added only when reference images accompany the request.
const ReferenceClause = `Additional reference images are attached. Incorporate their visual style, logos, icons or backgrounds where they fit the composition, without replacing the person's face.`

// AdditionalInstructionsPrefix introduces the user's free-text instructions.
const AdditionalInstructionsPrefix = "Additional instructions: "

// ComposeThumbnailPrompt builds the instruction sent to the image provider.
// The result depends only on its arguments.
// Parameters:
//   - textIdea: the video idea, embedded verbatim inside quotes.
//   - hasReferences: whether any reference images will be attached.
//   - additionalPrompt: optional free text appended after trimming; blank is ignored.
//
// Returns:
//   - string: the composed prompt.
func ComposeThumbnailPrompt(textIdea string, hasReferences bool, additionalPrompt string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf(ThumbnailBasePrompt, textIdea))
	b.WriteString("\n\n")
	b.WriteString(FacePreservationClause)

	if hasReferences {
		b.WriteString("\n\n")
		b.WriteString(ReferenceClause)
	}

	if extra := strings.TrimSpace(additionalPrompt); extra != "" {
		b.WriteString("\n\n")
		b.WriteString(AdditionalInstructionsPrefix)
		b.WriteString(extra)
	}

	return b.String()
}
