package logger

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Context fields, attached once and carried on every line below them.
const (
	FieldRequestID   = "request_id"
	FieldComponent   = "component"
	FieldUserID      = "user_id"
	FieldAvatarID    = "avatar_id"
	FieldThumbnailID = "thumbnail_id"
	// FieldStage is the generation pipeline stage (validating, uploading, ...).
	FieldStage = "stage"
)

// Metric fields, set per line through Entry.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	// FieldSize is a byte count.
	FieldSize   = "size"
	FieldStatus = "status"
	// FieldAttempt is 1-based.
	FieldAttempt = "attempt"
)
