package logger

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Entry is a one-shot set of metric fields written through the logger
// carried by ctx.
//
//	logger.With(logger.Fields{logger.FieldStage: "uploading"}).Since(start).Info(ctx, "Upload finished")
type Entry struct {
	fields Fields
}

// With starts an Entry with the given fields.
func With(fields Fields) *Entry {
	return (&Entry{}).With(fields)
}

// With returns a copy of e with fields merged in; later keys win.
func (e *Entry) With(fields Fields) *Entry {
	merged := make(Fields, len(e.fields)+len(fields))
	for k, v := range e.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Entry{fields: merged}
}

// WithField returns a copy of e with one more field.
func (e *Entry) WithField(key string, value interface{}) *Entry {
	return e.With(Fields{key: value})
}

// Since records the milliseconds elapsed from start as duration_ms.
func (e *Entry) Since(start time.Time) *Entry {
	return e.WithField(FieldDurationMs, time.Since(start).Milliseconds())
}

// WithStage tags the entry with a pipeline stage.
func (e *Entry) WithStage(stage string) *Entry {
	return e.WithField(FieldStage, stage)
}

// WithAttempt tags the entry with a 1-based retry attempt.
func (e *Entry) WithAttempt(attempt int) *Entry {
	return e.WithField(FieldAttempt, attempt)
}

// WithStatus tags the entry with an outcome or HTTP status.
func (e *Entry) WithStatus(status interface{}) *Entry {
	return e.WithField(FieldStatus, status)
}

func (e *Entry) emit(ctx context.Context, level logrus.Level, format string, args []interface{}) {
	FromContext(ctx).WithFields(e.fields).Logf(level, format, args...)
}

// Debug logs at Debug level.
func (e *Entry) Debug(ctx context.Context, format string, args ...interface{}) {
	e.emit(ctx, logrus.DebugLevel, format, args)
}

// Info logs at Info level.
func (e *Entry) Info(ctx context.Context, format string, args ...interface{}) {
	e.emit(ctx, logrus.InfoLevel, format, args)
}

// Warn logs at Warn level.
func (e *Entry) Warn(ctx context.Context, format string, args ...interface{}) {
	e.emit(ctx, logrus.WarnLevel, format, args)
}

// Error logs at Error level.
func (e *Entry) Error(ctx context.Context, format string, args ...interface{}) {
	e.emit(ctx, logrus.ErrorLevel, format, args)
}
