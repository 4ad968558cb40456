package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")
	// ErrObjectExists is returned when Overwrite is false and the key is taken.
	ErrObjectExists = errors.New("object already exists")
)

// OpError describes a failed storage operation. Transient marks failures
// of the service-unavailable class that are worth retrying.
type OpError struct {
	Op        string
	Key       string
	Transient bool
	Err       error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a storage failure that may succeed on retry.
func IsTransient(err error) bool {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr.Transient
	}
	return false
}

// transientStatus reports whether an HTTP status belongs to the retryable class.
func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// transientNetwork reports connection-level failures. Caller cancellation is never transient.
func transientNetwork(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

var transientCodes = map[string]bool{
	"ServiceUnavailable": true,
	"SlowDown":           true,
	"InternalError":      true,
	"RequestTimeout":     true,
	"Throttling":         true,
}
