package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// MemoryStorage keeps objects in process memory. Objects are served back
// through the API under PublicURL.
type MemoryStorage struct {
	mu        sync.RWMutex
	objects   map[string]memoryObject
	publicURL string
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage(publicURL string) *MemoryStorage {
	return &MemoryStorage{
		objects:   make(map[string]memoryObject),
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// EnsureBucket is a no-op.
func (m *MemoryStorage) EnsureBucket(ctx context.Context) error {
	return nil
}

// Upload stores the full contents of reader under key.
func (m *MemoryStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, opts UploadOptions) error {
	if err := ctx.Err(); err != nil {
		return &OpError{Op: "upload", Key: key, Err: err}
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return &OpError{Op: "upload", Key: key, Err: err}
	}
	if size >= 0 && int64(len(data)) != size {
		return &OpError{Op: "upload", Key: key, Err: fmt.Errorf("size mismatch: declared %d, read %d", size, len(data))}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.objects[key]; exists && !opts.Overwrite {
		return &OpError{Op: "upload", Key: key, Err: ErrObjectExists}
	}
	m.objects[key] = memoryObject{data: data, contentType: opts.ContentType}
	return nil
}

// Download returns a reader over a copy of the stored object.
func (m *MemoryStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, &OpError{Op: "download", Key: key, Err: ErrNotFound}
	}
	return io.NopCloser(bytes.NewReader(append([]byte(nil), obj.data...))), nil
}

// ContentType returns the content type recorded at upload.
func (m *MemoryStorage) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key].contentType
}

// GetURL returns the public URL for accessing an object
func (m *MemoryStorage) GetURL(key string) string {
	return fmt.Sprintf("%s/%s", m.publicURL, key)
}

// Delete removes an object. Missing keys are not an error.
func (m *MemoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Exists checks if an object exists
func (m *MemoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

// Len returns the number of stored objects.
func (m *MemoryStorage) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
