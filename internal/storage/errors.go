package storage

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotFound is returned when a requested object doesn't exist.
	ErrNotFound = errors.New("object not found")

	// ErrKeyExists is returned when attempting to create an object at a key
	// that already exists (when overwrite is disabled).
	ErrKeyExists = errors.New("object already exists at this key")

	// ErrInvalidKey is returned for empty keys and path traversal attempts.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrTooLarge is returned when an object exceeds the maximum allowed size.
	ErrTooLarge = errors.New("object exceeds maximum size")

	// ErrAccessDenied is returned when the backend rejects our credentials
	// or the object's ACL.
	ErrAccessDenied = errors.New("access denied")
)

// StorageError wraps storage operation errors with the operation and key.
type StorageError struct {
	Op  string // "Put", "Get", "Delete", "URL", "Exists"
	Key string
	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is() and errors.As().
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error indicates an object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTooLarge returns true if the error indicates an object was too large.
func IsTooLarge(err error) bool {
	return errors.Is(err, ErrTooLarge)
}

// countingReader counts bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// limitBody wraps data so reading more than max bytes fails with ErrTooLarge.
// max <= 0 disables the limit.
func limitBody(data io.Reader, max int64) *countingReader {
	if max <= 0 {
		return &countingReader{r: data}
	}
	return &countingReader{r: &maxReader{r: data, remaining: max}}
}

type maxReader struct {
	r         io.Reader
	remaining int64
}

func (m *maxReader) Read(p []byte) (int, error) {
	if m.remaining < 0 {
		return 0, ErrTooLarge
	}
	if int64(len(p)) > m.remaining+1 {
		p = p[:m.remaining+1]
	}
	n, err := m.r.Read(p)
	m.remaining -= int64(n)
	if m.remaining < 0 {
		return n, ErrTooLarge
	}
	return n, err
}
