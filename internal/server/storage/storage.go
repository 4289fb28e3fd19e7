// Package storage holds image bytes in an S3-compatible object store and
// turns stored keys into retrievable URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// ObjectStore is the contract the image service relies on.
type ObjectStore interface {
	// Put stores body under key.
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// URL returns a URL a client can GET the object from.
	URL(ctx context.Context, key string) (string, error)
}

// NewStorageKey returns a unique date-partitioned key such as
// images/2025/03/09/<uuid>.png. ext includes the leading dot.
func NewStorageKey(now time.Time, ext string) string {
	return fmt.Sprintf("images/%04d/%02d/%02d/%v%s", now.Year(), int(now.Month()), now.Day(), uuid.New(), ext)
}
