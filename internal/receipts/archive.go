// Package receipts archives receipt images handed to the scan channel.
package receipts

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// Archive stores a receipt image and returns its URI.
// This interface enables mocking and testing of storage.
type Archive interface {
	Store(ctx context.Context, sessionID string, image []byte, mimeType string) (string, error)
}

// Fetcher reads back an archived image by the URI Store returned.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// NopArchive discards images. It is used when no bucket is configured.
type NopArchive struct{}

// Store implements Archive.
func (NopArchive) Store(ctx context.Context, sessionID string, image []byte, mimeType string) (string, error) {
	return "", nil
}

// GCSArchive writes receipt images to a Cloud Storage bucket.
// It assumes Application Default Credentials are configured.
type GCSArchive struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

// NewGCSArchive creates a storage client for bucket.
func NewGCSArchive(ctx context.Context, bucket string) (*GCSArchive, error) {
	if bucket == "" {
		return nil, fmt.Errorf("NewGCSArchive: bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewGCSArchive: create storage client: %w", err)
	}

	return &GCSArchive{client: client, bucket: bucket, now: time.Now}, nil
}

// Store implements Archive.
func (a *GCSArchive) Store(ctx context.Context, sessionID string, image []byte, mimeType string) (string, error) {
	objectName := ObjectName(a.now(), sessionID, uuid.NewString(), mimeType)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = mimeType

	if _, err := w.Write(image); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("GCSArchive.Store: write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("GCSArchive.Store: finalize upload: %w", err)
	}

	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

// Fetch downloads an archived image by URI.
func (a *GCSArchive) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("GCSArchive.Fetch: %w", err)
	}

	rc, err := a.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("GCSArchive.Fetch: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("GCSArchive.Fetch: reading bytes: %w", err)
	}
	return data, nil
}

// Close closes the storage client.
func (a *GCSArchive) Close() error {
	return a.client.Close()
}

// ObjectName lays images out by upload day:
// receipts/YYYY/MM/DD/<session>-<id>.<ext>.
func ObjectName(now time.Time, sessionID, id, mimeType string) string {
	return path.Join(
		"receipts",
		now.UTC().Format("2006/01/02"),
		fmt.Sprintf("%s-%s.%s", sessionID, id, extension(mimeType)),
	)
}

// ParseURI splits gs://bucket/object into its parts.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

func extension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "image/bmp":
		return "bmp"
	default:
		return "jpg"
	}
}

var (
	_ Archive = NopArchive{}
	_ Archive = (*GCSArchive)(nil)
	_ Fetcher = (*GCSArchive)(nil)
)
