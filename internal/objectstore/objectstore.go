// Package objectstore implements the file storage integration: uploads,
// deletions, signed read URLs and listings against a Google Cloud Storage
// bucket whose service-account credentials come from the settings store or
// the environment.
package objectstore

import (
	"context"
	"io"
	"time"

	"github.com/sportscouncil/backoffice/internal/credentials"
)

// Integration is the credentials registry name of this integration.
const Integration = "storage"

// Setting keys read from the settings store.
const (
	KeyProjectID   = "gcs_project_id"
	KeyClientEmail = "gcs_client_email"
	KeyPrivateKey  = "gcs_private_key"
	KeyBucketName  = "gcs_bucket_name"
)

// Keys lists the credential fields of the storage integration.
func Keys() []credentials.Key {
	return []credentials.Key{
		{Setting: KeyProjectID, Env: "GCS_PROJECT_ID"},
		{Setting: KeyClientEmail, Env: "GCS_CLIENT_EMAIL"},
		{Setting: KeyPrivateKey, Env: "GCS_PRIVATE_KEY", Secret: true, FromEnv: credentials.UnescapeNewlines},
		{Setting: KeyBucketName, Env: "GCS_BUCKET_NAME"},
	}
}

// Bucket is a vendor bucket handle bound to one set of credentials.
type Bucket interface {
	Name() string
	Upload(ctx context.Context, path, contentType string, data []byte) error
	Delete(ctx context.Context, path string) error
	SignedURL(ctx context.Context, path string, expires time.Time) (string, error)
	List(ctx context.Context, prefix string) ([]Object, error)
	Verify(ctx context.Context) error
}

// Object describes a stored file.
type Object struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	Updated     time.Time `json:"updated"`
}

// BucketBuilder builds a Bucket from a resolved bundle.
type BucketBuilder func(ctx context.Context, b *credentials.Bundle) (Bucket, error)

// NewSpec returns the credentials spec of the storage integration.
// A nil build uses the Google Cloud Storage client.
func NewSpec(build BucketBuilder) credentials.Spec[Bucket] {
	if build == nil {
		build = NewGCSBucket
	}
	return credentials.Spec[Bucket]{Name: Integration, Keys: Keys(), Build: build, Close: closeBucket}
}

func closeBucket(b Bucket) error {
	if c, ok := b.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
