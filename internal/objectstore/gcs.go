package objectstore

import (
	"context"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/sportscouncil/backoffice/internal/credentials"
)

type gcsBucket struct {
	client     *storage.Client
	bucket     *storage.BucketHandle
	name       string
	email      string
	privateKey []byte
}

// NewGCSBucket builds a Cloud Storage bucket handle authenticated as the
// bundle's service account.
func NewGCSBucket(ctx context.Context, b *credentials.Bundle) (Bucket, error) {
	key := []byte(b.Get(KeyPrivateKey))
	if block, _ := pem.Decode(key); block == nil {
		return nil, fmt.Errorf("%w: service account private key is not PEM encoded", credentials.ErrInvalidCredentials)
	}

	conf := &jwt.Config{
		Email:      b.Get(KeyClientEmail),
		PrivateKey: key,
		Scopes:     []string{storage.ScopeReadWrite},
		TokenURL:   google.JWTTokenURL,
	}
	// The token source outlives the operation that triggered the build.
	ts := conf.TokenSource(context.WithoutCancel(ctx))

	client, err := storage.NewClient(ctx,
		option.WithTokenSource(ts),
		option.WithQuotaProject(b.Get(KeyProjectID)),
	)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	name := b.Get(KeyBucketName)
	return &gcsBucket{
		client:     client,
		bucket:     client.Bucket(name),
		name:       name,
		email:      conf.Email,
		privateKey: key,
	}, nil
}

func (g *gcsBucket) Name() string { return g.name }

func (g *gcsBucket) Close() error { return g.client.Close() }

func (g *gcsBucket) Upload(ctx context.Context, path, contentType string, data []byte) error {
	w := g.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing %s: %w", path, err)
	}
	return nil
}

func (g *gcsBucket) Delete(ctx context.Context, path string) error {
	if err := g.bucket.Object(path).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return fmt.Errorf("file %s does not exist", path)
		}
		return err
	}
	return nil
}

func (g *gcsBucket) SignedURL(_ context.Context, path string, expires time.Time) (string, error) {
	return g.bucket.SignedURL(path, &storage.SignedURLOptions{
		GoogleAccessID: g.email,
		PrivateKey:     g.privateKey,
		Method:         http.MethodGet,
		Expires:        expires,
		Scheme:         storage.SigningSchemeV4,
	})
}

func (g *gcsBucket) List(ctx context.Context, prefix string) ([]Object, error) {
	it := g.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	var out []Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, Object{
			Path:        attrs.Name,
			Size:        attrs.Size,
			ContentType: attrs.ContentType,
			Updated:     attrs.Updated,
		})
	}
	return out, nil
}

// Verify lists at most one object, which needs only object-level permissions.
func (g *gcsBucket) Verify(ctx context.Context) error {
	it := g.bucket.Objects(ctx, &storage.Query{})
	it.PageInfo().MaxSize = 1
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}
