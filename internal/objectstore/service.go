package objectstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/sportscouncil/backoffice/internal/credentials"
	"github.com/sportscouncil/backoffice/internal/observability"
)

const (
	// DefaultSignedURLMinutes applies when the caller gives no expiry.
	DefaultSignedURLMinutes = 60
	// MaxSignedURLMinutes is the V4 signing limit (7 days).
	MaxSignedURLMinutes = 7 * 24 * 60

	defaultTimeout = 30 * time.Second
)

// ClientSource hands out the current bucket handle.
// *credentials.Manager[Bucket] implements it.
type ClientSource interface {
	Client(ctx context.Context) (Bucket, *credentials.Bundle, error)
}

// Config tunes the service.
type Config struct {
	Timeout                 time.Duration // Per operation, including credential resolution.
	DefaultSignedURLMinutes int
}

// UploadInput is one file to store.
type UploadInput struct {
	Data        []byte
	Filename    string
	Folder      string
	ContentType string // Sniffed from Data when empty.
}

// UploadResult is the outcome of Upload.
type UploadResult struct {
	credentials.Outcome
	URL         string `json:"url,omitempty"`
	Path        string `json:"path,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size,omitempty"`
}

// SignedURLResult is the outcome of SignedURL.
type SignedURLResult struct {
	credentials.Outcome
	URL       string    `json:"url,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// ListResult is the outcome of List.
type ListResult struct {
	credentials.Outcome
	Files []Object `json:"files,omitempty"`
}

// Service runs storage operations. Operations never return errors: every
// failure is logged and reported through the embedded Outcome.
type Service struct {
	clients       ClientSource
	timeout       time.Duration
	signedDefault int
	obs           *observability.Observability
	logger        *slog.Logger
	now           func() time.Time
	stamps        *stamper
}

// NewService creates a storage Service. obs may be nil.
func NewService(clients ClientSource, cfg Config, obs *observability.Observability, logger *slog.Logger) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.DefaultSignedURLMinutes <= 0 {
		cfg.DefaultSignedURLMinutes = DefaultSignedURLMinutes
	}
	return &Service{
		clients:       clients,
		timeout:       cfg.Timeout,
		signedDefault: cfg.DefaultSignedURLMinutes,
		obs:           obs,
		logger:        logger,
		now:           time.Now,
		stamps:        &stamper{now: time.Now},
	}
}

// Upload stores in.Data under "<folder>/<millis>-<sanitized filename>" and
// returns its public URL.
func (s *Service) Upload(ctx context.Context, in UploadInput) UploadResult {
	if in.Filename == "" {
		return UploadResult{Outcome: s.invalid(ctx, "upload", "filename is required")}
	}
	if len(in.Data) == 0 {
		return UploadResult{Outcome: s.invalid(ctx, "upload", "file is empty")}
	}
	contentType := in.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(in.Data).String()
	}
	path := ObjectPath(in.Folder, s.stamps.next(), in.Filename)

	var url string
	out := s.run(ctx, "upload", func(ctx context.Context, b Bucket) error {
		if err := b.Upload(ctx, path, contentType, in.Data); err != nil {
			return err
		}
		url = PublicURL(b.Name(), path)
		return nil
	})
	if !out.Success {
		return UploadResult{Outcome: out}
	}
	s.logger.InfoContext(ctx, "file uploaded",
		slog.String("path", path),
		slog.String("content_type", contentType),
		slog.Int("size", len(in.Data)),
	)
	return UploadResult{Outcome: out, URL: url, Path: path, ContentType: contentType, Size: len(in.Data)}
}

// Delete removes the object at path.
func (s *Service) Delete(ctx context.Context, path string) credentials.Outcome {
	if path == "" {
		return s.invalid(ctx, "delete", "path is required")
	}
	return s.run(ctx, "delete", func(ctx context.Context, b Bucket) error {
		return b.Delete(ctx, path)
	})
}

// SignedURL returns a read-only URL for path that expires after minutes
// (DefaultSignedURLMinutes when minutes <= 0).
func (s *Service) SignedURL(ctx context.Context, path string, minutes int) SignedURLResult {
	if path == "" {
		return SignedURLResult{Outcome: s.invalid(ctx, "signed_url", "path is required")}
	}
	if minutes <= 0 {
		minutes = s.signedDefault
	}
	if minutes > MaxSignedURLMinutes {
		return SignedURLResult{Outcome: s.invalid(ctx, "signed_url",
			fmt.Sprintf("expiry must be at most %d minutes", MaxSignedURLMinutes))}
	}
	expires := s.now().Add(time.Duration(minutes) * time.Minute)

	var url string
	out := s.run(ctx, "signed_url", func(ctx context.Context, b Bucket) error {
		u, err := b.SignedURL(ctx, path, expires)
		url = u
		return err
	})
	if !out.Success {
		return SignedURLResult{Outcome: out}
	}
	return SignedURLResult{Outcome: out, URL: url, ExpiresAt: expires}
}

// List returns the objects whose path starts with prefix.
func (s *Service) List(ctx context.Context, prefix string) ListResult {
	var files []Object
	out := s.run(ctx, "list", func(ctx context.Context, b Bucket) error {
		f, err := b.List(ctx, prefix)
		files = f
		return err
	})
	if !out.Success {
		return ListResult{Outcome: out}
	}
	return ListResult{Outcome: out, Files: files}
}

// Check verifies that the configured credentials can reach the bucket.
func (s *Service) Check(ctx context.Context) credentials.Outcome {
	return s.run(ctx, "check", func(ctx context.Context, b Bucket) error {
		return b.Verify(ctx)
	})
}

func (s *Service) run(ctx context.Context, op string, fn func(context.Context, Bucket) error) credentials.Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, done := s.obs.StartOperation(ctx, Integration, op)
	bucket, _, err := s.clients.Client(ctx)
	if err == nil {
		err = fn(ctx, bucket)
	}
	done(err)
	if err == nil {
		return credentials.OK()
	}

	kind, msg := credentials.Classify(Integration, err)
	s.logger.ErrorContext(ctx, "storage operation failed",
		slog.String("integration", Integration),
		slog.String("operation", op),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
	return credentials.Failed(msg)
}

func (s *Service) invalid(ctx context.Context, op, msg string) credentials.Outcome {
	s.logger.DebugContext(ctx, "storage request rejected",
		slog.String("integration", Integration),
		slog.String("operation", op),
		slog.String("kind", credentials.KindInvalid),
		slog.String("reason", msg),
	)
	return credentials.Failed(msg)
}
