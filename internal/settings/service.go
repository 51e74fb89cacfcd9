package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sportscouncil/backoffice/internal/domain"
	"github.com/sportscouncil/backoffice/internal/secrets"
)

// MaskedValue replaces secret values in List output.
const MaskedValue = "********"

// Catalog knows which setting keys are secret and which integration owns them.
// credentials.Registry implements it.
type Catalog interface {
	IsSecret(key string) bool
	Owner(key string) (integration string, ok bool)
	Invalidate(integration string) error
}

// Cipher encrypts and decrypts secret values.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}

// Service is the write path for settings. Every change to a key owned by an
// integration invalidates that integration's cached credentials and client, so
// the next operation re-reads the store instead of serving a stale bundle.
type Service struct {
	store   Store
	cipher  Cipher
	catalog Catalog
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a settings Service.
func NewService(store Store, cipher Cipher, catalog Catalog, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		cipher:  cipher,
		catalog: catalog,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Entry is one key/value pair for SetMany.
type Entry struct {
	Key   string
	Value string
}

// Set stores value under key, encrypting it when the key is secret.
// A value that is already a valid envelope for the current master key is stored as-is.
func (s *Service) Set(ctx context.Context, key, value string) error {
	setting, err := s.prepare(key, value)
	if err != nil {
		return err
	}
	if err := s.store.Put(ctx, setting); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "setting updated",
		slog.String("key", key),
		slog.Bool("encrypted", setting.Encrypted),
	)
	s.invalidateOwner(ctx, key)
	return nil
}

// SetMany stores entries in one transaction, so readers never see part of
// the batch. Each owning integration is invalidated once, after the write.
func (s *Service) SetMany(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]domain.Setting, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Key] {
			return fmt.Errorf("setting %q given twice", e.Key)
		}
		seen[e.Key] = true
		setting, err := s.prepare(e.Key, e.Value)
		if err != nil {
			return err
		}
		rows = append(rows, *setting)
	}
	if err := s.store.PutMany(ctx, rows); err != nil {
		return err
	}

	invalidated := make(map[string]bool)
	for _, r := range rows {
		s.logger.InfoContext(ctx, "setting updated",
			slog.String("key", r.Key),
			slog.Bool("encrypted", r.Encrypted),
		)
		owner, ok := s.ownerOf(r.Key)
		if !ok || invalidated[owner] {
			continue
		}
		invalidated[owner] = true
		s.invalidateOwner(ctx, r.Key)
	}
	return nil
}

// prepare validates key and value and seals secret values.
func (s *Service) prepare(key, value string) (*domain.Setting, error) {
	if key == "" {
		return nil, fmt.Errorf("setting key is required")
	}
	if value == "" {
		return nil, fmt.Errorf("setting %q: value is required (use delete to clear it)", key)
	}
	setting := &domain.Setting{Key: key, Value: value, UpdatedAt: s.now()}
	if s.catalog != nil && s.catalog.IsSecret(key) {
		stored, err := s.seal(value)
		if err != nil {
			return nil, fmt.Errorf("encrypting setting %q: %w", key, err)
		}
		setting.Value = stored
		setting.Encrypted = true
	}
	return setting, nil
}

// Reveal returns the plaintext value of key, decrypting it if needed.
func (s *Service) Reveal(ctx context.Context, key string) (string, error) {
	setting, err := s.store.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !setting.Encrypted {
		return setting.Value, nil
	}
	plain, err := s.cipher.Decrypt(setting.Value)
	if err != nil {
		return "", fmt.Errorf("decrypting setting %q: %w", key, err)
	}
	return plain, nil
}

// List returns every stored setting with secret values masked.
func (s *Service) List(ctx context.Context) ([]domain.Setting, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].Encrypted {
			list[i].Value = MaskedValue
		}
	}
	return list, nil
}

// Delete removes key and invalidates its owning integration.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.store.Delete(ctx, key); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "setting deleted", slog.String("key", key))
	s.invalidateOwner(ctx, key)
	return nil
}

func (s *Service) seal(value string) (string, error) {
	if secrets.IsEnvelope(value) {
		if _, err := s.cipher.Decrypt(value); err == nil {
			return value, nil
		}
	}
	return s.cipher.Encrypt(value)
}

func (s *Service) ownerOf(key string) (string, bool) {
	if s.catalog == nil {
		return "", false
	}
	return s.catalog.Owner(key)
}

func (s *Service) invalidateOwner(ctx context.Context, key string) {
	owner, ok := s.ownerOf(key)
	if !ok {
		return
	}
	if err := s.catalog.Invalidate(owner); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "credential invalidation failed",
			slog.String("integration", owner),
			slog.String("error", err.Error()),
		)
	}
}
