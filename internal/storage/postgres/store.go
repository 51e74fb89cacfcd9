package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/sportscouncil/backoffice/internal/mailer"
	"github.com/sportscouncil/backoffice/internal/settings"
	"github.com/sportscouncil/backoffice/internal/storage"
)

// Store implements storage.Store backed by PostgreSQL.
// It wraps the existing DB and lazily creates sub-store repositories.
type Store struct {
	pgDB *DB

	mu        sync.Mutex
	settings  settings.Store
	templates mailer.TemplateStore
}

// NewStore wraps an existing DB as a unified Store.
func NewStore(pgDB *DB) *Store {
	return &Store{pgDB: pgDB}
}

func (s *Store) Settings() settings.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings == nil {
		s.settings = NewSettingRepository(s.pgDB.GormDB())
	}
	return s.settings
}

func (s *Store) Templates() mailer.TemplateStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.templates == nil {
		s.templates = NewMailTemplateRepository(s.pgDB.GormDB())
	}
	return s.templates
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pgDB.Ping(ctx)
}

// Migrate creates or updates the settings and mail_templates tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := autoMigrate(s.pgDB.GormDB().WithContext(ctx)); err != nil {
		return fmt.Errorf("auto-migrating: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.pgDB.Close()
}

func (s *Store) Driver() string {
	return storage.DriverPostgres
}

var _ storage.Store = (*Store)(nil)
