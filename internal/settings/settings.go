// Package settings provides the key/value configuration source read by the
// credentialed integrations, and the admin-facing service that writes to it.
//
// Two sources exist: the persistent settings store (rows in the "settings" table,
// secret values encrypted) and the process environment (plaintext fallback).
package settings

import (
	"context"
	"errors"
	"os"

	"github.com/sportscouncil/backoffice/internal/domain"
)

// ErrNotFound is returned when a setting key does not exist.
var ErrNotFound = errors.New("setting not found")

// Source is the read contract of a configuration source.
// GetSettings returns the values it holds for keys; the result may be partial,
// and keys with empty values are omitted.
type Source interface {
	GetSettings(ctx context.Context, keys []string) (map[string]string, error)
}

// Store is a persistent settings store.
type Store interface {
	Source
	Get(ctx context.Context, key string) (*domain.Setting, error)
	Put(ctx context.Context, s *domain.Setting) error
	// PutMany stores all rows or none.
	PutMany(ctx context.Context, rows []domain.Setting) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]domain.Setting, error)
}

// EnvSource resolves keys as environment variable names.
type EnvSource struct {
	lookup func(string) (string, bool)
}

// NewEnvSource creates an environment-backed source. A nil lookup uses os.LookupEnv.
func NewEnvSource(lookup func(string) (string, bool)) *EnvSource {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &EnvSource{lookup: lookup}
}

func (s *EnvSource) GetSettings(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.lookup(k); ok && v != "" {
			out[k] = v
		}
	}
	return out, nil
}

// MapSource is an in-memory Source, mostly for tests and one-off tooling.
type MapSource map[string]string

func (m MapSource) GetSettings(_ context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v := m[k]; v != "" {
			out[k] = v
		}
	}
	return out, nil
}
