package credentials

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sportscouncil/backoffice/internal/settings"
)

// Options configures a Manager.
type Options struct {
	Store    settings.Source // Preferred source; secret keys are decrypted with Cipher.
	Env      settings.Source // Fallback source; values are plaintext.
	Cipher   Decrypter
	TTL      time.Duration // Zero means DefaultTTL.
	Logger   *slog.Logger
	Observer Observer
	Now      func() time.Time
	// CloseDelay postpones Spec.Close on dropped clients. Zero means
	// DefaultCloseDelay; negative closes immediately.
	CloseDelay time.Duration
}

// Manager caches the credential bundle and the vendor client of one integration.
//
// Resolution and client builds are serialized: while one caller resolves or
// builds, others wait (honouring their context) and then reuse its result.
// A client is only handed out together with the bundle it was built from; any
// bundle refresh drops the cached client.
type Manager[C any] struct {
	spec     Spec[C]
	store    settings.Source
	env      settings.Source
	cipher   Decrypter
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
	observer Observer
	delay    time.Duration

	build chan struct{} // single slot; held while resolving or building

	mu        sync.Mutex
	epoch     uint64 // bumped by Invalidate
	bundle    *Bundle
	client    C
	clientFor *Bundle
}

// NewManager creates a Manager for spec.
func NewManager[C any](spec Spec[C], opts Options) *Manager[C] {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.CloseDelay == 0 {
		opts.CloseDelay = DefaultCloseDelay
	}
	return &Manager[C]{
		spec:     spec,
		store:    opts.Store,
		env:      opts.Env,
		cipher:   opts.Cipher,
		ttl:      opts.TTL,
		now:      opts.Now,
		logger:   opts.Logger.With(slog.String("integration", spec.Name)),
		observer: opts.Observer,
		delay:    opts.CloseDelay,
		build:    make(chan struct{}, 1),
	}
}

// Name returns the integration name.
func (m *Manager[C]) Name() string { return m.spec.Name }

// Keys returns the integration's credential keys.
func (m *Manager[C]) Keys() []Key { return m.spec.Keys }

// Bundle returns the cached bundle while it is younger than the TTL, and
// otherwise resolves a fresh one.
func (m *Manager[C]) Bundle(ctx context.Context) (*Bundle, error) {
	m.mu.Lock()
	b := m.freshLocked()
	m.mu.Unlock()
	if b != nil {
		return b, nil
	}

	if err := m.acquire(ctx); err != nil {
		return nil, err
	}
	defer m.release()
	return m.bundleHeld(ctx)
}

// Client returns the vendor client built from the current bundle, building it
// when the bundle was refreshed or nothing was built yet.
func (m *Manager[C]) Client(ctx context.Context) (C, *Bundle, error) {
	var zero C

	m.mu.Lock()
	if b := m.freshLocked(); b != nil && m.clientFor == b {
		c := m.client
		m.mu.Unlock()
		return c, b, nil
	}
	m.mu.Unlock()

	if err := m.acquire(ctx); err != nil {
		return zero, nil, err
	}
	defer m.release()

	b, err := m.bundleHeld(ctx)
	if err != nil {
		return zero, nil, err
	}

	m.mu.Lock()
	if m.clientFor == b {
		c := m.client
		m.mu.Unlock()
		return c, b, nil
	}
	epoch := m.epoch
	m.mu.Unlock()

	c, err := m.spec.Build(ctx, b)
	m.observer.ClientBuilt(m.spec.Name, err)
	if err != nil {
		m.logger.WarnContext(ctx, "client build failed",
			slog.String("source", string(b.Source)),
			slog.String("error", err.Error()),
		)
		return zero, nil, fmt.Errorf("building %s client: %w", m.spec.Name, err)
	}
	m.logger.DebugContext(ctx, "client built", slog.String("source", string(b.Source)))

	m.mu.Lock()
	cached := m.epoch == epoch && m.bundle == b
	if cached {
		m.client, m.clientFor = c, b
	}
	m.mu.Unlock()
	if !cached {
		m.retire(c)
	}
	return c, b, nil
}

// Invalidate drops the cached bundle and client. The next call re-reads the
// sources regardless of the remaining TTL. A resolution already in flight
// still returns to its caller but is not cached.
func (m *Manager[C]) Invalidate() {
	m.mu.Lock()
	m.epoch++
	m.bundle = nil
	old, had := m.dropClientLocked()
	m.mu.Unlock()
	if had {
		m.retire(old)
	}
	m.logger.Info("credentials invalidated")
}

// dropClientLocked clears the cached client and returns it, if any.
func (m *Manager[C]) dropClientLocked() (C, bool) {
	var zero C
	old, had := m.client, m.clientFor != nil
	m.client, m.clientFor = zero, nil
	return old, had
}

// retire closes a client that is no longer handed out.
func (m *Manager[C]) retire(c C) {
	if m.spec.Close == nil {
		return
	}
	closeFn := func() {
		if err := m.spec.Close(c); err != nil {
			m.logger.Warn("closing dropped client", slog.String("error", err.Error()))
		}
	}
	if m.delay < 0 {
		closeFn()
		return
	}
	time.AfterFunc(m.delay, closeFn)
}

// Snapshot reports the cache state without resolving.
func (m *Manager[C]) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{Integration: m.spec.Name}
	if b := m.freshLocked(); b != nil {
		s.Cached = true
		s.Source = b.Source
		s.ResolvedAt = b.ResolvedAt
		s.ClientBuilt = m.clientFor == b
	}
	return s
}

func (m *Manager[C]) freshLocked() *Bundle {
	if m.bundle == nil {
		return nil
	}
	if m.now().Sub(m.bundle.ResolvedAt) >= m.ttl {
		return nil
	}
	return m.bundle
}

func (m *Manager[C]) acquire(ctx context.Context) error {
	select {
	case m.build <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager[C]) release() { <-m.build }

// bundleHeld must be called with the build slot held.
func (m *Manager[C]) bundleHeld(ctx context.Context) (*Bundle, error) {
	m.mu.Lock()
	if b := m.freshLocked(); b != nil {
		m.mu.Unlock()
		return b, nil
	}
	epoch := m.epoch
	m.mu.Unlock()

	b, err := m.resolve(ctx)
	if err != nil {
		return nil, err
	}

	var (
		old C
		had bool
	)
	m.mu.Lock()
	if m.epoch == epoch {
		m.bundle = b
		old, had = m.dropClientLocked()
	}
	m.mu.Unlock()
	if had {
		m.retire(old)
	}
	return b, nil
}

// resolve reads the store, then the environment, and never mixes the two.
func (m *Manager[C]) resolve(ctx context.Context) (*Bundle, error) {
	settingKeys := make([]string, len(m.spec.Keys))
	envKeys := make([]string, len(m.spec.Keys))
	for i, k := range m.spec.Keys {
		settingKeys[i] = k.Setting
		envKeys[i] = k.Env
	}

	var storeMissing []string
	if m.store != nil {
		vals, err := m.store.GetSettings(ctx, settingKeys)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			m.logger.WarnContext(ctx, "settings store read failed, trying environment",
				slog.String("error", err.Error()))
			storeMissing = settingKeys
		default:
			storeMissing = missing(vals, settingKeys)
			if len(storeMissing) == 0 {
				return m.fromStore(ctx, vals)
			}
		}
	}

	var envMissing []string
	if m.env != nil {
		vals, err := m.env.GetSettings(ctx, envKeys)
		if err != nil {
			return nil, fmt.Errorf("reading %s environment credentials: %w", m.spec.Name, err)
		}
		envMissing = missing(vals, envKeys)
		if len(envMissing) == 0 {
			return m.fromEnv(ctx, vals), nil
		}
	}

	m.logger.WarnContext(ctx, "credentials not configured",
		slog.Any("missing_settings", storeMissing),
		slog.Any("missing_env", envMissing),
	)
	return nil, fmt.Errorf("%s %w", m.spec.Name, ErrNotConfigured)
}

func (m *Manager[C]) fromStore(ctx context.Context, vals map[string]string) (*Bundle, error) {
	out := make(map[string]string, len(m.spec.Keys))
	for _, k := range m.spec.Keys {
		v := vals[k.Setting]
		if k.Secret {
			if m.cipher == nil {
				return nil, fmt.Errorf("%s: %w: no cipher configured", m.spec.Name, ErrSecretUnreadable)
			}
			plain, err := m.cipher.Decrypt(v)
			if err != nil {
				m.logger.ErrorContext(ctx, "stored secret failed to decrypt",
					slog.String("key", k.Setting),
					slog.String("error", err.Error()),
				)
				return nil, fmt.Errorf("%s: %w: %w", m.spec.Name, ErrSecretUnreadable, err)
			}
			v = plain
		}
		out[k.Setting] = v
	}
	m.observer.CredentialsResolved(m.spec.Name, SourceStore)
	m.logger.DebugContext(ctx, "credentials resolved", slog.String("source", string(SourceStore)))
	return &Bundle{Integration: m.spec.Name, Source: SourceStore, ResolvedAt: m.now(), values: out}, nil
}

func (m *Manager[C]) fromEnv(ctx context.Context, vals map[string]string) *Bundle {
	out := make(map[string]string, len(m.spec.Keys))
	for _, k := range m.spec.Keys {
		v := vals[k.Env]
		if k.FromEnv != nil {
			v = k.FromEnv(v)
		}
		out[k.Setting] = v
	}
	m.observer.CredentialsResolved(m.spec.Name, SourceEnv)
	m.logger.DebugContext(ctx, "credentials resolved", slog.String("source", string(SourceEnv)))
	return &Bundle{Integration: m.spec.Name, Source: SourceEnv, ResolvedAt: m.now(), values: out}
}

func missing(vals map[string]string, keys []string) []string {
	var out []string
	for _, k := range keys {
		if vals[k] == "" {
			out = append(out, k)
		}
	}
	return out
}
