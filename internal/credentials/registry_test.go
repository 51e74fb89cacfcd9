package credentials

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/sportscouncil/backoffice/internal/settings"
)

func newTestRegistry(t *testing.T) (*Registry, *Manager[*fakeClient]) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	build := func(context.Context, *Bundle) (*fakeClient, error) { return &fakeClient{}, nil }

	storage := NewManager(Spec[*fakeClient]{Name: "storage", Keys: testKeys, Build: build}, Options{
		Env: settings.MapSource(completeEnv()), Logger: logger,
	})
	gmail := NewManager(Spec[*fakeClient]{
		Name: "gmail",
		Keys: []Key{
			{Setting: "gmail_client_id", Env: "GMAIL_CLIENT_ID"},
			{Setting: "gmail_client_secret", Env: "GMAIL_CLIENT_SECRET", Secret: true},
		},
		Build: build,
	}, Options{Logger: logger})
	return NewRegistry(storage, gmail), storage
}

func TestRegistry_Catalog(t *testing.T) {
	r, _ := newTestRegistry(t)

	if !r.IsSecret("gcs_private_key") || !r.IsSecret("gmail_client_secret") {
		t.Error("secret keys not reported as secret")
	}
	if r.IsSecret("gcs_bucket_name") {
		t.Error("bucket name reported as secret")
	}
	if owner, ok := r.Owner("gmail_client_id"); !ok || owner != "gmail" {
		t.Errorf("Owner(gmail_client_id) = %q, %v", owner, ok)
	}
	if _, ok := r.Owner("GCS_BUCKET_NAME"); ok {
		t.Error("environment names must not be treated as setting keys")
	}
	if got := r.Names(); len(got) != 2 || got[0] != "storage" || got[1] != "gmail" {
		t.Errorf("Names = %v", got)
	}
}

func TestRegistry_Invalidate(t *testing.T) {
	r, storage := newTestRegistry(t)
	if _, _, err := storage.Client(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !storage.Snapshot().ClientBuilt {
		t.Fatal("expected a built client")
	}

	if err := r.Invalidate("storage"); err != nil {
		t.Fatal(err)
	}
	if s := storage.Snapshot(); s.Cached || s.ClientBuilt {
		t.Errorf("snapshot after invalidate = %+v", s)
	}
	if err := r.Invalidate("dropbox"); !errors.Is(err, ErrUnknownIntegration) {
		t.Errorf("err = %v, want ErrUnknownIntegration", err)
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	r, storage := newTestRegistry(t)
	if err := r.Register(storage); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestRegistry_InvalidateAll(t *testing.T) {
	r, storage := newTestRegistry(t)
	if _, _, err := storage.Client(context.Background()); err != nil {
		t.Fatal(err)
	}

	r.InvalidateAll()
	if s := storage.Snapshot(); s.Cached || s.ClientBuilt {
		t.Errorf("snapshot after invalidate all = %+v", s)
	}
}
