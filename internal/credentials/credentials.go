// Package credentials resolves, caches, and turns into vendor clients the
// credentials of each external integration (object storage, mail).
//
// Each integration is described by a Spec: the setting keys it needs, which of
// them are stored encrypted, the environment variables that back them up, and
// how to build the vendor client from a resolved Bundle. A Manager owns the
// bundle and client caches for one Spec; a Registry indexes the managers by
// integration name for invalidation and for the settings service.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sportscouncil/backoffice/internal/secrets"
)

// DefaultTTL is how long a resolved bundle is served from memory.
const DefaultTTL = 60 * time.Second

// DefaultCloseDelay is how long a dropped client stays open.
const DefaultCloseDelay = 2 * time.Minute

var (
	// ErrNotConfigured means neither the settings store nor the environment
	// holds a complete set of keys for the integration.
	ErrNotConfigured = errors.New("credentials not configured")
	// ErrSecretUnreadable means a stored secret failed to decrypt.
	ErrSecretUnreadable = errors.New("stored secret could not be decrypted")
	// ErrInvalidCredentials means the resolved values are present but unusable,
	// e.g. a private key that is not PEM encoded.
	ErrInvalidCredentials = errors.New("credentials are invalid")
	// ErrUnknownIntegration is returned by the Registry for an unregistered name.
	ErrUnknownIntegration = errors.New("unknown integration")
)

// Source records where a bundle came from.
type Source string

const (
	SourceStore Source = "store"
	SourceEnv   Source = "env"
)

// Key is one credential field.
type Key struct {
	Setting string // Key in the settings store.
	Env     string // Environment fallback variable.
	Secret  bool   // Stored encrypted; decrypted on resolution.
	// FromEnv, when set, transforms the raw environment value.
	FromEnv func(string) string
}

// Spec describes one integration.
type Spec[C any] struct {
	Name  string
	Keys  []Key
	Build func(ctx context.Context, b *Bundle) (C, error)
	// Close, when set, releases a client the Manager no longer hands out.
	// It runs after Options.CloseDelay so in-flight operations can finish.
	Close func(C) error
}

// Bundle is a complete set of credential values, all taken from one source.
// Values are addressed by their settings-store key regardless of source.
type Bundle struct {
	Integration string
	Source      Source
	ResolvedAt  time.Time
	values      map[string]string
}

// Get returns the value of setting key, or "" when the bundle has none.
func (b *Bundle) Get(setting string) string {
	if b == nil {
		return ""
	}
	return b.values[setting]
}

// String describes the bundle without its values.
func (b *Bundle) String() string {
	if b == nil {
		return "<nil bundle>"
	}
	return fmt.Sprintf("%s credentials (source=%s, resolved=%s)",
		b.Integration, b.Source, b.ResolvedAt.Format(time.RFC3339))
}

// NewBundle builds a bundle directly. Used by tests and tooling.
func NewBundle(integration string, source Source, at time.Time, values map[string]string) *Bundle {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return &Bundle{Integration: integration, Source: source, ResolvedAt: at, values: cp}
}

// Observer receives resolution and build events. Implementations must be cheap.
type Observer interface {
	CredentialsResolved(integration string, source Source)
	ClientBuilt(integration string, err error)
}

type noopObserver struct{}

func (noopObserver) CredentialsResolved(string, Source) {}
func (noopObserver) ClientBuilt(string, error)          {}

// Decrypter opens stored secret envelopes.
type Decrypter interface {
	Decrypt(envelope string) (string, error)
}

// UnescapeNewlines turns literal "\n" sequences into newlines. PEM keys passed
// through a single-line environment variable need it.
func UnescapeNewlines(s string) string {
	return strings.ReplaceAll(s, `\n`, "\n")
}

// Outcome is the uniform result of a service operation.
type Outcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// OK is a successful Outcome.
func OK() Outcome { return Outcome{Success: true} }

// Failed is a failed Outcome carrying msg.
func Failed(msg string) Outcome { return Outcome{Success: false, Error: msg} }

// Failure kinds used in logs and metrics.
const (
	KindConfiguration = "configuration"
	KindVendor        = "vendor"
	KindTimeout       = "timeout"
	KindInvalid       = "invalid_input"
)

// Classify maps an operation error to a failure kind and a message safe to show
// an end user. Configuration failures never carry key names.
func Classify(integration string, err error) (kind, message string) {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return KindConfiguration, integration + " credentials not configured"
	case errors.Is(err, ErrSecretUnreadable),
		errors.Is(err, secrets.ErrDecryptionFailed),
		errors.Is(err, secrets.ErrInvalidEnvelope):
		return KindConfiguration, integration + " credentials could not be read"
	case errors.Is(err, ErrInvalidCredentials):
		return KindConfiguration, integration + " credentials are invalid"
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout, integration + " request timed out"
	default:
		return KindVendor, err.Error()
	}
}
