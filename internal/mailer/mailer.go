// Package mailer implements the mail integration: plain and templated email
// sent through the Gmail API as the council's connected Google account, plus
// the OAuth flow that (re)connects that account.
package mailer

import (
	"context"
	"errors"
	"io"

	"github.com/sportscouncil/backoffice/internal/credentials"
	"github.com/sportscouncil/backoffice/internal/domain"
)

// Integration is the credentials registry name of this integration.
const Integration = "gmail"

// Setting keys read from the settings store.
const (
	KeyClientID       = "gmail_client_id"
	KeyClientSecret   = "gmail_client_secret"
	KeyRefreshToken   = "gmail_refresh_token"
	KeyConnectedEmail = "gmail_connected_email"
)

// Environment fallback variables.
const (
	EnvClientID     = "GMAIL_CLIENT_ID"
	EnvClientSecret = "GMAIL_CLIENT_SECRET"
	EnvRefreshToken = "GMAIL_REFRESH_TOKEN"
	EnvAdminEmail   = "ADMIN_EMAIL"
)

var (
	ErrTemplateNotFound = errors.New("mail template not found")
	ErrNoRecipients     = errors.New("at least one recipient is required")
	ErrInvalidState     = errors.New("invalid or expired authorization state")
)

// Keys lists the credential fields of the mail integration.
func Keys() []credentials.Key {
	return []credentials.Key{
		{Setting: KeyClientID, Env: EnvClientID},
		{Setting: KeyClientSecret, Env: EnvClientSecret, Secret: true},
		{Setting: KeyRefreshToken, Env: EnvRefreshToken, Secret: true},
		{Setting: KeyConnectedEmail, Env: EnvAdminEmail},
	}
}

// Transport is a vendor mail client bound to one set of credentials.
type Transport interface {
	// Sender is the address messages are sent from.
	Sender() string
	// Send submits a complete RFC 5322 message and returns the vendor message ID.
	Send(ctx context.Context, raw []byte) (string, error)
	Verify(ctx context.Context) error
}

// TransportBuilder builds a Transport from a resolved bundle.
type TransportBuilder func(ctx context.Context, b *credentials.Bundle) (Transport, error)

// NewSpec returns the credentials spec of the mail integration.
// A nil build uses the Gmail API client.
func NewSpec(build TransportBuilder) credentials.Spec[Transport] {
	if build == nil {
		build = NewGmailTransport
	}
	return credentials.Spec[Transport]{Name: Integration, Keys: Keys(), Build: build, Close: closeTransport}
}

// TemplateStore persists named mail templates.
type TemplateStore interface {
	GetByName(ctx context.Context, name string) (*domain.MailTemplate, error)
	List(ctx context.Context) ([]domain.MailTemplate, error)
	Upsert(ctx context.Context, t *domain.MailTemplate) error
	Delete(ctx context.Context, name string) error
}

func closeTransport(t Transport) error {
	if c, ok := t.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
