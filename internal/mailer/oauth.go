package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/sportscouncil/backoffice/internal/credentials"
	"github.com/sportscouncil/backoffice/internal/settings"
)

// StateTTL bounds the time between AuthURL and the OAuth callback.
const StateTTL = 10 * time.Minute

// SettingsWriter is the part of the settings service the Authorizer needs.
// *settings.Service implements it.
type SettingsWriter interface {
	Reveal(ctx context.Context, key string) (string, error)
	SetMany(ctx context.Context, entries []settings.Entry) error
}

// Authorizer runs the OAuth consent flow that connects the council's Google
// account. On completion it stores the refresh token and account address in
// the settings store; the settings service invalidates the mail integration,
// so the next send uses the new account.
type Authorizer struct {
	settings    SettingsWriter
	env         func(string) (string, bool)
	redirectURL string
	logger      *slog.Logger
	now         func() time.Time

	mu     sync.Mutex
	states map[string]time.Time // state -> expiry

	exchange func(ctx context.Context, conf *oauth2.Config, code string) (*oauth2.Token, error)
	profile  func(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) (string, error)
}

// NewAuthorizer creates an Authorizer redirecting back to redirectURL.
func NewAuthorizer(s SettingsWriter, redirectURL string, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		settings:    s,
		env:         os.LookupEnv,
		redirectURL: redirectURL,
		logger:      logger,
		now:         time.Now,
		states:      make(map[string]time.Time),
		exchange: func(ctx context.Context, conf *oauth2.Config, code string) (*oauth2.Token, error) {
			return conf.Exchange(ctx, code)
		},
		profile: func(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token) (string, error) {
			svc, err := gmail.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, tok)))
			if err != nil {
				return "", err
			}
			return profileEmail(ctx, svc)
		},
	}
}

// AuthURL returns the Google consent URL. Its state is single-use and
// expires after StateTTL.
func (a *Authorizer) AuthURL(ctx context.Context) (string, error) {
	if a.redirectURL == "" {
		return "", errors.New("gmail OAuth redirect URL is not configured")
	}
	id, secret, _, err := a.clientCredentials(ctx)
	if err != nil {
		return "", err
	}

	state := uuid.NewString()
	now := a.now()
	a.mu.Lock()
	for s, exp := range a.states {
		if now.After(exp) {
			delete(a.states, s)
		}
	}
	a.states[state] = now.Add(StateTTL)
	a.mu.Unlock()

	conf := OAuthConfig(id, secret, a.redirectURL)
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Complete exchanges the authorization code and stores the new credentials.
// It returns the connected account address.
func (a *Authorizer) Complete(ctx context.Context, state, code string) (string, error) {
	if !a.consume(state) {
		return "", ErrInvalidState
	}
	if code == "" {
		return "", errors.New("authorization code is missing")
	}

	id, secret, fromEnv, err := a.clientCredentials(ctx)
	if err != nil {
		return "", err
	}
	conf := OAuthConfig(id, secret, a.redirectURL)

	tok, err := a.exchange(ctx, conf, code)
	if err != nil {
		return "", fmt.Errorf("exchanging authorization code: %w", err)
	}
	if tok.RefreshToken == "" {
		return "", errors.New("google returned no refresh token; remove the app from the account's third-party access and authorize again")
	}
	email, err := a.profile(ctx, conf, tok)
	if err != nil {
		return "", fmt.Errorf("reading connected account: %w", err)
	}

	// Client credentials taken from the environment are copied into the store
	// so the stored bundle is complete and wins over the environment. The
	// batch is written atomically: a failure leaves the previous account.
	var entries []settings.Entry
	if fromEnv {
		entries = append(entries,
			settings.Entry{Key: KeyClientID, Value: id},
			settings.Entry{Key: KeyClientSecret, Value: secret},
		)
	}
	entries = append(entries,
		settings.Entry{Key: KeyConnectedEmail, Value: email},
		settings.Entry{Key: KeyRefreshToken, Value: tok.RefreshToken},
	)
	if err := a.settings.SetMany(ctx, entries); err != nil {
		return "", fmt.Errorf("storing gmail credentials: %w", err)
	}

	a.logger.InfoContext(ctx, "gmail account connected", slog.String("email", email))
	return email, nil
}

func (a *Authorizer) consume(state string) bool {
	if state == "" {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	exp, ok := a.states[state]
	delete(a.states, state)
	return ok && !a.now().After(exp)
}

// clientCredentials returns the OAuth client ID and secret, from the store
// when both are stored and from the environment otherwise.
func (a *Authorizer) clientCredentials(ctx context.Context) (id, secret string, fromEnv bool, err error) {
	id, idErr := a.settings.Reveal(ctx, KeyClientID)
	secret, secretErr := a.settings.Reveal(ctx, KeyClientSecret)
	for _, e := range []error{idErr, secretErr} {
		if e != nil && !errors.Is(e, settings.ErrNotFound) {
			return "", "", false, e
		}
	}
	if idErr == nil && secretErr == nil && id != "" && secret != "" {
		return id, secret, false, nil
	}

	envID, _ := a.env(EnvClientID)
	envSecret, _ := a.env(EnvClientSecret)
	if envID != "" && envSecret != "" {
		return envID, envSecret, true, nil
	}
	return "", "", false, fmt.Errorf("%s %w", Integration, credentials.ErrNotConfigured)
}
