package mailer

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/sportscouncil/backoffice/internal/credentials"
)

// Scopes requested from the connected account: sending, plus read access for
// the profile lookup used by health checks and the OAuth callback.
var Scopes = []string{gmail.GmailSendScope, gmail.GmailReadonlyScope}

// OAuthConfig returns the OAuth2 client configuration for the Gmail API.
func OAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
	}
}

type gmailTransport struct {
	svc    *gmail.Service
	http   *http.Client
	sender string
}

// NewGmailTransport builds a Gmail API client that refreshes access tokens
// from the bundle's refresh token.
func NewGmailTransport(ctx context.Context, b *credentials.Bundle) (Transport, error) {
	conf := OAuthConfig(b.Get(KeyClientID), b.Get(KeyClientSecret), "")
	// The token source outlives the operation that triggered the build.
	ts := conf.TokenSource(context.WithoutCancel(ctx), &oauth2.Token{RefreshToken: b.Get(KeyRefreshToken)})

	hc := oauth2.NewClient(context.WithoutCancel(ctx), ts)
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("creating gmail client: %w", err)
	}
	return &gmailTransport{svc: svc, http: hc, sender: b.Get(KeyConnectedEmail)}, nil
}

func (g *gmailTransport) Sender() string { return g.sender }

// Close drops the idle connections of a transport that is no longer used.
func (g *gmailTransport) Close() error {
	g.http.CloseIdleConnections()
	return nil
}

func (g *gmailTransport) Send(ctx context.Context, raw []byte) (string, error) {
	msg, err := g.svc.Users.Messages.Send("me", &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return msg.Id, nil
}

func (g *gmailTransport) Verify(ctx context.Context) error {
	_, err := profileEmail(ctx, g.svc)
	return err
}

func profileEmail(ctx context.Context, svc *gmail.Service) (string, error) {
	p, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return p.EmailAddress, nil
}
