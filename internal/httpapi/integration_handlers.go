package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jkaninda/okapi"

	"github.com/sportscouncil/backoffice/internal/credentials"
	"github.com/sportscouncil/backoffice/internal/mailer"
	"github.com/sportscouncil/backoffice/internal/probe"
)

// IntegrationStatusResponse is the JSON response for GET /v1/integrations/status.
type IntegrationStatusResponse struct {
	Integrations []credentials.Snapshot `json:"integrations"`
	Probes       []probe.Status         `json:"probes"`
}

// AuthorizeResponse carries the Google consent URL.
type AuthorizeResponse struct {
	URL string `json:"url"`
}

// CallbackResponse is the result of the OAuth callback.
type CallbackResponse struct {
	credentials.Outcome
	ConnectedEmail string `json:"connected_email,omitempty"`
}

func (s *Server) integrationRoutes() {
	s.group.Get("/integrations/status", s.handleIntegrationStatus,
		okapi.DocSummary("Credential cache state and latest probe results"),
		okapi.DocTags("Integrations"),
		okapi.DocResponse(IntegrationStatusResponse{}),
	)
	s.group.Post("/integrations/invalidate", s.handleIntegrationInvalidateAll,
		okapi.DocSummary("Drop cached credentials and clients of every integration"),
		okapi.DocTags("Integrations"),
		okapi.DocResponse(map[string]string{}),
	)
	s.group.Post("/integrations/{name}/invalidate", s.handleIntegrationInvalidate,
		okapi.DocSummary("Drop cached credentials and client of an integration"),
		okapi.DocTags("Integrations"),
		okapi.DocPathParam("name", "string", "Integration name (storage, gmail)"),
		okapi.DocResponse(map[string]string{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
	if s.deps.OAuth != nil {
		s.group.Get("/integrations/gmail/authorize", s.handleGmailAuthorize,
			okapi.DocSummary("Start the Gmail OAuth consent flow"),
			okapi.DocTags("Integrations"),
			okapi.DocResponse(AuthorizeResponse{}),
			okapi.DocResponse(http.StatusServiceUnavailable, ErrorBody{}),
		)
	}
}

func (s *Server) handleIntegrationStatus(c *okapi.Context) error {
	resp := IntegrationStatusResponse{
		Integrations: s.deps.Integrations.Snapshots(),
		Probes:       []probe.Status{},
	}
	if s.deps.Probes != nil {
		resp.Probes = s.deps.Probes.Statuses()
	}
	return c.OK(resp)
}

func (s *Server) handleIntegrationInvalidate(c *okapi.Context) error {
	name := c.Param("name")
	if err := s.deps.Integrations.Invalidate(name); err != nil {
		if errors.Is(err, credentials.ErrUnknownIntegration) {
			return c.JSON(http.StatusNotFound, ErrorBody{Error: "unknown integration"})
		}
		return c.AbortInternalServerError("invalidation failed")
	}

	s.logger.InfoContext(c.Context(), "integration invalidated",
		slog.String("user_id", c.GetString("userID")),
		slog.String("integration", name),
	)
	return c.OK(map[string]string{"status": "invalidated", "integration": name})
}

// handleIntegrationInvalidateAll is used after rotating the master key or
// bulk-editing settings directly in the database.
func (s *Server) handleIntegrationInvalidateAll(c *okapi.Context) error {
	s.deps.Integrations.InvalidateAll()
	s.logger.InfoContext(c.Context(), "all integrations invalidated",
		slog.String("user_id", c.GetString("userID")),
	)
	return c.OK(map[string]string{"status": "invalidated"})
}

func (s *Server) handleGmailAuthorize(c *okapi.Context) error {
	url, err := s.deps.OAuth.AuthURL(c.Context())
	if err != nil {
		s.logger.WarnContext(c.Context(), "gmail authorization unavailable", slog.String("error", err.Error()))
		return c.AbortServiceUnavailable(err.Error())
	}
	return c.OK(AuthorizeResponse{URL: url})
}

func (s *Server) handleGmailCallback(c *okapi.Context) error {
	q := c.Request().URL.Query()
	if e := q.Get("error"); e != "" {
		return c.AbortBadRequest("authorization denied: " + e)
	}

	email, err := s.deps.OAuth.Complete(c.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		if errors.Is(err, mailer.ErrInvalidState) {
			return c.AbortBadRequest("invalid or expired state")
		}
		s.logger.ErrorContext(c.Context(), "gmail authorization failed", slog.String("error", err.Error()))
		out := credentials.Failed(err.Error())
		return respond(c, out, CallbackResponse{Outcome: out})
	}
	return c.OK(CallbackResponse{Outcome: credentials.OK(), ConnectedEmail: email})
}
