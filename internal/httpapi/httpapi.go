// Package httpapi implements the back office HTTP API.
//
// Security:
//   - API key authentication on /v1 (constant-time comparison)
//   - Request body size limits (default 25 MB, sized for file uploads)
//   - Public contact form rate limited per client IP via token bucket
//   - OAuth callback protected by a single-use state value
//   - TLS expected via reverse proxy (not handled here)
package httpapi

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jkaninda/okapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/sportscouncil/backoffice/internal/credentials"
	"github.com/sportscouncil/backoffice/internal/domain"
	"github.com/sportscouncil/backoffice/internal/mailer"
	"github.com/sportscouncil/backoffice/internal/objectstore"
	"github.com/sportscouncil/backoffice/internal/observability"
	"github.com/sportscouncil/backoffice/internal/probe"
	"github.com/sportscouncil/backoffice/internal/ratelimit"
)

const defaultMaxRequestSize = 25 << 20 // 25 MB

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// Config configures the HTTP API.
type Config struct {
	ListenAddr     string // e.g., ":8080"
	EnableDocs     bool
	APIKeys        map[string]string // API key -> user ID mapping.
	MaxRequestSize int64             // Maximum request body in bytes. 0 = 25 MB default.

	Contact ContactConfig

	// Observability
	MetricsRegistry *prometheus.Registry            // Custom Prometheus registry for /metrics.
	MetricsPath     string                          // Path for metrics endpoint. Empty disables it.
	HealthChecker   *observability.HealthChecker    // Health checker for /readyz.
	Metrics         *observability.MetricsCollector // Metrics collector for HTTP middleware.
	Tracer          trace.Tracer                    // OTel tracer for HTTP middleware.
}

// ContactConfig configures the public contact form.
type ContactConfig struct {
	Enabled   bool
	Recipient string // Council inbox receiving submissions.
	Template  string // Stored template name.
}

func (c Config) maxRequestSize() int64 {
	if c.MaxRequestSize > 0 {
		return c.MaxRequestSize
	}
	return defaultMaxRequestSize
}

// FileService is the storage integration. *objectstore.Service implements it.
type FileService interface {
	Upload(ctx context.Context, in objectstore.UploadInput) objectstore.UploadResult
	Delete(ctx context.Context, path string) credentials.Outcome
	SignedURL(ctx context.Context, path string, minutes int) objectstore.SignedURLResult
	List(ctx context.Context, prefix string) objectstore.ListResult
}

// MailService is the mail integration. *mailer.Service implements it.
type MailService interface {
	Send(ctx context.Context, m mailer.Message) mailer.SendResult
	SendTemplate(ctx context.Context, tm mailer.TemplateMessage) mailer.SendResult
	SendStoredTemplate(ctx context.Context, name string, to []string, replyTo string, vars map[string]string) mailer.SendResult
}

// SettingsService manages stored settings. *settings.Service implements it.
type SettingsService interface {
	Set(ctx context.Context, key, value string) error
	List(ctx context.Context) ([]domain.Setting, error)
	Delete(ctx context.Context, key string) error
}

// Integrations exposes credential cache state. *credentials.Registry implements it.
type Integrations interface {
	Invalidate(name string) error
	InvalidateAll()
	Snapshots() []credentials.Snapshot
}

// StatusSource reports the latest probe results. *probe.Prober implements it.
type StatusSource interface {
	Statuses() []probe.Status
}

// OAuthFlow connects the mail account. *mailer.Authorizer implements it.
type OAuthFlow interface {
	AuthURL(ctx context.Context) (string, error)
	Complete(ctx context.Context, state, code string) (string, error)
}

// Deps are the services behind the API. Probes, OAuth and Observability may be nil.
type Deps struct {
	Files         FileService
	Mail          MailService
	Templates     mailer.TemplateStore
	Settings      SettingsService
	Integrations  Integrations
	Probes        StatusSource
	OAuth         OAuthFlow
	Observability *observability.Observability
}

// Server is the HTTP API server.
type Server struct {
	config  Config
	deps    Deps
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	server  *http.Server

	okapi *okapi.Okapi
	group *okapi.Group
}

// New creates the server and registers all routes. rl limits the contact
// form and may be nil.
func New(cfg Config, deps Deps, rl *ratelimit.Limiter, logger *slog.Logger) *Server {
	s := &Server{
		config:  cfg,
		deps:    deps,
		limiter: rl,
		logger:  logger,
		okapi:   okapi.New(okapi.WithMaxMultipartMemory(cfg.maxRequestSize())),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	// Metrics/tracing middleware (applied globally).
	if s.config.Metrics != nil || s.config.Tracer != nil {
		s.okapi.UseMiddleware(func(next http.Handler) http.Handler {
			return observability.HTTPMetricsMiddleware(s.config.Metrics, s.config.Tracer, next)
		})
	}

	// Authenticated /v1 group.
	s.group = s.okapi.Group("/v1", s.authenticate)
	s.fileRoutes()
	s.mailRoutes()
	s.settingRoutes()
	s.integrationRoutes()

	// Public endpoints.
	if s.config.Contact.Enabled {
		s.okapi.Post("/contact", s.handleContact,
			okapi.DocSummary("Submit the public contact form"),
			okapi.DocTags("Contact"),
			okapi.DocRequestBody(ContactRequest{}),
			okapi.DocResponse(credentials.Outcome{}),
			okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
			okapi.DocResponse(http.StatusTooManyRequests, ErrorBody{}),
		)
	}
	if s.deps.OAuth != nil {
		s.okapi.Get("/oauth/gmail/callback", s.handleGmailCallback,
			okapi.DocSummary("OAuth redirect target for the Gmail consent flow"),
			okapi.DocTags("Integrations"),
			okapi.DocResponse(CallbackResponse{}),
			okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		)
	}

	// Observability endpoints (unauthenticated).
	s.okapi.Get("/healthz", s.handleLiveness)
	s.okapi.Get("/readyz", s.handleReadiness)

	if s.config.MetricsRegistry != nil && s.config.MetricsPath != "" {
		s.okapi.HandleStd("GET", s.config.MetricsPath, promhttp.HandlerFor(s.config.MetricsRegistry, promhttp.HandlerOpts{}).ServeHTTP)
	}
	if s.config.EnableDocs {
		s.okapi.WithOpenAPIDocs(
			okapi.OpenAPI{
				Title:   "Sports Council Back Office",
				Version: "v1",
			},
		)
	}
}

// Start launches the HTTP server and blocks until it exits.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.ListenAddr,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	s.logger.Info("http api starting", slog.String("addr", s.config.ListenAddr))
	return s.okapi.StartServer(s.server)
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(_ context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("http api stopping")
	return s.okapi.Shutdown(s.server)
}

// --- Health ---

// HealthResponse is the JSON response for the liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleLiveness(c *okapi.Context) error {
	return c.OK(&HealthResponse{Status: "ok"})
}

// handleReadiness checks all registered dependencies and returns 200 or 503.
func (s *Server) handleReadiness(c *okapi.Context) error {
	if s.config.HealthChecker == nil {
		return c.OK(&HealthResponse{Status: "ok"})
	}

	status := s.config.HealthChecker.CheckReady(c.Context())
	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// --- Authentication ---

// authenticate validates the bearer API key and stores the mapped user ID.
func (s *Server) authenticate(next okapi.HandlerFunc) okapi.HandlerFunc {
	return func(c *okapi.Context) error {
		authHeader := c.Header("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.AbortUnauthorized("missing or invalid Authorization header")
		}
		apiKey := strings.TrimPrefix(authHeader, "Bearer ")

		userID := ""
		for key, user := range s.config.APIKeys {
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
				userID = user
			}
		}
		if userID == "" {
			return c.AbortUnauthorized("invalid API key")
		}
		c.Set("userID", userID)
		return next(c)
	}
}

// --- Helpers ---

// respond writes an operation result: 200 on success, 502 when the external
// service call failed. The body keeps the uniform {success, error} shape.
func respond(c *okapi.Context, o credentials.Outcome, body any) error {
	code := http.StatusOK
	if !o.Success {
		code = http.StatusBadGateway
	}
	return c.JSON(code, body)
}

func newCorrelationID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
