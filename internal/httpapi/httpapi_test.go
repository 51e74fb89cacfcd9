package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/sportscouncil/backoffice/internal/credentials"
	"github.com/sportscouncil/backoffice/internal/domain"
	"github.com/sportscouncil/backoffice/internal/mailer"
	"github.com/sportscouncil/backoffice/internal/objectstore"
	"github.com/sportscouncil/backoffice/internal/observability"
	"github.com/sportscouncil/backoffice/internal/probe"
	"github.com/sportscouncil/backoffice/internal/ratelimit"
	"github.com/sportscouncil/backoffice/internal/settings"
)

const testKey = "test-key"

// --- Fakes ---

type fakeFiles struct {
	mu       sync.Mutex
	uploaded objectstore.UploadInput
	minutes  int
	fail     bool
}

func (f *fakeFiles) outcome() credentials.Outcome {
	if f.fail {
		return credentials.Failed("storage bucket unreachable")
	}
	return credentials.OK()
}

func (f *fakeFiles) Upload(_ context.Context, in objectstore.UploadInput) objectstore.UploadResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploaded = in
	return objectstore.UploadResult{Outcome: f.outcome(), Path: in.Folder + "/1-" + in.Filename, Size: len(in.Data)}
}

func (f *fakeFiles) Delete(context.Context, string) credentials.Outcome { return f.outcome() }

func (f *fakeFiles) SignedURL(_ context.Context, path string, minutes int) objectstore.SignedURLResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.minutes = minutes
	return objectstore.SignedURLResult{Outcome: f.outcome(), URL: "https://signed.example/" + path}
}

func (f *fakeFiles) List(context.Context, string) objectstore.ListResult {
	if f.fail {
		return objectstore.ListResult{Outcome: f.outcome()}
	}
	return objectstore.ListResult{Outcome: f.outcome(), Files: []objectstore.Object{{Path: "events/a.pdf", Size: 3}}}
}

type fakeMail struct {
	mu   sync.Mutex
	sent []mailer.TemplateMessage
	fail bool
}

func (f *fakeMail) result() mailer.SendResult {
	if f.fail {
		return mailer.SendResult{Outcome: credentials.Failed("googleapi: Error 401: invalid_grant")}
	}
	return mailer.SendResult{Outcome: credentials.OK(), MessageID: "msg-1"}
}

func (f *fakeMail) Send(context.Context, mailer.Message) mailer.SendResult { return f.result() }

func (f *fakeMail) SendTemplate(_ context.Context, tm mailer.TemplateMessage) mailer.SendResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tm)
	return f.result()
}

func (f *fakeMail) SendStoredTemplate(context.Context, string, []string, string, map[string]string) mailer.SendResult {
	return f.result()
}

type fakeTemplates struct {
	mu    sync.Mutex
	items map[string]domain.MailTemplate
}

func newFakeTemplates() *fakeTemplates {
	return &fakeTemplates{items: make(map[string]domain.MailTemplate)}
}

func (f *fakeTemplates) GetByName(_ context.Context, name string) (*domain.MailTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.items[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", mailer.ErrTemplateNotFound, name)
	}
	return &t, nil
}

func (f *fakeTemplates) List(context.Context) ([]domain.MailTemplate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.MailTemplate
	for _, t := range f.items {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTemplates) Upsert(_ context.Context, t *domain.MailTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	f.items[t.Name] = *t
	return nil
}

func (f *fakeTemplates) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[name]; !ok {
		return fmt.Errorf("%w: %s", mailer.ErrTemplateNotFound, name)
	}
	delete(f.items, name)
	return nil
}

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]string
}

func (f *fakeSettings) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeSettings) List(context.Context) ([]domain.Setting, error) {
	return []domain.Setting{{Key: "gcs_private_key", Value: settings.MaskedValue, Encrypted: true}}, nil
}

func (f *fakeSettings) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; !ok {
		return fmt.Errorf("%w: %s", settings.ErrNotFound, key)
	}
	delete(f.values, key)
	return nil
}

type fakeIntegrations struct {
	invalidated []string
}

func (f *fakeIntegrations) Invalidate(name string) error {
	if name != "storage" && name != "gmail" {
		return fmt.Errorf("%w: %s", credentials.ErrUnknownIntegration, name)
	}
	f.invalidated = append(f.invalidated, name)
	return nil
}

func (f *fakeIntegrations) InvalidateAll() {
	f.invalidated = append(f.invalidated, "storage", "gmail")
}

func (f *fakeIntegrations) Snapshots() []credentials.Snapshot {
	return []credentials.Snapshot{{Integration: "storage", Cached: true, Source: credentials.SourceStore}}
}

type fakeProbes struct{}

func (fakeProbes) Statuses() []probe.Status {
	return []probe.Status{{Integration: "gmail", Up: false, Error: "gmail credentials not configured"}}
}

type fakeOAuth struct{}

func (fakeOAuth) AuthURL(context.Context) (string, error) {
	return "https://accounts.google.com/o/oauth2/auth?state=s1", nil
}

func (fakeOAuth) Complete(_ context.Context, state, code string) (string, error) {
	if state != "s1" {
		return "", mailer.ErrInvalidState
	}
	return "council@example.org", nil
}

// --- Harness ---

type harness struct {
	srv       *Server
	files     *fakeFiles
	mail      *fakeMail
	templates *fakeTemplates
	settings  *fakeSettings
	integ     *fakeIntegrations
	obs       *observability.Observability
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()
	h := &harness{
		files:     &fakeFiles{},
		mail:      &fakeMail{},
		templates: newFakeTemplates(),
		settings:  &fakeSettings{values: map[string]string{"gcs_bucket_name": "council"}},
		integ:     &fakeIntegrations{},
		obs:       &observability.Observability{Metrics: observability.NewMetricsCollector()},
	}
	cfg := Config{
		APIKeys: map[string]string{testKey: "admin"},
		Contact: ContactConfig{Enabled: true, Recipient: "info@council.example", Template: "contact"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.srv = New(cfg, Deps{
		Files:         h.files,
		Mail:          h.mail,
		Templates:     h.templates,
		Settings:      h.settings,
		Integrations:  h.integ,
		Probes:        fakeProbes{},
		OAuth:         fakeOAuth{},
		Observability: h.obs,
	}, ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: 1, BurstSize: 2}), logger)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	rec := httptest.NewRecorder()
	h.srv.okapi.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
}

// --- Authentication and health ---

func TestAuth(t *testing.T) {
	h := newHarness(t, nil)

	if rec := h.do(t, "GET", "/v1/settings", nil, false); rec.Code != http.StatusUnauthorized {
		t.Errorf("no header: status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest("GET", "/v1/settings", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	h.srv.okapi.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", rec.Code)
	}

	if rec := h.do(t, "GET", "/v1/settings", nil, true); rec.Code != http.StatusOK {
		t.Errorf("valid key: status = %d, want 200", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	checker := observability.NewHealthChecker(nil)
	checker.AddCheck("db", func(context.Context) error { return errors.New("connection refused") })
	h := newHarness(t, func(c *Config) { c.HealthChecker = checker })

	if rec := h.do(t, "GET", "/healthz", nil, false); rec.Code != http.StatusOK {
		t.Errorf("/healthz status = %d", rec.Code)
	}
	if rec := h.do(t, "GET", "/readyz", nil, false); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz status = %d, want 503", rec.Code)
	}
}

// --- Files ---

func TestFiles_ListSuccessAndFailure(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, "GET", "/v1/files?prefix=events/", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var ok objectstore.ListResult
	decode(t, rec, &ok)
	if !ok.Success || len(ok.Files) != 1 {
		t.Errorf("list = %+v", ok)
	}

	h.files.fail = true
	rec = h.do(t, "GET", "/v1/files", nil, true)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var failed credentials.Outcome
	decode(t, rec, &failed)
	if failed.Success || failed.Error == "" {
		t.Errorf("failure body = %+v", failed)
	}
}

func TestFiles_Upload(t *testing.T) {
	h := newHarness(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("folder", "events")
	fw, err := mw.CreateFormFile("file", "poster.pdf")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("%PDF-1.4"))
	_ = mw.Close()

	req := httptest.NewRequest("POST", "/v1/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	h.srv.okapi.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := h.files.uploaded
	if got.Filename != "poster.pdf" || got.Folder != "events" || string(got.Data) != "%PDF-1.4" {
		t.Errorf("uploaded = %+v", got)
	}
	if got.ContentType != "" {
		t.Errorf("octet-stream part should leave content type to sniffing, got %q", got.ContentType)
	}
}

func TestFiles_UploadMissingFile(t *testing.T) {
	h := newHarness(t, nil)
	if rec := h.do(t, "POST", "/v1/files", map[string]string{}, true); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestFiles_SignedURLValidation(t *testing.T) {
	h := newHarness(t, nil)

	if rec := h.do(t, "GET", "/v1/files/signed-url", nil, true); rec.Code != http.StatusBadRequest {
		t.Errorf("missing path: status = %d, want 400", rec.Code)
	}
	if rec := h.do(t, "GET", "/v1/files/signed-url?path=a.pdf&minutes=abc", nil, true); rec.Code != http.StatusBadRequest {
		t.Errorf("bad minutes: status = %d, want 400", rec.Code)
	}
	rec := h.do(t, "GET", "/v1/files/signed-url?path=a.pdf&minutes=15", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if h.files.minutes != 15 {
		t.Errorf("minutes = %d, want 15", h.files.minutes)
	}
}

func TestFiles_DeleteRequiresPath(t *testing.T) {
	h := newHarness(t, nil)
	if rec := h.do(t, "DELETE", "/v1/files", nil, true); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if rec := h.do(t, "DELETE", "/v1/files?path=events/a.pdf", nil, true); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

// --- Mail ---

func TestMail_SendValidationAndFailure(t *testing.T) {
	h := newHarness(t, nil)

	if rec := h.do(t, "POST", "/v1/mail/send", mailer.Message{Subject: "x", Text: "y"}, true); rec.Code != http.StatusBadRequest {
		t.Errorf("no recipients: status = %d, want 400", rec.Code)
	}

	h.mail.fail = true
	rec := h.do(t, "POST", "/v1/mail/templates/welcome/send", StoredTemplateSendRequest{To: []string{"a@example.org"}}, true)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	var res mailer.SendResult
	decode(t, rec, &res)
	if res.Success {
		t.Error("expected success=false")
	}
}

func TestMail_InlineTemplate(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, "POST", "/v1/mail/send-template", InlineTemplateSendRequest{
		To:       []string{"a@example.org"},
		Template: TemplateBody{Subject: "Hi {{name}}"},
	}, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("template without body: status = %d, want 400", rec.Code)
	}

	rec = h.do(t, "POST", "/v1/mail/send-template", InlineTemplateSendRequest{
		To:       []string{"a@example.org"},
		Template: TemplateBody{Subject: "Hi {{name}}", Text: "Welcome {{name}}"},
		Vars:     map[string]string{"name": "Ana"},
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(h.mail.sent) != 1 || h.mail.sent[0].Vars["name"] != "Ana" {
		t.Errorf("sent = %+v", h.mail.sent)
	}
}

func TestTemplates_CRUD(t *testing.T) {
	h := newHarness(t, nil)

	if rec := h.do(t, "PUT", "/v1/mail/templates", TemplateRequest{Name: "bad name"}, true); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid template: status = %d, want 400", rec.Code)
	}

	rec := h.do(t, "PUT", "/v1/mail/templates", TemplateRequest{
		Name:         "welcome",
		TemplateBody: TemplateBody{Subject: "Welcome", Text: "Hello {{name}}"},
	}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d", rec.Code)
	}
	var created TemplateResponse
	decode(t, rec, &created)
	if created.ID == "" || created.Name != "welcome" {
		t.Errorf("created = %+v", created)
	}

	rec = h.do(t, "GET", "/v1/mail/templates", nil, true)
	var list []TemplateResponse
	decode(t, rec, &list)
	if len(list) != 1 {
		t.Errorf("list = %+v", list)
	}

	if rec := h.do(t, "DELETE", "/v1/mail/templates/welcome", nil, true); rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
	if rec := h.do(t, "DELETE", "/v1/mail/templates/welcome", nil, true); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

// --- Settings ---

func TestSettings_Endpoints(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, "GET", "/v1/settings", nil, true)
	var list []SettingResponse
	decode(t, rec, &list)
	if len(list) != 1 || list[0].Value != settings.MaskedValue {
		t.Errorf("list = %+v", list)
	}

	if rec := h.do(t, "PUT", "/v1/settings/gcs_project_id", SettingRequest{}, true); rec.Code != http.StatusBadRequest {
		t.Errorf("empty value: status = %d, want 400", rec.Code)
	}
	if rec := h.do(t, "PUT", "/v1/settings/gcs_project_id", SettingRequest{Value: "council"}, true); rec.Code != http.StatusOK {
		t.Errorf("put status = %d", rec.Code)
	}
	if h.settings.values["gcs_project_id"] != "council" {
		t.Errorf("values = %v", h.settings.values)
	}

	if rec := h.do(t, "DELETE", "/v1/settings/missing", nil, true); rec.Code != http.StatusNotFound {
		t.Errorf("delete missing: status = %d, want 404", rec.Code)
	}
	if rec := h.do(t, "DELETE", "/v1/settings/gcs_project_id", nil, true); rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
}

// --- Integrations ---

func TestIntegrations_InvalidateAndStatus(t *testing.T) {
	h := newHarness(t, nil)

	if rec := h.do(t, "POST", "/v1/integrations/ftp/invalidate", nil, true); rec.Code != http.StatusNotFound {
		t.Errorf("unknown: status = %d, want 404", rec.Code)
	}
	if rec := h.do(t, "POST", "/v1/integrations/gmail/invalidate", nil, true); rec.Code != http.StatusOK {
		t.Errorf("invalidate status = %d", rec.Code)
	}
	if len(h.integ.invalidated) != 1 || h.integ.invalidated[0] != "gmail" {
		t.Errorf("invalidated = %v", h.integ.invalidated)
	}

	rec := h.do(t, "GET", "/v1/integrations/status", nil, true)
	var status IntegrationStatusResponse
	decode(t, rec, &status)
	if len(status.Integrations) != 1 || len(status.Probes) != 1 || status.Probes[0].Up {
		t.Errorf("status = %+v", status)
	}
}

func TestIntegrations_InvalidateAll(t *testing.T) {
	h := newHarness(t, nil)

	if rec := h.do(t, "POST", "/v1/integrations/invalidate", nil, false); rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated: status = %d, want 401", rec.Code)
	}
	if rec := h.do(t, "POST", "/v1/integrations/invalidate", nil, true); rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(h.integ.invalidated) != 2 {
		t.Errorf("invalidated = %v, want both integrations", h.integ.invalidated)
	}
}

func TestGmailOAuthFlow(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, "GET", "/v1/integrations/gmail/authorize", nil, true)
	var auth AuthorizeResponse
	decode(t, rec, &auth)
	if !strings.Contains(auth.URL, "state=s1") {
		t.Errorf("authorize url = %q", auth.URL)
	}

	if rec := h.do(t, "GET", "/oauth/gmail/callback?state=forged&code=c", nil, false); rec.Code != http.StatusBadRequest {
		t.Errorf("forged state: status = %d, want 400", rec.Code)
	}

	rec = h.do(t, "GET", "/oauth/gmail/callback?state=s1&code=c", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("callback status = %d", rec.Code)
	}
	var cb CallbackResponse
	decode(t, rec, &cb)
	if !cb.Success || cb.ConnectedEmail != "council@example.org" {
		t.Errorf("callback = %+v", cb)
	}
}

// --- Contact form ---

func validContact() ContactRequest {
	return ContactRequest{Name: "Ana", Email: "ana@example.org", Message: "When is the next race?"}
}

func TestContact_FallbackTemplateAndReplyTo(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(t, "POST", "/contact", validContact(), false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(h.mail.sent) != 1 {
		t.Fatalf("sent = %d messages", len(h.mail.sent))
	}
	msg := h.mail.sent[0]
	if msg.To[0] != "info@council.example" || msg.ReplyTo != "ana@example.org" {
		t.Errorf("routing = to %v reply-to %q", msg.To, msg.ReplyTo)
	}
	if msg.Template.Subject != fallbackContactTemplate.Subject {
		t.Errorf("expected fallback template, got %q", msg.Template.Subject)
	}
	if msg.Vars["subject"] != "message from Ana" {
		t.Errorf("subject var = %q", msg.Vars["subject"])
	}
	if v := contactCount(t, h.obs, "sent"); v != 1 {
		t.Errorf("contact sent = %v, want 1", v)
	}
}

func TestContact_StoredTemplate(t *testing.T) {
	h := newHarness(t, nil)
	_ = h.templates.Upsert(context.Background(), &domain.MailTemplate{Name: "contact", Subject: "Website: {{subject}}", Text: "{{message}}"})

	if rec := h.do(t, "POST", "/contact", validContact(), false); rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := h.mail.sent[0].Template.Subject; got != "Website: {{subject}}" {
		t.Errorf("template subject = %q", got)
	}
}

func TestContact_ValidationAndRateLimit(t *testing.T) {
	h := newHarness(t, nil)

	bad := validContact()
	bad.Email = "not-an-email"
	if rec := h.do(t, "POST", "/contact", bad, false); rec.Code != http.StatusBadRequest {
		t.Errorf("bad email: status = %d, want 400", rec.Code)
	}
	// The invalid submission used one of the two burst tokens.
	if rec := h.do(t, "POST", "/contact", validContact(), false); rec.Code != http.StatusOK {
		t.Errorf("second: status = %d, want 200", rec.Code)
	}
	if rec := h.do(t, "POST", "/contact", validContact(), false); rec.Code != http.StatusTooManyRequests {
		t.Errorf("third: status = %d, want 429", rec.Code)
	}
	if v := contactCount(t, h.obs, "rate_limited"); v != 1 {
		t.Errorf("rate_limited = %v, want 1", v)
	}
}

func TestContact_DeliveryFailureHidesVendorError(t *testing.T) {
	h := newHarness(t, nil)
	h.mail.fail = true

	rec := h.do(t, "POST", "/contact", validContact(), false)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "invalid_grant") {
		t.Errorf("vendor error leaked: %s", rec.Body.String())
	}
}

func TestContact_Disabled(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Contact.Enabled = false })
	if rec := h.do(t, "POST", "/contact", validContact(), false); rec.Code == http.StatusOK {
		t.Error("contact route served while disabled")
	}
}

func TestContact_NoRecipient(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.Contact.Recipient = "" })
	if rec := h.do(t, "POST", "/contact", validContact(), false); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("POST", "/contact", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("clientIP = %q", got)
	}
	req.RemoteAddr = "pipe"
	if got := clientIP(req); got != "pipe" {
		t.Errorf("clientIP = %q", got)
	}
}

func contactCount(t *testing.T, obs *observability.Observability, status string) float64 {
	t.Helper()
	var m dto.Metric
	c, err := obs.Metrics.ContactSubmissionsTotal.GetMetricWith(prometheus.Labels{"status": status})
	if err != nil {
		t.Fatalf("contact metric: %v", err)
	}
	if err := c.Write(&m); err != nil {
		t.Fatalf("contact metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
