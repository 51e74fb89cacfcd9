package httpapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/mail"
	"strings"

	"github.com/jkaninda/okapi"

	"github.com/sportscouncil/backoffice/internal/credentials"
	"github.com/sportscouncil/backoffice/internal/domain"
	"github.com/sportscouncil/backoffice/internal/mailer"
)

const (
	maxContactName    = 200
	maxContactMessage = 5000
)

// ContactRequest is the JSON body for POST /contact.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// fallbackContactTemplate is sent when no template with the configured name is stored.
var fallbackContactTemplate = domain.MailTemplate{
	Name:    "contact",
	Subject: "Contact form: {{subject}}",
	Text: "New message from the website contact form.\n\n" +
		"Name: {{name}}\nEmail: {{email}}\nPhone: {{phone}}\n\n{{message}}\n",
}

func (r ContactRequest) validate() error {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return errors.New("name is required")
	case len(r.Name) > maxContactName:
		return errors.New("name is too long")
	case strings.TrimSpace(r.Message) == "":
		return errors.New("message is required")
	case len(r.Message) > maxContactMessage:
		return errors.New("message is too long")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.New("a valid email is required")
	}
	return nil
}

func (s *Server) handleContact(c *okapi.Context) error {
	obs := s.deps.Observability
	ip := clientIP(c.Request())

	if s.limiter != nil {
		if err := s.limiter.Allow(ip); err != nil {
			obs.RecordContact("rate_limited")
			return c.AbortTooManyRequests("too many submissions, try again later")
		}
	}

	var req ContactRequest
	if err := c.Bind(&req); err != nil {
		obs.RecordContact("invalid")
		return c.AbortBadRequest("invalid request body")
	}
	if err := req.validate(); err != nil {
		obs.RecordContact("invalid")
		return c.AbortBadRequest(err.Error())
	}
	if s.config.Contact.Recipient == "" {
		return c.AbortServiceUnavailable("contact form is not configured")
	}

	tmpl, err := s.contactTemplate(c)
	if err != nil {
		obs.RecordContact("failed")
		out := credentials.Failed("message could not be sent")
		return respond(c, out, out)
	}

	subject := req.Subject
	if subject == "" {
		subject = "message from " + req.Name
	}
	correlationID := newCorrelationID()
	res := s.deps.Mail.SendTemplate(c.Context(), mailer.TemplateMessage{
		To:       []string{s.config.Contact.Recipient},
		ReplyTo:  req.Email,
		Template: *tmpl,
		Vars: map[string]string{
			"name":    req.Name,
			"email":   req.Email,
			"phone":   req.Phone,
			"subject": subject,
			"message": req.Message,
		},
	})
	if !res.Success {
		obs.RecordContact("failed")
		s.logger.ErrorContext(c.Context(), "contact submission not delivered",
			slog.String("correlation_id", correlationID),
			slog.String("error", res.Error),
		)
		// Vendor details stay in the logs.
		out := credentials.Failed("message could not be sent")
		return respond(c, out, out)
	}

	obs.RecordContact("sent")
	s.logger.InfoContext(c.Context(), "contact submission delivered",
		slog.String("correlation_id", correlationID),
		slog.String("message_id", res.MessageID),
	)
	return c.OK(credentials.OK())
}

// contactTemplate loads the configured template, or the built-in one when it is not stored.
func (s *Server) contactTemplate(c *okapi.Context) (*domain.MailTemplate, error) {
	name := s.config.Contact.Template
	if name == "" || s.deps.Templates == nil {
		return &fallbackContactTemplate, nil
	}
	t, err := s.deps.Templates.GetByName(c.Context(), name)
	if err != nil {
		if errors.Is(err, mailer.ErrTemplateNotFound) {
			return &fallbackContactTemplate, nil
		}
		s.logger.ErrorContext(c.Context(), "loading contact template failed",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return t, nil
}

// clientIP returns the host part of the remote address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
