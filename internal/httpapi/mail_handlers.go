package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jkaninda/okapi"

	"github.com/sportscouncil/backoffice/internal/domain"
	"github.com/sportscouncil/backoffice/internal/mailer"
)

// **** Mail request/response types ****

// StoredTemplateSendRequest is the JSON body for POST /v1/mail/templates/{name}/send.
type StoredTemplateSendRequest struct {
	To      []string          `json:"to"`
	ReplyTo string            `json:"reply_to,omitempty"`
	Vars    map[string]string `json:"vars,omitempty"`
}

// InlineTemplateSendRequest is the JSON body for POST /v1/mail/send-template.
type InlineTemplateSendRequest struct {
	To       []string          `json:"to"`
	Cc       []string          `json:"cc,omitempty"`
	ReplyTo  string            `json:"reply_to,omitempty"`
	Template TemplateBody      `json:"template"`
	Vars     map[string]string `json:"vars,omitempty"`
}

// TemplateBody is the content of a mail template.
type TemplateBody struct {
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}

// TemplateRequest is the JSON body for PUT /v1/mail/templates.
type TemplateRequest struct {
	Name string `json:"name"`
	TemplateBody
}

type TemplateResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject"`
	Text      string    `json:"text,omitempty"`
	HTML      string    `json:"html,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toTemplateResponse(t *domain.MailTemplate) TemplateResponse {
	return TemplateResponse{
		ID:        t.ID.String(),
		Name:      t.Name,
		Subject:   t.Subject,
		Text:      t.Text,
		HTML:      t.HTML,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func (s *Server) mailRoutes() {
	s.group.Post("/mail/send", s.handleMailSend,
		okapi.DocSummary("Send an email from the connected account"),
		okapi.DocTags("Mail"),
		okapi.DocRequestBody(mailer.Message{}),
		okapi.DocResponse(mailer.SendResult{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusBadGateway, mailer.SendResult{}),
	)
	s.group.Post("/mail/send-template", s.handleMailSendInline,
		okapi.DocSummary("Render an inline template and send it"),
		okapi.DocTags("Mail"),
		okapi.DocRequestBody(InlineTemplateSendRequest{}),
		okapi.DocResponse(mailer.SendResult{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusBadGateway, mailer.SendResult{}),
	)
	s.group.Post("/mail/templates/{name}/send", s.handleMailSendStored,
		okapi.DocSummary("Render a stored template and send it"),
		okapi.DocTags("Mail"),
		okapi.DocPathParam("name", "string", "Template name"),
		okapi.DocRequestBody(StoredTemplateSendRequest{}),
		okapi.DocResponse(mailer.SendResult{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
		okapi.DocResponse(http.StatusBadGateway, mailer.SendResult{}),
	)
	s.group.Get("/mail/templates", s.handleTemplateList,
		okapi.DocSummary("List mail templates"),
		okapi.DocTags("Mail"),
		okapi.DocResponse([]TemplateResponse{}),
	)
	s.group.Put("/mail/templates", s.handleTemplatePut,
		okapi.DocSummary("Create or replace a mail template"),
		okapi.DocTags("Mail"),
		okapi.DocRequestBody(TemplateRequest{}),
		okapi.DocResponse(TemplateResponse{}),
		okapi.DocResponse(http.StatusBadRequest, ErrorBody{}),
	)
	s.group.Delete("/mail/templates/{name}", s.handleTemplateDelete,
		okapi.DocSummary("Delete a mail template"),
		okapi.DocTags("Mail"),
		okapi.DocPathParam("name", "string", "Template name"),
		okapi.DocResponse(map[string]string{}),
		okapi.DocResponse(http.StatusNotFound, ErrorBody{}),
	)
}

func (s *Server) handleMailSend(c *okapi.Context) error {
	var req mailer.Message
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if len(req.To) == 0 {
		return c.AbortBadRequest("to is required")
	}
	if req.Text == "" && req.HTML == "" {
		return c.AbortBadRequest("text or html is required")
	}

	s.logger.InfoContext(c.Context(), "mail send",
		slog.String("user_id", c.GetString("userID")),
		slog.Int("recipients", len(req.To)+len(req.Cc)),
	)

	res := s.deps.Mail.Send(c.Context(), req)
	return respond(c, res.Outcome, res)
}

func (s *Server) handleMailSendInline(c *okapi.Context) error {
	var req InlineTemplateSendRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if len(req.To) == 0 {
		return c.AbortBadRequest("to is required")
	}
	tmpl := domain.MailTemplate{
		Name:    "inline",
		Subject: req.Template.Subject,
		Text:    req.Template.Text,
		HTML:    req.Template.HTML,
	}
	if err := mailer.ValidateTemplate(&tmpl); err != nil {
		return c.AbortBadRequest(err.Error())
	}

	res := s.deps.Mail.SendTemplate(c.Context(), mailer.TemplateMessage{
		To:       req.To,
		Cc:       req.Cc,
		ReplyTo:  req.ReplyTo,
		Template: tmpl,
		Vars:     req.Vars,
	})
	return respond(c, res.Outcome, res)
}

func (s *Server) handleMailSendStored(c *okapi.Context) error {
	name := c.Param("name")
	var req StoredTemplateSendRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	if len(req.To) == 0 {
		return c.AbortBadRequest("to is required")
	}

	s.logger.InfoContext(c.Context(), "mail template send",
		slog.String("user_id", c.GetString("userID")),
		slog.String("template", name),
	)

	res := s.deps.Mail.SendStoredTemplate(c.Context(), name, req.To, req.ReplyTo, req.Vars)
	return respond(c, res.Outcome, res)
}

func (s *Server) handleTemplateList(c *okapi.Context) error {
	templates, err := s.deps.Templates.List(c.Context())
	if err != nil {
		s.logger.ErrorContext(c.Context(), "listing mail templates failed", slog.String("error", err.Error()))
		return c.AbortInternalServerError("listing templates failed")
	}
	resp := make([]TemplateResponse, len(templates))
	for i := range templates {
		resp[i] = toTemplateResponse(&templates[i])
	}
	return c.OK(resp)
}

func (s *Server) handleTemplatePut(c *okapi.Context) error {
	var req TemplateRequest
	if err := c.Bind(&req); err != nil {
		return c.AbortBadRequest("invalid request body")
	}
	tmpl := &domain.MailTemplate{
		Name:    req.Name,
		Subject: req.Subject,
		Text:    req.Text,
		HTML:    req.HTML,
	}
	if err := mailer.ValidateTemplate(tmpl); err != nil {
		return c.AbortBadRequest(err.Error())
	}
	if err := s.deps.Templates.Upsert(c.Context(), tmpl); err != nil {
		s.logger.ErrorContext(c.Context(), "storing mail template failed",
			slog.String("template", req.Name),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("storing template failed")
	}

	s.logger.InfoContext(c.Context(), "mail template stored",
		slog.String("user_id", c.GetString("userID")),
		slog.String("template", tmpl.Name),
	)
	return c.OK(toTemplateResponse(tmpl))
}

func (s *Server) handleTemplateDelete(c *okapi.Context) error {
	name := c.Param("name")
	if err := s.deps.Templates.Delete(c.Context(), name); err != nil {
		if errors.Is(err, mailer.ErrTemplateNotFound) {
			return c.JSON(http.StatusNotFound, ErrorBody{Error: "template not found"})
		}
		s.logger.ErrorContext(c.Context(), "deleting mail template failed",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		return c.AbortInternalServerError("deleting template failed")
	}
	return c.OK(map[string]string{"status": "deleted"})
}
