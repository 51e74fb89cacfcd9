package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sportscouncil/backoffice/internal/credentials"
	"github.com/sportscouncil/backoffice/internal/domain"
	"github.com/sportscouncil/backoffice/internal/observability"
)

const defaultTimeout = 30 * time.Second

// ClientSource hands out the current mail transport.
// *credentials.Manager[Transport] implements it.
type ClientSource interface {
	Client(ctx context.Context) (Transport, *credentials.Bundle, error)
}

// SendResult is the outcome of a send.
type SendResult struct {
	credentials.Outcome
	MessageID string `json:"message_id,omitempty"`
}

// TemplateMessage is a send from an inline template.
type TemplateMessage struct {
	To       []string
	Cc       []string
	ReplyTo  string
	Template domain.MailTemplate
	Vars     map[string]string
}

// Service sends mail. Operations never return errors: every failure is logged
// and reported through the embedded Outcome.
type Service struct {
	clients   ClientSource
	templates TemplateStore
	timeout   time.Duration
	obs       *observability.Observability
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a mail Service. templates and obs may be nil.
func NewService(clients ClientSource, templates TemplateStore, timeout time.Duration, obs *observability.Observability, logger *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Service{
		clients:   clients,
		templates: templates,
		timeout:   timeout,
		obs:       obs,
		logger:    logger,
		now:       time.Now,
	}
}

// Send delivers m from the connected account.
func (s *Service) Send(ctx context.Context, m Message) SendResult {
	return s.send(ctx, "send", m)
}

// SendTemplate renders tm.Template with tm.Vars and sends the result.
func (s *Service) SendTemplate(ctx context.Context, tm TemplateMessage) SendResult {
	r := Render(&tm.Template, tm.Vars)
	return s.send(ctx, "send_template", Message{
		To:      tm.To,
		Cc:      tm.Cc,
		ReplyTo: tm.ReplyTo,
		Subject: r.Subject,
		Text:    r.Text,
		HTML:    r.HTML,
	})
}

// SendStoredTemplate loads the template called name and sends it to to.
func (s *Service) SendStoredTemplate(ctx context.Context, name string, to []string, replyTo string, vars map[string]string) SendResult {
	if s.templates == nil {
		return SendResult{Outcome: s.fail(ctx, "send_template", ErrTemplateNotFound)}
	}
	t, err := s.templates.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrTemplateNotFound) {
			return SendResult{Outcome: credentials.Failed(fmt.Sprintf("mail template %q not found", name))}
		}
		return SendResult{Outcome: s.fail(ctx, "send_template", err)}
	}
	return s.SendTemplate(ctx, TemplateMessage{To: to, ReplyTo: replyTo, Template: *t, Vars: vars})
}

// Check verifies that the connected account is reachable.
func (s *Service) Check(ctx context.Context) credentials.Outcome {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, done := s.obs.StartOperation(ctx, Integration, "check")
	t, _, err := s.clients.Client(ctx)
	if err == nil {
		err = t.Verify(ctx)
	}
	done(err)
	if err != nil {
		return s.fail(ctx, "check", err)
	}
	return credentials.OK()
}

func (s *Service) send(ctx context.Context, op string, m Message) SendResult {
	if len(m.To) == 0 {
		return SendResult{Outcome: credentials.Failed(ErrNoRecipients.Error())}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, done := s.obs.StartOperation(ctx, Integration, op)
	t, _, err := s.clients.Client(ctx)
	if err != nil {
		done(err)
		return SendResult{Outcome: s.fail(ctx, op, err)}
	}

	raw, err := buildMessage(t.Sender(), m, s.now())
	if err != nil {
		done(nil)
		return SendResult{Outcome: credentials.Failed(err.Error())}
	}

	id, err := t.Send(ctx, raw)
	done(err)
	if err != nil {
		return SendResult{Outcome: s.fail(ctx, op, err)}
	}
	s.logger.InfoContext(ctx, "mail sent",
		slog.String("operation", op),
		slog.String("message_id", id),
		slog.Int("recipients", len(m.To)+len(m.Cc)),
	)
	return SendResult{Outcome: credentials.OK(), MessageID: id}
}

func (s *Service) fail(ctx context.Context, op string, err error) credentials.Outcome {
	kind, msg := credentials.Classify(Integration, err)
	s.logger.ErrorContext(ctx, "mail operation failed",
		slog.String("integration", Integration),
		slog.String("operation", op),
		slog.String("kind", kind),
		slog.String("error", err.Error()),
	)
	return credentials.Failed(msg)
}
