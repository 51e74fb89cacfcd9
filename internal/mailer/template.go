package mailer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sportscouncil/backoffice/internal/domain"
)

// Rendered is a template with its variables substituted.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// Render replaces each {{key}} token in the subject, text and HTML of t with
// vars[key]. Substitution is literal and single-pass: replaced values are not
// scanned again, and tokens without a variable are left as they are.
func Render(t *domain.MailTemplate, vars map[string]string) Rendered {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	r := strings.NewReplacer(pairs...)
	return Rendered{
		Subject: r.Replace(t.Subject),
		Text:    r.Replace(t.Text),
		HTML:    r.Replace(t.HTML),
	}
}

// ValidateTemplate checks the fields a template needs before it is stored.
func ValidateTemplate(t *domain.MailTemplate) error {
	switch {
	case t.Name == "":
		return errors.New("template name is required")
	case strings.ContainsAny(t.Name, " /\\?#"):
		return fmt.Errorf("template name %q must not contain spaces, slashes, '?' or '#'", t.Name)
	case t.Subject == "":
		return errors.New("template subject is required")
	case t.Text == "" && t.HTML == "":
		return errors.New("template needs a text or HTML body")
	}
	return nil
}
