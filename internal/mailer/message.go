package mailer

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
	"time"
)

// Message is one outgoing email. At least one of Text and HTML must be set;
// with both, the message is multipart/alternative.
type Message struct {
	To      []string `json:"to"`
	Cc      []string `json:"cc,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

func parseAddresses(list []string) ([]*mail.Address, error) {
	var out []*mail.Address
	for _, raw := range list {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			a, err := mail.ParseAddress(part)
			if err != nil {
				return nil, fmt.Errorf("invalid address %q: %w", part, err)
			}
			out = append(out, a)
		}
	}
	return out, nil
}

func joinAddresses(list []*mail.Address) string {
	s := make([]string, len(list))
	for i, a := range list {
		s[i] = a.String()
	}
	return strings.Join(s, ", ")
}

// buildMessage renders m as an RFC 5322 message sent by from.
func buildMessage(from string, m Message, date time.Time) ([]byte, error) {
	to, err := parseAddresses(m.To)
	if err != nil {
		return nil, err
	}
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}
	cc, err := parseAddresses(m.Cc)
	if err != nil {
		return nil, err
	}
	if m.Text == "" && m.HTML == "" {
		return nil, fmt.Errorf("message body is empty")
	}

	var b bytes.Buffer
	header := func(k, v string) { b.WriteString(k + ": " + v + "\r\n") }

	if from != "" {
		sender, err := mail.ParseAddress(from)
		if err != nil {
			return nil, fmt.Errorf("invalid sender %q: %w", from, err)
		}
		header("From", sender.String())
	}
	header("To", joinAddresses(to))
	if len(cc) > 0 {
		header("Cc", joinAddresses(cc))
	}
	if m.ReplyTo != "" {
		rt, err := mail.ParseAddress(m.ReplyTo)
		if err != nil {
			return nil, fmt.Errorf("invalid reply-to %q: %w", m.ReplyTo, err)
		}
		header("Reply-To", rt.String())
	}
	header("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	header("Date", date.Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	switch {
	case m.Text != "" && m.HTML != "":
		mw := multipart.NewWriter(&b)
		header("Content-Type", `multipart/alternative; boundary="`+mw.Boundary()+`"`)
		b.WriteString("\r\n")
		if err := writePart(mw, "text/plain", m.Text); err != nil {
			return nil, err
		}
		if err := writePart(mw, "text/html", m.HTML); err != nil {
			return nil, err
		}
		if err := mw.Close(); err != nil {
			return nil, err
		}
	case m.HTML != "":
		writeSingle(&b, header, "text/html", m.HTML)
	default:
		writeSingle(&b, header, "text/plain", m.Text)
	}
	return b.Bytes(), nil
}

func writePart(mw *multipart.Writer, contentType, body string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType+`; charset="utf-8"`)
	h.Set("Content-Transfer-Encoding", "quoted-printable")
	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}

func writeSingle(b *bytes.Buffer, header func(k, v string), contentType, body string) {
	header("Content-Type", contentType+`; charset="utf-8"`)
	header("Content-Transfer-Encoding", "quoted-printable")
	b.WriteString("\r\n")
	qp := quotedprintable.NewWriter(b)
	_, _ = qp.Write([]byte(body))
	_ = qp.Close()
}
