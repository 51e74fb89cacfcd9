// Package domain defines cross-cutting entity types used across the system.
// Types here are ORM-free; persistence lives in internal/storage.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Setting is one key/value pair in the mutable settings store.
// Value holds the encrypted envelope when Encrypted is true.
type Setting struct {
	Key       string
	Value     string
	Encrypted bool
	UpdatedAt time.Time
}

// MailTemplate is a named email template. Subject, Text and HTML may contain
// {{variable}} tokens that are replaced literally at send time.
type MailTemplate struct {
	ID        uuid.UUID
	Name      string // Unique, e.g. "contact", "event-submission".
	Subject   string
	Text      string
	HTML      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
