package postgres

import (
	"time"

	"github.com/google/uuid"
)

// SettingModel maps to the "settings" table.
type SettingModel struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text;not null"`
	Encrypted bool   `gorm:"not null;default:false"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SettingModel) TableName() string { return "settings" }

// MailTemplateModel maps to the "mail_templates" table.
type MailTemplateModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string    `gorm:"not null;uniqueIndex;size:128"`
	Subject   string    `gorm:"not null"`
	TextBody  string    `gorm:"type:text;not null;default:''"`
	HTMLBody  string    `gorm:"column:html_body;type:text;not null;default:''"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (MailTemplateModel) TableName() string { return "mail_templates" }

// Models lists every model in migration order. The SQLite backend migrates the same set.
func Models() []any {
	return []any{
		&SettingModel{},
		&MailTemplateModel{},
	}
}
