package postgres

import (
	"github.com/sportscouncil/backoffice/internal/domain"
)

// --- Setting ---

func toSettingModel(s *domain.Setting) SettingModel {
	return SettingModel{
		Key:       s.Key,
		Value:     s.Value,
		Encrypted: s.Encrypted,
		UpdatedAt: s.UpdatedAt,
	}
}

func toSettingDomain(m *SettingModel) *domain.Setting {
	return &domain.Setting{
		Key:       m.Key,
		Value:     m.Value,
		Encrypted: m.Encrypted,
		UpdatedAt: m.UpdatedAt,
	}
}

// --- Mail template ---

func toMailTemplateModel(t *domain.MailTemplate) MailTemplateModel {
	return MailTemplateModel{
		ID:        t.ID,
		Name:      t.Name,
		Subject:   t.Subject,
		TextBody:  t.Text,
		HTMLBody:  t.HTML,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func toMailTemplateDomain(m *MailTemplateModel) *domain.MailTemplate {
	return &domain.MailTemplate{
		ID:        m.ID,
		Name:      m.Name,
		Subject:   m.Subject,
		Text:      m.TextBody,
		HTML:      m.HTMLBody,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
