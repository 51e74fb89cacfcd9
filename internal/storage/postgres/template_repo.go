package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sportscouncil/backoffice/internal/domain"
	"github.com/sportscouncil/backoffice/internal/mailer"
)

// MailTemplateRepository implements mailer.TemplateStore with GORM.
type MailTemplateRepository struct {
	db *gorm.DB
}

// NewMailTemplateRepository creates a MailTemplateRepository.
func NewMailTemplateRepository(db *gorm.DB) *MailTemplateRepository {
	return &MailTemplateRepository{db: db}
}

// GetByName retrieves a template by its unique name.
func (r *MailTemplateRepository) GetByName(ctx context.Context, name string) (*domain.MailTemplate, error) {
	var m MailTemplateModel
	if err := r.db.WithContext(ctx).
		Where(map[string]any{"name": name}).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", mailer.ErrTemplateNotFound, name)
		}
		return nil, fmt.Errorf("getting mail template %q: %w", name, err)
	}
	return toMailTemplateDomain(&m), nil
}

// List returns all templates ordered by name.
func (r *MailTemplateRepository) List(ctx context.Context) ([]domain.MailTemplate, error) {
	var models []MailTemplateModel
	if err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing mail templates: %w", err)
	}
	out := make([]domain.MailTemplate, len(models))
	for i := range models {
		out[i] = *toMailTemplateDomain(&models[i])
	}
	return out, nil
}

// Upsert creates the template or replaces the content of the one with the same name.
// On return t carries the stored ID and timestamps.
func (r *MailTemplateRepository) Upsert(ctx context.Context, t *domain.MailTemplate) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m := toMailTemplateModel(t)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"subject", "text_body", "html_body", "updated_at"}),
		}).
		Create(&m).Error; err != nil {
		return fmt.Errorf("storing mail template %q: %w", t.Name, err)
	}

	stored, err := r.GetByName(ctx, t.Name)
	if err != nil {
		return err
	}
	*t = *stored
	return nil
}

// Delete removes a template by name. Returns mailer.ErrTemplateNotFound if it does not exist.
func (r *MailTemplateRepository) Delete(ctx context.Context, name string) error {
	result := r.db.WithContext(ctx).
		Where(map[string]any{"name": name}).
		Delete(&MailTemplateModel{})
	if result.Error != nil {
		return fmt.Errorf("deleting mail template %q: %w", name, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", mailer.ErrTemplateNotFound, name)
	}
	return nil
}

var _ mailer.TemplateStore = (*MailTemplateRepository)(nil)
