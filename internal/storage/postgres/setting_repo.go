package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sportscouncil/backoffice/internal/domain"
	"github.com/sportscouncil/backoffice/internal/settings"
)

// SettingRepository implements settings.Store with GORM.
type SettingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a SettingRepository.
func NewSettingRepository(db *gorm.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// GetSettings returns the stored values for keys. Missing and empty values are omitted.
// Values of encrypted settings are returned as envelopes.
func (r *SettingRepository) GetSettings(ctx context.Context, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var models []SettingModel
	if err := r.db.WithContext(ctx).
		Where(map[string]any{"key": keys}).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	for _, m := range models {
		if m.Value != "" {
			out[m.Key] = m.Value
		}
	}
	return out, nil
}

// Get retrieves one setting.
func (r *SettingRepository) Get(ctx context.Context, key string) (*domain.Setting, error) {
	var m SettingModel
	if err := r.db.WithContext(ctx).
		Where(map[string]any{"key": key}).
		First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", settings.ErrNotFound, key)
		}
		return nil, fmt.Errorf("getting setting %s: %w", key, err)
	}
	return toSettingDomain(&m), nil
}

// Put inserts or replaces a setting.
func (r *SettingRepository) Put(ctx context.Context, s *domain.Setting) error {
	m := toSettingModel(s)
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "encrypted", "updated_at"}),
		}).
		Create(&m).Error; err != nil {
		return fmt.Errorf("storing setting %s: %w", s.Key, err)
	}
	return nil
}

// PutMany upserts rows in one statement, so either all are stored or none.
func (r *SettingRepository) PutMany(ctx context.Context, rows []domain.Setting) error {
	if len(rows) == 0 {
		return nil
	}
	models := make([]SettingModel, len(rows))
	for i := range rows {
		models[i] = toSettingModel(&rows[i])
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "encrypted", "updated_at"}),
		}).
		Create(&models).Error; err != nil {
		return fmt.Errorf("storing %d settings: %w", len(rows), err)
	}
	return nil
}

// Delete removes a setting. Returns settings.ErrNotFound if it does not exist.
func (r *SettingRepository) Delete(ctx context.Context, key string) error {
	result := r.db.WithContext(ctx).
		Where(map[string]any{"key": key}).
		Delete(&SettingModel{})
	if result.Error != nil {
		return fmt.Errorf("deleting setting %s: %w", key, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", settings.ErrNotFound, key)
	}
	return nil
}

// List returns all settings ordered by key.
func (r *SettingRepository) List(ctx context.Context) ([]domain.Setting, error) {
	var models []SettingModel
	if err := r.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	out := make([]domain.Setting, len(models))
	for i := range models {
		out[i] = *toSettingDomain(&models[i])
	}
	return out, nil
}

var _ settings.Store = (*SettingRepository)(nil)
