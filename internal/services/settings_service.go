package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/lessonbank/dedup/internal/database"
)

// SettingsService reads and updates the detection tunables
type SettingsService struct {
	db     *gorm.DB
	groups GroupIndex
}

// NewSettingsService creates a new settings service. Updates invalidate
// groups, which may be nil.
func NewSettingsService(db *gorm.DB, groups GroupIndex) *SettingsService {
	return &SettingsService{db: db, groups: groups}
}

// GetSettings returns dedup settings (creates defaults if not exists)
func (s *SettingsService) GetSettings(ctx context.Context) (*database.DedupSettings, error) {
	return database.GetOrCreateDedupSettings(s.db.WithContext(ctx))
}

// UpdateSettings validates and stores settings. Cached detection runs were
// computed with the old values and are dropped.
func (s *SettingsService) UpdateSettings(ctx context.Context, settings *database.DedupSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := database.UpdateDedupSettings(s.db.WithContext(ctx), settings); err != nil {
		return err
	}
	if s.groups != nil {
		s.groups.Invalidate()
	}
	return nil
}
