package database

import (
	"fmt"
	"time"
)

// DedupSettings holds the tunables of duplicate detection
type DedupSettings struct {
	ID                       uint      `gorm:"primaryKey" json:"id"`
	EmbeddingThreshold       float64   `gorm:"type:decimal(4,3);default:0.92" json:"embedding_threshold"`
	TitleMatchEnabled        bool      `gorm:"default:true" json:"title_match_enabled"`
	DetectionJobEnabled      bool      `gorm:"default:true" json:"detection_job_enabled"`
	DetectionIntervalMinutes int       `gorm:"default:30" json:"detection_interval_minutes"`
	MaxPairs                 int       `gorm:"default:50000" json:"max_pairs"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

func (DedupSettings) TableName() string {
	return "dedup_settings"
}

// NewDefaultDedupSettings returns settings with default values
func NewDefaultDedupSettings() *DedupSettings {
	return &DedupSettings{
		EmbeddingThreshold:       0.92,
		TitleMatchEnabled:        true,
		DetectionJobEnabled:      true,
		DetectionIntervalMinutes: 30,
		MaxPairs:                 50000,
	}
}

// Validate checks the settings are usable
func (s *DedupSettings) Validate() error {
	if s.EmbeddingThreshold <= 0 || s.EmbeddingThreshold > 1 {
		return fmt.Errorf("embedding_threshold must be in (0, 1], got %.3f", s.EmbeddingThreshold)
	}
	if s.DetectionIntervalMinutes < 1 {
		return fmt.Errorf("detection_interval_minutes must be at least 1, got %d", s.DetectionIntervalMinutes)
	}
	if s.MaxPairs < 1 {
		return fmt.Errorf("max_pairs must be at least 1, got %d", s.MaxPairs)
	}
	return nil
}
