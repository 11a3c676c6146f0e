package database

import "time"

// CanonicalMapping records that a lesson was superseded by a canonical lesson.
// DuplicateID is the primary key: a duplicate maps to exactly one canonical, ever.
// Rows are only inserted, never updated.
type CanonicalMapping struct {
	DuplicateID     string    `gorm:"primaryKey;type:varchar(64)" json:"duplicate_id"`
	CanonicalID     string    `gorm:"type:varchar(64);not null;index" json:"canonical_id"`
	GroupID         string    `gorm:"type:varchar(32)" json:"group_id"`
	DetectionMethod string    `gorm:"type:varchar(32)" json:"detection_method"`
	ResolvedBy      string    `gorm:"type:varchar(100);not null" json:"resolved_by"`
	Notes           string    `gorm:"type:text" json:"notes"`
	CreatedAt       time.Time `json:"created_at"`
}

func (CanonicalMapping) TableName() string {
	return "canonical_mappings"
}
