package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ArchivedLesson is an immutable snapshot of a lesson taken when it was archived
// against a canonical lesson. Append-only.
type ArchivedLesson struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	LessonID    string    `gorm:"type:varchar(64);not null;index" json:"lesson_id"`
	CanonicalID string    `gorm:"type:varchar(64);not null;index" json:"canonical_id"`
	Title       string    `gorm:"type:varchar(512)" json:"title"`
	Snapshot    JSONB     `gorm:"type:jsonb" json:"snapshot"`
	ArchivedBy  string    `gorm:"type:varchar(100);not null" json:"archived_by"`
	ArchivedAt  time.Time `gorm:"not null;index" json:"archived_at"`
}

func (ArchivedLesson) TableName() string {
	return "archived_lessons"
}

// BeforeCreate GORM hook
func (a *ArchivedLesson) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.ArchivedAt.IsZero() {
		a.ArchivedAt = time.Now()
	}
	return nil
}
