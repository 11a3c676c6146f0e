package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lessonbank/dedup/internal/utils"
)

// JSONB is a custom type for PostgreSQL JSONB columns
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, j)
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Vector is an embedding stored as a JSON array of floats
type Vector []float64

// Scan implements the sql.Scanner interface
func (v *Vector) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	bytes, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(bytes, v)
}

// Value implements the driver.Valuer interface
func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// sqlite hands text columns back as strings, postgres as bytes.
func scanBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, errors.New("type assertion to []byte failed")
	}
}

// LessonStatus is the lifecycle state of a catalog lesson
type LessonStatus string

const (
	LessonStatusDraft      LessonStatus = "draft"
	LessonStatusPublished  LessonStatus = "published"
	LessonStatusSuperseded LessonStatus = "superseded"
)

// Lesson is a live catalog entry
type Lesson struct {
	ID              string       `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Title           string       `gorm:"type:varchar(512);not null" json:"title"`
	NormalizedTitle string       `gorm:"type:varchar(512);index" json:"-"`
	Summary         string       `gorm:"type:text" json:"summary"`
	Content         string       `gorm:"type:text" json:"-"`
	ContentHash     string       `gorm:"type:varchar(64);index" json:"content_hash"`
	Subject         string       `gorm:"type:varchar(128)" json:"subject"`
	Author          string       `gorm:"type:varchar(255)" json:"author"`
	Status          LessonStatus `gorm:"type:varchar(20);not null;default:published;index" json:"status"`
	SupersededBy    *string      `gorm:"type:varchar(64)" json:"superseded_by,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// BeforeSave fills the id and the derived match columns
func (l *Lesson) BeforeSave(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	l.NormalizedTitle = utils.NormalizeTitle(l.Title)
	if l.ContentHash == "" {
		l.ContentHash = utils.ContentHash(l.Content)
	}
	return nil
}

// IsSuperseded returns true once the lesson has been archived against a canonical
func (l Lesson) IsSuperseded() bool {
	return l.Status == LessonStatusSuperseded
}

// Snapshot captures the lesson as it is right now for the archive table
func (l Lesson) Snapshot() JSONB {
	snap := JSONB{
		"id":           l.ID,
		"title":        l.Title,
		"summary":      l.Summary,
		"content":      l.Content,
		"content_hash": l.ContentHash,
		"subject":      l.Subject,
		"author":       l.Author,
		"status":       string(l.Status),
		"created_at":   l.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":   l.UpdatedAt.UTC().Format(time.RFC3339),
	}
	return snap
}

// LessonEmbedding holds the embedding vector computed for a lesson
type LessonEmbedding struct {
	LessonID  string    `gorm:"primaryKey;type:varchar(64)" json:"lesson_id"`
	Model     string    `gorm:"type:varchar(128)" json:"model"`
	Vector    Vector    `gorm:"type:text;not null" json:"vector"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LessonEmbedding) TableName() string {
	return "lesson_embeddings"
}
