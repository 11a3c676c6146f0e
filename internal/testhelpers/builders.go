package testhelpers

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/duplicates"
)

// ========================================
// Lesson Builder
// ========================================

// LessonBuilder builds Lesson instances for testing
type LessonBuilder struct {
	lesson   database.Lesson
	vector   []float64
	hasEmbed bool
}

// NewLessonBuilder creates a new lesson builder with defaults
func NewLessonBuilder(id string) *LessonBuilder {
	return &LessonBuilder{
		lesson: database.Lesson{
			ID:        id,
			Title:     "Lesson " + id,
			Summary:   "Summary of " + id,
			Content:   "Content of lesson " + id,
			Subject:   "testing",
			Author:    "tester",
			Status:    database.LessonStatusPublished,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		},
	}
}

// WithTitle sets the title
func (b *LessonBuilder) WithTitle(title string) *LessonBuilder {
	b.lesson.Title = title
	return b
}

// WithContent sets the content; the content hash is derived on save
func (b *LessonBuilder) WithContent(content string) *LessonBuilder {
	b.lesson.Content = content
	return b
}

// WithAuthor sets the author
func (b *LessonBuilder) WithAuthor(author string) *LessonBuilder {
	b.lesson.Author = author
	return b
}

// WithEmbedding attaches an embedding written alongside the lesson by Create
func (b *LessonBuilder) WithEmbedding(vector ...float64) *LessonBuilder {
	b.vector = vector
	b.hasEmbed = true
	return b
}

// SupersededBy marks the lesson as already archived against canonicalID
func (b *LessonBuilder) SupersededBy(canonicalID string) *LessonBuilder {
	b.lesson.Status = database.LessonStatusSuperseded
	b.lesson.SupersededBy = &canonicalID
	return b
}

// Build returns the constructed lesson
func (b *LessonBuilder) Build() database.Lesson {
	return b.lesson
}

// Create inserts the lesson, and its embedding when set
func (b *LessonBuilder) Create(t *testing.T, db *gorm.DB) database.Lesson {
	t.Helper()
	lesson := b.lesson
	if err := db.Create(&lesson).Error; err != nil {
		t.Fatalf("failed to create lesson %s: %v", lesson.ID, err)
	}
	if b.hasEmbed {
		embedding := database.LessonEmbedding{LessonID: lesson.ID, Model: "test", Vector: b.vector}
		if err := db.Create(&embedding).Error; err != nil {
			t.Fatalf("failed to create embedding for %s: %v", lesson.ID, err)
		}
	}
	return lesson
}

// CreateLessons inserts one default lesson per id
func CreateLessons(t *testing.T, db *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		NewLessonBuilder(id).Create(t, db)
	}
}

// ========================================
// Signal Pairs
// ========================================

// Pair builds a provider pair without similarity
func Pair(id1, id2 string, method duplicates.DetectionMethod) duplicates.SignalPair {
	return duplicates.SignalPair{ID1: id1, ID2: id2, DetectionMethod: string(method)}
}

// SimilarPair builds a provider pair with similarity
func SimilarPair(id1, id2 string, method duplicates.DetectionMethod, similarity float64) duplicates.SignalPair {
	return duplicates.SignalPair{ID1: id1, ID2: id2, DetectionMethod: string(method), Similarity: &similarity}
}

// StaticSignalProvider returns a fixed pair list. Safe for concurrent use.
type StaticSignalProvider struct {
	mu    sync.Mutex
	Pairs []duplicates.SignalPair
	Err   error
	calls int
}

// NewStaticSignalProvider creates a provider returning pairs
func NewStaticSignalProvider(pairs ...duplicates.SignalPair) *StaticSignalProvider {
	return &StaticSignalProvider{Pairs: pairs}
}

// DetectPairs returns the configured pairs or error
func (p *StaticSignalProvider) DetectPairs(ctx context.Context, includeResolved bool) ([]duplicates.SignalPair, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Err != nil {
		return nil, p.Err
	}
	out := make([]duplicates.SignalPair, len(p.Pairs))
	copy(out, p.Pairs)
	return out, nil
}

// Calls returns how many times DetectPairs ran
func (p *StaticSignalProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
