package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/lessonbank/dedup/internal/database"
)

// maxCanonicalHops bounds CanonicalChain against corrupt mapping cycles.
const maxCanonicalHops = 32

// CatalogStore provides the catalog reads used by enrichment and the audit API
type CatalogStore struct {
	db *gorm.DB
}

// NewCatalogStore creates a new catalog store
func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// GetLessons fetches the given lessons in a single query, keyed by id.
// Unknown ids are absent from the result.
func (c *CatalogStore) GetLessons(ctx context.Context, ids []string) (map[string]database.Lesson, error) {
	result := make(map[string]database.Lesson, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var lessons []database.Lesson
	if err := c.db.WithContext(ctx).Where("id IN ?", ids).Find(&lessons).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch lessons: %w", err)
	}
	for _, l := range lessons {
		result[l.ID] = l
	}
	return result, nil
}

// GetLesson returns one lesson by id
func (c *CatalogStore) GetLesson(ctx context.Context, id string) (*database.Lesson, error) {
	var lesson database.Lesson
	err := c.db.WithContext(ctx).Where("id = ?", id).First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrLessonNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

// hasCanonicalMapping reports whether id was already archived against a canonical
func hasCanonicalMapping(db *gorm.DB, id string) (bool, error) {
	var count int64
	if err := db.Model(&database.CanonicalMapping{}).Where("duplicate_id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CanonicalChain follows canonical mappings from id. The first element is id
// itself and the last is the lesson currently standing in for it.
func (c *CatalogStore) CanonicalChain(ctx context.Context, id string) ([]database.CanonicalMapping, string, error) {
	if _, err := c.GetLesson(ctx, id); err != nil {
		return nil, "", err
	}

	var chain []database.CanonicalMapping
	visited := map[string]bool{id: true}
	current := id
	for hop := 0; hop < maxCanonicalHops; hop++ {
		var mapping database.CanonicalMapping
		err := c.db.WithContext(ctx).Where("duplicate_id = ?", current).First(&mapping).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chain, current, nil
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to follow canonical mapping for %s: %w", current, err)
		}
		chain = append(chain, mapping)
		if visited[mapping.CanonicalID] {
			return nil, "", fmt.Errorf("canonical mapping cycle at %s", mapping.CanonicalID)
		}
		visited[mapping.CanonicalID] = true
		current = mapping.CanonicalID
	}
	return nil, "", fmt.Errorf("canonical chain for %s exceeds %d hops", id, maxCanonicalHops)
}

// ListArchived returns archive snapshots, newest first, and the total count
func (c *CatalogStore) ListArchived(ctx context.Context, offset, limit int) ([]database.ArchivedLesson, int64, error) {
	var total int64
	if err := c.db.WithContext(ctx).Model(&database.ArchivedLesson{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count archived lessons: %w", err)
	}

	var archived []database.ArchivedLesson
	err := c.db.WithContext(ctx).
		Order("archived_at DESC").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&archived).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list archived lessons: %w", err)
	}
	return archived, total, nil
}
