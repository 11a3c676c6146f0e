package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/duplicates"
)

// DismissalStore persists "not duplicates" decisions, keyed by member set
type DismissalStore struct {
	db *gorm.DB
}

// NewDismissalStore creates a new dismissal store
func NewDismissalStore(db *gorm.DB) *DismissalStore {
	return &DismissalStore{db: db}
}

// Dismiss records that memberIDs are not duplicates. Dismissing the same set
// again, in any order, returns the existing record.
func (s *DismissalStore) Dismiss(ctx context.Context, memberIDs []string, method duplicates.DetectionMethod, notes, dismissedBy string) (*database.DismissedGroup, error) {
	ids := duplicates.SortedIDs(memberIDs)
	if len(ids) < 2 {
		return nil, duplicates.ErrTooFewMembers
	}

	record := database.DismissedGroup{
		MemberKey:       duplicates.DismissalKey(ids),
		MemberCount:     len(ids),
		DetectionMethod: string(method),
		Notes:           notes,
		DismissedBy:     dismissedBy,
	}

	db := s.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to dismiss group: %w", err)
	}

	var stored database.DismissedGroup
	if err := db.Where("member_key = ?", record.MemberKey).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("failed to read dismissal: %w", err)
	}
	return &stored, nil
}

// IsDismissed reports whether exactly this member set was dismissed
func (s *DismissalStore) IsDismissed(ctx context.Context, memberIDs []string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&database.DismissedGroup{}).
		Where("member_key = ?", duplicates.DismissalKey(memberIDs)).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DismissedKeys returns every dismissal key in one query
func (s *DismissalStore) DismissedKeys(ctx context.Context) (map[string]struct{}, error) {
	var keys []string
	if err := s.db.WithContext(ctx).Model(&database.DismissedGroup{}).Pluck("member_key", &keys).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch dismissed groups: %w", err)
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

// List returns all dismissals, newest first
func (s *DismissalStore) List(ctx context.Context) ([]database.DismissedGroup, error) {
	var groups []database.DismissedGroup
	err := s.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&groups).Error
	return groups, err
}
