package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/duplicates"
	"github.com/lessonbank/dedup/internal/metrics"
	"github.com/lessonbank/dedup/internal/utils"
)

const maxNotesLength = 2000

var (
	ErrAlreadyArchived      = errors.New("lesson is already archived")
	ErrLessonNotFound       = errors.New("lesson not found")
	ErrCanonicalUnavailable = errors.New("canonical lesson is missing or superseded")
)

// ResolveResult reports what a resolution did. On failure ArchivedCount is the
// number of archives committed before the failing one.
type ResolveResult struct {
	Success       bool   `json:"success"`
	ArchivedCount int    `json:"archived_count"`
	KeptCount     int    `json:"kept_count"`
	Error         string `json:"error,omitempty"`
}

// GroupIndex gives the resolution engine the groups of the latest detection
// run. *DuplicateService implements it.
type GroupIndex interface {
	LookupGroup(groupID string, includeResolved bool) (duplicates.DuplicateGroup, bool)
	Invalidate()
}

// ResolutionService applies reviewer decisions to the catalog
type ResolutionService struct {
	db       *gorm.DB
	groups   GroupIndex
	notifier Notifier
	metrics  *metrics.DedupMetrics
}

// NewResolutionService creates a new resolution service. groups, notifier
// and m may be nil.
func NewResolutionService(db *gorm.DB, groups GroupIndex, notifier Notifier, m *metrics.DedupMetrics) *ResolutionService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &ResolutionService{db: db, groups: groups, notifier: notifier, metrics: m}
}

// ResolveGroup validates res and archives every "archive" entry against its
// target, one transaction per entry, in request order. Execution stops at
// the first failing entry. Archives committed before it stay committed and
// are reported in ArchivedCount. The returned result is never nil.
func (s *ResolutionService) ResolveGroup(ctx context.Context, res duplicates.GroupResolution, resolvedBy string) (*ResolveResult, error) {
	start := time.Now()
	result := &ResolveResult{}

	if err := s.validate(res); err != nil {
		result.Error = err.Error()
		s.metrics.RecordResolution(metrics.ResolutionRejected, time.Since(start))
		return result, err
	}
	result.KeptCount = len(res.KeptIDs())

	var method duplicates.DetectionMethod
	if s.groups != nil {
		if g, ok := s.groups.LookupGroup(res.GroupID, res.IncludeResolved); ok {
			method = g.DetectionMethod
		}
	}
	notes := utils.SanitizeNotes(res.Notes, maxNotesLength)

	var failure error
	for _, entry := range res.Archives() {
		if err := ctx.Err(); err != nil {
			failure = err
			break
		}
		if err := s.archiveLesson(ctx, res.GroupID, method, entry, notes, resolvedBy); err != nil {
			s.metrics.RecordArchive(archiveOutcome(err))
			failure = fmt.Errorf("failed to archive %s: %w", entry.EntryID, err)
			break
		}
		s.metrics.RecordArchive(metrics.ArchiveSuccess)
		result.ArchivedCount++
	}

	if result.ArchivedCount > 0 && s.groups != nil {
		s.groups.Invalidate()
	}

	outcome := metrics.ResolutionSuccess
	if failure != nil {
		result.Error = failure.Error()
		outcome = metrics.ResolutionFailed
		if result.ArchivedCount > 0 {
			outcome = metrics.ResolutionPartial
		}
		log.Printf("Warning: ResolutionService: %s stopped after %d archive(s): %v",
			res.GroupID, result.ArchivedCount, failure)
	} else {
		result.Success = true
		log.Printf("ResolutionService: %s resolved by %s (%d archived, %d kept)",
			res.GroupID, utils.EscapeForLogging(resolvedBy, 100), result.ArchivedCount, result.KeptCount)
	}
	s.metrics.RecordResolution(outcome, time.Since(start))
	s.notifier.NotifyResolution(ctx, res.GroupID, result, resolvedBy)

	return result, failure
}

// validate runs the shape checks and, when the run the group id came from is
// still cached, the membership check.
func (s *ResolutionService) validate(res duplicates.GroupResolution) error {
	if err := res.Validate(); err != nil {
		return err
	}
	if s.groups == nil {
		return nil
	}
	g, ok := s.groups.LookupGroup(res.GroupID, res.IncludeResolved)
	if !ok {
		return nil
	}
	return res.ValidateMembers(g.MemberIDs)
}

// archiveLesson is one atomic unit: mapping check, snapshot, mapping insert,
// lesson marked superseded.
func (s *ResolutionService) archiveLesson(ctx context.Context, groupID string, method duplicates.DetectionMethod, entry duplicates.LessonResolution, notes, resolvedBy string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := hasCanonicalMapping(tx, entry.EntryID)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadyArchived
		}

		var lesson database.Lesson
		err = tx.Where("id = ?", entry.EntryID).First(&lesson).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLessonNotFound
		}
		if err != nil {
			return err
		}
		if lesson.IsSuperseded() {
			return ErrAlreadyArchived
		}

		var canonical database.Lesson
		err = tx.Where("id = ?", entry.ArchiveTarget).First(&canonical).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrCanonicalUnavailable, entry.ArchiveTarget)
		}
		if err != nil {
			return err
		}
		if canonical.IsSuperseded() {
			return fmt.Errorf("%w: %s", ErrCanonicalUnavailable, entry.ArchiveTarget)
		}

		snapshot := database.ArchivedLesson{
			LessonID:    lesson.ID,
			CanonicalID: canonical.ID,
			Title:       lesson.Title,
			Snapshot:    lesson.Snapshot(),
			ArchivedBy:  resolvedBy,
		}
		if err := tx.Create(&snapshot).Error; err != nil {
			return fmt.Errorf("failed to snapshot lesson: %w", err)
		}

		mapping := database.CanonicalMapping{
			DuplicateID:     lesson.ID,
			CanonicalID:     canonical.ID,
			GroupID:         groupID,
			DetectionMethod: string(method),
			ResolvedBy:      resolvedBy,
			Notes:           notes,
		}
		if err := tx.Create(&mapping).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyArchived
			}
			return fmt.Errorf("failed to record canonical mapping: %w", err)
		}

		// UpdateColumns skips the Lesson save hooks.
		update := tx.Model(&database.Lesson{}).
			Where("id = ? AND status <> ?", lesson.ID, database.LessonStatusSuperseded).
			UpdateColumns(map[string]interface{}{
				"status":        database.LessonStatusSuperseded,
				"superseded_by": canonical.ID,
				"updated_at":    time.Now(),
			})
		if update.Error != nil {
			return fmt.Errorf("failed to supersede lesson: %w", update.Error)
		}
		if update.RowsAffected == 0 {
			return ErrAlreadyArchived
		}
		return nil
	})
}

func archiveOutcome(err error) string {
	if errors.Is(err, ErrAlreadyArchived) {
		return metrics.ArchiveAlreadyArchived
	}
	return metrics.ArchiveError
}
