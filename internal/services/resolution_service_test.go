package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"

	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/duplicates"
	"github.com/lessonbank/dedup/internal/metrics"
	"github.com/lessonbank/dedup/internal/testhelpers"
)

func keep(id string) duplicates.LessonResolution {
	return duplicates.LessonResolution{EntryID: id, Action: duplicates.ActionKeep}
}

func archiveTo(id, target string) duplicates.LessonResolution {
	return duplicates.LessonResolution{EntryID: id, Action: duplicates.ActionArchive, ArchiveTarget: target}
}

func resolution(groupID string, entries ...duplicates.LessonResolution) duplicates.GroupResolution {
	return duplicates.GroupResolution{GroupID: groupID, Resolutions: entries}
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("failed to count %T: %v", model, err)
	}
	return n
}

func loadLesson(t *testing.T, db *gorm.DB, id string) database.Lesson {
	t.Helper()
	var l database.Lesson
	if err := db.Where("id = ?", id).First(&l).Error; err != nil {
		t.Fatalf("failed to load lesson %s: %v", id, err)
	}
	return l
}

func TestResolutionService_ArchivesAgainstKept(t *testing.T) {
	s := newTestServices(t)
	testhelpers.NewLessonBuilder("a").Create(t, s.db)
	testhelpers.NewLessonBuilder("b").WithTitle("Fractions, again").Create(t, s.db)
	testhelpers.NewLessonBuilder("c").Create(t, s.db)

	res := resolution("group-1", keep("a"), archiveTo("b", "a"), archiveTo("c", "a"))
	res.Notes = "same lesson uploaded twice"

	result, err := s.resolution.ResolveGroup(t.Context(), res, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.ArchivedCount != 2 || result.KeptCount != 1 || result.Error != "" {
		t.Errorf("unexpected result %+v", result)
	}

	for _, id := range []string{"b", "c"} {
		l := loadLesson(t, s.db, id)
		if !l.IsSuperseded() || l.SupersededBy == nil || *l.SupersededBy != "a" {
			t.Errorf("expected %s superseded by a, got %s %v", id, l.Status, l.SupersededBy)
		}

		var mapping database.CanonicalMapping
		if err := s.db.Where("duplicate_id = ?", id).First(&mapping).Error; err != nil {
			t.Fatalf("expected mapping for %s: %v", id, err)
		}
		if mapping.CanonicalID != "a" || mapping.ResolvedBy != "alice" || mapping.GroupID != "group-1" {
			t.Errorf("unexpected mapping %+v", mapping)
		}
		if mapping.Notes != "same lesson uploaded twice" {
			t.Errorf("expected notes on mapping, got %q", mapping.Notes)
		}
	}

	a := loadLesson(t, s.db, "a")
	if a.IsSuperseded() {
		t.Error("kept lesson must stay live")
	}

	var snap database.ArchivedLesson
	if err := s.db.Where("lesson_id = ?", "b").First(&snap).Error; err != nil {
		t.Fatalf("expected archive snapshot: %v", err)
	}
	if snap.Title != "Fractions, again" || snap.Snapshot["title"] != "Fractions, again" || snap.Snapshot["status"] != "published" {
		t.Errorf("snapshot should capture the live lesson, got %+v", snap)
	}
	if snap.ArchivedBy != "alice" || snap.CanonicalID != "a" {
		t.Errorf("unexpected snapshot metadata %+v", snap)
	}

	if got := testutil.ToFloat64(s.metrics.Archives.WithLabelValues(metrics.ArchiveSuccess)); got != 2 {
		t.Errorf("expected 2 successful archives, got %v", got)
	}
	if len(s.notifier.resolutions) != 1 || !s.notifier.resolutions[0].Success {
		t.Errorf("expected one success notification, got %+v", s.notifier.resolutions)
	}
}

func TestResolutionService_AllKeepIsNoop(t *testing.T) {
	s := newTestServices(t)
	testhelpers.CreateLessons(t, s.db, "a", "b")

	result, err := s.resolution.ResolveGroup(t.Context(), resolution("group-3", keep("a"), keep("b")), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.ArchivedCount != 0 || result.KeptCount != 2 {
		t.Errorf("unexpected result %+v", result)
	}
	if n := countRows(t, s.db, &database.CanonicalMapping{}); n != 0 {
		t.Errorf("expected no mappings, got %d", n)
	}
	if n := countRows(t, s.db, &database.ArchivedLesson{}); n != 0 {
		t.Errorf("expected no snapshots, got %d", n)
	}
}

func TestResolutionService_ValidationRejectsBeforeMutation(t *testing.T) {
	tests := []struct {
		name    string
		res     duplicates.GroupResolution
		wantErr error
	}{
		{
			name:    "malformed group id",
			res:     resolution("grp-1", keep("a"), archiveTo("b", "a")),
			wantErr: duplicates.ErrInvalidGroupID,
		},
		{
			name:    "no keep",
			res:     resolution("group-1", archiveTo("a", "b"), archiveTo("b", "a")),
			wantErr: duplicates.ErrNoKeptEntry,
		},
		{
			name:    "missing target",
			res:     resolution("group-1", keep("a"), archiveTo("b", "")),
			wantErr: duplicates.ErrMissingArchiveTarget,
		},
		{
			name:    "target outside group",
			res:     resolution("group-1", keep("a"), archiveTo("b", "z")),
			wantErr: duplicates.ErrInvalidArchiveTarget,
		},
		{
			name:    "archive to archived entry",
			res:     resolution("group-1", keep("a"), archiveTo("b", "a"), archiveTo("c", "b")),
			wantErr: duplicates.ErrInvalidArchiveTarget,
		},
		{
			name:    "entry listed twice",
			res:     resolution("group-1", keep("a"), archiveTo("b", "a"), keep("b")),
			wantErr: duplicates.ErrDuplicateResolution,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServices(t)
			testhelpers.CreateLessons(t, s.db, "a", "b", "c")

			result, err := s.resolution.ResolveGroup(t.Context(), tt.res, "alice")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if result == nil || result.Success || result.ArchivedCount != 0 || result.Error == "" {
				t.Errorf("unexpected result %+v", result)
			}
			if n := countRows(t, s.db, &database.CanonicalMapping{}); n != 0 {
				t.Errorf("expected no mutation, got %d mappings", n)
			}
			if len(s.notifier.resolutions) != 0 {
				t.Error("rejected resolutions must not notify")
			}
		})
	}
}

func TestResolutionService_PartialFailureKeepsEarlierArchives(t *testing.T) {
	s := newTestServices(t)
	testhelpers.CreateLessons(t, s.db, "a", "b", "c", "d")

	// c was archived elsewhere in the meantime
	if err := s.db.Create(&database.CanonicalMapping{DuplicateID: "c", CanonicalID: "a", ResolvedBy: "bob"}).Error; err != nil {
		t.Fatalf("failed to seed mapping: %v", err)
	}

	res := resolution("group-2", keep("a"), archiveTo("b", "a"), archiveTo("c", "a"), archiveTo("d", "a"))
	result, err := s.resolution.ResolveGroup(t.Context(), res, "alice")

	if !errors.Is(err, ErrAlreadyArchived) {
		t.Fatalf("expected ErrAlreadyArchived, got %v", err)
	}
	if result.Success || result.ArchivedCount != 1 || result.KeptCount != 1 {
		t.Errorf("expected 1 archive before failure, got %+v", result)
	}

	if !loadLesson(t, s.db, "b").IsSuperseded() {
		t.Error("b was archived before the failure and must stay archived")
	}
	var bMapping database.CanonicalMapping
	if err := s.db.Where("duplicate_id = ?", "b").First(&bMapping).Error; err != nil {
		t.Errorf("expected b mapping to be committed: %v", err)
	}
	if loadLesson(t, s.db, "c").IsSuperseded() {
		t.Error("the failing entry must be untouched")
	}
	if loadLesson(t, s.db, "d").IsSuperseded() {
		t.Error("entries after the failure must not run")
	}
	if n := countRows(t, s.db, &database.ArchivedLesson{}); n != 1 {
		t.Errorf("expected exactly one snapshot, got %d", n)
	}

	if got := testutil.ToFloat64(s.metrics.Resolutions.WithLabelValues(metrics.ResolutionPartial)); got != 1 {
		t.Errorf("expected partial resolution metric, got %v", got)
	}
	if len(s.notifier.resolutions) != 1 || s.notifier.resolutions[0].Success {
		t.Errorf("expected one failure notification, got %+v", s.notifier.resolutions)
	}
}

func TestResolutionService_ResubmissionFailsLoudly(t *testing.T) {
	s := newTestServices(t)
	testhelpers.CreateLessons(t, s.db, "a", "b")

	res := resolution("group-1", keep("a"), archiveTo("b", "a"))
	if _, err := s.resolution.ResolveGroup(t.Context(), res, "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := s.resolution.ResolveGroup(t.Context(), res, "alice")
	if !errors.Is(err, ErrAlreadyArchived) {
		t.Fatalf("expected ErrAlreadyArchived, got %v", err)
	}
	if result.Success || result.ArchivedCount != 0 {
		t.Errorf("unexpected result %+v", result)
	}
	if n := countRows(t, s.db, &database.CanonicalMapping{}); n != 1 {
		t.Errorf("expected the original mapping only, got %d", n)
	}
	if n := countRows(t, s.db, &database.ArchivedLesson{}); n != 1 {
		t.Errorf("expected no second snapshot, got %d", n)
	}
	if got := testutil.ToFloat64(s.metrics.Archives.WithLabelValues(metrics.ArchiveAlreadyArchived)); got != 1 {
		t.Errorf("expected already-archived metric, got %v", got)
	}
}

func TestResolutionService_CanonicalUnavailable(t *testing.T) {
	s := newTestServices(t)
	testhelpers.NewLessonBuilder("a").SupersededBy("z").Create(t, s.db)
	testhelpers.CreateLessons(t, s.db, "b", "z")

	result, err := s.resolution.ResolveGroup(t.Context(), resolution("group-1", keep("a"), archiveTo("b", "a")), "alice")
	if !errors.Is(err, ErrCanonicalUnavailable) {
		t.Fatalf("expected ErrCanonicalUnavailable, got %v", err)
	}
	if result.ArchivedCount != 0 || loadLesson(t, s.db, "b").IsSuperseded() {
		t.Error("nothing should be archived against a superseded canonical")
	}
	if n := countRows(t, s.db, &database.ArchivedLesson{}); n != 0 {
		t.Errorf("expected snapshot to roll back, got %d", n)
	}
}

func TestResolutionService_LessonNotFound(t *testing.T) {
	s := newTestServices(t)
	testhelpers.CreateLessons(t, s.db, "a")

	_, err := s.resolution.ResolveGroup(t.Context(), resolution("group-1", keep("a"), archiveTo("ghost", "a")), "alice")
	if !errors.Is(err, ErrLessonNotFound) {
		t.Fatalf("expected ErrLessonNotFound, got %v", err)
	}
}

func TestResolutionService_MembershipCheckedAgainstCachedRun(t *testing.T) {
	s := newTestServices(t, testhelpers.Pair("a", "b", duplicates.MethodSameTitle))
	testhelpers.CreateLessons(t, s.db, "a", "b", "c")

	if _, err := s.duplicates.FetchDuplicateGroups(t.Context(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := s.resolution.ResolveGroup(t.Context(), resolution("group-1", keep("a"), archiveTo("c", "a")), "alice")
	if !errors.Is(err, duplicates.ErrEntryNotInGroup) {
		t.Fatalf("expected ErrEntryNotInGroup, got %v", err)
	}
	if loadLesson(t, s.db, "c").IsSuperseded() {
		t.Error("c must not be archived")
	}

	result, err := s.resolution.ResolveGroup(t.Context(), resolution("group-1", keep("a"), archiveTo("b", "a")), "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ArchivedCount != 1 {
		t.Errorf("expected 1 archive, got %+v", result)
	}

	var mapping database.CanonicalMapping
	s.db.Where("duplicate_id = ?", "b").First(&mapping)
	if mapping.DetectionMethod != string(duplicates.MethodSameTitle) {
		t.Errorf("expected the group method on the mapping, got %q", mapping.DetectionMethod)
	}

	if _, ok := s.duplicates.LookupGroup("group-1", false); ok {
		t.Error("expected the run cache to be invalidated after archiving")
	}
	groups, err := s.duplicates.FetchDuplicateGroups(t.Context(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected the resolved group to disappear, got %v", groupIDsOf(groups))
	}
}

func TestResolutionService_GroupIDsScopedToTheirRun(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	testhelpers.NewLessonBuilder("a1").WithContent("shared a").Create(t, db)
	testhelpers.NewLessonBuilder("a0").WithContent("shared a").SupersededBy("a1").Create(t, db)
	testhelpers.NewLessonBuilder("b1").WithContent("shared b").Create(t, db)
	testhelpers.NewLessonBuilder("b2").WithContent("shared b").Create(t, db)

	dup := NewDuplicateService(NewDBSignalProvider(db), NewCatalogStore(db), NewDismissalStore(db), nil, nil, time.Minute)
	resolver := NewResolutionService(db, dup, nil, nil)

	live, err := dup.FetchDuplicateGroups(t.Context(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(live) != 1 || live[0].GroupID != "group-1" || live[0].DismissalKey() != "b1,b2" {
		t.Fatalf("expected group-1 b1,b2 in the default run, got %v", groupIDsOf(live))
	}

	all, err := dup.FetchDuplicateGroups(t.Context(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 groups with includeResolved, got %v", groupIDsOf(all))
	}

	// group-2 of the includeResolved run is b1,b2, so a1 is not a member.
	wrong := resolution("group-2", keep("b1"), archiveTo("a1", "b1"))
	wrong.IncludeResolved = true
	if _, err := resolver.ResolveGroup(t.Context(), wrong, "alice"); !errors.Is(err, duplicates.ErrEntryNotInGroup) {
		t.Fatalf("expected ErrEntryNotInGroup, got %v", err)
	}

	result, err := resolver.ResolveGroup(t.Context(), resolution("group-1", keep("b1"), archiveTo("b2", "b1")), "alice")
	if err != nil {
		t.Fatalf("default-run group-1 must resolve against its own members: %v", err)
	}
	if !result.Success || result.ArchivedCount != 1 {
		t.Errorf("unexpected result %+v", result)
	}
	if b2 := loadLesson(t, db, "b2"); !b2.IsSuperseded() {
		t.Error("expected b2 to be archived")
	}
	if loadLesson(t, db, "a1").IsSuperseded() {
		t.Error("a1 must stay live")
	}
}

func TestResolutionService_CancelledContext(t *testing.T) {
	s := newTestServices(t)
	testhelpers.CreateLessons(t, s.db, "a", "b")

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	result, err := s.resolution.ResolveGroup(ctx, resolution("group-1", keep("a"), archiveTo("b", "a")), "alice")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.ArchivedCount != 0 || loadLesson(t, s.db, "b").IsSuperseded() {
		t.Error("cancelled resolution must not archive")
	}
}

func TestCatalogStore_CanonicalChain(t *testing.T) {
	s := newTestServices(t)
	testhelpers.CreateLessons(t, s.db, "a", "b", "c")

	if _, err := s.resolution.ResolveGroup(t.Context(), resolution("group-1", keep("b"), archiveTo("a", "b")), "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.resolution.ResolveGroup(t.Context(), resolution("group-1", keep("c"), archiveTo("b", "c")), "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	catalog := NewCatalogStore(s.db)
	chain, canonical, err := catalog.CanonicalChain(t.Context(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if canonical != "c" {
		t.Errorf("expected canonical c, got %s", canonical)
	}
	if len(chain) != 2 || chain[0].CanonicalID != "b" || chain[1].CanonicalID != "c" {
		t.Errorf("unexpected chain %+v", chain)
	}

	chain, canonical, err = catalog.CanonicalChain(t.Context(), "c")
	if err != nil || canonical != "c" || len(chain) != 0 {
		t.Errorf("expected c to be its own canonical, got %s %v %v", canonical, chain, err)
	}

	if _, _, err := catalog.CanonicalChain(t.Context(), "ghost"); !errors.Is(err, ErrLessonNotFound) {
		t.Errorf("expected ErrLessonNotFound, got %v", err)
	}
}

func TestCatalogStore_ListArchived(t *testing.T) {
	s := newTestServices(t)
	testhelpers.CreateLessons(t, s.db, "a", "b", "c", "d")

	res := resolution("group-1", keep("a"), archiveTo("b", "a"), archiveTo("c", "a"), archiveTo("d", "a"))
	if _, err := s.resolution.ResolveGroup(t.Context(), res, "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	catalog := NewCatalogStore(s.db)
	page, total, err := catalog.ListArchived(t.Context(), 0, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(page) != 2 {
		t.Errorf("expected 2 of 3, got %d of %d", len(page), total)
	}

	rest, _, err := catalog.ListArchived(t.Context(), 2, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rest) != 1 {
		t.Errorf("expected 1 on the last page, got %d", len(rest))
	}
}
