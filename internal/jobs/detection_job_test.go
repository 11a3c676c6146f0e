package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/services"
	"github.com/lessonbank/dedup/internal/testhelpers"
)

type fakeDetector struct {
	mu     sync.Mutex
	calls  int
	groups []services.ReviewGroup
	err    error
}

func (f *fakeDetector) Refresh(ctx context.Context, includeResolved bool) ([]services.ReviewGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if includeResolved {
		return nil, errors.New("detection job must not include resolved lessons")
	}
	return f.groups, f.err
}

func (f *fakeDetector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func setSettings(t *testing.T, db *gorm.DB, enabled bool, intervalMinutes int) {
	t.Helper()
	settings, err := database.GetOrCreateDedupSettings(db)
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	settings.DetectionJobEnabled = enabled
	settings.DetectionIntervalMinutes = intervalMinutes
	if err := database.UpdateDedupSettings(db, settings); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}
}

func TestDetectionJob_RunsOnInterval(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	setSettings(t, db, true, 30)

	detector := &fakeDetector{groups: make([]services.ReviewGroup, 3)}
	job := NewDetectionJob(db, detector)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	groups, ran, err := job.RunIfDue(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ran || groups != 3 {
		t.Errorf("expected first check to run with 3 groups, got ran=%v groups=%d", ran, groups)
	}

	now = now.Add(10 * time.Minute)
	if _, ran, _ := job.RunIfDue(t.Context()); ran {
		t.Error("expected no run before the interval elapsed")
	}

	now = now.Add(20 * time.Minute)
	if _, ran, _ := job.RunIfDue(t.Context()); !ran {
		t.Error("expected a run once the interval elapsed")
	}

	if detector.Calls() != 2 {
		t.Errorf("expected 2 detection calls, got %d", detector.Calls())
	}
}

func TestDetectionJob_Disabled(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	setSettings(t, db, false, 30)

	detector := &fakeDetector{}
	job := NewDetectionJob(db, detector)

	if _, ran, err := job.RunIfDue(t.Context()); ran || err != nil {
		t.Errorf("expected disabled job to skip, got ran=%v err=%v", ran, err)
	}
	if detector.Calls() != 0 {
		t.Errorf("expected no detection calls, got %d", detector.Calls())
	}
}

func TestDetectionJob_FailureRetriesNextTick(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	setSettings(t, db, true, 30)

	detector := &fakeDetector{err: errors.New("catalog unavailable")}
	job := NewDetectionJob(db, detector)

	if _, ran, err := job.RunIfDue(t.Context()); !ran || err == nil {
		t.Errorf("expected a failed run, got ran=%v err=%v", ran, err)
	}

	detector.mu.Lock()
	detector.err = nil
	detector.mu.Unlock()

	if _, ran, err := job.RunIfDue(t.Context()); !ran || err != nil {
		t.Errorf("expected an immediate retry after failure, got ran=%v err=%v", ran, err)
	}
}

func TestDetectionJob_StartStops(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	setSettings(t, db, true, 30)

	detector := &fakeDetector{}
	job := NewDetectionJob(db, detector)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		job.Start(10*time.Millisecond, stop)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for detector.Calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	close(stop)

	testhelpers.MustCompleteWithin(t, 2*time.Second, func() { <-done })

	if detector.Calls() != 1 {
		t.Errorf("expected exactly one run within the interval, got %d", detector.Calls())
	}
}
