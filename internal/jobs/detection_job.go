package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/services"
)

// DefaultPollInterval is how often the job rereads its settings
const DefaultPollInterval = time.Minute

// Detector runs a fresh detection, bypassing the run cache
type Detector interface {
	Refresh(ctx context.Context, includeResolved bool) ([]services.ReviewGroup, error)
}

// DetectionJob keeps the duplicate run cache warm. The interval and the
// on/off switch come from dedup settings, so changes apply without restart.
type DetectionJob struct {
	db       *gorm.DB
	detector Detector
	now      func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

// NewDetectionJob creates a new detection job
func NewDetectionJob(db *gorm.DB, detector Detector) *DetectionJob {
	return &DetectionJob{
		db:       db,
		detector: detector,
		now:      time.Now,
	}
}

// RunIfDue runs detection when the job is enabled and the configured interval
// has passed since the last run. It returns the number of open groups and
// whether a run happened.
func (j *DetectionJob) RunIfDue(ctx context.Context) (int, bool, error) {
	settings, err := database.GetOrCreateDedupSettings(j.db.WithContext(ctx))
	if err != nil {
		return 0, false, err
	}
	if !settings.DetectionJobEnabled {
		return 0, false, nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	interval := time.Duration(settings.DetectionIntervalMinutes) * time.Minute
	now := j.now()
	if !j.lastRun.IsZero() && now.Sub(j.lastRun) < interval {
		return 0, false, nil
	}

	groups, err := j.detector.Refresh(ctx, false)
	if err != nil {
		return 0, true, err
	}
	j.lastRun = now
	return len(groups), true, nil
}

// Start begins the periodic detection. The first check happens immediately.
func (j *DetectionJob) Start(pollInterval time.Duration, stop <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		j.tick(ctx)
		select {
		case <-ticker.C:
		case <-stop:
			log.Println("Detection job stopped")
			return
		}
	}
}

func (j *DetectionJob) tick(ctx context.Context) {
	groups, ran, err := j.RunIfDue(ctx)
	switch {
	case err != nil:
		log.Printf("Detection job error: %v", err)
	case ran:
		log.Printf("Detection job: %d open duplicate group(s)", groups)
	}
}
