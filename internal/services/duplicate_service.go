package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/duplicates"
	"github.com/lessonbank/dedup/internal/metrics"
	"github.com/lessonbank/dedup/internal/utils"
)

const (
	// DefaultGroupCacheTTL is how long a detection run stays servable
	DefaultGroupCacheTTL = 10 * time.Minute
)

// ReviewGroup is a duplicate group with the member lessons attached, ready
// for a reviewer.
type ReviewGroup struct {
	duplicates.DuplicateGroup `yaml:",inline"`
	Members                   []database.Lesson `json:"members" yaml:"members"`
}

// DuplicateService runs detection (signals, classification, grouping) and
// enriches the resulting groups for review. Runs are cached per
// includeResolved flag until a resolution or dismissal changes the catalog.
type DuplicateService struct {
	signals    SignalProvider
	catalog    *CatalogStore
	dismissals *DismissalStore
	notifier   Notifier
	metrics    *metrics.DedupMetrics

	cache  *cache.Cache
	flight singleflight.Group
}

// NewDuplicateService creates a new duplicate service. A zero cacheTTL uses
// DefaultGroupCacheTTL; notifier and m may be nil.
func NewDuplicateService(
	signals SignalProvider,
	catalog *CatalogStore,
	dismissals *DismissalStore,
	notifier Notifier,
	m *metrics.DedupMetrics,
	cacheTTL time.Duration,
) *DuplicateService {
	if cacheTTL <= 0 {
		cacheTTL = DefaultGroupCacheTTL
	}
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &DuplicateService{
		signals:    signals,
		catalog:    catalog,
		dismissals: dismissals,
		notifier:   notifier,
		metrics:    m,
		cache:      cache.New(cacheTTL, 2*cacheTTL),
	}
}

func runKey(includeResolved bool) string {
	return "run:" + strconv.FormatBool(includeResolved)
}

// Each run numbers its groups independently, so every run keeps its own index.
func groupIndexKey(includeResolved bool) string {
	return "group-index:" + runKey(includeResolved)
}

// FetchDuplicateGroups returns the enriched groups of the latest detection
// run, running detection when nothing is cached.
func (s *DuplicateService) FetchDuplicateGroups(ctx context.Context, includeResolved bool) ([]ReviewGroup, error) {
	if cached, ok := s.cache.Get(runKey(includeResolved)); ok {
		return cached.([]ReviewGroup), nil
	}
	return s.Refresh(ctx, includeResolved)
}

// Refresh runs detection regardless of the cache. Concurrent callers for the
// same flag share one run.
func (s *DuplicateService) Refresh(ctx context.Context, includeResolved bool) ([]ReviewGroup, error) {
	v, err, _ := s.flight.Do(runKey(includeResolved), func() (interface{}, error) {
		// The run is shared, so one caller going away must not cancel it.
		return s.detect(context.WithoutCancel(ctx), includeResolved)
	})
	if err != nil {
		return nil, err
	}
	return v.([]ReviewGroup), nil
}

func (s *DuplicateService) detect(ctx context.Context, includeResolved bool) ([]ReviewGroup, error) {
	start := time.Now()

	raw, err := s.signals.DetectPairs(ctx, includeResolved)
	if err != nil {
		return nil, fmt.Errorf("failed to detect duplicate pairs: %w", err)
	}

	pairs, stats := duplicates.ClassifyPairs(raw)
	s.metrics.RecordPairs(countByMethod(pairs), stats.Coerced)

	groups := duplicates.GroupPairs(pairs)
	enriched, err := s.enrich(ctx, groups, includeResolved)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(runKey(includeResolved), enriched)
	s.cache.SetDefault(groupIndexKey(includeResolved), newGroupIndex(enriched))
	s.metrics.ObserveDetection(time.Since(start), len(enriched))

	log.Printf("DuplicateService: %d pairs, %d groups (%d after enrichment) in %s",
		len(pairs), len(groups), len(enriched), utils.FormatDuration(time.Since(start)))
	return enriched, nil
}

// enrich attaches member details and drops groups a reviewer has nothing to
// do for. Member details and the dismissed set are read concurrently. A
// dismissed-set failure degrades to "nothing dismissed"; a member-detail
// failure fails the run.
func (s *DuplicateService) enrich(ctx context.Context, groups []duplicates.DuplicateGroup, includeResolved bool) ([]ReviewGroup, error) {
	if len(groups) == 0 {
		return []ReviewGroup{}, nil
	}

	var ids []string
	for _, g := range groups {
		ids = append(ids, g.MemberIDs...)
	}

	var lessons map[string]database.Lesson
	var dismissed map[string]struct{}

	// Plain group: a member-detail failure must not cancel the dismissed-set read.
	var eg errgroup.Group
	eg.Go(func() error {
		var err error
		lessons, err = s.catalog.GetLessons(ctx, ids)
		return err
	})
	eg.Go(func() error {
		keys, err := s.dismissals.DismissedKeys(ctx)
		if err != nil {
			log.Printf("Warning: DuplicateService: dismissed groups unavailable, showing all groups: %v", err)
			s.metrics.RecordDismissedFetchFailure()
			return nil
		}
		dismissed = keys
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("failed to enrich duplicate groups: %w", err)
	}

	enriched := make([]ReviewGroup, 0, len(groups))
	for _, g := range groups {
		if !includeResolved {
			if _, ok := dismissed[g.DismissalKey()]; ok {
				continue
			}
		}

		members, ok := groupMembers(g, lessons)
		if !ok {
			log.Printf("Warning: DuplicateService: %s references lessons missing from the catalog, skipping", g.GroupID)
			continue
		}
		if !includeResolved && anySuperseded(members) {
			continue
		}
		enriched = append(enriched, ReviewGroup{DuplicateGroup: g, Members: members})
	}

	sort.SliceStable(enriched, func(i, j int) bool {
		ri, rj := enriched[i].Confidence.Rank(), enriched[j].Confidence.Rank()
		if ri != rj {
			return ri < rj
		}
		return len(enriched[i].MemberIDs) > len(enriched[j].MemberIDs)
	})
	return enriched, nil
}

func groupMembers(g duplicates.DuplicateGroup, lessons map[string]database.Lesson) ([]database.Lesson, bool) {
	members := make([]database.Lesson, 0, len(g.MemberIDs))
	for _, id := range g.MemberIDs {
		lesson, ok := lessons[id]
		if !ok {
			return nil, false
		}
		members = append(members, lesson)
	}
	return members, true
}

func anySuperseded(members []database.Lesson) bool {
	for i := range members {
		if members[i].IsSuperseded() {
			return true
		}
	}
	return false
}

func countByMethod(pairs []duplicates.DuplicatePair) map[string]int {
	counts := make(map[string]int)
	for _, p := range pairs {
		counts[string(p.DetectionMethod)]++
	}
	return counts
}

func newGroupIndex(groups []ReviewGroup) map[string]duplicates.DuplicateGroup {
	idx := make(map[string]duplicates.DuplicateGroup, len(groups))
	for _, g := range groups {
		idx[g.GroupID] = g.DuplicateGroup
	}
	return idx
}

// LookupGroup returns a group of the cached run for includeResolved. Group
// ids are only meaningful within the run that listed them.
func (s *DuplicateService) LookupGroup(groupID string, includeResolved bool) (duplicates.DuplicateGroup, bool) {
	v, ok := s.cache.Get(groupIndexKey(includeResolved))
	if !ok {
		return duplicates.DuplicateGroup{}, false
	}
	g, ok := v.(map[string]duplicates.DuplicateGroup)[groupID]
	return g, ok
}

// Invalidate drops every cached run
func (s *DuplicateService) Invalidate() {
	s.cache.Flush()
}

// DismissGroup marks memberIDs as not duplicates. The group disappears from
// subsequent default fetches.
func (s *DuplicateService) DismissGroup(ctx context.Context, memberIDs []string, method string, notes, dismissedBy string) (*database.DismissedGroup, error) {
	detection := duplicates.DetectionMethod(method)
	switch {
	case method == "":
		detection = s.cachedMethod(memberIDs)
	case detection != duplicates.MethodMixed:
		detection, _ = duplicates.ClassifyMethod(method)
	}

	record, err := s.dismissals.Dismiss(ctx, memberIDs, detection, utils.SanitizeNotes(notes, maxNotesLength), dismissedBy)
	if err != nil {
		return nil, err
	}
	s.Invalidate()
	s.metrics.RecordDismissal()

	log.Printf("DuplicateService: %s dismissed %s", utils.EscapeForLogging(dismissedBy, 100), record.MemberKey)
	s.notifier.NotifyDismissal(ctx, record)
	return record, nil
}

// cachedMethod returns the method of a cached group with exactly memberIDs,
// or "" when no cached run has one.
func (s *DuplicateService) cachedMethod(memberIDs []string) duplicates.DetectionMethod {
	key := duplicates.DismissalKey(memberIDs)
	for _, includeResolved := range []bool{false, true} {
		v, ok := s.cache.Get(groupIndexKey(includeResolved))
		if !ok {
			continue
		}
		for _, g := range v.(map[string]duplicates.DuplicateGroup) {
			if g.DismissalKey() == key {
				return g.DetectionMethod
			}
		}
	}
	return ""
}
