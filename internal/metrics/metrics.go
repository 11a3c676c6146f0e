// Package metrics provides the Prometheus collectors for duplicate detection
// and resolution.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Archive outcomes
const (
	ArchiveSuccess         = "success"
	ArchiveAlreadyArchived = "already_archived"
	ArchiveError           = "error"
)

// Resolution outcomes
const (
	ResolutionSuccess  = "success"
	ResolutionPartial  = "partial"
	ResolutionFailed   = "failed"
	ResolutionRejected = "rejected"
)

// DedupMetrics groups the collectors of the dedup service.
// A nil *DedupMetrics is valid and records nothing.
type DedupMetrics struct {
	DetectionRuns       prometheus.Counter
	DetectionDuration   prometheus.Histogram
	PairsClassified     *prometheus.CounterVec
	UnknownMethods      prometheus.Counter
	GroupsOpen          prometheus.Gauge
	Archives            *prometheus.CounterVec
	Resolutions         *prometheus.CounterVec
	ResolutionDuration  prometheus.Histogram
	Dismissals          prometheus.Counter
	DismissedFetchFails prometheus.Counter
}

// NewDedupMetrics creates the collectors and registers them on registry.
func NewDedupMetrics(registry prometheus.Registerer) (*DedupMetrics, error) {
	m := &DedupMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register dedup metrics: %w", err)
	}
	return m, nil
}

func (m *DedupMetrics) initMetrics() {
	m.DetectionRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dedup_detection_runs_total",
		Help: "Total number of duplicate detection runs",
	})

	m.DetectionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dedup_detection_duration_seconds",
		Help:    "Duration of detection runs including enrichment",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	m.PairsClassified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dedup_pairs_classified_total",
		Help: "Duplicate pairs classified, by detection method",
	}, []string{"method"})

	m.UnknownMethods = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dedup_unknown_detection_method_total",
		Help: "Pairs whose detection method was unknown and coerced to embedding",
	})

	m.GroupsOpen = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dedup_groups_open",
		Help: "Duplicate groups awaiting review in the latest run",
	})

	m.Archives = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dedup_archives_total",
		Help: "Per-lesson archive operations, by outcome",
	}, []string{"outcome"})

	m.Resolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dedup_resolutions_total",
		Help: "Group resolutions, by outcome",
	}, []string{"outcome"})

	m.ResolutionDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dedup_resolution_duration_seconds",
		Help:    "Duration of group resolutions",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	m.Dismissals = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dedup_dismissals_total",
		Help: "Groups dismissed as not duplicates",
	})

	m.DismissedFetchFails = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dedup_dismissed_fetch_failures_total",
		Help: "Enrichments that proceeded without the dismissed-set index",
	})
}

// ObserveDetection records one detection run.
func (m *DedupMetrics) ObserveDetection(duration time.Duration, openGroups int) {
	if m == nil {
		return
	}
	m.DetectionRuns.Inc()
	m.DetectionDuration.Observe(duration.Seconds())
	m.GroupsOpen.Set(float64(openGroups))
}

// RecordPairs counts classified pairs per method and coerced unknown methods.
func (m *DedupMetrics) RecordPairs(byMethod map[string]int, coerced int) {
	if m == nil {
		return
	}
	for method, n := range byMethod {
		m.PairsClassified.WithLabelValues(method).Add(float64(n))
	}
	m.UnknownMethods.Add(float64(coerced))
}

// RecordArchive counts one per-lesson archive operation.
func (m *DedupMetrics) RecordArchive(outcome string) {
	if m == nil {
		return
	}
	m.Archives.WithLabelValues(outcome).Inc()
}

// RecordResolution counts one group resolution and its duration.
func (m *DedupMetrics) RecordResolution(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
	m.ResolutionDuration.Observe(duration.Seconds())
}

// RecordDismissal counts one dismissal.
func (m *DedupMetrics) RecordDismissal() {
	if m == nil {
		return
	}
	m.Dismissals.Inc()
}

// RecordDismissedFetchFailure counts an enrichment that degraded.
func (m *DedupMetrics) RecordDismissedFetchFailure() {
	if m == nil {
		return
	}
	m.DismissedFetchFails.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *DedupMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.DetectionRuns.Describe(ch)
	m.DetectionDuration.Describe(ch)
	m.PairsClassified.Describe(ch)
	m.UnknownMethods.Describe(ch)
	m.GroupsOpen.Describe(ch)
	m.Archives.Describe(ch)
	m.Resolutions.Describe(ch)
	m.ResolutionDuration.Describe(ch)
	m.Dismissals.Describe(ch)
	m.DismissedFetchFails.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *DedupMetrics) Collect(ch chan<- prometheus.Metric) {
	m.DetectionRuns.Collect(ch)
	m.DetectionDuration.Collect(ch)
	m.PairsClassified.Collect(ch)
	m.UnknownMethods.Collect(ch)
	m.GroupsOpen.Collect(ch)
	m.Archives.Collect(ch)
	m.Resolutions.Collect(ch)
	m.ResolutionDuration.Collect(ch)
	m.Dismissals.Collect(ch)
	m.DismissedFetchFails.Collect(ch)
}
