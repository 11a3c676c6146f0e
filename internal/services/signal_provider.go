package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"gorm.io/gorm"

	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/duplicates"
)

// SignalProvider reports pairwise duplicate evidence across the catalog.
// Pairs come back unvalidated; the Pair Classifier checks them.
type SignalProvider interface {
	DetectPairs(ctx context.Context, includeResolved bool) ([]duplicates.SignalPair, error)
}

// DBSignalProvider derives pairs from the catalog tables: equal content
// hashes, equal normalized titles and embedding cosine similarity.
type DBSignalProvider struct {
	db *gorm.DB
}

// NewDBSignalProvider creates a new database-backed signal provider
func NewDBSignalProvider(db *gorm.DB) *DBSignalProvider {
	return &DBSignalProvider{db: db}
}

// candidate is the slice of a lesson the provider needs
type candidate struct {
	ID              string
	NormalizedTitle string
	ContentHash     string
	vector          []float64 // unit length, nil when missing
}

// DetectPairs returns one pair per (entry pair, method). Pairs already linked
// by a content hash are not reported again by title or embedding.
func (p *DBSignalProvider) DetectPairs(ctx context.Context, includeResolved bool) ([]duplicates.SignalPair, error) {
	settings, err := database.GetOrCreateDedupSettings(p.db.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to load dedup settings: %w", err)
	}

	candidates, err := p.loadCandidates(ctx, includeResolved)
	if err != nil {
		return nil, err
	}

	d := pairDetector{
		maxPairs: settings.MaxPairs,
		seen:     make(map[pairKey]bool),
	}

	d.hashPairs(candidates)
	if settings.TitleMatchEnabled {
		d.titlePairs(candidates)
	}
	if err := d.embeddingPairs(ctx, candidates, settings.EmbeddingThreshold); err != nil {
		return nil, err
	}

	if d.truncated {
		log.Printf("Warning: DBSignalProvider: pair limit %d reached, remaining pairs skipped", settings.MaxPairs)
	}
	return d.pairs, nil
}

func (p *DBSignalProvider) loadCandidates(ctx context.Context, includeResolved bool) ([]candidate, error) {
	var lessons []database.Lesson
	query := p.db.WithContext(ctx).
		Model(&database.Lesson{}).
		Select("id", "normalized_title", "content_hash")
	if !includeResolved {
		query = query.Where("status <> ?", database.LessonStatusSuperseded)
	}
	if err := query.Order("id ASC").Find(&lessons).Error; err != nil {
		return nil, fmt.Errorf("failed to load lessons: %w", err)
	}

	var embeddings []database.LessonEmbedding
	if err := p.db.WithContext(ctx).Find(&embeddings).Error; err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	vectors := make(map[string][]float64, len(embeddings))
	for _, e := range embeddings {
		if unit := normalizeVector(e.Vector); unit != nil {
			vectors[e.LessonID] = unit
		}
	}

	candidates := make([]candidate, 0, len(lessons))
	for _, l := range lessons {
		candidates = append(candidates, candidate{
			ID:              l.ID,
			NormalizedTitle: l.NormalizedTitle,
			ContentHash:     l.ContentHash,
			vector:          vectors[l.ID],
		})
	}
	return candidates, nil
}

type pairKey struct {
	a, b string
}

func newPairKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// pairDetector accumulates pairs up to maxPairs. seen holds pairs matched by
// content hash, which suppress the weaker signals.
type pairDetector struct {
	maxPairs  int
	seen      map[pairKey]bool
	pairs     []duplicates.SignalPair
	truncated bool
}

func (d *pairDetector) full() bool {
	if len(d.pairs) >= d.maxPairs {
		d.truncated = true
		return true
	}
	return false
}

func (d *pairDetector) emit(a, b string, method duplicates.DetectionMethod, similarity *float64) {
	k := newPairKey(a, b)
	d.pairs = append(d.pairs, duplicates.SignalPair{
		ID1:             k.a,
		ID2:             k.b,
		DetectionMethod: string(method),
		Similarity:      similarity,
	})
}

func (d *pairDetector) hashPairs(candidates []candidate) {
	for _, bucket := range bucketBy(candidates, func(c candidate) string { return c.ContentHash }) {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				if d.full() {
					return
				}
				a, b := bucket[i], bucket[j]
				var similarity *float64
				if a.vector != nil && b.vector != nil {
					s := clampSimilarity(dot(a.vector, b.vector))
					similarity = &s
				}
				d.seen[newPairKey(a.ID, b.ID)] = true
				d.emit(a.ID, b.ID, duplicates.MethodHashAndEmbedding, similarity)
			}
		}
	}
}

func (d *pairDetector) titlePairs(candidates []candidate) {
	for _, bucket := range bucketBy(candidates, func(c candidate) string { return c.NormalizedTitle }) {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				if d.full() {
					return
				}
				a, b := bucket[i], bucket[j]
				if d.seen[newPairKey(a.ID, b.ID)] {
					continue
				}
				d.emit(a.ID, b.ID, duplicates.MethodSameTitle, nil)
			}
		}
	}
}

func (d *pairDetector) embeddingPairs(ctx context.Context, candidates []candidate, threshold float64) error {
	embedded := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.vector != nil {
			embedded = append(embedded, c)
		}
	}

	for i := 0; i < len(embedded); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for j := i + 1; j < len(embedded); j++ {
			a, b := embedded[i], embedded[j]
			if len(a.vector) != len(b.vector) || d.seen[newPairKey(a.ID, b.ID)] {
				continue
			}
			s := clampSimilarity(dot(a.vector, b.vector))
			if s < threshold {
				continue
			}
			if d.full() {
				return nil
			}
			d.emit(a.ID, b.ID, duplicates.MethodEmbedding, &s)
		}
	}
	return nil
}

// bucketBy groups candidates sharing a non-empty key. Buckets of one are
// dropped and the result is ordered by key.
func bucketBy(candidates []candidate, key func(candidate) string) [][]candidate {
	byKey := make(map[string][]candidate)
	for _, c := range candidates {
		if k := key(c); k != "" {
			byKey[k] = append(byKey[k], c)
		}
	}
	keys := make([]string, 0, len(byKey))
	for k, bucket := range byKey {
		if len(bucket) > 1 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	buckets := make([][]candidate, 0, len(keys))
	for _, k := range keys {
		buckets = append(buckets, byKey[k])
	}
	return buckets
}

// normalizeVector scales v to unit length so cosine similarity is a dot
// product. Zero and empty vectors return nil.
func normalizeVector(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	unit := make([]float64, len(v))
	for i, x := range v {
		unit[i] = x / norm
	}
	return unit
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Cosine similarity is in [-1,1]; pairs only carry [0,1].
func clampSimilarity(s float64) float64 {
	return math.Max(0, math.Min(1, s))
}
