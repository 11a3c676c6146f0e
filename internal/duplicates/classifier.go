package duplicates

import (
	"log"
	"strings"
)

// ClassifyMethod validates a provider-reported method against the closed set.
// Unknown values map to MethodEmbedding, the most conservative classification,
// and ok is false so the caller can record the coercion.
func ClassifyMethod(method string) (m DetectionMethod, ok bool) {
	switch DetectionMethod(strings.ToLower(strings.TrimSpace(method))) {
	case MethodHashAndEmbedding:
		return MethodHashAndEmbedding, true
	case MethodSameTitle:
		return MethodSameTitle, true
	case MethodEmbedding:
		return MethodEmbedding, true
	default:
		return MethodEmbedding, false
	}
}

// ClassifyPair turns one provider pair into a DuplicatePair.
// Similarity values outside [0,1] are dropped.
func ClassifyPair(raw SignalPair) (DuplicatePair, bool) {
	method, ok := ClassifyMethod(raw.DetectionMethod)
	pair := DuplicatePair{
		ID1:             raw.ID1,
		ID2:             raw.ID2,
		DetectionMethod: method,
	}
	if raw.Similarity != nil && *raw.Similarity >= 0 && *raw.Similarity <= 1 {
		s := *raw.Similarity
		pair.Similarity = &s
	}
	return pair, ok
}

// ClassificationStats summarizes one ClassifyPairs call.
type ClassificationStats struct {
	Classified int
	Coerced    int
	Dropped    int
}

// ClassifyPairs validates a whole provider batch. Pairs that violate the
// id1 != id2 invariant, or miss an id, are dropped.
func ClassifyPairs(raw []SignalPair) ([]DuplicatePair, ClassificationStats) {
	var stats ClassificationStats
	pairs := make([]DuplicatePair, 0, len(raw))
	for _, r := range raw {
		if r.ID1 == "" || r.ID2 == "" || r.ID1 == r.ID2 {
			log.Printf("Warning: dropping malformed duplicate pair (%q, %q)", r.ID1, r.ID2)
			stats.Dropped++
			continue
		}
		pair, ok := ClassifyPair(r)
		if !ok {
			log.Printf("Warning: unknown detection method %q for pair (%s, %s), treating as %s",
				r.DetectionMethod, r.ID1, r.ID2, MethodEmbedding)
			stats.Coerced++
		}
		pairs = append(pairs, pair)
		stats.Classified++
	}
	return pairs, stats
}
