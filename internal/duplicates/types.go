// Package duplicates holds the pure core of duplicate detection: pair
// classification, transitive grouping and group-level aggregation.
//
// Nothing in this package performs I/O. Callers feed it the pairwise evidence
// returned by a signal provider and persist or present the results elsewhere.
package duplicates

// DetectionMethod names the signal(s) that flagged a pair as a possible duplicate.
type DetectionMethod string

const (
	MethodHashAndEmbedding DetectionMethod = "hash_and_embedding"
	MethodSameTitle        DetectionMethod = "same_title"
	MethodEmbedding        DetectionMethod = "embedding"
	// MethodMixed is only ever reported at group level.
	MethodMixed DetectionMethod = "mixed"
)

// Confidence is the review priority tier of a group.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidences for review, lower first.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	default:
		return 2
	}
}

// SignalPair is one pair as reported by a signal provider, before validation.
// DetectionMethod is deliberately an open string.
type SignalPair struct {
	ID1             string   `json:"id1" yaml:"id1"`
	ID2             string   `json:"id2" yaml:"id2"`
	DetectionMethod string   `json:"detection_method" yaml:"detection_method"`
	Similarity      *float64 `json:"similarity" yaml:"similarity"`
}

// DuplicatePair is one piece of validated pairwise evidence. ID1 != ID2.
type DuplicatePair struct {
	ID1             string          `json:"id1" yaml:"id1"`
	ID2             string          `json:"id2" yaml:"id2"`
	DetectionMethod DetectionMethod `json:"detection_method" yaml:"detection_method"`
	Similarity      *float64        `json:"similarity" yaml:"similarity,omitempty"`
}

// DuplicateGroup is a connected component of entries linked by pairs.
// GroupID is only stable within the detection run that produced it.
type DuplicateGroup struct {
	GroupID         string          `json:"group_id" yaml:"group_id"`
	MemberIDs       []string        `json:"member_ids" yaml:"member_ids"`
	Pairs           []DuplicatePair `json:"pairs" yaml:"pairs"`
	DetectionMethod DetectionMethod `json:"detection_method" yaml:"detection_method"`
	Confidence      Confidence      `json:"confidence" yaml:"confidence"`
	AvgSimilarity   *float64        `json:"avg_similarity" yaml:"avg_similarity,omitempty"`
}

// DismissalKey returns the key used to match this group against dismissals.
func (g DuplicateGroup) DismissalKey() string {
	return DismissalKey(g.MemberIDs)
}

// HasMember reports whether id belongs to the group.
func (g DuplicateGroup) HasMember(id string) bool {
	for _, m := range g.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}
