package duplicates

// AggregateMethod reports the group-level detection method: the shared method
// when all pairs agree, hash_and_embedding when any pair has it, mixed otherwise.
func AggregateMethod(pairs []DuplicatePair) DetectionMethod {
	if len(pairs) == 0 {
		return MethodMixed
	}
	first := pairs[0].DetectionMethod
	uniform := true
	for _, p := range pairs {
		if p.DetectionMethod == MethodHashAndEmbedding {
			return MethodHashAndEmbedding
		}
		if p.DetectionMethod != first {
			uniform = false
		}
	}
	if uniform {
		return first
	}
	return MethodMixed
}

// AggregateConfidence derives the review tier from the methods present.
// A hash match, or title and embedding evidence corroborating each other,
// is high; a single kind of soft evidence is medium.
func AggregateConfidence(pairs []DuplicatePair) Confidence {
	var hasTitle, hasEmbedding bool
	for _, p := range pairs {
		switch p.DetectionMethod {
		case MethodHashAndEmbedding:
			return ConfidenceHigh
		case MethodSameTitle:
			hasTitle = true
		case MethodEmbedding:
			hasEmbedding = true
		}
	}
	switch {
	case hasTitle && hasEmbedding:
		return ConfidenceHigh
	case hasTitle || hasEmbedding:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// AverageSimilarity is the mean of the non-nil similarity scores, or nil.
func AverageSimilarity(pairs []DuplicatePair) *float64 {
	var sum float64
	var n int
	for _, p := range pairs {
		if p.Similarity == nil {
			continue
		}
		sum += *p.Similarity
		n++
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}
