package services

import (
	"testing"

	"gorm.io/gorm"

	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/duplicates"
	"github.com/lessonbank/dedup/internal/testhelpers"
)

func updateSettings(t *testing.T, db *gorm.DB, fn func(*database.DedupSettings)) {
	t.Helper()
	settings, err := database.GetOrCreateDedupSettings(db)
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	fn(settings)
	if err := database.UpdateDedupSettings(db, settings); err != nil {
		t.Fatalf("failed to update settings: %v", err)
	}
}

// pairsByKey indexes pairs as "id1|id2|method"
func pairsByKey(pairs []duplicates.SignalPair) map[string]duplicates.SignalPair {
	out := make(map[string]duplicates.SignalPair, len(pairs))
	for _, p := range pairs {
		out[p.ID1+"|"+p.ID2+"|"+p.DetectionMethod] = p
	}
	return out
}

func TestDBSignalProvider_NoLessons(t *testing.T) {
	db := testhelpers.NewTestDB(t)

	pairs, err := NewDBSignalProvider(db).DetectPairs(t.Context(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 0 {
		t.Errorf("expected no pairs, got %d", len(pairs))
	}
}

func TestDBSignalProvider_ContentHash(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	testhelpers.NewLessonBuilder("a").WithContent("same body").WithEmbedding(1, 0).Create(t, db)
	testhelpers.NewLessonBuilder("b").WithContent("same  body").WithEmbedding(1, 0).Create(t, db)
	testhelpers.NewLessonBuilder("c").WithContent("same body").Create(t, db)

	pairs, err := NewDBSignalProvider(db).DetectPairs(t.Context(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byKey := pairsByKey(pairs)
	if len(byKey) != 3 {
		t.Fatalf("expected 3 hash pairs, got %d: %+v", len(byKey), pairs)
	}

	ab, ok := byKey["a|b|hash_and_embedding"]
	if !ok {
		t.Fatal("expected a/b hash pair")
	}
	if ab.Similarity == nil || *ab.Similarity < 0.999 {
		t.Errorf("expected similarity ~1 for a/b, got %v", ab.Similarity)
	}

	ac, ok := byKey["a|c|hash_and_embedding"]
	if !ok {
		t.Fatal("expected a/c hash pair")
	}
	if ac.Similarity != nil {
		t.Errorf("expected nil similarity when c has no embedding, got %v", *ac.Similarity)
	}
}

func TestDBSignalProvider_TitleMatch(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	testhelpers.NewLessonBuilder("a").WithTitle("Intro to Fractions").Create(t, db)
	testhelpers.NewLessonBuilder("b").WithTitle("intro to  fractions").Create(t, db)
	testhelpers.NewLessonBuilder("c").WithTitle("Decimals").Create(t, db)

	provider := NewDBSignalProvider(db)

	pairs, err := provider.DetectPairs(t.Context(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 1 || pairs[0].DetectionMethod != string(duplicates.MethodSameTitle) {
		t.Fatalf("expected a single same_title pair, got %+v", pairs)
	}
	if pairs[0].ID1 != "a" || pairs[0].ID2 != "b" {
		t.Errorf("expected pair (a, b), got (%s, %s)", pairs[0].ID1, pairs[0].ID2)
	}

	updateSettings(t, db, func(s *database.DedupSettings) { s.TitleMatchEnabled = false })

	pairs, err = provider.DetectPairs(t.Context(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 0 {
		t.Errorf("expected no pairs with title matching disabled, got %+v", pairs)
	}
}

func TestDBSignalProvider_EmbeddingThreshold(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	testhelpers.NewLessonBuilder("a").WithEmbedding(1, 0).Create(t, db)
	testhelpers.NewLessonBuilder("b").WithEmbedding(0.99, 0.1).Create(t, db)
	testhelpers.NewLessonBuilder("c").WithEmbedding(0, 1).Create(t, db)
	testhelpers.NewLessonBuilder("d").WithEmbedding(1, 0, 0).Create(t, db)

	pairs, err := NewDBSignalProvider(db).DetectPairs(t.Context(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected only a/b above threshold, got %+v", pairs)
	}
	p := pairs[0]
	if p.ID1 != "a" || p.ID2 != "b" || p.DetectionMethod != string(duplicates.MethodEmbedding) {
		t.Errorf("unexpected pair %+v", p)
	}
	if p.Similarity == nil || *p.Similarity < 0.92 || *p.Similarity > 1 {
		t.Errorf("expected similarity in [0.92, 1], got %v", p.Similarity)
	}
}

func TestDBSignalProvider_HashSuppressesWeakerSignals(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	testhelpers.NewLessonBuilder("a").WithTitle("Same").WithContent("same").WithEmbedding(1, 0).Create(t, db)
	testhelpers.NewLessonBuilder("b").WithTitle("Same").WithContent("same").WithEmbedding(1, 0).Create(t, db)

	pairs, err := NewDBSignalProvider(db).DetectPairs(t.Context(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 1 || pairs[0].DetectionMethod != string(duplicates.MethodHashAndEmbedding) {
		t.Errorf("expected a single hash pair, got %+v", pairs)
	}
}

func TestDBSignalProvider_TitleAndEmbeddingBothReported(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	testhelpers.NewLessonBuilder("a").WithTitle("Same").WithEmbedding(1, 0).Create(t, db)
	testhelpers.NewLessonBuilder("b").WithTitle("Same").WithEmbedding(1, 0.01).Create(t, db)

	pairs, err := NewDBSignalProvider(db).DetectPairs(t.Context(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byKey := pairsByKey(pairs)
	if _, ok := byKey["a|b|same_title"]; !ok {
		t.Error("expected same_title pair")
	}
	if _, ok := byKey["a|b|embedding"]; !ok {
		t.Error("expected embedding pair")
	}
}

func TestDBSignalProvider_ExcludesSuperseded(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	testhelpers.NewLessonBuilder("a").WithContent("same").Create(t, db)
	testhelpers.NewLessonBuilder("b").WithContent("same").SupersededBy("a").Create(t, db)

	provider := NewDBSignalProvider(db)

	pairs, err := provider.DetectPairs(t.Context(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 0 {
		t.Errorf("expected superseded lesson to be excluded, got %+v", pairs)
	}

	pairs, err = provider.DetectPairs(t.Context(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 1 {
		t.Errorf("expected superseded lesson with includeResolved, got %+v", pairs)
	}
}

func TestDBSignalProvider_MaxPairs(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		testhelpers.NewLessonBuilder(id).WithContent("same").Create(t, db)
	}
	updateSettings(t, db, func(s *database.DedupSettings) { s.MaxPairs = 4 })

	pairs, err := NewDBSignalProvider(db).DetectPairs(t.Context(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 4 {
		t.Errorf("expected pairs capped at 4, got %d", len(pairs))
	}
}

func TestNormalizeVector(t *testing.T) {
	if normalizeVector(nil) != nil {
		t.Error("expected nil for empty vector")
	}
	if normalizeVector([]float64{0, 0}) != nil {
		t.Error("expected nil for zero vector")
	}
	unit := normalizeVector([]float64{3, 4})
	if len(unit) != 2 || unit[0] != 0.6 || unit[1] != 0.8 {
		t.Errorf("expected [0.6 0.8], got %v", unit)
	}
}
