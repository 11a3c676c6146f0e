package services

import (
	"errors"
	"testing"

	"github.com/lessonbank/dedup/internal/duplicates"
	"github.com/lessonbank/dedup/internal/testhelpers"
)

func TestDismissalStore_DismissAndLookup(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	store := NewDismissalStore(db)

	record, err := store.Dismiss(t.Context(), []string{"c", "a", "b"}, duplicates.MethodSameTitle, "different grade levels", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.MemberKey != "a,b,c" {
		t.Errorf("expected member key a,b,c, got %s", record.MemberKey)
	}
	if record.MemberCount != 3 {
		t.Errorf("expected member count 3, got %d", record.MemberCount)
	}

	for _, ids := range [][]string{{"a", "b", "c"}, {"b", "c", "a"}, {"c", "b", "a"}} {
		dismissed, err := store.IsDismissed(t.Context(), ids)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !dismissed {
			t.Errorf("expected %v to be dismissed", ids)
		}
	}

	dismissed, err := store.IsDismissed(t.Context(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dismissed {
		t.Error("a subset of a dismissed set must not count as dismissed")
	}
}

func TestDismissalStore_DismissTwiceIsIdempotent(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	store := NewDismissalStore(db)

	first, err := store.Dismiss(t.Context(), []string{"a", "b"}, duplicates.MethodEmbedding, "", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := store.Dismiss(t.Context(), []string{"b", "a"}, duplicates.MethodEmbedding, "again", "bob")
	if err != nil {
		t.Fatalf("unexpected error on repeat dismissal: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected the same record, got %d and %d", first.ID, second.ID)
	}
	if second.DismissedBy != "alice" {
		t.Errorf("expected the first dismissal to be kept, got %s", second.DismissedBy)
	}

	list, err := store.List(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected 1 dismissal, got %d", len(list))
	}
}

func TestDismissalStore_TooFewMembers(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	store := NewDismissalStore(db)

	tests := []struct {
		name string
		ids  []string
	}{
		{"empty", nil},
		{"single", []string{"a"}},
		{"repeated", []string{"a", "a"}},
		{"blank", []string{"a", " "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Dismiss(t.Context(), tt.ids, duplicates.MethodEmbedding, "", "alice")
			if !errors.Is(err, duplicates.ErrTooFewMembers) {
				t.Errorf("expected ErrTooFewMembers, got %v", err)
			}
		})
	}
}

func TestDismissalStore_DismissedKeys(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	store := NewDismissalStore(db)

	store.Dismiss(t.Context(), []string{"a", "b"}, duplicates.MethodEmbedding, "", "alice")
	store.Dismiss(t.Context(), []string{"d", "c", "e"}, duplicates.MethodMixed, "", "alice")

	keys, err := store.DismissedKeys(t.Context())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testhelpers.AssertMapLen(t, keys, 2, "dismissed keys")
	for _, k := range []string{"a,b", "c,d,e"} {
		if _, ok := keys[k]; !ok {
			t.Errorf("expected key %s", k)
		}
	}
}
