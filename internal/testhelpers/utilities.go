package testhelpers

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// ========================================
// JSON Assertion Helpers
// ========================================

// AssertJSONKeyValue checks if a JSON object has a specific key-value pair.
// Numbers compare as float64.
func AssertJSONKeyValue(t *testing.T, jsonStr string, key string, expectedValue interface{}, msg string) {
	t.Helper()

	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(jsonStr), &obj); err != nil {
		t.Fatalf("%s: failed to parse JSON: %v", msg, err)
	}

	actual, exists := obj[key]
	if !exists {
		t.Errorf("%s: JSON does not contain key %q", msg, key)
		return
	}
	if actual != expectedValue {
		t.Errorf("%s: expected %s=%v, got %v", msg, key, expectedValue, actual)
	}
}

// ========================================
// Concurrent Testing Helpers
// ========================================

// ConcurrentTestWithTimeout runs fn on goroutines workers at once and fails
// the test if they have not all returned within timeout.
func ConcurrentTestWithTimeout(t *testing.T, timeout time.Duration, goroutines int, fn func(workerID int)) {
	t.Helper()

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			fn(id)
		}(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatalf("%d workers did not finish within %v", goroutines, timeout)
	}
}

// ========================================
// Slice Helpers
// ========================================

// AssertSliceLen checks if a slice has a specific length
func AssertSliceLen[T any](t *testing.T, slice []T, expectedLen int, msg string) {
	t.Helper()

	if len(slice) != expectedLen {
		t.Errorf("%s: expected slice length %d, got %d", msg, expectedLen, len(slice))
	}
}

// ========================================
// Map Helpers
// ========================================

// AssertMapLen checks if a map has a specific length
func AssertMapLen[K comparable, V any](t *testing.T, m map[K]V, expectedLen int, msg string) {
	t.Helper()

	if len(m) != expectedLen {
		t.Errorf("%s: expected map length %d, got %d", msg, expectedLen, len(m))
	}
}
