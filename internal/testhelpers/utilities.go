package testhelpers

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"
)

// ========================================
// Test File Utilities
// ========================================

// WriteTestFile creates a test file with the given content
func WriteTestFile(t testing.TB, dir, filename, content string) string {
	t.Helper()

	path := filepath.Join(dir, filename)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create parent directories for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file %s: %v", path, err)
	}
	return path
}

// ========================================
// Concurrent Testing Helpers
// ========================================

// ConcurrentTest runs a function concurrently multiple times and waits for completion
func ConcurrentTest(t *testing.T, goroutines int, fn func(workerID int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			fn(id)
		}(i)
	}
	wg.Wait()
}

// ========================================
// Slice Helpers
// ========================================

// AssertSliceContains checks if a slice contains a specific element
func AssertSliceContains[T comparable](t *testing.T, slice []T, elem T, msg string) {
	t.Helper()

	for _, e := range slice {
		if e == elem {
			return
		}
	}
	t.Errorf("%s: slice does not contain %v", msg, elem)
}

// AssertSliceNotContains checks if a slice does not contain a specific element
func AssertSliceNotContains[T comparable](t *testing.T, slice []T, elem T, msg string) {
	t.Helper()

	for _, e := range slice {
		if e == elem {
			t.Errorf("%s: slice contains %v but should not", msg, elem)
			return
		}
	}
}

// AssertIDSet checks that two id slices hold the same set, ignoring order
func AssertIDSet(t *testing.T, expected, actual []uint, msg string) {
	t.Helper()

	want := dedupe(expected)
	got := dedupe(actual)
	if len(want) != len(got) {
		t.Errorf("%s: expected ids %v, got %v", msg, want, got)
		return
	}
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("%s: expected ids %v, got %v", msg, want, got)
			return
		}
	}
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ========================================
// Time Helpers
// ========================================

// AssertTimeWithin checks if a time is within a duration of another time
func AssertTimeWithin(t *testing.T, actual, reference time.Time, tolerance time.Duration, msg string) {
	t.Helper()

	diff := actual.Sub(reference)
	if diff < 0 {
		diff = -diff
	}
	if diff > tolerance {
		t.Errorf("%s: time difference %v exceeds tolerance %v (actual: %v, reference: %v)",
			msg, diff, tolerance, actual, reference)
	}
}
