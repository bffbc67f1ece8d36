package segment

import (
	"strconv"
	"strings"
	"sync"
	"testing"
)

func TestGenerator_Next(t *testing.T) {
	gen := New()

	tests := []struct {
		session  string
		expected string
	}{
		{"sess-123", "sess-123-seg-1"},
		{"sess-123", "sess-123-seg-2"},
		{"sess-456", "sess-456-seg-3"},
	}
	for _, tt := range tests {
		if got := gen.Next(tt.session); got != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, got)
		}
	}
}

func TestGenerator_ThreadSafety(t *testing.T) {
	gen := New()
	numGoroutines := 100
	perGoroutine := 10

	var wg sync.WaitGroup
	results := make(chan string, numGoroutines*perGoroutine)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				results <- gen.Next("sess-concurrent")
			}
		}()
	}

	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for seg := range results {
		if seen[seg] {
			t.Errorf("duplicate segment ID generated: %s", seg)
		}
		seen[seg] = true
	}
	if len(seen) != numGoroutines*perGoroutine {
		t.Errorf("expected %d unique segment IDs, got %d", numGoroutines*perGoroutine, len(seen))
	}
}

func TestGenerator_CounterMonotonic(t *testing.T) {
	gen := New()

	prev := 0
	for i := 0; i < 100; i++ {
		seg := gen.Next("sess-test")
		n, err := strconv.Atoi(seg[strings.LastIndex(seg, "-")+1:])
		if err != nil {
			t.Fatalf("failed to parse segment number from %s: %v", seg, err)
		}
		if n <= prev {
			t.Errorf("counter not monotonic: %d <= %d", n, prev)
		}
		prev = n
	}
}
