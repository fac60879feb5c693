package testfixtures

import (
	"sync"
	"testing"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	t.Parallel()

	gen := NewIDGenerator("appt")
	first, second := gen.Next(), gen.Next()
	if first != "appt-001" || second != "appt-002" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if gen.Issued() != 2 {
		t.Fatalf("expected 2 issued, got %d", gen.Issued())
	}
}

func TestIDGeneratorIsSafeForConcurrentUse(t *testing.T) {
	t.Parallel()

	gen := NewIDGenerator("")
	next := gen.NextFunc()

	var mu sync.Mutex
	seen := map[string]bool{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := next()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != 50 || !seen["id-001"] || !seen["id-050"] {
		t.Fatalf("expected 50 distinct ids, got %d", len(seen))
	}
}
