package apmz

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
)

// TestIDPoolBasicOperation tests basic ID pool functionality.
func TestIDPoolBasicOperation(t *testing.T) {
	factory := func() (string, error) { return "test-id", nil }
	pool := NewIDPool(10, factory)
	defer pool.Close()

	id, err := pool.NewID()
	if err != nil {
		t.Fatalf("NewID failed: %v", err)
	}
	if id != "test-id" {
		t.Errorf("Expected 'test-id', got %s", id)
	}
}

// TestIDPoolFactoryFailure tests that generation failures surface as ErrIdentity.
func TestIDPoolFactoryFailure(t *testing.T) {
	entropy := errors.New("entropy exhausted")
	pool := NewIDPool(1, func() (string, error) { return "", entropy })
	defer pool.Close()

	_, err := pool.NewID()
	if !errors.Is(err, ErrIdentity) {
		t.Errorf("Expected ErrIdentity, got %v", err)
	}
	if !errors.Is(err, entropy) {
		t.Errorf("Expected cause to be preserved, got %v", err)
	}
}

// TestIDPoolUUIDs tests that the default generator yields unique v4 UUIDs.
func TestIDPoolUUIDs(t *testing.T) {
	pool := NewIDPool(8, newUUID)
	defer pool.Close()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := pool.NewID()
		if err != nil {
			t.Fatalf("NewID failed: %v", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("Expected UUID, got %q: %v", id, err)
		}
		if parsed.Version() != 4 {
			t.Errorf("Expected version 4, got %d", parsed.Version())
		}
		if seen[id] {
			t.Errorf("Duplicate ID %s", id)
		}
		seen[id] = true
	}
}

// TestIDPoolConcurrentAccess tests concurrent access to ID pool.
func TestIDPoolConcurrentAccess(t *testing.T) {
	pool := NewIDPool(50, newUUID)
	defer pool.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)
	numGoroutines := 10
	idsPerGoroutine := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < idsPerGoroutine; j++ {
				id, err := pool.NewID()
				if err != nil {
					t.Errorf("NewID failed: %v", err)
					return
				}
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != numGoroutines*idsPerGoroutine {
		t.Errorf("Expected %d unique IDs, got %d", numGoroutines*idsPerGoroutine, len(seen))
	}
}

// TestIDPoolCloseIdempotent tests that Close can be called repeatedly.
func TestIDPoolCloseIdempotent(t *testing.T) {
	pool := NewIDPool(4, newUUID)
	pool.Close()
	pool.Close()

	// Direct generation still works after close.
	if _, err := pool.NewID(); err != nil {
		t.Errorf("Expected NewID to work after Close, got %v", err)
	}
}

// TestDefaultIDsShared tests that agents share one pool.
func TestDefaultIDsShared(t *testing.T) {
	if defaultIDs() != defaultIDs() {
		t.Error("Expected the same shared pool")
	}
}
