package apmz

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
)

// IDSource produces event identities.
type IDSource interface {
	NewID() (string, error)
}

// IDPool manages a pool of pre-generated UUIDs to amortize crypto/rand overhead.
type IDPool struct {
	factory func() (string, error)
	ids     chan string
	stopCh  chan struct{}
	mu      sync.Mutex
	closed  bool
}

// NewIDPool creates a new ID pool with the specified capacity.
func NewIDPool(capacity int, factory func() (string, error)) *IDPool {
	pool := &IDPool{
		ids:     make(chan string, capacity),
		factory: factory,
		stopCh:  make(chan struct{}),
	}
	go pool.refill()
	return pool
}

// NewID retrieves an ID from the pool or generates one if the pool is empty.
func (p *IDPool) NewID() (string, error) {
	select {
	case id := <-p.ids:
		return id, nil
	default:
		id, err := p.factory()
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrIdentity, err)
		}
		return id, nil
	}
}

// refill keeps the pool topped up in the background.
// It gives up on the first generation failure; NewID then reports
// failures directly to the caller.
func (p *IDPool) refill() {
	for {
		id, err := p.factory()
		if err != nil {
			return
		}
		select {
		case p.ids <- id:
		case <-p.stopCh:
			return
		}
	}
}

// Close shuts down the ID pool gracefully.
func (p *IDPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		close(p.stopCh)
		p.closed = true
	}
}

func newUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

var (
	sharedIDs     *IDPool
	sharedIDsOnce sync.Once
)

// defaultIDs returns the process-wide UUID pool shared by all agents.
func defaultIDs() IDSource {
	sharedIDsOnce.Do(func() {
		sharedIDs = NewIDPool(runtime.NumCPU()*16, newUUID)
	})
	return sharedIDs
}
