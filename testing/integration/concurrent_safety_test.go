package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/zoobzio/apmz"
)

// TestConcurrentSpansAndErrors starts spans and captures errors from many
// goroutines on one agent.
func TestConcurrentSpansAndErrors(t *testing.T) {
	intake := NewMockIntake(t)
	agent := intake.NewAgent()

	tx, err := agent.StartTransaction("fan-out", apmz.Contexts{})
	if err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}

	var wg sync.WaitGroup
	numGoroutines := 20
	spansPerGoroutine := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for j := 0; j < spansPerGoroutine; j++ {
				name := fmt.Sprintf("worker-%d-%d", g, j)
				if _, err := tx.StartSpan(name, apmz.Contexts{}); err != nil {
					t.Errorf("StartSpan %s failed: %v", name, err)
					continue
				}
				if err := tx.StopSpan(name, apmz.Meta{}); err != nil {
					t.Errorf("StopSpan %s failed: %v", name, err)
				}
			}
			agent.CaptureError(errors.New("worker failed"), apmz.Contexts{})
		}(i)
	}
	wg.Wait()

	if len(tx.Spans()) != numGoroutines*spansPerGoroutine {
		t.Errorf("Expected %d spans, got %d", numGoroutines*spansPerGoroutine, len(tx.Spans()))
	}
	if agent.PendingErrors() != numGoroutines {
		t.Errorf("Expected %d errors, got %d", numGoroutines, agent.PendingErrors())
	}
}

// TestConcurrentDuplicateTransactions lets exactly one goroutine win a name.
func TestConcurrentDuplicateTransactions(t *testing.T) {
	intake := NewMockIntake(t)
	agent := intake.NewAgent()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins, dups := 0, 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := agent.StartTransaction("contended", apmz.Contexts{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apmz.ErrDuplicateTransactionName):
				dups++
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || dups != 49 {
		t.Errorf("Expected 1 winner and 49 duplicates, got %d/%d", wins, dups)
	}
}

// lateTransport records a new event on the agent while each batch is in flight.
type lateTransport struct {
	agent *apmz.Agent
	sent  []int
	mu    sync.Mutex
}

func (l *lateTransport) SendErrors(_ context.Context, errs []*apmz.ErrorRecord) bool {
	l.agent.CaptureError(errors.New("late"), apmz.Contexts{})
	l.mu.Lock()
	l.sent = append(l.sent, len(errs))
	l.mu.Unlock()
	return true
}

func (l *lateTransport) SendTransactions(_ context.Context, txs []*apmz.Transaction) bool {
	_, _ = l.agent.StartTransaction("late", apmz.Contexts{})
	l.mu.Lock()
	l.sent = append(l.sent, len(txs))
	l.mu.Unlock()
	return true
}

// TestEventsRecordedDuringSendSurvive keeps events added while a batch is in flight.
func TestEventsRecordedDuringSendSurvive(t *testing.T) {
	lt := &lateTransport{}
	agent, err := apmz.New(apmz.Config{AppName: "integration"}, apmz.WithTransport(lt))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	lt.agent = agent

	agent.CaptureError(errors.New("early"), apmz.Contexts{})
	if _, err := agent.StartTransaction("early", apmz.Contexts{}); err != nil {
		t.Fatalf("StartTransaction failed: %v", err)
	}

	if !agent.Send(context.Background()) {
		t.Fatal("Expected send to succeed")
	}
	if agent.PendingErrors() != 1 {
		t.Errorf("Expected the late error to stay pending, got %d", agent.PendingErrors())
	}
	if agent.PendingTransactions() != 1 {
		t.Errorf("Expected the late transaction to stay pending, got %d", agent.PendingTransactions())
	}
	if _, err := agent.Transaction("late"); err != nil {
		t.Errorf("Expected late transaction to be registered: %v", err)
	}

	// The next flush delivers what arrived late.
	agent.Send(context.Background())
	lt.mu.Lock()
	defer lt.mu.Unlock()
	if len(lt.sent) < 4 || lt.sent[2] != 1 || lt.sent[3] != 1 {
		t.Errorf("Expected late events in the second flush, got batches %v", lt.sent)
	}
}
