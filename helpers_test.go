package apmz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

// testEpoch is the start time of every fake clock in these tests.
var testEpoch = time.Date(2024, 1, 2, 3, 4, 5, 123456789, time.UTC)

// sequentialIDs hands out predictable, unique identities.
type sequentialIDs struct {
	n atomic.Int64
}

func (s *sequentialIDs) NewID() (string, error) {
	return fmt.Sprintf("id-%d", s.n.Add(1)), nil
}

// failingIDs never produces an identity.
type failingIDs struct{}

func (failingIDs) NewID() (string, error) {
	return "", fmt.Errorf("%w: entropy exhausted", ErrIdentity)
}

// staticProvider reports a fixed request view.
type staticProvider struct {
	info RequestInfo
}

func (p staticProvider) Request() RequestInfo { return p.info }

// headerProvider additionally reports sent headers.
type headerProvider struct {
	staticProvider
	headers map[string]string
}

func (p headerProvider) DiagnosticHeaders() map[string]string { return p.headers }

// recordingTransport records batches and answers with fixed results.
type recordingTransport struct {
	errorBatches       [][]*ErrorRecord
	transactionBatches [][]*Transaction
	mu                 sync.Mutex
	acceptErrors       bool
	acceptTransactions bool
}

func newRecordingTransport(accept bool) *recordingTransport {
	return &recordingTransport{acceptErrors: accept, acceptTransactions: accept}
}

func (r *recordingTransport) SendErrors(_ context.Context, errs []*ErrorRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errorBatches = append(r.errorBatches, errs)
	return r.acceptErrors
}

func (r *recordingTransport) SendTransactions(_ context.Context, txs []*Transaction) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactionBatches = append(r.transactionBatches, txs)
	return r.acceptTransactions
}

func (r *recordingTransport) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errorBatches) + len(r.transactionBatches)
}

func (r *recordingTransport) setAccept(accept bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acceptErrors = accept
	r.acceptTransactions = accept
}

func testProvider() staticProvider {
	return staticProvider{info: RequestInfo{
		Method:      "GET",
		HTTPVersion: "1.1",
		URL:         URLInfo{Protocol: "http", Hostname: "shop.local", Pathname: "/checkout"},
		Env:         map[string]string{"HOME": "/root", "PATH": "/bin", "SECRET": "s3cr3t"},
	}}
}

func testOptions(clock clockz.Clock) EventOptions {
	return EventOptions{
		IDs:      &sequentialIDs{},
		Clock:    clock,
		Provider: testProvider(),
	}
}

func newTestAgent(t *testing.T, opts ...Option) (*Agent, *clockz.FakeClock) {
	t.Helper()
	clock := clockz.NewFakeClockAt(testEpoch)
	base := []Option{
		WithClock(clock),
		WithIDSource(&sequentialIDs{}),
		WithContextProvider(testProvider()),
	}
	agent, err := New(Config{AppName: "test-app"}, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return agent, clock
}

// codedError is a custom error type used to check type capture.
type codedError struct {
	code int
}

func (e *codedError) Error() string { return fmt.Sprintf("code %d", e.code) }

var errBoom = errors.New("boom")
