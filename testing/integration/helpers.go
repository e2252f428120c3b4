package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/zoobzio/clockz"

	"github.com/zoobzio/apmz"
	"github.com/zoobzio/apmz/transport"
)

// IntakeSpan is a span as received by the intake.
type IntakeSpan struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Result   string  `json:"result"`
	Duration float64 `json:"duration"`
}

// IntakeTransaction is a transaction as received by the intake.
type IntakeTransaction struct {
	Context  map[string]any `json:"context"`
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Type     string         `json:"type"`
	Result   string         `json:"result"`
	Spans    []IntakeSpan   `json:"spans"`
	Duration float64        `json:"duration"`
}

// IntakeError is an error as received by the intake.
type IntakeError struct {
	Context   map[string]any `json:"context"`
	ID        string         `json:"id"`
	Culprit   string         `json:"culprit"`
	Exception struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"exception"`
}

// MockIntake is a fake APM server with test utilities.
// Provides synchronous collection and verification helpers.
//
//nolint:govet // Field alignment optimized for test helper readability
type MockIntake struct {
	*httptest.Server
	t            *testing.T
	transactions []IntakeTransaction
	errors       []IntakeError
	requests     int
	status       int
	mu           sync.Mutex
}

// NewMockIntake starts an intake that answers with 202 Accepted.
func NewMockIntake(t *testing.T) *MockIntake {
	m := &MockIntake{t: t, status: http.StatusAccepted}
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.Close)
	return m
}

func (m *MockIntake) handle(w http.ResponseWriter, r *http.Request) {
	var body io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer zr.Close()
		body = zr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests++
	if m.status != http.StatusAccepted {
		http.Error(w, "intake unavailable", m.status)
		return
	}

	var err error
	switch r.URL.Path {
	case transport.TransactionsPath:
		var payload struct {
			Transactions []IntakeTransaction `json:"transactions"`
		}
		if err = json.NewDecoder(body).Decode(&payload); err == nil {
			m.transactions = append(m.transactions, payload.Transactions...)
		}
	case transport.ErrorsPath:
		var payload struct {
			Errors []IntakeError `json:"errors"`
		}
		if err = json.NewDecoder(body).Decode(&payload); err == nil {
			m.errors = append(m.errors, payload.Errors...)
		}
	default:
		err = fmt.Errorf("unknown intake path %s", r.URL.Path)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// SetStatus makes the intake answer every request with status.
func (m *MockIntake) SetStatus(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Requests returns the number of requests received.
func (m *MockIntake) Requests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// Transactions returns every accepted transaction.
func (m *MockIntake) Transactions() []IntakeTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]IntakeTransaction(nil), m.transactions...)
}

// Errors returns every accepted error.
func (m *MockIntake) Errors() []IntakeError {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]IntakeError(nil), m.errors...)
}

// AssertTransactionCount verifies exact transaction count.
func (m *MockIntake) AssertTransactionCount(expected int) {
	m.t.Helper()
	if got := len(m.Transactions()); got != expected {
		m.t.Errorf("Expected %d transactions, got %d", expected, got)
	}
}

// AssertTransactionNamed checks if a transaction with given name was received.
func (m *MockIntake) AssertTransactionNamed(name string) *IntakeTransaction {
	m.t.Helper()
	for _, tx := range m.Transactions() {
		if tx.Name == name {
			return &tx
		}
	}
	m.t.Errorf("Transaction %q not found", name)
	return nil
}

// Config returns an agent config pointing at the intake.
func (m *MockIntake) Config() apmz.Config {
	return apmz.Config{
		AppName:     "integration",
		ServerURL:   m.URL,
		Environment: "test",
		Timeout:     2 * time.Second,
	}
}

// NewAgent creates an agent that sends to the intake.
func (m *MockIntake) NewAgent(opts ...apmz.Option) *apmz.Agent {
	m.t.Helper()
	cfg := m.Config()
	agent, err := apmz.New(cfg, append([]apmz.Option{apmz.WithTransport(transport.New(cfg))}, opts...)...)
	if err != nil {
		m.t.Fatalf("New failed: %v", err)
	}
	return agent
}

// MockService simulates a downstream dependency recorded as a span.
type MockService struct {
	clock   *clockz.FakeClock
	failure error
	name    string
	latency time.Duration
	mu      sync.Mutex
}

// NewMockService creates a simulated service driven by clock.
func NewMockService(name string, clock *clockz.FakeClock) *MockService {
	return &MockService{name: name, clock: clock}
}

// SetLatency configures response time.
func (s *MockService) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// SetFailure makes every call fail with err.
func (s *MockService) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Call records the call as a span named "<service>.<operation>" on tx.
func (s *MockService) Call(_ context.Context, tx *apmz.Transaction, operation string) error {
	s.mu.Lock()
	latency, failure := s.latency, s.failure
	s.mu.Unlock()

	name := s.name + "." + operation
	if _, err := tx.AcquireSpan(name, apmz.Contexts{Tags: map[string]string{"service": s.name}}); err != nil {
		return err
	}
	s.clock.Advance(latency)

	meta := apmz.Meta{Type: "external", Result: "success"}
	if failure != nil {
		meta.Result = "failure"
	}
	if err := tx.StopSpan(name, meta); err != nil {
		return err
	}
	return failure
}
