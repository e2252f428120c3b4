package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/zoobzio/apmz"
)

// Intake endpoints relative to the server URL.
const (
	ErrorsPath       = "/v1/errors"
	TransactionsPath = "/v1/transactions"
)

// HTTP posts batches to an APM server.
// Safe for concurrent use by multiple goroutines.
type HTTP struct {
	client    *http.Client
	logger    *slog.Logger
	metadata  Metadata
	serverURL string
	token     string
	userAgent string
	compress  bool
}

// Option configures an HTTP transport.
type Option func(*HTTP)

// WithClient replaces the HTTP client.
func WithClient(client *http.Client) Option {
	return func(h *HTTP) { h.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *HTTP) { h.logger = logger }
}

// WithFramework reports the framework the application runs on.
func WithFramework(name, version string) Option {
	return func(h *HTTP) {
		h.metadata.Service.Framework = &Named{Name: name, Version: version}
	}
}

// New creates a transport for the server in cfg.
func New(cfg apmz.Config, opts ...Option) *HTTP {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = apmz.DefaultTimeout
	}
	serverURL := cfg.ServerURL
	if serverURL == "" {
		serverURL = apmz.DefaultServerURL
	}

	h := &HTTP{
		client:    &http.Client{Timeout: timeout},
		logger:    slog.Default(),
		metadata:  NewMetadata(cfg),
		serverURL: strings.TrimRight(serverURL, "/"),
		token:     cfg.SecretToken,
		userAgent: apmz.AgentName + "/" + apmz.AgentVersion,
		compress:  cfg.Compress,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SendErrors implements apmz.Transport.
func (h *HTTP) SendErrors(ctx context.Context, errs []*apmz.ErrorRecord) bool {
	return h.send(ctx, ErrorsPath, errorsPayload{Metadata: h.metadata, Errors: errs})
}

// SendTransactions implements apmz.Transport.
func (h *HTTP) SendTransactions(ctx context.Context, txs []*apmz.Transaction) bool {
	return h.send(ctx, TransactionsPath, transactionsPayload{Metadata: h.metadata, Transactions: txs})
}

func (h *HTTP) send(ctx context.Context, path string, payload any) bool {
	if err := h.post(ctx, path, payload); err != nil {
		h.logger.Warn("sending batch failed", "path", path, "error", err)
		return false
	}
	h.logger.Debug("batch accepted", "path", path)
	return true
}

func (h *HTTP) post(ctx context.Context, path string, payload any) error {
	body, err := h.encode(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.serverURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	if h.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck // best effort detail
		return fmt.Errorf("unexpected status code: %d, response: %s", resp.StatusCode, string(respBody))
	}
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
	return nil
}

func (h *HTTP) encode(payload any) (io.Reader, error) {
	var buf bytes.Buffer
	if !h.compress {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return nil, fmt.Errorf("encoding payload: %w", err)
		}
		return &buf, nil
	}

	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(payload); err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	return &buf, nil
}

var _ apmz.Transport = (*HTTP)(nil)
