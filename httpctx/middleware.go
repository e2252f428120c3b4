package httpctx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/zoobzio/apmz"
)

// TransactionType is the meta type of request transactions.
const TransactionType = "request"

// bundleKeyType is a private type for context keys to avoid collisions.
type bundleKeyType string

const bundleKey bundleKeyType = "apmz"

// bundle holds the agent and transaction of one request.
type bundle struct {
	agent *apmz.Agent
	tx    *apmz.Transaction
}

// AgentFrom returns the agent serving the request in ctx.
func AgentFrom(ctx context.Context) (*apmz.Agent, bool) {
	b, ok := ctx.Value(bundleKey).(*bundle)
	if !ok {
		return nil, false
	}
	return b.agent, true
}

// TransactionFrom returns the request transaction in ctx.
func TransactionFrom(ctx context.Context) (*apmz.Transaction, bool) {
	b, ok := ctx.Value(bundleKey).(*bundle)
	if !ok {
		return nil, false
	}
	return b.tx, true
}

// Option configures the middleware.
type Option func(*settings)

type settings struct {
	logger    *slog.Logger
	agentOpts []apmz.Option
}

// WithLogger sets the logger of the middleware and of every request agent.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithAgentOptions adds options applied to every request agent.
func WithAgentOptions(opts ...apmz.Option) Option {
	return func(s *settings) { s.agentOpts = append(s.agentOpts, opts...) }
}

// Middleware records every request as a transaction on its own agent and
// sends the agent's buffers when the request completes. Panics are captured
// as errors and re-raised.
func Middleware(cfg apmz.Config, transport apmz.Transport, opts ...Option) func(http.Handler) http.Handler {
	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&s)
	}
	logger := s.logger
	env := apmz.EnvironMap(os.Environ())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provider := NewProvider(r, env)
			agentOpts := append([]apmz.Option{
				apmz.WithTransport(transport),
				apmz.WithContextProvider(provider),
				apmz.WithLogger(logger),
			}, s.agentOpts...)

			agent, err := apmz.New(cfg, agentOpts...)
			if err != nil {
				logger.Error("apm agent unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			name := r.Method + " " + r.URL.Path
			tx, err := agent.StartTransaction(name, apmz.Contexts{})
			if err != nil {
				logger.Error("apm transaction not started", "name", name, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			rec := provider.Wrap(w)
			ctx := context.WithValue(r.Context(), bundleKey, &bundle{agent: agent, tx: tx})

			defer func() {
				recovered := recover()
				status := rec.Status()
				if recovered != nil {
					agent.CaptureError(fmt.Errorf("panic: %v", recovered), apmz.Contexts{})
					status = http.StatusInternalServerError
				}

				finished, headersSent := recovered == nil, rec.HeadersSent()
				tx.SetResponse(apmz.ResponsePatch{
					Finished:    &finished,
					HeadersSent: &headersSent,
					StatusCode:  &status,
				})
				if err := agent.StopTransaction(name, apmz.Meta{
					Result: strconv.Itoa(status),
					Type:   TransactionType,
				}); err != nil {
					logger.Error("apm transaction not stopped", "name", name, "error", err)
				}
				agent.Send(context.WithoutCancel(r.Context()))

				if recovered != nil {
					panic(recovered)
				}
			}()

			next.ServeHTTP(rec, r.WithContext(ctx))
		})
	}
}
