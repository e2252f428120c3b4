// Package apmz provides an in-process APM agent: it records transactions,
// their spans and captured errors, buffers them in memory and flushes them
// to an Elastic APM compatible collector.
//
// Core Components:
//   - Agent: Owns the buffers and flushes them through a Transport.
//   - Transaction: A timed root operation owning named spans.
//   - Span: A timed sub-operation of one transaction.
//   - ErrorRecord: A snapshot of a captured error.
//   - Registry / Store: The keyed and flat buffers behind the agent.
//   - Timer: Microsecond duration measurement on an injectable clock.
//
// Basic Usage:
//
//	agent, err := apmz.New(apmz.Config{AppName: "checkout"},
//		apmz.WithTransport(transport.New(cfg)))
//	if err != nil {
//		return err
//	}
//
//	tx, err := agent.StartTransaction("checkout", apmz.Contexts{})
//	span, err := tx.StartSpan("db-query", apmz.Contexts{})
//	// ... work ...
//	tx.StopSpan("db-query", apmz.Meta{Type: "db.sql"})
//	agent.StopTransaction("checkout", apmz.Meta{Result: "200"})
//
//	agent.Send(ctx)
//
// Names:
//
// Transaction names are unique per flush cycle and span names are unique
// per transaction. StartTransaction and StartSpan fail with
// ErrDuplicateTransactionName and ErrDuplicateSpanName respectively;
// Transaction.AcquireSpan returns an existing span instead.
//
// Durations:
//
// Timer reports microseconds. Serialized durations are milliseconds rounded
// to three decimals.
//
// Thread Safety:
//
// Registries and stores are safe for concurrent use. Events are NOT - one
// Agent per unit of work (for example one HTTP request) is the intended
// usage.
//
// Delivery:
//
// Send tries each batch once. A rejected batch stays buffered for the next
// Send; nothing is persisted.
package apmz
