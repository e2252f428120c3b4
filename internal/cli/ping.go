package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zoobzio/apmz"
	"github.com/zoobzio/apmz/transport"
)

// pingTransaction names the synthetic transaction sent by ping.
const pingTransaction = "apmz ping"

var pingError string

// newTransport is replaced in tests.
var newTransport = func(cfg apmz.Config) apmz.Transport {
	return transport.New(cfg)
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().StringVar(&pingError, "error", "", "Also send an error with this message")
}

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Send a synthetic transaction to the APM server",
	Long: "Records one transaction with a single span, optionally an error,\n" +
		"and sends them to the configured server.\n\n" +
		"Exit code 0 if the server accepted everything, 1 otherwise.",
	RunE: runPing,
}

func runPing(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	agent, err := apmz.New(cfg, apmz.WithTransport(newTransport(cfg)))
	if err != nil {
		return err
	}

	tx, err := agent.StartTransaction(pingTransaction, apmz.Contexts{
		Tags: map[string]string{"source": "cli"},
	})
	if err != nil {
		return err
	}
	if _, err := tx.StartSpan("ping", apmz.Contexts{}); err != nil {
		return err
	}
	if err := tx.StopSpan("ping", apmz.Meta{Type: "ping"}); err != nil {
		return err
	}
	if err := agent.StopTransaction(pingTransaction, apmz.Meta{Result: "200", Type: "cli"}); err != nil {
		return err
	}

	if pingError != "" {
		agent.CaptureError(errors.New(pingError), apmz.Contexts{})
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), agent.Config().Timeout)
	defer cancel()
	if !agent.Send(ctx) {
		return fmt.Errorf("server %s did not accept the ping", cfg.ServerURL)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ok: %s accepted transaction %s (%.3f ms)\n",
		cfg.ServerURL, tx.ID(), tx.Duration())
	return nil
}
