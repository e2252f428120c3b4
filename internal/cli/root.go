package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zoobzio/apmz"
)

var (
	configPath string
	appName    string
	serverURL  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "apmz",
	Short: "Inspect and test an apmz agent configuration",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to agent config YAML")
	rootCmd.PersistentFlags().StringVar(&appName, "app-name", "", "Override the application name")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server-url", "", "Override the APM server URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig() (apmz.Config, error) {
	cfg := apmz.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = apmz.ReadConfig(configPath); err != nil {
			return apmz.Config{}, err
		}
	}
	if appName != "" {
		cfg.AppName = appName
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if err := cfg.Validate(); err != nil {
		return apmz.Config{}, err
	}
	return cfg, nil
}
