package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"instacollector/pkg/auth"
	"instacollector/pkg/collector"
	"instacollector/pkg/config"
	"instacollector/pkg/logger"
)

var runAccount string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the collector and run until interrupted",
	Long: `Start every sweep task enabled in the configuration and run until
the process receives SIGINT or SIGTERM. Crashed sweeps are restarted
with a bounded backoff; pending buffer contents are flushed as pages
complete, so an interrupted run resumes from durable state.`,
	Example: `  # Run with the default config discovery
  instacollector run

  # Run with an explicit config file and account
  instacollector run --config ./collector.yaml --account myuser`,
	Run: runCollector,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runAccount, "account", "", "stored account to use (default: first available)")
}

func runCollector(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintln(os.Stderr, "failed to initialize logging:", err)
		os.Exit(1)
	}
	log := logger.GetLogger()

	if err := resolveCredentials(cfg); err != nil {
		log.WithError(err).Fatal("No working credentials; run 'instacollector auth login' first")
	}

	c := collector.New(cfg, log)
	defer c.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.WithField("version", version).Info("Instacollector starting")

	if err := c.Run(ctx); err != nil && ctx.Err() == nil {
		log.WithError(err).Fatal("Collector failed")
	}

	log.Info("Instacollector stopped")
}

// resolveCredentials fills the session settings from the credential
// stores when the configuration does not already carry them.
func resolveCredentials(cfg *config.Config) error {
	if cfg.Instagram.SessionID != "" && cfg.Instagram.CSRFToken != "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var account *auth.Account
	switch {
	case runAccount != "":
		account, err = manager.Retrieve(runAccount)
	case cfg.Instagram.Username != "":
		account, err = manager.Retrieve(cfg.Instagram.Username)
	default:
		account, err = manager.RetrieveDefault()
	}
	if err != nil {
		return err
	}

	cfg.Instagram.Username = account.Username
	cfg.Instagram.SessionID = account.SessionID
	cfg.Instagram.CSRFToken = account.CSRFToken
	if account.UserAgent != "" {
		cfg.Instagram.UserAgent = account.UserAgent
	}

	return nil
}
