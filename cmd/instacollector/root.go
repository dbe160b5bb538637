package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "instacollector",
	Short: "A long-running Instagram feed collector with buffered persistence",
	Long: `Instacollector continuously drains Instagram feeds into a local
document store.

It seeds a user population from an influencer's followers, sweeps each
user's timeline once per day with an optional deep historical first
pass, and can follow hashtag and location feeds. Feed items are staged
into write buffers and flushed in batches; a unique index on the entity
id makes every write an idempotent overwrite. Referenced media can be
materialized locally under deterministic names derived from the entity
id.

Credentials are stored in the system keychain, an encrypted file or
environment variables.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .instacollector.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`Instacollector {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
