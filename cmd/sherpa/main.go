// sherpa runs the outreach lead lifecycle: discovery, drafting, approval,
// multi-channel dispatch and reply ingestion.
//
// Usage:
//
//	sherpa serve                 operator API plus scheduled passes
//	sherpa worker                connection-request queue consumer
//	sherpa draft|dispatch|ingest|discover
//	sherpa report
//	sherpa migrate
//	sherpa examples import -f examples.yaml
//	sherpa whatsapp login
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xavierca1/sherpa/internal/config"
	"github.com/xavierca1/sherpa/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

// cfg is loaded once before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sherpa",
	Short: "Outbound outreach orchestrator",
	Long:  "Sherpa moves sales leads through discovery, drafting, human approval,\nmulti-channel dispatch and reply ingestion.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		level, err := logging.ParseLevel(loaded.LogLevel)
		if err != nil {
			return err
		}
		logging.Init(level, loaded.LogFormat)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(passCommands()...)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(examplesCmd)
	rootCmd.AddCommand(whatsappCmd)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
