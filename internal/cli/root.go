package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	jsonLog bool
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "runner",
	Short: "Sandboxed code execution runner",
	Long: `runner pre-warms a pool of isolated, resource-capped sandboxes and
dispatches submitted program text to them over HTTP or a message queue,
returning captured stdout/stderr/exit status.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

		if !jsonLog {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		}

		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	RootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Output logs in JSON format")
}
