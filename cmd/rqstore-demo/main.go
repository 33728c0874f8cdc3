package main

import (
	"fmt"
	"os"

	"github.com/cuemby/rqstore/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rqstore-demo",
	Short: "Replay reactive-query-store scenarios from a YAML file",
	Long: `rqstore-demo drives a pkg/store.Store through a scripted sequence of
session, subscription, datalog, and invalidation operations, printing the
result of each bump_instaql_version, add_instaql_query, and
mark_stale_topics step and a final entity-count summary. It exists to
exercise the store end-to-end without a real transport or mutation
pipeline attached.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(replayCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var replayCmd = &cobra.Command{
	Use:   "replay <scenario.yaml>",
	Short: "Replay a scenario file against a fresh store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sc, err := loadScenario(args[0])
		if err != nil {
			return err
		}
		return replayScenario(cmd.Context(), sc)
	},
}
