package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daniel-olson-code/pipeline/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stepctl",
	Short: "stepctl runs and administers a pipeline coordinator",
	Long: `stepctl is the coordinator for a distributed step-graph pipeline:
it tracks step status, decides which steps are runnable, and enforces
per-tag rate limits, all over a small terminator-framed TCP protocol that
workers speak.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(admitCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(resetCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}
