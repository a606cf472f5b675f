package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	debugFlag   bool
	verboseFlag bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "infercore",
	Short: "Multi-provider LLM inference engine",
	Long: `Run LLM inference against multiple providers through one interface.

Infercore routes requests directly or through a shared gateway, streams
responses, executes model-requested tools, and validates structured output
against a JSON schema.`,
	Version: "1.0.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Show detailed log output")
}
