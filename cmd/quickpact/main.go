package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quickpact",
		Short: "QuickPact AI contract generator",
		Long: "QuickPact turns a plain-language description of an agreement into a formatted\n" +
			"contract using an OpenAI-compatible chat API, and exports it as PDF.",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config.yaml (defaults and environment only when empty)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newGenerateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
