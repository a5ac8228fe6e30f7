package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	output   string
	showCurl bool
	baseURL  string
	cfgPath  string
)

var rootCmd = &cobra.Command{
	Use:   "ctxguard",
	Short: "ctxguard CLI for the context-aware authorization engine",
}

func Execute() error { return rootCmd.Execute() }

func init() {
	home, _ := os.UserHomeDir()
	defaultCfg := filepath.Join(home, ".ctxguard", "config.yaml")

	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "output format: json|table")
	rootCmd.PersistentFlags().BoolVar(&showCurl, "show-curl", false, "print equivalent curl for networked commands")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "http://localhost:8086", "engine base URL")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultCfg, "config file path")

	// Wire top level groups
	rootCmd.AddCommand(cmdInit(), cmdRun(), cmdGrant(), cmdCheck(), cmdRevoke(), cmdConsent(), cmdStats(), cmdCleanup(), cmdVersion())

	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Println("ctxguard: try 'ctxguard run' or 'ctxguard --help'")
			return nil
		}
		return cmd.Help()
	}
}
