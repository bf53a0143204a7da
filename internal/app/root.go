package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dataDir string
	verbose bool
	logFile string

	// RootCmd is the root command for appwatch
	RootCmd = &cobra.Command{
		Use:   "appwatch",
		Short: "Track application updates across winget, GitHub, Homebrew, and the web",
		Long: `appwatch keeps a registry of the applications you care about and tells you
when a newer version is available.

Each app is tracked against one update source:
  • winget    - Windows Package Manager
  • github    - GitHub release tags
  • homebrew  - Homebrew formulae and casks
  • custom    - any web page, with automatic version detection

Quick Start:
  1. appwatch scan              # import what's installed on this machine
  2. appwatch add               # track anything the scan can't see
  3. appwatch check             # find available updates
  4. appwatch watch --daemon    # keep checking in the background

Examples:
  # See everything you track and its status
  appwatch list

  # Check a single app
  appwatch check firefox

  # Review past check runs
  appwatch history`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			setupLogging(cfg)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Println("appwatch: application update tracking")
			fmt.Println()
			if _, err := os.Stat(cfg.RegistryPath()); os.IsNotExist(err) {
				fmt.Println("Run 'appwatch scan' to import installed apps.")
				fmt.Println("Run 'appwatch --help' for the full reference.")
			} else {
				fmt.Println("Tip: Run 'appwatch check' to look for updates.")
				fmt.Println("     Run 'appwatch list' to see tracked apps.")
				fmt.Println("     Run 'appwatch --help' for all commands.")
			}
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: ~/.appwatch)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	RootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(checkCmd)
	RootCmd.AddCommand(scanCmd)
	RootCmd.AddCommand(addCmd)
	RootCmd.AddCommand(listCmd)
	RootCmd.AddCommand(updateCmd)
	RootCmd.AddCommand(deleteCmd)
	RootCmd.AddCommand(exportCmd)
	RootCmd.AddCommand(importCmd)
	RootCmd.AddCommand(watchCmd)
	RootCmd.AddCommand(historyCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}
