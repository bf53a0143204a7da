package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"appwatch/internal/service"
)

var (
	deleteYes bool

	deleteCmd = &cobra.Command{
		Use:     "delete <app>",
		Aliases: []string{"remove", "rm"},
		Short:   "Stop tracking an app",
		Long: `Remove an app from the registry, addressed by name or id.

This only stops update tracking; nothing is uninstalled. Check history
for the app is kept.`,
		Example: `  appwatch delete teams
  appwatch delete teams --yes`,
		Args: cobra.ExactArgs(1),
		RunE: runDelete,
	}
)

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "skip the confirmation prompt")
}

func runDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := trackStore(cfg)

	snap, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	app := service.Find(snap, args[0])
	if app == nil {
		return fmt.Errorf("no app matching %q", args[0])
	}

	if !deleteYes {
		fmt.Printf("Stop tracking %s (%s)? [y/N] ", app.Name, app.Source)
		reader := bufio.NewReader(os.Stdin)
		answer, err := reader.ReadString('\n')
		if err != nil || strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	snap.Remove(app.ID)
	if err := store.Save(snap); err != nil {
		return err
	}
	fmt.Printf("No longer tracking %s\n", app.Name)
	return nil
}
