package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"appwatch/internal/output"
)

var (
	listJSON bool

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List tracked apps and their update status",
		Example: `  # Table output
  appwatch list

  # JSON, including full error messages and ids
  appwatch list --json`,
		RunE: runList,
	}
)

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	snap, err := trackStore(cfg).Load()
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if listJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap.Apps)
	}

	fmt.Print(output.RenderAppTable(snap.Apps))
	return nil
}
