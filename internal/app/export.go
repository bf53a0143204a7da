package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Export the registry as JSON",
	Long: `Write the full registry to a file, or to stdout when no file is given.
The output is the registry's own on-disk format and can be fed back to
'appwatch import' on another machine.`,
	Example: `  appwatch export apps-backup.json
  appwatch export | jq '.apps[].name'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	snap, err := trackStore(cfg).Load()
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	out := os.Stdout
	if len(args) == 1 {
		f, err := os.Create(args[0])
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", args[0], err)
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	if len(args) == 1 {
		fmt.Fprintf(os.Stderr, "Exported %d apps to %s\n", len(snap.Apps), args[0])
	}
	return nil
}
