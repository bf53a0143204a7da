package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"appwatch/internal/track"
)

var (
	importReplace bool

	importCmd = &cobra.Command{
		Use:   "import <file>",
		Short: "Import apps from an exported registry",
		Long: `Read an 'appwatch export' file and merge its apps into the registry.

By default entries with a known id replace the local copy and the rest
are added. With --replace the local registry is discarded entirely in
favor of the file.`,
		Example: `  appwatch import apps-backup.json
  appwatch import apps-backup.json --replace`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
)

func init() {
	importCmd.Flags().BoolVar(&importReplace, "replace", false, "discard the local registry and use the file as-is")
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	var incoming track.Snapshot
	if err := json.Unmarshal(data, &incoming); err != nil {
		return fmt.Errorf("%s is not a valid registry export: %w", args[0], err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := trackStore(cfg)

	if importReplace {
		if err := store.Save(&incoming); err != nil {
			return err
		}
		fmt.Printf("Replaced registry with %d apps from %s\n", len(incoming.Apps), args[0])
		return nil
	}

	snap, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}
	replaced, added := snap.Merge(&incoming)
	if err := store.Save(snap); err != nil {
		return err
	}
	fmt.Printf("Imported %s: %d added, %d replaced\n", args[0], added, replaced)
	return nil
}
