package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"appwatch/internal/service"
	"appwatch/internal/track"
)

var (
	updateName      string
	updateVersion   string
	updateIgnore    bool
	updateUnignore  bool
	updateRegex     string
	updateRegexSet  bool

	updateCmd = &cobra.Command{
		Use:   "update <app>",
		Short: "Edit a tracked app",
		Long: `Update fields on a tracked app, addressed by name or id.

Marking the installed version current:
  after installing an update, record the new version with --installed.

Ignoring:
  --ignore keeps the app in the registry but excludes it from checks and
  update counts; --unignore re-enables it.`,
		Example: `  # Record that you installed the update
  appwatch update firefox --installed 129.0

  # Stop being nagged about an app
  appwatch update teams --ignore

  # Rename
  appwatch update teams --name "Microsoft Teams"`,
		Args: cobra.ExactArgs(1),
		RunE: runUpdate,
	}
)

func init() {
	updateCmd.Flags().StringVar(&updateName, "name", "", "new display name")
	updateCmd.Flags().StringVar(&updateVersion, "installed", "", "installed version")
	updateCmd.Flags().BoolVar(&updateIgnore, "ignore", false, "exclude from checks")
	updateCmd.Flags().BoolVar(&updateUnignore, "unignore", false, "include in checks again")
	updateCmd.Flags().StringVar(&updateRegex, "regex", "", "version extraction pattern (custom source only)")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	if updateIgnore && updateUnignore {
		return fmt.Errorf("--ignore and --unignore are mutually exclusive")
	}
	updateRegexSet = cmd.Flags().Changed("regex")

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

	changed := false
	if updateName != "" {
		app.Name = updateName
		changed = true
	}
	if updateVersion != "" {
		app.InstalledVersion = track.NormalizeVersion(updateVersion)
		changed = true
	}
	if updateIgnore {
		app.Ignored = true
		changed = true
	}
	if updateUnignore {
		app.Ignored = false
		changed = true
	}
	if updateRegexSet {
		if app.Source != track.SourceCustom {
			return fmt.Errorf("--regex only applies to custom-source apps")
		}
		app.VersionRegex = updateRegex
		changed = true
	}

	if !changed {
		return fmt.Errorf("nothing to change; see 'appwatch update --help'")
	}

	if err := store.Save(snap); err != nil {
		return err
	}
	fmt.Printf("Updated %s\n", app.Name)
	return nil
}
