package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"appwatch/internal/notify"
	"appwatch/internal/output"
	"appwatch/internal/track"
)

var (
	checkJSON   bool
	checkNotify bool

	checkCmd = &cobra.Command{
		Use:   "check [app...]",
		Short: "Check tracked apps for available updates",
		Long: `Check each tracked app against its update source and report what changed.

Without arguments every non-ignored app is checked. Pass app names or ids
to check a subset. Checks run concurrently (capped by the
max-concurrent-checks setting); one app failing never affects the others.

A failed check records the error on the app but keeps the last version it
successfully learned.`,
		Example: `  # Check everything
  appwatch check

  # Check two specific apps
  appwatch check firefox obsidian

  # Machine-readable results
  appwatch check --json

  # Desktop notification when updates are found
  appwatch check --notify`,
		RunE: runCheck,
	}
)

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "output results as JSON")
	checkCmd.Flags().BoolVar(&checkNotify, "notify", false, "send a desktop notification when updates are found")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, cleanup, err := newService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var progress *output.ProgressBar
	var progressFn func(app *track.App, done, total int)
	if !checkJSON && isatty.IsTerminal(os.Stdout.Fd()) {
		progressFn = func(app *track.App, done, total int) {
			if progress == nil {
				progress = output.NewProgress(total, "")
			}
			progress.SetDescription(app.Name)
			progress.SetCurrent(done)
		}
	}

	apps, sum, err := svc.CheckAndSave(cmd.Context(), args, progressFn)
	if err != nil {
		return fmt.Errorf("check failed: %w", err)
	}
	if progress != nil {
		progress.Finish()
	}

	var updates []*track.App
	for _, app := range apps {
		if app.Status() == track.StatusUpdate {
			updates = append(updates, app)
		}
	}

	if checkNotify && len(updates) > 0 {
		notify.Updates(updates)
	}

	if checkJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(apps)
	}

	fmt.Print(output.RenderAppTable(apps))
	fmt.Println()
	fmt.Printf("Checked %d apps: %d with updates, %d errors\n",
		sum.Total, sum.Updates, sum.Errors)
	return nil
}
