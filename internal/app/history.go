package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"appwatch/internal/output"
	"appwatch/internal/service"
)

var (
	historyLimit int
	historyRun   int64
	historyApp   string

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show past check runs",
		Long: `Show the check run audit trail: when checks ran, how long they took, and
what each one found. Per-app and per-run drill-downs are available.

History lives in its own database next to the registry; deleting it
loses nothing but this audit trail.`,
		Example: `  # Recent runs
  appwatch history

  # Everything a specific run found
  appwatch history --run 42

  # One app's check results over time
  appwatch history --app firefox`,
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum entries to show")
	historyCmd.Flags().Int64Var(&historyRun, "run", 0, "show the results of one run")
	historyCmd.Flags().StringVar(&historyApp, "app", "", "show results for one app (name or id)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	hist, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer hist.Close()

	switch {
	case historyRun != 0:
		results, err := hist.ResultsForRun(historyRun)
		if err != nil {
			return fmt.Errorf("failed to load run %d: %w", historyRun, err)
		}
		fmt.Print(output.RenderResultTable(results))

	case historyApp != "":
		snap, err := trackStore(cfg).Load()
		if err != nil {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		app := service.Find(snap, historyApp)
		if app == nil {
			return fmt.Errorf("no app matching %q", historyApp)
		}
		results, err := hist.ResultsForApp(app.ID, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load results for %s: %w", app.Name, err)
		}
		fmt.Print(output.RenderResultTable(results))

	default:
		runs, err := hist.ListRuns(historyLimit)
		if err != nil {
			return fmt.Errorf("failed to load run history: %w", err)
		}
		fmt.Print(output.RenderRunTable(runs))
	}
	return nil
}
