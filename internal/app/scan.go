package app

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"appwatch/internal/checker"
	"appwatch/internal/output"
	"appwatch/internal/service"
	"appwatch/internal/track"
)

var (
	scanInteractive bool
	scanAll         bool

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Import installed packages into the registry",
		Long: `Discover packages installed on this machine and start tracking the ones
not already in the registry.

On Windows, scan uses winget; on macOS and Linux it uses Homebrew. Apps
are matched by package identifier, never by display name, so a rename
never creates a duplicate. Scan only ever adds entries: nothing is
removed or overwritten, and running it twice changes nothing.

Packages whose identifier can't be resolved automatically (e.g. Microsoft
Store installs) are listed at the end; use --interactive to resolve them
one at a time, or --all to import them as-is anyway.`,
		Example: `  # Import everything that can be tracked automatically
  appwatch scan

  # Also resolve ambiguous packages, one prompt each
  appwatch scan --interactive

  # Old behavior: import ambiguous identifiers unchanged
  appwatch scan --all`,
		RunE: runScanCmd,
	}
)

func init() {
	scanCmd.Flags().BoolVarP(&scanInteractive, "interactive", "i", false, "prompt for packages that need manual resolution")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "import ambiguous packages under their reported identifier")
}

func runScanCmd(cmd *cobra.Command, args []string) error {
	if scanInteractive && scanAll {
		return fmt.Errorf("--interactive and --all are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, cleanup, err := newService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	mode := service.ScanAuto
	switch {
	case scanInteractive:
		mode = service.ScanInteractive
	case scanAll:
		mode = service.ScanLegacyAll
	}

	isTTY := isatty.IsTerminal(os.Stdout.Fd())
	var spinner *output.Spinner
	if isTTY {
		spinner = output.NewSpinner("Discovering installed packages...")
		spinner.Start()
	} else {
		fmt.Println("Discovering installed packages...")
	}

	res, err := svc.Scan(cmd.Context(), mode)
	if spinner != nil {
		spinner.Stop()
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	fmt.Printf("Found %d installed packages, added %d new.\n", res.Found, len(res.Added))
	if len(res.Added) > 0 {
		fmt.Println()
		fmt.Print(output.RenderAppTable(res.Added))
	}

	if len(res.NeedsInteractive) == 0 {
		return nil
	}

	if !scanInteractive {
		fmt.Println()
		fmt.Printf("%d packages need manual resolution (re-run with --interactive):\n\n", len(res.NeedsInteractive))
		fmt.Print(output.RenderDiscoveredTable(res.NeedsInteractive))
		return nil
	}

	return resolveInteractive(cmd, svc, res.NeedsInteractive)
}

// resolveInteractive walks the ambiguous discoveries one by one and lets
// the user pick how to track each: keep the reported identifier, switch
// to a GitHub repo, point at a custom URL, or skip.
func resolveInteractive(cmd *cobra.Command, svc *service.Service, pending []track.Discovered) error {
	reader := bufio.NewReader(os.Stdin)

	for _, d := range pending {
		fmt.Printf("\n%s (%s, id %s)\n", d.Name, d.Source, d.ID)
		fmt.Print("  [k]eep id as-is, [g]ithub repo, [c]ustom URL, [s]kip? ")

		choice, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}

		switch strings.ToLower(strings.TrimSpace(choice)) {
		case "k":
			app, err := svc.AddDiscovered(d)
			if err != nil {
				return err
			}
			if app != nil {
				fmt.Printf("  tracking %s via %s\n", app.Name, app.Source)
			}

		case "g":
			if err := addAsGitHub(cmd, svc, reader, d); err != nil {
				return err
			}

		case "c":
			if err := addAsCustom(cmd, svc, reader, d); err != nil {
				return err
			}

		default:
			fmt.Println("  skipped")
		}
	}
	return nil
}

func addAsGitHub(cmd *cobra.Command, svc *service.Service, reader *bufio.Reader, d track.Discovered) error {
	gh, err := githubChecker(svc)
	if err != nil {
		return err
	}

	results, err := gh.SearchRepos(cmd.Context(), d.Name, 5)
	if err == nil && len(results) > 0 {
		fmt.Println("  GitHub matches:")
		for i, r := range results {
			fmt.Printf("    %d. %s (%d stars) %s\n", i+1, r.FullName, r.Stars, r.Description)
		}
	}
	fmt.Print("  owner/repo: ")
	repo, err := reader.ReadString('\n')
	if err != nil {
		return nil
	}
	repo = strings.TrimSpace(repo)
	if repo == "" {
		fmt.Println("  skipped")
		return nil
	}
	if ok, reason := gh.ValidateRepo(cmd.Context(), repo); !ok {
		fmt.Printf("  not tracking: %s\n", reason)
		return nil
	}

	return saveNewApp(svc, func(app *track.App) {
		app.Name = d.Name
		app.Source = track.SourceGitHub
		app.GitHubRepo = repo
		app.InstalledVersion = track.NormalizeVersion(d.Version)
	})
}

func addAsCustom(cmd *cobra.Command, svc *service.Service, reader *bufio.Reader, d track.Discovered) error {
	fmt.Print("  page URL: ")
	pageURL, err := reader.ReadString('\n')
	if err != nil {
		return nil
	}
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		fmt.Println("  skipped")
		return nil
	}

	return saveNewApp(svc, func(app *track.App) {
		app.Name = d.Name
		app.Source = track.SourceCustom
		app.CustomURL = pageURL
		app.InstalledVersion = track.NormalizeVersion(d.Version)
	})
}

// saveNewApp creates, fills, and persists one app.
func saveNewApp(svc *service.Service, fill func(*track.App)) error {
	snap, err := svc.Store().Load()
	if err != nil {
		return err
	}
	app := track.NewApp("", track.SourceCustom)
	fill(app)
	snap.Add(app)
	if err := svc.Store().Save(snap); err != nil {
		return err
	}
	fmt.Printf("  tracking %s via %s\n", app.Name, app.Source)
	return nil
}

// githubChecker pulls the GitHub checker out of the service's registry
// for search and validation.
func githubChecker(svc *service.Service) (*checker.GitHubChecker, error) {
	c, err := svc.Registry().Resolve(track.SourceGitHub)
	if err != nil {
		return nil, err
	}
	gh, ok := c.(*checker.GitHubChecker)
	if !ok {
		return nil, fmt.Errorf("github checker unavailable")
	}
	return gh, nil
}
