package app

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"appwatch/internal/checker"
	"appwatch/internal/service"
	"appwatch/internal/track"
)

var (
	addWingetID string
	addRepo     string
	addURL      string
	addRegex    string
	addFormula  string
	addVersion  string

	addCmd = &cobra.Command{
		Use:   "add <name>",
		Short: "Track a new application",
		Long: `Add an application to the registry. Exactly one source flag selects where
updates come from:

  --winget   winget package id (Publisher.Name)
  --github   GitHub repository (owner/repo), tracked via release tags
  --brew     Homebrew formula or cask name
  --url      any web page; the version is extracted with a regex

For --url without --regex, appwatch fetches the page once and suggests
version patterns that match it.`,
		Example: `  # Track a winget package
  appwatch add firefox --winget Mozilla.Firefox --version 128.0

  # Track GitHub releases
  appwatch add obsidian --github obsidianmd/obsidian-releases

  # Track a download page with a custom pattern
  appwatch add mytool --url https://example.com/download --regex 'version ([\d.]+)'

  # Track a Homebrew formula
  appwatch add jq --brew jq`,
		Args: cobra.ExactArgs(1),
		RunE: runAdd,
	}
)

func init() {
	addCmd.Flags().StringVar(&addWingetID, "winget", "", "winget package id (Publisher.Name)")
	addCmd.Flags().StringVar(&addRepo, "github", "", "GitHub repository (owner/repo)")
	addCmd.Flags().StringVar(&addURL, "url", "", "web page to extract the version from")
	addCmd.Flags().StringVar(&addRegex, "regex", "", "version extraction pattern for --url (first capture group)")
	addCmd.Flags().StringVar(&addFormula, "brew", "", "Homebrew formula or cask name")
	addCmd.Flags().StringVar(&addVersion, "version", "", "currently installed version")
}

func runAdd(cmd *cobra.Command, args []string) error {
	name := args[0]

	sources := 0
	for _, v := range []string{addWingetID, addRepo, addURL, addFormula} {
		if v != "" {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("exactly one of --winget, --github, --url, or --brew is required")
	}
	if addRegex != "" && addURL == "" {
		return fmt.Errorf("--regex only applies with --url")
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

	app := track.NewApp(name, track.SourceCustom)
	app.InstalledVersion = track.NormalizeVersion(addVersion)

	switch {
	case addWingetID != "":
		if !checker.ValidWingetID(addWingetID) {
			return fmt.Errorf("%q does not look like a winget package id (expected Publisher.Name)", addWingetID)
		}
		app.Source = track.SourceWinget
		app.WingetID = addWingetID

	case addRepo != "":
		gh, err := githubChecker(svc)
		if err != nil {
			return err
		}
		if ok, reason := gh.ValidateRepo(cmd.Context(), addRepo); !ok {
			return fmt.Errorf("github repository %q: %s", addRepo, reason)
		}
		app.Source = track.SourceGitHub
		app.GitHubRepo = addRepo

	case addURL != "":
		parsed, err := url.Parse(addURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%q is not a valid URL", addURL)
		}
		app.Source = track.SourceCustom
		app.CustomURL = addURL
		app.VersionRegex = addRegex
		if addRegex == "" {
			suggestPatterns(cmd, svc)
		}

	case addFormula != "":
		app.Source = track.SourceHomebrew
		app.Formula = addFormula
	}

	snap, err := svc.Store().Load()
	if err != nil {
		return err
	}
	if id := app.Identifier(); snap.Identifiers()[app.Source][id] {
		return fmt.Errorf("already tracking a %s app with identifier %q", app.Source, id)
	}
	snap.Add(app)
	if err := svc.Store().Save(snap); err != nil {
		return err
	}

	fmt.Printf("Tracking %s via %s (%s)\n", app.Name, app.Source, app.Identifier())
	return nil
}

// suggestPatterns fetches the page once and prints version-looking
// patterns found on it. Purely advisory; the built-in patterns are tried
// at check time anyway.
func suggestPatterns(cmd *cobra.Command, svc *service.Service) {
	c, err := svc.Registry().Resolve(track.SourceCustom)
	if err != nil {
		return
	}
	custom, ok := c.(*checker.CustomChecker)
	if !ok {
		return
	}
	matches, err := custom.DetectPatterns(cmd.Context(), addURL)
	if err != nil || len(matches) == 0 {
		return
	}

	fmt.Println("No --regex given; patterns found on the page:")
	for _, m := range matches {
		fmt.Printf("  %s  (%d matches, e.g. %v)\n", m.Pattern, m.Count, m.Examples)
	}
	fmt.Println("The first matching built-in pattern will be used at check time.")
}
