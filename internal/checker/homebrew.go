package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"appwatch/internal/track"
)

const defaultBrewTimeout = 30 * time.Second

// HomebrewChecker queries Homebrew for formula and cask versions and
// enumerates installed packages for the scan engine.
type HomebrewChecker struct {
	timeout time.Duration
}

// NewHomebrew creates the Homebrew checker.
func NewHomebrew(opts Options) *HomebrewChecker {
	timeout := opts.BrewTimeout
	if timeout <= 0 {
		timeout = defaultBrewTimeout
	}
	return &HomebrewChecker{timeout: timeout}
}

func (c *HomebrewChecker) Source() track.Source { return track.SourceHomebrew }

// CanCheck refuses on Windows and when brew is not on PATH.
func (c *HomebrewChecker) CanCheck(app *track.App) bool {
	return app.Source == track.SourceHomebrew && brewAvailable()
}

func brewAvailable() bool {
	if runtime.GOOS == "windows" {
		return false
	}
	_, err := exec.LookPath("brew")
	return err == nil
}

// brewInfoOutput mirrors the `brew info --json=v2` document. Formulae are
// matched by name or full_name, casks by token or full_token.
type brewInfoOutput struct {
	Formulae []brewFormulaInfo `json:"formulae"`
	Casks    []brewCaskInfo    `json:"casks"`
}

type brewFormulaInfo struct {
	Name      string                 `json:"name"`
	FullName  string                 `json:"full_name"`
	Version   string                 `json:"version"`
	Homepage  string                 `json:"homepage"`
	Installed []brewInstalledVersion `json:"installed"`
}

type brewCaskInfo struct {
	Token     string `json:"token"`
	FullToken string `json:"full_token"`
	Version   string `json:"version"`
	Homepage  string `json:"homepage"`
}

type brewInstalledVersion struct {
	Version string `json:"version"`
}

// Check runs `brew info --json=v2` for the app's formula (or cask token)
// and reports the latest version Homebrew knows about.
func (c *HomebrewChecker) Check(ctx context.Context, app *track.App) track.UpdateInfo {
	info := track.UpdateInfo{InstalledVersion: app.InstalledVersion}
	if app.Formula == "" {
		info.Error = "no Homebrew formula configured for this app"
		return info
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "brew", "info", "--json=v2", app.Formula)
	out, err := cmd.Output()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		info.Error = "timed out waiting for brew"
		return info
	}
	if err != nil {
		info.Error = subprocessError("brew info", err)
		return info
	}

	version, homepage, err := matchBrewInfo(out, app.Formula)
	if err != nil {
		info.Error = err.Error()
		return info
	}
	if version == "" {
		info.Error = fmt.Sprintf("formula %s not found", app.Formula)
		return info
	}
	info.LatestVersion = version
	info.ReleaseURL = homepage
	return info
}

func matchBrewInfo(data []byte, formula string) (version, homepage string, err error) {
	var parsed brewInfoOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", "", fmt.Errorf("failed to parse brew info output: %w", err)
	}

	for _, f := range parsed.Formulae {
		if f.Name == formula || f.FullName == formula {
			return f.Version, f.Homepage, nil
		}
	}
	for _, cask := range parsed.Casks {
		if cask.Token == formula || cask.FullToken == formula {
			return cask.Version, cask.Homepage, nil
		}
	}
	return "", "", nil
}

// ScanInstalled enumerates installed formulae and casks. Returns nothing
// on hosts without Homebrew.
func (c *HomebrewChecker) ScanInstalled(ctx context.Context) ([]track.Discovered, error) {
	if !brewAvailable() {
		return nil, nil
	}

	formulae, err := c.scanFormulae(ctx)
	if err != nil {
		return nil, err
	}
	casks, err := c.scanCasks(ctx)
	if err != nil {
		// Formula results are still useful when the cask listing fails.
		return formulae, nil
	}
	return append(formulae, casks...), nil
}

func (c *HomebrewChecker) scanFormulae(ctx context.Context) ([]track.Discovered, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "brew", "list", "--formula", "--json=v2")
	out, err := cmd.Output()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("brew list timed out after %s", c.timeout)
	}
	if err != nil {
		return nil, errors.New(subprocessError("brew list", err))
	}
	return parseBrewList(out)
}

func parseBrewList(data []byte) ([]track.Discovered, error) {
	var parsed struct {
		Formulae []struct {
			Name      string                 `json:"name"`
			FullName  string                 `json:"full_name"`
			Installed []brewInstalledVersion `json:"installed"`
		} `json:"formulae"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse brew list output: %w", err)
	}

	var found []track.Discovered
	for _, f := range parsed.Formulae {
		id := f.FullName
		if id == "" {
			id = f.Name
		}
		var version string
		if len(f.Installed) > 0 {
			version = f.Installed[0].Version
		}
		found = append(found, track.Discovered{
			Name:    f.Name,
			Version: version,
			ID:      id,
			Source:  track.SourceHomebrew,
			Channel: "formula",
		})
	}
	return found, nil
}

func (c *HomebrewChecker) scanCasks(ctx context.Context) ([]track.Discovered, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// `brew list --cask` prints one token per line; versions are not
	// reported here and stay empty until the first check fills them in.
	cmd := exec.CommandContext(ctx, "brew", "list", "--cask")
	out, err := cmd.Output()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("brew list --cask timed out after %s", c.timeout)
	}
	if err != nil {
		return nil, errors.New(subprocessError("brew list --cask", err))
	}

	var found []track.Discovered
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		token := strings.TrimSpace(line)
		if token == "" || strings.HasPrefix(token, "==>") {
			continue
		}
		found = append(found, track.Discovered{
			Name:    token,
			ID:      token,
			Source:  track.SourceHomebrew,
			Channel: "cask",
		})
	}
	return found, nil
}

// SearchFormulae queries `brew search --formula`. Used by the add-app flow.
func (c *HomebrewChecker) SearchFormulae(ctx context.Context, query string, limit int) ([]string, error) {
	if !brewAvailable() {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "brew", "search", "--formula", query)
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("brew search timed out after %s", c.timeout)
		}
		return nil, errors.New(subprocessError("brew search", err))
	}

	var results []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		name := strings.TrimSpace(line)
		if name == "" || strings.HasPrefix(name, "==>") {
			continue
		}
		results = append(results, name)
		if len(results) == limit {
			break
		}
	}
	return results, nil
}
