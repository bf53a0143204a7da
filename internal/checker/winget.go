package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"time"

	"appwatch/internal/track"
)

const (
	defaultWingetTimeout = 60 * time.Second
	maxWingetSearchHits  = 10
)

// PrimaryWingetChannel is the winget source channel whose package ids are
// unambiguous machine identifiers. Packages reported from other channels
// (e.g. msstore) need interactive disambiguation during a scan.
const PrimaryWingetChannel = "winget"

var wingetIDPattern = regexp.MustCompile(`^[A-Za-z0-9]+\.[A-Za-z0-9.]+$`)

// ValidWingetID reports whether id looks like a primary-channel package id
// (Publisher.Name). Store ids like "9NCBCSZSJRSB" do not match.
func ValidWingetID(id string) bool {
	return wingetIDPattern.MatchString(id)
}

// WingetChecker queries the Windows Package Manager for package versions
// and enumerates installed packages for the scan engine.
type WingetChecker struct {
	timeout time.Duration
}

// NewWinget creates the winget checker.
func NewWinget(opts Options) *WingetChecker {
	timeout := opts.WingetTimeout
	if timeout <= 0 {
		timeout = defaultWingetTimeout
	}
	return &WingetChecker{timeout: timeout}
}

func (c *WingetChecker) Source() track.Source { return track.SourceWinget }

// CanCheck refuses on non-Windows hosts and when the winget binary is not
// on PATH. Both are "not applicable", not failures.
func (c *WingetChecker) CanCheck(app *track.App) bool {
	return app.Source == track.SourceWinget && wingetAvailable()
}

func wingetAvailable() bool {
	if runtime.GOOS != "windows" {
		return false
	}
	_, err := exec.LookPath("winget")
	return err == nil
}

// Check runs `winget show` for the app's package id and parses the
// reported version and homepage.
func (c *WingetChecker) Check(ctx context.Context, app *track.App) track.UpdateInfo {
	info := track.UpdateInfo{InstalledVersion: app.InstalledVersion}
	if app.WingetID == "" {
		info.Error = "no winget package id configured for this app"
		return info
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "winget", "show",
		"--id", app.WingetID, "--source", PrimaryWingetChannel,
		"--accept-source-agreements")
	out, err := cmd.Output()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		info.Error = "timed out waiting for winget"
		return info
	}
	if err != nil {
		info.Error = subprocessError("winget show", err)
		return info
	}

	version, homepage := parseWingetShow(string(out))
	if version == "" {
		info.Error = fmt.Sprintf("winget did not report a version for %s", app.WingetID)
		return info
	}
	info.LatestVersion = version
	info.ReleaseURL = homepage
	return info
}

// parseWingetShow extracts the Version and Homepage fields from `winget
// show` line output.
func parseWingetShow(output string) (version, homepage string) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, "Version:"); ok {
			version = strings.TrimSpace(v)
		} else if h, ok := strings.CutPrefix(line, "Homepage:"); ok {
			homepage = strings.TrimSpace(h)
		}
	}
	return version, homepage
}

// ScanInstalled enumerates installed packages via `winget list`. Packages
// are grouped by the channel that owns them; only the primary channel's
// ids are unambiguous. Returns nothing on hosts without winget.
func (c *WingetChecker) ScanInstalled(ctx context.Context) ([]track.Discovered, error) {
	if !wingetAvailable() {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "winget", "list",
		"--format", "json", "--accept-source-agreements")
	out, err := cmd.Output()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("winget list timed out after %s", c.timeout)
	}
	if err != nil {
		return nil, errors.New(subprocessError("winget list", err))
	}
	return parseWingetList(out)
}

// parseWingetList decodes `winget list --format json` output: packages
// grouped under their owning source channel.
func parseWingetList(data []byte) ([]track.Discovered, error) {
	var parsed struct {
		Sources []struct {
			Source   string `json:"Source"`
			Packages []struct {
				Name    string `json:"Name"`
				ID      string `json:"Id"`
				Version string `json:"Version"`
			} `json:"Packages"`
		} `json:"Sources"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse winget list output: %w", err)
	}

	var found []track.Discovered
	for _, src := range parsed.Sources {
		channel := src.Source
		if channel == "" {
			channel = "unknown"
		}
		for _, pkg := range src.Packages {
			found = append(found, track.Discovered{
				Name:    pkg.Name,
				Version: pkg.Version,
				ID:      pkg.ID,
				Source:  track.SourceWinget,
				Channel: channel,
			})
		}
	}
	return found, nil
}

// WingetResult is one `winget search` hit.
type WingetResult struct {
	Name string
	ID   string
}

// Search queries the primary winget channel for packages matching the
// query. Used by the add-app flow.
func (c *WingetChecker) Search(ctx context.Context, query string) ([]WingetResult, error) {
	if !wingetAvailable() {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "winget", "search", query,
		"--source", PrimaryWingetChannel, "--accept-source-agreements")
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("winget search timed out after %s", c.timeout)
		}
		return nil, errors.New(subprocessError("winget search", err))
	}
	return parseWingetSearch(string(out)), nil
}

// parseWingetSearch reads winget's column output. There is no stable
// machine format for search, so the package id column is located by shape:
// the first whitespace-separated token that looks like Publisher.Name.
func parseWingetSearch(output string) []WingetResult {
	var results []WingetResult
	headerSeen := false

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}
		if strings.HasPrefix(line, "Name") && strings.Contains(line, "Id") {
			headerSeen = true
			continue
		}
		if !headerSeen {
			continue
		}

		parts := strings.Fields(line)
		for i, part := range parts {
			if i > 0 && wingetIDPattern.MatchString(part) {
				results = append(results, WingetResult{
					Name: strings.Join(parts[:i], " "),
					ID:   part,
				})
				break
			}
		}
		if len(results) == maxWingetSearchHits {
			break
		}
	}
	return results
}

// subprocessError formats a failed tool invocation, keeping any stderr
// output the tool produced.
func subprocessError(what string, err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return fmt.Sprintf("%s failed: %s", what, strings.TrimSpace(string(exitErr.Stderr)))
	}
	return fmt.Sprintf("%s failed: %v", what, err)
}
