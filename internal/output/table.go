// Package output provides terminal output utilities for appwatch.
//
// This package includes:
//   - Table rendering for tracked apps, scan discoveries, and check history
//   - Progress bars for long-running operations
//   - Spinners for indeterminate operations
//   - Human-readable formatting for dates and statuses
//
// All table rendering functions use ASCII characters and ANSI color codes for
// terminal output. Progress indicators are thread-safe and can be used from
// multiple goroutines.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"appwatch/internal/history"
	"appwatch/internal/track"
)

// ANSI color codes for status display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderAppTable renders the tracked apps with their version state.
func RenderAppTable(apps []*track.App) string {
	if len(apps) == 0 {
		return "No apps tracked. Run 'appwatch scan' or 'appwatch add' to get started.\n"
	}

	// Sort by name for consistent output
	sorted := make([]*track.App, len(apps))
	copy(sorted, apps)
	sort.Slice(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i].Name) < strings.ToLower(sorted[j].Name)
	})

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-24s %-10s %-14s %-14s %-13s %s\n",
		"Name", "Source", "Installed", "Latest", "Checked", "Status"))
	sb.WriteString(strings.Repeat("─", 92))
	sb.WriteString("\n")

	for _, app := range sorted {
		sb.WriteString(fmt.Sprintf("%-24s %-10s %-14s %-14s %-13s %s\n",
			truncate(app.Name, 24),
			app.Source,
			orDash(app.InstalledVersion, 14),
			orDash(app.LatestVersion, 14),
			formatRelativeTime(app.LastChecked),
			formatStatus(app)))
	}

	return sb.String()
}

// formatStatus returns the colored status cell for an app. Errors carry a
// truncated message so the table stays scannable; 'appwatch list --json'
// has the full text.
func formatStatus(app *track.App) string {
	switch app.Status() {
	case track.StatusUpdate:
		return colorize(colorYellow, "update "+app.LatestVersion)
	case track.StatusError:
		return colorize(colorRed, "error: "+truncate(app.LastError, 32))
	case track.StatusIgnored:
		return colorize(colorGray, "ignored")
	case track.StatusUnknown:
		return colorize(colorGray, "unknown")
	default:
		return colorize(colorGreen, "up to date")
	}
}

// RenderDiscoveredTable renders packages found by a scan.
func RenderDiscoveredTable(found []track.Discovered) string {
	if len(found) == 0 {
		return "Nothing new found.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-28s %-10s %-10s %-14s %s\n",
		"Name", "Source", "Channel", "Version", "Identifier"))
	sb.WriteString(strings.Repeat("─", 92))
	sb.WriteString("\n")

	for _, d := range found {
		sb.WriteString(fmt.Sprintf("%-28s %-10s %-10s %-14s %s\n",
			truncate(d.Name, 28),
			d.Source,
			orDash(d.Channel, 10),
			orDash(d.Version, 14),
			d.ID))
	}

	return sb.String()
}

// RenderRunTable renders check history runs, newest first.
func RenderRunTable(runs []*history.Run) string {
	if len(runs) == 0 {
		return "No check runs recorded yet.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-6s %-16s %-10s %-8s %-8s %s\n",
		"Run", "When", "Duration", "Checked", "Updates", "Errors"))
	sb.WriteString(strings.Repeat("─", 64))
	sb.WriteString("\n")

	for _, run := range runs {
		duration := run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond)
		errStr := fmt.Sprintf("%d", run.Errors)
		if run.Errors > 0 {
			errStr = colorize(colorRed, errStr)
		}
		sb.WriteString(fmt.Sprintf("%-6d %-16s %-10s %-8d %-8d %s\n",
			run.ID,
			formatRelativeTime(run.StartedAt),
			duration.String(),
			run.Total,
			run.Updates,
			errStr))
	}

	return sb.String()
}

// RenderResultTable renders the per-app results of one or more runs.
func RenderResultTable(results []*history.Result) string {
	if len(results) == 0 {
		return "No results.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-24s %-10s %-14s %-14s %s\n",
		"Name", "Source", "Installed", "Latest", "Result"))
	sb.WriteString(strings.Repeat("─", 84))
	sb.WriteString("\n")

	for _, r := range results {
		result := colorize(colorGreen, "ok")
		if r.Error != "" {
			result = colorize(colorRed, truncate(r.Error, 36))
		}
		sb.WriteString(fmt.Sprintf("%-24s %-10s %-14s %-14s %s\n",
			truncate(r.Name, 24),
			r.Source,
			orDash(r.InstalledVersion, 14),
			orDash(r.LatestVersion, 14),
			result))
	}

	return sb.String()
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	now := time.Now()
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / 24 / 7)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	case diff < 365*24*time.Hour:
		months := int(diff.Hours() / 24 / 30)
		if months == 1 {
			return "1 month ago"
		}
		return fmt.Sprintf("%d months ago", months)
	default:
		years := int(diff.Hours() / 24 / 365)
		if years == 1 {
			return "1 year ago"
		}
		return fmt.Sprintf("%d years ago", years)
	}
}

// orDash substitutes an em dash for an empty cell value.
func orDash(s string, maxLen int) string {
	if s == "" {
		return "—"
	}
	return truncate(s, maxLen)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
