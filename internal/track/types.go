package track

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies which update source a tracked app is checked against.
// The set is closed: the checker registry is built from exactly these tags.
type Source string

const (
	SourceWinget   Source = "winget"
	SourceGitHub   Source = "github"
	SourceCustom   Source = "custom"
	SourceHomebrew Source = "homebrew"
)

// Sources lists every valid source tag in a stable order.
func Sources() []Source {
	return []Source{SourceWinget, SourceGitHub, SourceCustom, SourceHomebrew}
}

// ParseSource validates a raw source string. Unknown values fall back to
// SourceCustom so that a hand-edited registry file never blocks loading.
func ParseSource(raw string) Source {
	switch Source(raw) {
	case SourceWinget, SourceGitHub, SourceCustom, SourceHomebrew:
		return Source(raw)
	default:
		return SourceCustom
	}
}

// Status is the derived state of a tracked app. It is computed on demand
// and never persisted.
type Status string

const (
	StatusOK       Status = "ok"
	StatusUpdate   Status = "update"
	StatusChecking Status = "checking"
	StatusError    Status = "error"
	StatusIgnored  Status = "ignored"
	StatusUnknown  Status = "unknown"
)

// App is one entry in the registry: a user-monitored application and its
// known version state. ID is the sole stable key for update/delete/merge.
type App struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Source           Source    `json:"source"`
	InstalledVersion string    `json:"installed_version,omitempty"`
	LatestVersion    string    `json:"latest_version,omitempty"`
	Ignored          bool      `json:"ignored"`
	LastChecked      time.Time `json:"last_checked,omitempty"`
	LastError        string    `json:"last_error,omitempty"`
	ReleaseURL       string    `json:"release_url,omitempty"`
	AddedAt          time.Time `json:"added_at"`

	// Source-specific identifiers. Exactly one group is populated,
	// selected by Source.
	WingetID     string `json:"winget_id,omitempty"`
	GitHubRepo   string `json:"github_repo,omitempty"`
	CustomURL    string `json:"custom_url,omitempty"`
	VersionRegex string `json:"version_regex,omitempty"`
	Formula      string `json:"homebrew_formula,omitempty"`
}

// NewApp creates an app with a fresh ID and creation timestamp.
func NewApp(name string, source Source) *App {
	return &App{
		ID:      uuid.NewString(),
		Name:    name,
		Source:  source,
		AddedAt: time.Now(),
	}
}

// Identifier returns the source-specific identifier for the app, or ""
// when it is not configured. Scan deduplication matches on this value,
// never on the display name.
func (a *App) Identifier() string {
	switch a.Source {
	case SourceWinget:
		return a.WingetID
	case SourceGitHub:
		return a.GitHubRepo
	case SourceCustom:
		return a.CustomURL
	case SourceHomebrew:
		return a.Formula
	}
	return ""
}

// Status derives the presentation state. Ignored wins over everything,
// then a recorded error, then missing version data, then the version
// comparison.
func (a *App) Status() Status {
	switch {
	case a.Ignored:
		return StatusIgnored
	case a.LastError != "":
		return StatusError
	case a.InstalledVersion == "" || a.LatestVersion == "":
		return StatusUnknown
	case UpdateAvailable(a.InstalledVersion, a.LatestVersion):
		return StatusUpdate
	default:
		return StatusOK
	}
}

// Clone returns a copy of the app. Batch checking mutates clones so that
// a caller's slice is never written to concurrently.
func (a *App) Clone() *App {
	cp := *a
	return &cp
}

// UpdateInfo is the transient result of a single checker invocation. The
// orchestration engine folds it into the owning App; it is never persisted.
type UpdateInfo struct {
	LatestVersion    string
	ReleaseURL       string
	Error            string
	InstalledVersion string

	// NotApplicable marks an entry whose checker does not apply on this
	// host (wrong platform, tool missing). Neither success nor failure:
	// the app's version state and last error are left untouched.
	NotApplicable bool
}

// Failed reports whether the check ended in an expected failure
// (network, timeout, not found, rate limit, no match).
func (i UpdateInfo) Failed() bool {
	return i.Error != ""
}

// Discovered is one installed package found by a platform scan.
type Discovered struct {
	Name    string
	Version string
	// ID is the source-specific identifier (winget package id, formula
	// full name, cask token).
	ID     string
	Source Source
	// Channel distinguishes the origin within a source, e.g. winget's
	// primary "winget" channel vs "msstore", or homebrew "formula" vs
	// "cask". Only the primary channels carry unambiguous identifiers.
	Channel string
}
