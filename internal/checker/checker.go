// Package checker implements the per-source update checking strategies.
//
// Each update source (winget, GitHub releases, Homebrew, custom URL) has one
// Checker implementation. Expected failure modes (network errors, timeouts,
// missing packages, rate limits) are reported through UpdateInfo.Error with
// a human-readable message, never as a Go error; only store or configuration
// problems propagate as errors.
package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"appwatch/internal/track"
)

// ErrUnknownSource is returned by Resolve for a source tag with no
// registered checker. The tag enum is closed, so hitting this at runtime
// is a configuration fault, not an expected condition.
var ErrUnknownSource = errors.New("no checker registered for source")

// Checker knows how to query one class of update source.
type Checker interface {
	// Source returns the tag this checker handles.
	Source() track.Source

	// CanCheck reports whether the checker applies to the app on this
	// host. A false result is "not applicable", not a failure, e.g. the
	// winget checker refuses on a non-Windows host.
	CanCheck(app *track.App) bool

	// Check determines the latest available version for the app. The
	// invocation is bounded by the checker's per-source timeout.
	Check(ctx context.Context, app *track.App) track.UpdateInfo
}

// Discoverer is implemented by checkers that can also enumerate packages
// installed on the host. The scan engine drives these.
type Discoverer interface {
	Checker

	// ScanInstalled lists packages currently present on the host, or
	// (nil, nil) when the source's tooling is unavailable here.
	ScanInstalled(ctx context.Context) ([]track.Discovered, error)
}

// Options carries the cross-checker configuration, threaded in once at
// process start.
type Options struct {
	// GitHubToken raises the GitHub API request quota. Optional; its
	// absence only lowers the quota, it never fails a check.
	GitHubToken string

	// HTTPTimeout bounds each outbound HTTP request (github, custom).
	HTTPTimeout time.Duration

	// WingetTimeout and BrewTimeout bound each package-manager subprocess.
	WingetTimeout time.Duration
	BrewTimeout   time.Duration
}

// Registry is the static source tag -> checker mapping, built once at
// process start.
type Registry struct {
	checkers map[track.Source]Checker
	order    []track.Source
}

// NewRegistry builds the registry with one checker per source tag. Adding
// a source is a single-point change here.
func NewRegistry(opts Options) *Registry {
	return NewRegistryFrom(
		NewWinget(opts),
		NewGitHub(opts),
		NewCustom(opts),
		NewHomebrew(opts),
	)
}

// NewRegistryFrom assembles a registry from explicit checker instances.
// Production code uses NewRegistry; tests inject fakes through this.
func NewRegistryFrom(checkers ...Checker) *Registry {
	r := &Registry{checkers: make(map[track.Source]Checker, len(checkers))}
	for _, c := range checkers {
		if _, dup := r.checkers[c.Source()]; !dup {
			r.order = append(r.order, c.Source())
		}
		r.checkers[c.Source()] = c
	}
	return r
}

// Resolve returns the checker for a source tag.
func (r *Registry) Resolve(src track.Source) (Checker, error) {
	c, ok := r.checkers[src]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, src)
	}
	return c, nil
}

// Discoverers returns the registered checkers that can enumerate installed
// packages, in registration order.
func (r *Registry) Discoverers() []Discoverer {
	var out []Discoverer
	for _, src := range r.order {
		if d, ok := r.checkers[src].(Discoverer); ok {
			out = append(out, d)
		}
	}
	return out
}
