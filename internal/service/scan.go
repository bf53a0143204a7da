package service

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"appwatch/internal/checker"
	"appwatch/internal/track"
)

// ScanMode selects how ambiguous discoveries are handled.
type ScanMode int

const (
	// ScanAuto adds only discoveries whose identifier is unambiguous and
	// reports the rest for the caller to surface.
	ScanAuto ScanMode = iota

	// ScanInteractive behaves like ScanAuto for unambiguous entries; the
	// ambiguous remainder is returned for the caller to resolve with the
	// user one package at a time.
	ScanInteractive

	// ScanLegacyAll adds every discovery under its reported identifier,
	// ambiguous or not. Matches the old import behavior; entries added
	// this way may fail their first check.
	ScanLegacyAll
)

// ScanResult reports one reconciliation pass over the host's installed
// packages.
type ScanResult struct {
	// Found counts every package the discoverers reported, including
	// ones already tracked.
	Found int

	// Added holds the registry entries created by this pass.
	Added []*track.App

	// NeedsInteractive holds discoveries that could not be added
	// automatically because their identifier is ambiguous (e.g. winget
	// msstore packages).
	NeedsInteractive []track.Discovered
}

// Scan enumerates packages installed on this host and adds the ones not
// yet tracked to the registry. Matching is by source-specific identifier,
// never by name; existing entries are never modified or removed. The
// snapshot is saved only when something was added.
func (s *Service) Scan(ctx context.Context, mode ScanMode) (*ScanResult, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	discoveries, err := s.discover(ctx)
	if err != nil {
		return nil, err
	}

	res := &ScanResult{Found: len(discoveries)}
	known := snap.Identifiers()

	for _, d := range discoveries {
		if d.ID == "" || known[d.Source][d.ID] {
			continue
		}
		if mode != ScanLegacyAll && !unambiguous(d) {
			res.NeedsInteractive = append(res.NeedsInteractive, d)
			continue
		}

		app := fromDiscovered(d)
		snap.Add(app)
		if known[d.Source] == nil {
			known[d.Source] = make(map[string]bool)
		}
		known[d.Source][d.ID] = true
		res.Added = append(res.Added, app)
	}

	if len(res.Added) > 0 {
		if err := s.store.Save(snap); err != nil {
			return nil, fmt.Errorf("saving scanned apps: %w", err)
		}
	}
	return res, nil
}

// AddDiscovered adds one discovery to the registry, deduplicated by
// identifier, and saves. The interactive scan path calls this once per
// confirmed package. Returns the new app, or nil when it was already
// tracked.
func (s *Service) AddDiscovered(d track.Discovered) (*track.App, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	if d.ID == "" || snap.Identifiers()[d.Source][d.ID] {
		return nil, nil
	}
	app := fromDiscovered(d)
	snap.Add(app)
	if err := s.store.Save(snap); err != nil {
		return nil, err
	}
	return app, nil
}

// discover collects installed packages from every source whose tooling is
// available here. A source failing to enumerate aborts the scan; a source
// merely absent from the host contributes nothing.
func (s *Service) discover(ctx context.Context) ([]track.Discovered, error) {
	var all []track.Discovered
	for _, d := range s.registry.Discoverers() {
		found, err := d.ScanInstalled(ctx)
		if err != nil {
			return nil, fmt.Errorf("scanning %s packages: %w", d.Source(), err)
		}
		log.WithFields(log.Fields{
			"source": d.Source(),
			"found":  len(found),
		}).Debug("scanned installed packages")
		all = append(all, found...)
	}
	return all, nil
}

// unambiguous reports whether the discovery's identifier can be checked
// as-is. Homebrew names are canonical; winget ids are reliable only on
// the primary "winget" channel (msstore ids are opaque store ids that
// `winget show` cannot resolve against the primary source).
func unambiguous(d track.Discovered) bool {
	switch d.Source {
	case track.SourceHomebrew:
		return true
	case track.SourceWinget:
		return d.Channel == checker.PrimaryWingetChannel
	}
	return false
}

// fromDiscovered builds a registry entry from a scan discovery.
func fromDiscovered(d track.Discovered) *track.App {
	app := track.NewApp(d.Name, d.Source)
	app.InstalledVersion = track.NormalizeVersion(d.Version)
	switch d.Source {
	case track.SourceWinget:
		app.WingetID = d.ID
	case track.SourceHomebrew:
		app.Formula = d.ID
	}
	return app
}
