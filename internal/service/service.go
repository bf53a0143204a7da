// Package service orchestrates update checks across the registry: it fans
// the configured apps out to the per-source checkers under a concurrency
// cap, folds the results back into the stored snapshot, and records each
// run in the optional check history.
package service

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"appwatch/internal/checker"
	"appwatch/internal/history"
	"appwatch/internal/track"
)

// defaultMaxConcurrent caps simultaneous in-flight checks. Checks are
// network- or subprocess-bound, so a small cap keeps us polite toward the
// upstream APIs without serializing everything.
const defaultMaxConcurrent = 5

// Progress is invoked once per completed check. done/total report batch
// position; invocations are serialized, so implementations need no locking.
type Progress func(app *track.App, done, total int)

// Summary aggregates one check batch.
type Summary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Updates    int
	Errors     int
}

// Service wires the checker registry, the registry store, and the optional
// check history together.
type Service struct {
	registry      *checker.Registry
	store         *track.Store
	hist          *history.Store
	maxConcurrent int
}

// Option adjusts Service construction.
type Option func(*Service)

// WithMaxConcurrent overrides the in-flight check cap. Values < 1 fall
// back to the default.
func WithMaxConcurrent(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.maxConcurrent = n
		}
	}
}

// WithHistory records every batch in the given history store.
func WithHistory(h *history.Store) Option {
	return func(s *Service) { s.hist = h }
}

// New creates a service around a checker registry and a registry store.
func New(registry *checker.Registry, store *track.Store, opts ...Option) *Service {
	s := &Service{
		registry:      registry,
		store:         store,
		maxConcurrent: defaultMaxConcurrent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying registry store for CRUD-style commands.
func (s *Service) Store() *track.Store {
	return s.store
}

// Registry exposes the checker registry, mainly for commands that need a
// source's extra capabilities (search, pattern detection).
func (s *Service) Registry() *checker.Registry {
	return s.registry
}

// History returns the check history store, or nil when history is
// disabled.
func (s *Service) History() *history.Store {
	return s.hist
}

// CheckOne runs a single check and folds the result into the app in
// place. The app is mutated; the caller persists the snapshot.
func (s *Service) CheckOne(ctx context.Context, app *track.App) track.UpdateInfo {
	info := s.check(ctx, app)
	s.apply(app, info)
	return info
}

// CheckBatch checks the given apps concurrently, at most maxConcurrent in
// flight. Ignored apps are filtered out here, before dispatch, so no
// caller can check one by accident. Each remaining app is mutated with
// its result; one failing check never affects the others. Progress, when
// non-nil, fires once per completed check in completion order.
func (s *Service) CheckBatch(ctx context.Context, apps []*track.App, progress Progress) Summary {
	var eligible []*track.App
	for _, app := range apps {
		if !app.Ignored {
			eligible = append(eligible, app)
		}
	}
	apps = eligible

	sum := Summary{StartedAt: time.Now(), Total: len(apps)}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	sem := make(chan struct{}, s.maxConcurrent)

	for _, app := range apps {
		wg.Add(1)
		go func(app *track.App) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			info := s.check(ctx, app)

			mu.Lock()
			defer mu.Unlock()
			s.apply(app, info)
			if info.Failed() {
				sum.Errors++
			} else if app.Status() == track.StatusUpdate {
				sum.Updates++
			}
			done++
			if progress != nil {
				progress(app, done, sum.Total)
			}
		}(app)
	}
	wg.Wait()

	sum.FinishedAt = time.Now()
	return sum
}

// CheckAndSave loads the registry, checks the requested apps (all
// non-ignored apps when ids is empty), persists the updated snapshot, and
// records the run in history. It returns the checked apps alongside the
// batch summary.
func (s *Service) CheckAndSave(ctx context.Context, ids []string, progress Progress) ([]*track.App, Summary, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, Summary{}, err
	}

	apps, err := selectApps(snap, ids)
	if err != nil {
		return nil, Summary{}, err
	}

	sum := s.CheckBatch(ctx, apps, progress)

	if err := s.store.Save(snap); err != nil {
		return nil, Summary{}, err
	}
	s.record(sum, apps)
	return apps, sum, nil
}

// check resolves the app's checker and runs it. Not-applicable checkers
// (wrong platform, tool missing) yield an empty UpdateInfo; the caller
// still stamps LastChecked.
func (s *Service) check(ctx context.Context, app *track.App) track.UpdateInfo {
	c, err := s.registry.Resolve(app.Source)
	if err != nil {
		return track.UpdateInfo{Error: err.Error()}
	}
	if !c.CanCheck(app) {
		return track.UpdateInfo{NotApplicable: true}
	}
	return c.Check(ctx, app)
}

// apply folds a check result into the app. On success the latest-version
// fields are replaced and any previous error cleared; on failure the
// error is recorded but the last known latest version is kept, so a
// transient outage never erases what we already learned. A not-applicable
// result leaves everything but LastChecked alone: it neither clears a
// prior error nor records a new one. LastChecked is stamped in all cases.
func (s *Service) apply(app *track.App, info track.UpdateInfo) {
	app.LastChecked = time.Now()
	if info.NotApplicable {
		return
	}
	if info.Failed() {
		app.LastError = info.Error
		return
	}
	app.LastError = ""
	if info.LatestVersion != "" {
		app.LatestVersion = info.LatestVersion
		app.ReleaseURL = info.ReleaseURL
	}
	if info.InstalledVersion != "" {
		app.InstalledVersion = info.InstalledVersion
	}
}

// record writes the batch to history. History failures are logged, never
// surfaced: losing an audit row must not fail a check run.
func (s *Service) record(sum Summary, apps []*track.App) {
	if s.hist == nil {
		return
	}
	run := &history.Run{
		StartedAt:  sum.StartedAt,
		FinishedAt: sum.FinishedAt,
		Total:      sum.Total,
		Updates:    sum.Updates,
		Errors:     sum.Errors,
	}
	results := make([]*history.Result, 0, len(apps))
	for _, app := range apps {
		results = append(results, &history.Result{
			AppID:            app.ID,
			Name:             app.Name,
			Source:           string(app.Source),
			InstalledVersion: app.InstalledVersion,
			LatestVersion:    app.LatestVersion,
			Error:            app.LastError,
			CheckedAt:        app.LastChecked,
		})
	}
	if err := s.hist.RecordRun(run, results); err != nil {
		log.WithError(err).Warn("failed to record check run in history")
	}
}

// selectApps picks the apps to check: the named ones, or every app when
// ids is empty. Ignored entries are excluded either way; naming one
// explicitly does not override the flag. An unknown id is an error so a
// typo does not silently check nothing.
func selectApps(snap *track.Snapshot, ids []string) ([]*track.App, error) {
	if len(ids) == 0 {
		var apps []*track.App
		for _, app := range snap.Apps {
			if !app.Ignored {
				apps = append(apps, app)
			}
		}
		return apps, nil
	}

	apps := make([]*track.App, 0, len(ids))
	for _, id := range ids {
		app := Find(snap, id)
		if app == nil {
			return nil, &UnknownAppError{ID: id}
		}
		if app.Ignored {
			continue
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// Find resolves a user-supplied reference to an app: an exact id first,
// then an exact name match. Names are convenient on the command line but
// not guaranteed unique; the first match wins.
func Find(snap *track.Snapshot, ref string) *track.App {
	if app := snap.Get(ref); app != nil {
		return app
	}
	for _, app := range snap.Apps {
		if strings.EqualFold(app.Name, ref) {
			return app
		}
	}
	return nil
}

// UnknownAppError reports a check request naming an app id that is not in
// the registry.
type UnknownAppError struct {
	ID string
}

func (e *UnknownAppError) Error() string {
	return "no app with id " + e.ID
}
