// Package watcher runs periodic background update checks.
//
// The watcher re-checks every tracked app on a fixed interval and
// additionally reacts to edits of the registry file, so an app added from
// another terminal gets its first check right away instead of waiting out
// the interval.
//
// Key features:
//   - Interval-based re-checks (default every 6 hours)
//   - Registry file watching via fsnotify, debounced
//   - Desktop notifications for newly available updates
//   - Daemon mode support with PID file management
//   - Graceful shutdown with SIGTERM/SIGINT handling
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"appwatch/internal/notify"
	"appwatch/internal/service"
	"appwatch/internal/track"
)

const (
	// debounce coalesces the burst of fsnotify events a single registry
	// save produces (temp file, rename, backup copy).
	debounce = 2 * time.Second

	// cooldown is the minimum gap between file-triggered checks. Our own
	// post-check save touches the registry, so without this floor every
	// run would immediately schedule the next one.
	cooldown = 30 * time.Second
)

// Options configures a Watcher.
type Options struct {
	// Interval between full re-checks.
	Interval time.Duration

	// Notify sends a desktop notification when a check finds updates.
	Notify bool
}

// Watcher periodically re-checks all tracked apps.
type Watcher struct {
	svc    *service.Service
	opts   Options
	stopCh chan struct{}
	wg     sync.WaitGroup
	fsw    *fsnotify.Watcher

	mu      sync.Mutex
	lastRun time.Time
}

// New creates a Watcher around a service. Interval must be positive.
func New(svc *service.Service, opts Options) (*Watcher, error) {
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("watch interval must be positive, got %v", opts.Interval)
	}
	return &Watcher{
		svc:    svc,
		opts:   opts,
		stopCh: make(chan struct{}),
	}, nil
}

// Start runs an immediate check and then begins the interval loop and the
// registry file watcher. It returns once the background goroutine is
// running.
func (w *Watcher) Start() error {
	w.runOnce()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	// Watch the directory, not the file: registry saves go through a
	// rename, which drops a watch placed on the file itself.
	if err := fsw.Add(filepath.Dir(w.svc.Store().Path())); err != nil {
		fsw.Close()
		return fmt.Errorf("watching registry directory: %w", err)
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.run()
	return nil
}

// Stop halts the watcher and waits for an in-flight check to finish.
func (w *Watcher) Stop() error {
	close(w.stopCh)
	if w.fsw != nil {
		w.fsw.Close()
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var pending *time.Timer
	var pendingCh <-chan time.Time

	events := w.fsw.Events
	errs := w.fsw.Errors
	registry := filepath.Base(w.svc.Store().Path())

	for {
		select {
		case <-ticker.C:
			w.runOnce()

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Base(ev.Name) != registry {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if pending == nil {
				pending = time.NewTimer(debounce)
				pendingCh = pending.C
			} else {
				pending.Reset(debounce)
			}

		case <-pendingCh:
			pending = nil
			pendingCh = nil
			if w.sinceLastRun() < cooldown {
				log.Debug("registry changed, but a check just ran; skipping")
				continue
			}
			log.Info("registry changed, re-checking")
			w.runOnce()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				log.WithError(err).Warn("file watcher error")
			}

		case <-w.stopCh:
			return
		}
	}
}

// runOnce checks every non-ignored app and notifies about updates.
func (w *Watcher) runOnce() {
	w.mu.Lock()
	w.lastRun = time.Now()
	w.mu.Unlock()

	apps, sum, err := w.svc.CheckAndSave(context.Background(), nil, nil)
	if err != nil {
		log.WithError(err).Error("background check failed")
		return
	}
	log.WithFields(log.Fields{
		"checked": sum.Total,
		"updates": sum.Updates,
		"errors":  sum.Errors,
	}).Info("background check finished")

	if w.opts.Notify && sum.Updates > 0 {
		var pending []*track.App
		for _, app := range apps {
			if app.Status() == track.StatusUpdate {
				pending = append(pending, app)
			}
		}
		notify.Updates(pending)
	}
}

func (w *Watcher) sinceLastRun() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return time.Since(w.lastRun)
}
