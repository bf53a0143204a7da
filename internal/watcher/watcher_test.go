package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"appwatch/internal/checker"
	"appwatch/internal/service"
	"appwatch/internal/track"
)

type stubChecker struct {
	latest string
}

func (s *stubChecker) Source() track.Source       { return track.SourceCustom }
func (s *stubChecker) CanCheck(_ *track.App) bool { return true }
func (s *stubChecker) Check(_ context.Context, _ *track.App) track.UpdateInfo {
	return track.UpdateInfo{LatestVersion: s.latest}
}

func newWatcherService(t *testing.T) (*service.Service, *track.Store) {
	t.Helper()
	store := track.NewStore(t.TempDir())
	svc := service.New(checker.NewRegistryFrom(&stubChecker{latest: "2.0"}), store)
	return svc, store
}

func TestNew_Validation(t *testing.T) {
	svc, _ := newWatcherService(t)

	if _, err := New(nil, Options{Interval: time.Hour}); err == nil {
		t.Error("New should reject a nil service")
	}
	if _, err := New(svc, Options{Interval: 0}); err == nil {
		t.Error("New should reject a zero interval")
	}
	if _, err := New(svc, Options{Interval: -time.Hour}); err == nil {
		t.Error("New should reject a negative interval")
	}
}

func TestWatcher_ChecksImmediatelyOnStart(t *testing.T) {
	svc, store := newWatcherService(t)

	snap, _ := store.Load()
	app := track.NewApp("tool", track.SourceCustom)
	app.CustomURL = "https://example.com/tool"
	app.InstalledVersion = "1.0"
	snap.Add(app)
	if err := store.Save(snap); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	w, err := New(svc, Options{Interval: time.Hour})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	reloaded, err := store.Load()
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	got := reloaded.Get(app.ID)
	if got == nil || got.LatestVersion != "2.0" {
		t.Errorf("immediate check should have run and persisted, got %+v", got)
	}
}

func TestWatcher_StopIsIdempotentlySafe(t *testing.T) {
	svc, _ := newWatcherService(t)

	w, err := New(svc, Options{Interval: time.Hour})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}

func TestIsDaemonRunning_MissingPIDFile(t *testing.T) {
	running, err := IsDaemonRunning(filepath.Join(t.TempDir(), "watch.pid"))
	if err != nil {
		t.Fatalf("IsDaemonRunning failed: %v", err)
	}
	if running {
		t.Error("missing PID file should mean not running")
	}
}

func TestIsDaemonRunning_InvalidPIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "watch.pid")
	if err := os.WriteFile(pidFile, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatalf("writing pid file: %v", err)
	}
	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		t.Fatalf("IsDaemonRunning failed: %v", err)
	}
	if running {
		t.Error("garbage PID file should mean not running")
	}
}

func TestIsDaemonRunning_CurrentProcess(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "watch.pid")
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		t.Fatalf("writing pid file: %v", err)
	}
	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		t.Fatalf("IsDaemonRunning failed: %v", err)
	}
	if !running {
		t.Error("our own PID should count as running")
	}
}

func TestStopDaemon_NoPIDFile(t *testing.T) {
	err := StopDaemon(filepath.Join(t.TempDir(), "watch.pid"))
	if err == nil {
		t.Error("StopDaemon without a PID file should error")
	}
}
