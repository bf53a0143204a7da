package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"appwatch/internal/checker"
	"appwatch/internal/track"
)

// fakeChecker returns canned results per app name and tracks its own
// concurrency so tests can assert the in-flight cap.
type fakeChecker struct {
	src      track.Source
	canCheck bool
	results  map[string]track.UpdateInfo
	delay    time.Duration

	inFlight atomic.Int32
	maxSeen  atomic.Int32
	calls    atomic.Int32
}

func (f *fakeChecker) Source() track.Source          { return f.src }
func (f *fakeChecker) CanCheck(_ *track.App) bool    { return f.canCheck }
func (f *fakeChecker) Check(_ context.Context, app *track.App) track.UpdateInfo {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.inFlight.Add(-1)
	return f.results[app.Name]
}

func newTestService(t *testing.T, fakes ...checker.Checker) (*Service, *track.Store) {
	t.Helper()
	store := track.NewStore(t.TempDir())
	svc := New(checker.NewRegistryFrom(fakes...), store)
	return svc, store
}

func customApp(name string) *track.App {
	app := track.NewApp(name, track.SourceCustom)
	app.CustomURL = "https://example.com/" + name
	return app
}

func TestCheckOne_Success(t *testing.T) {
	fake := &fakeChecker{
		src:      track.SourceCustom,
		canCheck: true,
		results: map[string]track.UpdateInfo{
			"tool": {LatestVersion: "2.0", ReleaseURL: "https://example.com/tool"},
		},
	}
	svc, _ := newTestService(t, fake)

	app := customApp("tool")
	app.InstalledVersion = "1.0"
	app.LastError = "previous failure"

	info := svc.CheckOne(context.Background(), app)
	if info.Failed() {
		t.Fatalf("unexpected failure: %q", info.Error)
	}
	if app.LatestVersion != "2.0" {
		t.Errorf("LatestVersion = %q, want 2.0", app.LatestVersion)
	}
	if app.ReleaseURL != "https://example.com/tool" {
		t.Errorf("ReleaseURL = %q", app.ReleaseURL)
	}
	if app.LastError != "" {
		t.Errorf("success should clear the previous error, got %q", app.LastError)
	}
	if app.LastChecked.IsZero() {
		t.Error("LastChecked should be stamped")
	}
	if app.Status() != track.StatusUpdate {
		t.Errorf("Status = %q, want %q", app.Status(), track.StatusUpdate)
	}
}

func TestCheckOne_FailureKeepsLastKnownVersion(t *testing.T) {
	fake := &fakeChecker{
		src:      track.SourceCustom,
		canCheck: true,
		results: map[string]track.UpdateInfo{
			"tool": {Error: "request timed out"},
		},
	}
	svc, _ := newTestService(t, fake)

	app := customApp("tool")
	app.InstalledVersion = "1.0"
	app.LatestVersion = "1.5"

	svc.CheckOne(context.Background(), app)
	if app.LastError != "request timed out" {
		t.Errorf("LastError = %q", app.LastError)
	}
	if app.LatestVersion != "1.5" {
		t.Errorf("a failed check must not erase the last known latest version, got %q", app.LatestVersion)
	}
	if app.Status() != track.StatusError {
		t.Errorf("Status = %q, want %q", app.Status(), track.StatusError)
	}
}

func TestCheckOne_NotApplicableOnlyStampsLastChecked(t *testing.T) {
	fake := &fakeChecker{src: track.SourceWinget, canCheck: false}
	svc, _ := newTestService(t, fake)

	app := track.NewApp("windows-only", track.SourceWinget)
	app.WingetID = "Vendor.Tool"
	app.LatestVersion = "3.0"
	app.LastError = "previous network failure"

	svc.CheckOne(context.Background(), app)
	if fake.calls.Load() != 0 {
		t.Error("Check should not run when the checker is not applicable")
	}
	if app.LastChecked.IsZero() {
		t.Error("LastChecked should still be stamped")
	}
	if app.LatestVersion != "3.0" {
		t.Errorf("not-applicable must leave version state alone: %+v", app)
	}
	// Only a successful check clears the error; not checking at all
	// must not.
	if app.LastError != "previous network failure" {
		t.Errorf("not-applicable must not touch LastError, got %q", app.LastError)
	}
}

func TestCheckBatch_NeverDispatchesIgnoredApps(t *testing.T) {
	fake := &fakeChecker{
		src:      track.SourceCustom,
		canCheck: true,
		results: map[string]track.UpdateInfo{
			"active":  {LatestVersion: "2.0"},
			"ignored": {LatestVersion: "9.9"},
		},
	}
	svc, _ := newTestService(t, fake)

	active := customApp("active")
	active.InstalledVersion = "1.0"
	ignored := customApp("ignored")
	ignored.Ignored = true
	ignored.LatestVersion = "1.5"

	// Ignored apps are filtered inside the engine, even when handed in
	// explicitly.
	sum := svc.CheckBatch(context.Background(), []*track.App{active, ignored}, nil)

	if sum.Total != 1 {
		t.Errorf("summary total = %d, want 1 (ignored app excluded)", sum.Total)
	}
	if fake.calls.Load() != 1 {
		t.Errorf("checker ran %d times, want 1", fake.calls.Load())
	}
	if !ignored.LastChecked.IsZero() {
		t.Error("ignored app should not even get a LastChecked stamp")
	}
	if ignored.LatestVersion != "1.5" {
		t.Errorf("ignored app was mutated: LatestVersion = %q", ignored.LatestVersion)
	}
	if active.LatestVersion != "2.0" {
		t.Error("the non-ignored app should still be checked")
	}
}

func TestCheckAndSave_ExplicitlyNamedIgnoredAppIsSkipped(t *testing.T) {
	fake := &fakeChecker{src: track.SourceCustom, canCheck: true}
	svc, store := newTestService(t, fake)

	snap, _ := store.Load()
	ignored := customApp("muted")
	ignored.Ignored = true
	snap.Add(ignored)
	if err := store.Save(snap); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	checked, sum, err := svc.CheckAndSave(context.Background(), []string{"muted"}, nil)
	if err != nil {
		t.Fatalf("CheckAndSave failed: %v", err)
	}
	if len(checked) != 0 || sum.Total != 0 {
		t.Errorf("naming an ignored app must not check it: checked %d, total %d",
			len(checked), sum.Total)
	}
	if fake.calls.Load() != 0 {
		t.Errorf("checker ran %d times, want 0", fake.calls.Load())
	}
}

func TestCheckBatch_IsolatesFailures(t *testing.T) {
	fake := &fakeChecker{
		src:      track.SourceCustom,
		canCheck: true,
		results: map[string]track.UpdateInfo{
			"good-1": {LatestVersion: "2.0"},
			"bad":    {Error: "HTTP 500"},
			"good-2": {LatestVersion: "1.0"},
		},
	}
	svc, _ := newTestService(t, fake)

	apps := []*track.App{customApp("good-1"), customApp("bad"), customApp("good-2")}
	apps[0].InstalledVersion = "1.0"
	apps[2].InstalledVersion = "1.0"

	sum := svc.CheckBatch(context.Background(), apps, nil)
	if sum.Total != 3 || sum.Errors != 1 || sum.Updates != 1 {
		t.Errorf("summary = %+v, want total 3, errors 1, updates 1", sum)
	}
	if apps[0].LatestVersion != "2.0" || apps[2].LatestVersion != "1.0" {
		t.Error("one failing check must not affect the others")
	}
	if apps[1].LastError != "HTTP 500" {
		t.Errorf("failed app LastError = %q", apps[1].LastError)
	}
}

func TestCheckBatch_RespectsConcurrencyCap(t *testing.T) {
	fake := &fakeChecker{
		src:      track.SourceCustom,
		canCheck: true,
		delay:    20 * time.Millisecond,
	}
	store := track.NewStore(t.TempDir())
	svc := New(checker.NewRegistryFrom(fake), store, WithMaxConcurrent(2))

	apps := make([]*track.App, 10)
	for i := range apps {
		apps[i] = customApp("app")
	}

	start := time.Now()
	svc.CheckBatch(context.Background(), apps, nil)
	elapsed := time.Since(start)

	if got := fake.maxSeen.Load(); got > 2 {
		t.Errorf("observed %d concurrent checks, cap is 2", got)
	}
	// 10 checks of 20ms at concurrency 2 need at least 5 waves.
	if elapsed < 100*time.Millisecond {
		t.Errorf("batch finished in %v, too fast for a cap of 2", elapsed)
	}
}

func TestCheckBatch_ProgressIsSerializedAndComplete(t *testing.T) {
	fake := &fakeChecker{src: track.SourceCustom, canCheck: true}
	svc, _ := newTestService(t, fake)

	apps := make([]*track.App, 7)
	for i := range apps {
		apps[i] = customApp("app")
	}

	var seen []int
	svc.CheckBatch(context.Background(), apps, func(_ *track.App, done, total int) {
		if total != 7 {
			t.Errorf("total = %d, want 7", total)
		}
		seen = append(seen, done)
	})

	if len(seen) != 7 {
		t.Fatalf("progress fired %d times, want 7", len(seen))
	}
	for i, d := range seen {
		if d != i+1 {
			t.Fatalf("done values not sequential: %v", seen)
		}
	}
}

func TestCheckAndSave_PersistsAndSkipsIgnored(t *testing.T) {
	fake := &fakeChecker{
		src:      track.SourceCustom,
		canCheck: true,
		results: map[string]track.UpdateInfo{
			"active": {LatestVersion: "2.0"},
		},
	}
	svc, store := newTestService(t, fake)

	snap, _ := store.Load()
	active := customApp("active")
	ignored := customApp("ignored")
	ignored.Ignored = true
	snap.Add(active)
	snap.Add(ignored)
	if err := store.Save(snap); err != nil {
		t.Fatalf("seed save failed: %v", err)
	}

	checked, sum, err := svc.CheckAndSave(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("CheckAndSave failed: %v", err)
	}
	if len(checked) != 1 || checked[0].Name != "active" {
		t.Fatalf("expected only the active app to be checked, got %d", len(checked))
	}
	if sum.Total != 1 {
		t.Errorf("summary total = %d, want 1", sum.Total)
	}

	reloaded, err := store.Load()
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if got := reloaded.Get(active.ID); got == nil || got.LatestVersion != "2.0" {
		t.Error("check result was not persisted")
	}
	if got := reloaded.Get(ignored.ID); got == nil || !got.LastChecked.IsZero() {
		t.Error("ignored app should not have been checked")
	}
}

func TestCheckAndSave_UnknownRef(t *testing.T) {
	fake := &fakeChecker{src: track.SourceCustom, canCheck: true}
	svc, _ := newTestService(t, fake)

	_, _, err := svc.CheckAndSave(context.Background(), []string{"nope"}, nil)
	var unknown *UnknownAppError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want *UnknownAppError", err)
	}
	if unknown.ID != "nope" {
		t.Errorf("unknown.ID = %q", unknown.ID)
	}
}

func TestFind_ByIDThenName(t *testing.T) {
	snap := &track.Snapshot{}
	app := customApp("Firefox")
	snap.Add(app)

	if got := Find(snap, app.ID); got != app {
		t.Error("Find by id failed")
	}
	if got := Find(snap, "firefox"); got != app {
		t.Error("Find by case-insensitive name failed")
	}
	if got := Find(snap, "chrome"); got != nil {
		t.Errorf("Find for absent ref = %v, want nil", got)
	}
}
