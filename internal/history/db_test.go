package history

import (
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return s
}

func sampleRun(start time.Time) (*Run, []*Result) {
	run := &Run{
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
		Total:      2,
		Updates:    1,
		Errors:     1,
	}
	results := []*Result{
		{
			AppID:            "app-1",
			Name:             "Firefox",
			Source:           "winget",
			InstalledVersion: "120.0",
			LatestVersion:    "121.0",
			CheckedAt:        start.Add(time.Second),
		},
		{
			AppID:     "app-2",
			Name:      "brokentool",
			Source:    "custom",
			Error:     "could not extract a version from the page",
			CheckedAt: start.Add(2 * time.Second),
		},
	}
	return run, results
}

func TestListRuns_NoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	// CreateSchema deliberately not called; simulates a fresh database.
	_, err = s.ListRuns(10)
	if err == nil {
		t.Fatal("ListRuns() should return an error on an uninitialized DB")
	}
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListRuns() error = %v; want errors.Is(err, ErrNotInitialized)", err)
	}
}

func TestRecordRun_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	run, results := sampleRun(start)
	if err := s.RecordRun(run, results); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if run.ID == 0 {
		t.Error("RecordRun should fill in the run ID")
	}

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.Total != 2 || got.Updates != 1 || got.Errors != 1 {
		t.Errorf("unexpected run counters: %+v", got)
	}
	if !got.StartedAt.Equal(start) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, start)
	}
}

func TestResultsForRun(t *testing.T) {
	s := newTestStore(t)

	run, results := sampleRun(time.Now().UTC().Truncate(time.Second))
	if err := s.RecordRun(run, results); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	got, err := s.ResultsForRun(run.ID)
	if err != nil {
		t.Fatalf("ResultsForRun failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	// Ordered by name.
	if got[0].Name != "Firefox" || got[1].Name != "brokentool" {
		t.Errorf("unexpected order: %q, %q", got[0].Name, got[1].Name)
	}
	if got[1].Error == "" {
		t.Error("failed check should keep its error message")
	}
}

func TestResultsForApp_NewestFirst(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 3; i++ {
		run := &Run{StartedAt: base, FinishedAt: base, Total: 1}
		result := &Result{
			AppID:         "app-1",
			Name:          "Firefox",
			Source:        "winget",
			LatestVersion: []string{"1.0", "1.1", "1.2"}[i],
			CheckedAt:     base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.RecordRun(run, []*Result{result}); err != nil {
			t.Fatalf("RecordRun %d failed: %v", i, err)
		}
	}

	got, err := s.ResultsForApp("app-1", 2)
	if err != nil {
		t.Fatalf("ResultsForApp failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results (limit), got %d", len(got))
	}
	if got[0].LatestVersion != "1.2" || got[1].LatestVersion != "1.1" {
		t.Errorf("results not newest-first: %q, %q", got[0].LatestVersion, got[1].LatestVersion)
	}
}

func TestRunDeletionCascades(t *testing.T) {
	s := newTestStore(t)

	run, results := sampleRun(time.Now().UTC())
	if err := s.RecordRun(run, results); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	if _, err := s.db.Exec("DELETE FROM runs WHERE id = ?", run.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	got, err := s.ResultsForRun(run.ID)
	if err != nil {
		t.Fatalf("ResultsForRun failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("results should cascade on run deletion, got %d", len(got))
	}
}
