package history

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordRun inserts a run and its per-app results in one transaction.
// The run's ID field is filled in on success.
func (s *Store) RecordRun(run *Run, results []*Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO runs (started_at, finished_at, total, updates, errors)
		VALUES (?, ?, ?, ?, ?)`,
		run.StartedAt.Format(time.RFC3339),
		run.FinishedAt.Format(time.RFC3339),
		run.Total, run.Updates, run.Errors,
	)
	if err != nil {
		return mapSchemaErr(fmt.Errorf("failed to insert run: %w", err))
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get run id: %w", err)
	}

	for _, r := range results {
		_, err := tx.Exec(`
			INSERT INTO results (run_id, app_id, name, source, installed_version, latest_version, error, checked_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.AppID, r.Name, r.Source,
			r.InstalledVersion, r.LatestVersion, r.Error,
			r.CheckedAt.Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to insert result for %s: %w", r.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	run.ID = runID
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, total, updates, errors
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, mapSchemaErr(fmt.Errorf("failed to list runs: %w", err))
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		var started, finished string
		if err := rows.Scan(&run.ID, &started, &finished, &run.Total, &run.Updates, &run.Errors); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, started)
		run.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// ResultsForRun returns every per-app result of one run.
func (s *Store) ResultsForRun(runID int64) ([]*Result, error) {
	rows, err := s.db.Query(`
		SELECT run_id, app_id, name, source, installed_version, latest_version, error, checked_at
		FROM results WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, mapSchemaErr(fmt.Errorf("failed to list results: %w", err))
	}
	defer rows.Close()
	return scanResults(rows)
}

// ResultsForApp returns an app's recent results, newest first.
func (s *Store) ResultsForApp(appID string, limit int) ([]*Result, error) {
	rows, err := s.db.Query(`
		SELECT run_id, app_id, name, source, installed_version, latest_version, error, checked_at
		FROM results WHERE app_id = ? ORDER BY id DESC LIMIT ?`, appID, limit)
	if err != nil {
		return nil, mapSchemaErr(fmt.Errorf("failed to list app results: %w", err))
	}
	defer rows.Close()
	return scanResults(rows)
}

func scanResults(rows *sql.Rows) ([]*Result, error) {
	var results []*Result
	for rows.Next() {
		var r Result
		var checked string
		if err := rows.Scan(&r.RunID, &r.AppID, &r.Name, &r.Source,
			&r.InstalledVersion, &r.LatestVersion, &r.Error, &checked); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.CheckedAt, _ = time.Parse(time.RFC3339, checked)
		results = append(results, &r)
	}
	return results, rows.Err()
}
