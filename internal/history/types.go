package history

import "time"

// Run summarizes one batch check: when it ran and how it went.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Updates    int
	Errors     int
}

// Result records the outcome of one app's check within a run.
type Result struct {
	RunID            int64
	AppID            string
	Name             string
	Source           string
	InstalledVersion string
	LatestVersion    string
	Error            string
	CheckedAt        time.Time
}
