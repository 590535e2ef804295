package models

import "time"

// JobRecord is the archived form of a terminal analysis job. Profile,
// relationship and dashboard payloads are stored as JSON so the snapshot
// round-trips losslessly across a restart.
type JobRecord struct {
	JobID         string
	FileRef       string
	State         string
	FailedStage   string
	Error         string
	ProfilesJSON  string
	RelationsJSON string
	DashboardJSON string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
