package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/dashgen/backend/internal/analysis"
	"github.com/dashgen/backend/internal/jobs"
	"github.com/dashgen/backend/internal/storage/models"
	"github.com/dashgen/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_jobs (
		job_id TEXT PRIMARY KEY,
		file_ref TEXT NOT NULL,
		state TEXT NOT NULL,
		failed_stage TEXT,
		error TEXT,
		profiles_json TEXT,
		relations_json TEXT,
		dashboard_json TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_state ON analysis_jobs(state);
	CREATE INDEX IF NOT EXISTS idx_jobs_updated ON analysis_jobs(updated_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// SaveJob archives a terminal snapshot. Re-saving the same job overwrites the
// previous record, so the write is idempotent.
func (c *Client) SaveJob(ctx context.Context, snap *jobs.Snapshot) error {
	record, err := recordFromSnapshot(snap)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO analysis_jobs (job_id, file_ref, state, failed_stage, error,
			profiles_json, relations_json, dashboard_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			state = excluded.state,
			failed_stage = excluded.failed_stage,
			error = excluded.error,
			profiles_json = excluded.profiles_json,
			relations_json = excluded.relations_json,
			dashboard_json = excluded.dashboard_json,
			updated_at = excluded.updated_at
	`

	_, err = c.db.ExecContext(ctx, query,
		record.JobID,
		record.FileRef,
		record.State,
		record.FailedStage,
		record.Error,
		record.ProfilesJSON,
		record.RelationsJSON,
		record.DashboardJSON,
		record.CreatedAt.Unix(),
		record.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save job record: %w", err)
	}

	logger.Debug("Job snapshot archived", zap.String("job_id", snap.JobID), zap.String("state", string(snap.State)))
	return nil
}

func (c *Client) LoadJob(ctx context.Context, jobID string) (*jobs.Snapshot, error) {
	query := `SELECT job_id, file_ref, state, failed_stage, error,
		profiles_json, relations_json, dashboard_json, created_at, updated_at
		FROM analysis_jobs WHERE job_id = ?`

	var record models.JobRecord
	var createdAt, updatedAt int64

	err := c.db.QueryRowContext(ctx, query, jobID).Scan(
		&record.JobID,
		&record.FileRef,
		&record.State,
		&record.FailedStage,
		&record.Error,
		&record.ProfilesJSON,
		&record.RelationsJSON,
		&record.DashboardJSON,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s not found in archive", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job record: %w", err)
	}

	record.CreatedAt = time.Unix(createdAt, 0)
	record.UpdatedAt = time.Unix(updatedAt, 0)

	return snapshotFromRecord(&record)
}

// DeleteOlderThan applies the retention policy to archived jobs.
func (c *Client) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM analysis_jobs WHERE updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old job records: %w", err)
	}
	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		logger.Info("Expired job records deleted", zap.Int64("count", deleted))
	}
	return deleted, nil
}

func recordFromSnapshot(snap *jobs.Snapshot) (*models.JobRecord, error) {
	profilesJSON, err := json.Marshal(snap.Profiles)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal profiles: %w", err)
	}
	relationsJSON, err := json.Marshal(snap.Relationships)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal relationships: %w", err)
	}
	dashboardJSON, err := json.Marshal(snap.Dashboard)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dashboard: %w", err)
	}

	return &models.JobRecord{
		JobID:         snap.JobID,
		FileRef:       snap.FileRef,
		State:         string(snap.State),
		FailedStage:   snap.FailedStage,
		Error:         snap.Error,
		ProfilesJSON:  string(profilesJSON),
		RelationsJSON: string(relationsJSON),
		DashboardJSON: string(dashboardJSON),
		CreatedAt:     snap.CreatedAt,
		UpdatedAt:     snap.UpdatedAt,
	}, nil
}

func snapshotFromRecord(record *models.JobRecord) (*jobs.Snapshot, error) {
	snap := &jobs.Snapshot{
		JobID:       record.JobID,
		FileRef:     record.FileRef,
		State:       jobs.State(record.State),
		FailedStage: record.FailedStage,
		Error:       record.Error,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}

	if record.ProfilesJSON != "" {
		if err := json.Unmarshal([]byte(record.ProfilesJSON), &snap.Profiles); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profiles: %w", err)
		}
	}
	if record.RelationsJSON != "" {
		if err := json.Unmarshal([]byte(record.RelationsJSON), &snap.Relationships); err != nil {
			return nil, fmt.Errorf("failed to unmarshal relationships: %w", err)
		}
	}
	if record.DashboardJSON != "" && record.DashboardJSON != "null" {
		var dashboard analysis.DashboardConfig
		if err := json.Unmarshal([]byte(record.DashboardJSON), &dashboard); err != nil {
			return nil, fmt.Errorf("failed to unmarshal dashboard: %w", err)
		}
		snap.Dashboard = &dashboard
	}

	return snap, nil
}
