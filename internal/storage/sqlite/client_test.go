package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashgen/backend/internal/analysis"
	"github.com/dashgen/backend/internal/jobs"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.InitSchema())
	return client
}

func completedSnapshot(jobID string, updatedAt time.Time) *jobs.Snapshot {
	return &jobs.Snapshot{
		JobID:   jobID,
		FileRef: "sales.csv",
		State:   jobs.StateCompleted,
		Profiles: []analysis.ColumnProfile{
			{
				Name: "sales", Type: analysis.TypeNumeric,
				RowCount: 10, DistinctCount: 8,
				Numeric: &analysis.NumericStats{Count: 10, Min: 1, Max: 9, Mean: 5},
			},
		},
		Relationships: []analysis.RelationshipCandidate{
			{ColumnA: "date", ColumnB: "sales", Kind: analysis.KindTemporalTrend, Strength: 0.9},
		},
		Dashboard: &analysis.DashboardConfig{
			Charts: []analysis.ChartSpec{
				{
					Type:        analysis.ChartLine,
					Bindings:    []analysis.FieldBinding{{Role: "x", Column: "date"}, {Role: "y", Column: "sales"}},
					Aggregation: analysis.AggAvg,
					Score:       0.95,
					Title:       "sales over date",
				},
			},
		},
		CreatedAt: updatedAt.Add(-time.Minute),
		UpdatedAt: updatedAt,
	}
}

func TestSaveAndLoadJobRoundTrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	snap := completedSnapshot("job-1", time.Now())
	require.NoError(t, client.SaveJob(ctx, snap))

	loaded, err := client.LoadJob(ctx, "job-1")
	require.NoError(t, err)

	assert.Equal(t, snap.JobID, loaded.JobID)
	assert.Equal(t, snap.State, loaded.State)
	assert.Equal(t, snap.Profiles, loaded.Profiles)
	assert.Equal(t, snap.Relationships, loaded.Relationships)
	require.NotNil(t, loaded.Dashboard)
	assert.Equal(t, snap.Dashboard.Charts, loaded.Dashboard.Charts)
	assert.Equal(t, snap.UpdatedAt.Unix(), loaded.UpdatedAt.Unix())
}

func TestSaveJobIsIdempotent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	snap := completedSnapshot("job-1", time.Now())
	require.NoError(t, client.SaveJob(ctx, snap))
	require.NoError(t, client.SaveJob(ctx, snap))

	loaded, err := client.LoadJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateCompleted, loaded.State)
}

func TestLoadJobNotFound(t *testing.T) {
	client := newTestClient(t)

	_, err := client.LoadJob(context.Background(), "missing")
	assert.Error(t, err)
}

func TestSaveFailedJobWithoutDashboard(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	snap := &jobs.Snapshot{
		JobID:       "job-2",
		FileRef:     "broken.csv",
		State:       jobs.StateFailed,
		FailedStage: "profiling",
		Error:       "profiling: dataset has no rows or columns",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	require.NoError(t, client.SaveJob(ctx, snap))

	loaded, err := client.LoadJob(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, jobs.StateFailed, loaded.State)
	assert.Equal(t, "profiling", loaded.FailedStage)
	assert.Nil(t, loaded.Dashboard)
	assert.Empty(t, loaded.Profiles)
}

func TestDeleteOlderThan(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	old := completedSnapshot("old-job", time.Now().Add(-48*time.Hour))
	fresh := completedSnapshot("fresh-job", time.Now())
	require.NoError(t, client.SaveJob(ctx, old))
	require.NoError(t, client.SaveJob(ctx, fresh))

	deleted, err := client.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = client.LoadJob(ctx, "old-job")
	assert.Error(t, err)
	_, err = client.LoadJob(ctx, "fresh-job")
	assert.NoError(t, err)
}
