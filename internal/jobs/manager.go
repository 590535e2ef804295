package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dashgen/backend/internal/analysis"
	"github.com/dashgen/backend/internal/dataset"
	"github.com/dashgen/backend/internal/metrics"
	"github.com/dashgen/backend/pkg/logger"
)

type State string

const (
	StateQueued       State = "queued"
	StateProfiling    State = "profiling"
	StateCorrelating  State = "correlating"
	StateRecommending State = "recommending"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Snapshot is the externally visible view of a job. Snapshots are immutable;
// the manager swaps a fresh one in at every stage boundary, so a reader never
// observes a half-written mix of stages.
type Snapshot struct {
	JobID         string                           `json:"job_id"`
	FileRef       string                           `json:"file_ref"`
	State         State                            `json:"state"`
	FailedStage   string                           `json:"failed_stage,omitempty"`
	Error         string                           `json:"error,omitempty"`
	Profiles      []analysis.ColumnProfile         `json:"profiles,omitempty"`
	Relationships []analysis.RelationshipCandidate `json:"relationships,omitempty"`
	Dashboard     *analysis.DashboardConfig        `json:"dashboard,omitempty"`
	CreatedAt     time.Time                        `json:"created_at"`
	UpdatedAt     time.Time                        `json:"updated_at"`
}

// Archive persists terminal snapshots so status and result queries survive a
// restart. The archive owns eviction of old records.
type Archive interface {
	SaveJob(ctx context.Context, snap *Snapshot) error
	LoadJob(ctx context.Context, jobID string) (*Snapshot, error)
}

type job struct {
	snapshot *Snapshot
	cancel   context.CancelFunc
}

// Manager owns the per-job state machine and the process-wide job registry.
// Each job's pipeline runs on its own goroutine; jobs share no mutable state.
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*job

	loader       dataset.Loader
	opts         analysis.Options
	stageTimeout time.Duration
	archive      Archive
}

func NewManager(loader dataset.Loader, opts analysis.Options, stageTimeout time.Duration, archive Archive) *Manager {
	if stageTimeout <= 0 {
		stageTimeout = 60 * time.Second
	}
	return &Manager{
		jobs:         make(map[string]*job),
		loader:       loader,
		opts:         opts,
		stageTimeout: stageTimeout,
		archive:      archive,
	}
}

// Submit registers a new job for the file reference and schedules its
// pipeline. The job is visible as queued before Submit returns.
func (m *Manager) Submit(fileRef string) (string, error) {
	if fileRef == "" {
		return "", fmt.Errorf("file reference is required")
	}

	jobID := uuid.New().String()
	now := time.Now()
	ctx, cancel := context.WithCancel(context.Background())

	j := &job{
		snapshot: &Snapshot{
			JobID:     jobID,
			FileRef:   fileRef,
			State:     StateQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		cancel: cancel,
	}

	m.mu.Lock()
	m.jobs[jobID] = j
	m.mu.Unlock()

	metrics.JobsSubmitted.Inc()
	logger.Info("Analysis job submitted",
		zap.String("job_id", jobID),
		zap.String("file_ref", fileRef),
	)

	go m.run(ctx, jobID, fileRef)

	return jobID, nil
}

// Status reports the job's state and current stage. Terminal jobs evicted
// from memory are served from the archive.
func (m *Manager) Status(jobID string) (*Snapshot, error) {
	return m.lookup(jobID)
}

// Result returns the dashboard of a completed job. It fails with
// analysis.ErrNotReady for any non-completed state.
func (m *Manager) Result(jobID string) (*analysis.DashboardConfig, error) {
	snap, err := m.lookup(jobID)
	if err != nil {
		return nil, err
	}
	if snap.State != StateCompleted {
		return nil, analysis.ErrNotReady
	}
	return snap.Dashboard, nil
}

// ProfileSnapshot exposes the finished profile and relationship set for
// read-only consumers such as the chat engine.
func (m *Manager) ProfileSnapshot(jobID string) (*Snapshot, error) {
	snap, err := m.lookup(jobID)
	if err != nil {
		return nil, err
	}
	if snap.State != StateCompleted {
		return nil, analysis.ErrNotReady
	}
	return snap, nil
}

// Cancel requests cancellation. The running stage is abandoned at its next
// safe checkpoint and the job lands in failed with a cancellation reason.
func (m *Manager) Cancel(jobID string) error {
	m.mu.RLock()
	j, ok := m.jobs[jobID]
	var snap *Snapshot
	if ok {
		snap = j.snapshot
	}
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %s not found", jobID)
	}
	if snap.State.Terminal() {
		return nil
	}
	j.cancel()
	logger.Info("Analysis job cancellation requested", zap.String("job_id", jobID))
	return nil
}

// EvictTerminal drops terminal jobs older than maxAge from the in-memory
// registry. Archived records keep serving status and result queries.
func (m *Manager) EvictTerminal(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, j := range m.jobs {
		if j.snapshot.State.Terminal() && j.snapshot.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
			evicted++
		}
	}
	if evicted > 0 {
		logger.Info("Evicted terminal jobs", zap.Int("count", evicted))
	}
	return evicted
}

func (m *Manager) lookup(jobID string) (*Snapshot, error) {
	m.mu.RLock()
	j, ok := m.jobs[jobID]
	var snap *Snapshot
	if ok {
		snap = j.snapshot
	}
	m.mu.RUnlock()
	if ok {
		return snap, nil
	}

	if m.archive != nil {
		snap, err := m.archive.LoadJob(context.Background(), jobID)
		if err == nil && snap != nil {
			return snap, nil
		}
	}
	return nil, fmt.Errorf("job %s not found", jobID)
}

// swap publishes the next immutable snapshot for the job. Terminal snapshots
// are never replaced: an abandoned stage goroutine may outlive a timeout or
// cancellation and still try to publish its result, which must be discarded.
func (m *Manager) swap(jobID string, mutate func(Snapshot) Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID]
	if !ok {
		return
	}
	if j.snapshot.State.Terminal() {
		return
	}
	next := mutate(*j.snapshot)
	next.UpdatedAt = time.Now()
	j.snapshot = &next
}

// run drives the pipeline: load+infer+profile, correlate, recommend+assemble.
// Suspension happens only at stage boundaries; each stage either stores its
// output or moves the job to failed.
func (m *Manager) run(ctx context.Context, jobID, fileRef string) {
	var (
		ds       *dataset.Dataset
		types    map[string]analysis.ColumnType
		profiles []analysis.ColumnProfile
		rels     []analysis.RelationshipCandidate
	)

	stages := []struct {
		state State
		fn    func(context.Context) error
	}{
		{StateProfiling, func(stageCtx context.Context) error {
			var err error
			ds, err = m.loader.Load(stageCtx, fileRef)
			if err != nil {
				return fmt.Errorf("failed to load dataset: %w", err)
			}
			types, err = analysis.InferSchema(ds, m.opts)
			if err != nil {
				return err
			}
			profiles, err = analysis.ProfileDataset(ds, types, m.opts)
			if err != nil {
				return err
			}
			m.swap(jobID, func(s Snapshot) Snapshot {
				s.Profiles = profiles
				return s
			})
			return nil
		}},
		{StateCorrelating, func(stageCtx context.Context) error {
			var err error
			rels, err = analysis.AnalyzeRelationships(ds, profiles, m.opts)
			if err != nil {
				return err
			}
			m.swap(jobID, func(s Snapshot) Snapshot {
				s.Relationships = rels
				return s
			})
			return nil
		}},
		{StateRecommending, func(stageCtx context.Context) error {
			specs := analysis.Recommend(profiles, rels, m.opts)
			dashboard := analysis.Assemble(specs, m.opts)
			metrics.ChartsRecommended.Observe(float64(len(dashboard.Charts)))
			m.swap(jobID, func(s Snapshot) Snapshot {
				s.Dashboard = &dashboard
				return s
			})
			return nil
		}},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			m.fail(jobID, string(stage.state), fmt.Errorf("job cancelled: %w", err))
			return
		}

		m.swap(jobID, func(s Snapshot) Snapshot {
			s.State = stage.state
			return s
		})

		start := time.Now()
		err := m.runStage(ctx, string(stage.state), stage.fn)
		metrics.StageDuration.WithLabelValues(string(stage.state)).Observe(time.Since(start).Seconds())

		if err != nil {
			m.fail(jobID, string(stage.state), err)
			return
		}
	}

	m.swap(jobID, func(s Snapshot) Snapshot {
		s.State = StateCompleted
		return s
	})
	m.finalize(jobID)

	metrics.JobsCompleted.Inc()
	logger.Info("Analysis job completed",
		zap.String("job_id", jobID),
		zap.Int("profiles", len(profiles)),
		zap.Int("relationships", len(rels)),
	)
}

// runStage executes one stage under its time bound. On timeout or
// cancellation the stage goroutine is abandoned and its eventual result
// discarded; a pathological file cannot stall the worker past the bound.
func (m *Manager) runStage(ctx context.Context, name string, fn func(context.Context) error) error {
	stageCtx, cancel := context.WithTimeout(ctx, m.stageTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(stageCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-stageCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("job cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("stage %s exceeded %s: %w", name, m.stageTimeout, analysis.ErrStageTimeout)
	}
}

func (m *Manager) fail(jobID, stage string, err error) {
	stageErr := &analysis.StageError{Stage: stage, Err: err}

	m.swap(jobID, func(s Snapshot) Snapshot {
		s.State = StateFailed
		s.FailedStage = stage
		s.Error = stageErr.Error()
		return s
	})
	m.finalize(jobID)

	metrics.JobsFailed.WithLabelValues(stage).Inc()
	logger.Error("Analysis job failed",
		zap.String("job_id", jobID),
		zap.String("stage", stage),
		zap.Error(err),
	)
}

// finalize archives the terminal snapshot. The dataset itself is never
// retained past this point; only derived results persist.
func (m *Manager) finalize(jobID string) {
	if m.archive == nil {
		return
	}
	snap, err := m.lookup(jobID)
	if err != nil {
		return
	}
	if err := m.archive.SaveJob(context.Background(), snap); err != nil {
		logger.Warn("Failed to archive job snapshot",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}
}
