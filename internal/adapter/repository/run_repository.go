package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
	"github.com/casefile-labs/bwc-pipeline/internal/domain/repositories"
)

// terminalStatuses are final; every status-changing write excludes them
// so a finished run can never be revived or overwritten.
var terminalStatuses = []entities.RunStatus{
	entities.RunStatusComplete,
	entities.RunStatusFailed,
	entities.RunStatusCancelled,
}

// RunRepository handles analysis run data operations
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new analysis run repository
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// CreateRun persists a newly submitted run
func (r *RunRepository) CreateRun(ctx context.Context, run *entities.AnalysisRun) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// GetRunByID retrieves a run by ID. Returns (nil, nil) when no run exists.
func (r *RunRepository) GetRunByID(ctx context.Context, runID uuid.UUID) (*entities.AnalysisRun, error) {
	var run entities.AnalysisRun
	if err := r.db.WithContext(ctx).Where("id = ?", runID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// ClaimRun atomically moves a queued run into the hashing stage. Only one
// worker succeeds when several see the same queued run; the losers get
// claimed=false and move on.
func (r *RunRepository) ClaimRun(ctx context.Context, runID uuid.UUID) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&entities.AnalysisRun{}).
		Where("id = ? AND status = ?", runID, entities.RunStatusQueued).
		Updates(map[string]interface{}{
			"status":     entities.RunStatusHashing,
			"progress":   entities.RunStatusHashing.Progress(),
			"started_at": time.Now(),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// CancelQueuedRun cancels a run only while it is still queued. A false
// return means a worker claimed it first; the caller must go through
// cooperative cancellation instead.
func (r *RunRepository) CancelQueuedRun(ctx context.Context, runID uuid.UUID) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&entities.AnalysisRun{}).
		Where("id = ? AND status = ?", runID, entities.RunStatusQueued).
		Updates(map[string]interface{}{
			"status":       entities.RunStatusCancelled,
			"progress":     entities.RunStatusCancelled.Progress(),
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateRunStatus advances the stage marker and its derived progress.
// Returns ErrRunTerminal when the run already reached a terminal state.
func (r *RunRepository) UpdateRunStatus(ctx context.Context, runID uuid.UUID, status entities.RunStatus) error {
	result := r.db.WithContext(ctx).
		Model(&entities.AnalysisRun{}).
		Where("id = ? AND status NOT IN ?", runID, terminalStatuses).
		Updates(map[string]interface{}{
			"status":     status,
			"progress":   status.Progress(),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrRunTerminal
	}
	return nil
}

// ListRunsByCase retrieves all runs filed under a case number
func (r *RunRepository) ListRunsByCase(ctx context.Context, caseNumber string) ([]entities.AnalysisRun, error) {
	var runs []entities.AnalysisRun
	if err := r.db.WithContext(ctx).
		Where("case_number = ?", caseNumber).
		Order("created_at DESC").
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// ListRunsByStatus retrieves runs in a given stage, oldest first
func (r *RunRepository) ListRunsByStatus(ctx context.Context, status entities.RunStatus, limit int) ([]entities.AnalysisRun, error) {
	var runs []entities.AnalysisRun
	if limit == 0 {
		limit = 100
	}
	if err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// ListStaleRuns retrieves in-flight runs that have not been touched since
// updatedBefore. A run sitting mid-pipeline past that point lost its worker.
func (r *RunRepository) ListStaleRuns(ctx context.Context, updatedBefore time.Time, limit int) ([]entities.AnalysisRun, error) {
	var runs []entities.AnalysisRun
	if limit == 0 {
		limit = 100
	}
	inFlight := []entities.RunStatus{
		entities.RunStatusHashing,
		entities.RunStatusTranscribing,
		entities.RunStatusDiarizing,
		entities.RunStatusMerging,
		entities.RunStatusExtracting,
		entities.RunStatusDetecting,
	}
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", inFlight, updatedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// MarkRunComplete persists the frozen report and the terminal status
// together. Returns ErrRunTerminal when the run was already terminated
// (e.g. cancelled while the report was being assembled); the report is
// then discarded.
func (r *RunRepository) MarkRunComplete(ctx context.Context, run *entities.AnalysisRun) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}
	result := r.db.WithContext(ctx).
		Model(&entities.AnalysisRun{}).
		Where("id = ? AND status NOT IN ?", run.ID, terminalStatuses).
		Updates(map[string]interface{}{
			"status":       entities.RunStatusComplete,
			"progress":     entities.RunStatusComplete.Progress(),
			"report":       run.Report,
			"completed_at": run.CompletedAt,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrRunTerminal
	}
	return nil
}

// MarkRunFailed records the terminal failure and its reason
func (r *RunRepository) MarkRunFailed(ctx context.Context, runID uuid.UUID, errMsg string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&entities.AnalysisRun{}).
		Where("id = ? AND status NOT IN ?", runID, terminalStatuses).
		Updates(map[string]interface{}{
			"status":       entities.RunStatusFailed,
			"progress":     entities.RunStatusFailed.Progress(),
			"last_error":   errMsg,
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrRunTerminal
	}
	return nil
}

// MarkRunCancelled records a cooperative cancellation
func (r *RunRepository) MarkRunCancelled(ctx context.Context, runID uuid.UUID) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&entities.AnalysisRun{}).
		Where("id = ? AND status NOT IN ?", runID, terminalStatuses).
		Updates(map[string]interface{}{
			"status":       entities.RunStatusCancelled,
			"progress":     entities.RunStatusCancelled.Progress(),
			"completed_at": now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrRunTerminal
	}
	return nil
}
