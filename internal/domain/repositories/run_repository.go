package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
)

// ErrRunTerminal is returned by status-changing writes when the run has
// already reached a terminal state. Terminal statuses are final: no
// write may move a run out of complete, failed, or cancelled.
var ErrRunTerminal = errors.New("analysis run is already terminal")

// RunRepository defines persistence operations for analysis runs
type RunRepository interface {
	CreateRun(ctx context.Context, run *entities.AnalysisRun) error
	GetRunByID(ctx context.Context, runID uuid.UUID) (*entities.AnalysisRun, error)
	ClaimRun(ctx context.Context, runID uuid.UUID) (bool, error)
	CancelQueuedRun(ctx context.Context, runID uuid.UUID) (bool, error)
	UpdateRunStatus(ctx context.Context, runID uuid.UUID, status entities.RunStatus) error
	ListRunsByCase(ctx context.Context, caseNumber string) ([]entities.AnalysisRun, error)
	ListRunsByStatus(ctx context.Context, status entities.RunStatus, limit int) ([]entities.AnalysisRun, error)
	ListStaleRuns(ctx context.Context, updatedBefore time.Time, limit int) ([]entities.AnalysisRun, error)
	MarkRunComplete(ctx context.Context, run *entities.AnalysisRun) error
	MarkRunFailed(ctx context.Context, runID uuid.UUID, errMsg string) error
	MarkRunCancelled(ctx context.Context, runID uuid.UUID) error
}
