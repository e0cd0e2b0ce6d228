package analysis

import (
	"time"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/report"
)

// SubmitAnalysisResponse acknowledges a queued run
type SubmitAnalysisResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// StatusResponse reflects the durable state of a run
type StatusResponse struct {
	RunID       string     `json:"run_id"`
	Status      string     `json:"status"`
	Progress    int        `json:"progress"`
	CaseNumber  string     `json:"case_number,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ExportResponse carries per-format export outcomes
type ExportResponse struct {
	RunID    string           `json:"run_id"`
	Outcomes []report.Outcome `json:"outcomes"`
}

// NewSubmitResponse builds the submission acknowledgement
func NewSubmitResponse(run *entities.AnalysisRun) *SubmitAnalysisResponse {
	return &SubmitAnalysisResponse{
		RunID:  run.ID.String(),
		Status: string(run.Status),
	}
}

// NewStatusResponse projects a run into its status view
func NewStatusResponse(run *entities.AnalysisRun) *StatusResponse {
	return &StatusResponse{
		RunID:       run.ID.String(),
		Status:      string(run.Status),
		Progress:    run.Progress,
		CaseNumber:  run.CaseNumber,
		LastError:   run.LastError,
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		CreatedAt:   run.CreatedAt,
	}
}
