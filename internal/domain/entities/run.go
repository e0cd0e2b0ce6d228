package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RunStatus is a discrete, monotonically increasing stage marker for an
// analysis run
type RunStatus string

const (
	RunStatusQueued       RunStatus = "queued"
	RunStatusHashing      RunStatus = "hashing"
	RunStatusTranscribing RunStatus = "transcribing"
	RunStatusDiarizing    RunStatus = "diarizing"
	RunStatusMerging      RunStatus = "merging"
	RunStatusExtracting   RunStatus = "extracting-entities"
	RunStatusDetecting    RunStatus = "detecting-discrepancies"
	RunStatusComplete     RunStatus = "complete"
	RunStatusFailed       RunStatus = "failed"
	RunStatusCancelled    RunStatus = "cancelled"
)

// Progress maps a stage marker to a coarse completion percentage
func (s RunStatus) Progress() int {
	switch s {
	case RunStatusQueued:
		return 0
	case RunStatusHashing:
		return 5
	case RunStatusTranscribing:
		return 15
	case RunStatusDiarizing:
		return 40
	case RunStatusMerging:
		return 60
	case RunStatusExtracting:
		return 75
	case RunStatusDetecting:
		return 90
	case RunStatusComplete, RunStatusFailed, RunStatusCancelled:
		return 100
	default:
		return 0
	}
}

// Terminal reports whether the status is a terminal state
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed || s == RunStatusCancelled
}

// RunInputs captures the optional external inputs supplied at submission
type RunInputs struct {
	Roster            []string        `json:"roster,omitempty"`
	ExternalTimeline  []ExternalEvent `json:"external_timeline,omitempty"`
	ExternalNarrative string          `json:"external_narrative,omitempty"`
	TimelineSource    string          `json:"timeline_source,omitempty"`
	NarrativeSource   string          `json:"narrative_source,omitempty"`
}

// AnalysisRun is the durable record of one analysis unit of work
type AnalysisRun struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CaseNumber     string    `json:"case_number,omitempty" gorm:"type:varchar(255);index"`
	EvidenceNumber string    `json:"evidence_number,omitempty" gorm:"type:varchar(255);index"`
	EvidencePath   string    `json:"evidence_path" gorm:"type:text;not null"`
	DisplayName    string    `json:"display_name,omitempty" gorm:"type:varchar(500)"`
	AcquiredBy     string    `json:"acquired_by" gorm:"type:varchar(255);not null"`
	Source         string    `json:"source" gorm:"type:text"`

	Status   RunStatus `json:"status" gorm:"type:varchar(50);not null;index;default:'queued'"`
	Progress int       `json:"progress" gorm:"type:integer;default:0"`

	Inputs    RunInputs                           `json:"inputs,omitempty" gorm:"type:jsonb;serializer:json"`
	Report    datatypes.JSONType[*AnalysisReport] `json:"report,omitempty" gorm:"type:jsonb"`
	LastError *string                             `json:"last_error,omitempty" gorm:"type:text"`

	// CeilingSeconds is the caller-configurable wall-clock ceiling;
	// zero means no ceiling beyond the service default.
	CeilingSeconds int `json:"ceiling_seconds,omitempty" gorm:"type:integer;default:0"`

	StartedAt   *time.Time `json:"started_at,omitempty" gorm:"type:timestamp"`
	CompletedAt *time.Time `json:"completed_at,omitempty" gorm:"type:timestamp"`
	CreatedAt   time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (AnalysisRun) TableName() string {
	return "analysis_runs"
}

// NewAnalysisRun creates a queued analysis run
func NewAnalysisRun(path string, meta AcquisitionMeta, inputs RunInputs) *AnalysisRun {
	return &AnalysisRun{
		ID:             uuid.New(),
		CaseNumber:     meta.CaseNumber,
		EvidenceNumber: meta.EvidenceNumber,
		EvidencePath:   path,
		DisplayName:    meta.DisplayName,
		AcquiredBy:     meta.AcquiredBy,
		Source:         meta.Source,
		Status:         RunStatusQueued,
		Progress:       RunStatusQueued.Progress(),
		Inputs:         inputs,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

// AdvanceTo moves the run to a later stage marker. Stage markers only move
// forward; a stale advance is ignored.
func (r *AnalysisRun) AdvanceTo(status RunStatus) {
	if status.Progress() < r.Progress && !status.Terminal() {
		return
	}
	r.Status = status
	r.Progress = status.Progress()
	if r.StartedAt == nil && status != RunStatusQueued {
		now := time.Now()
		r.StartedAt = &now
	}
	r.UpdatedAt = time.Now()
}

// MarkAsComplete attaches the frozen report and terminates the run
func (r *AnalysisRun) MarkAsComplete(report *AnalysisReport) {
	r.Status = RunStatusComplete
	r.Progress = RunStatusComplete.Progress()
	r.Report = datatypes.NewJSONType(report)
	now := time.Now()
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// MarkAsFailed terminates the run with a stated reason
func (r *AnalysisRun) MarkAsFailed(errMsg string) {
	r.Status = RunStatusFailed
	r.Progress = RunStatusFailed.Progress()
	r.LastError = &errMsg
	now := time.Now()
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// MarkAsCancelled records a cooperative cancellation
func (r *AnalysisRun) MarkAsCancelled() {
	r.Status = RunStatusCancelled
	r.Progress = RunStatusCancelled.Progress()
	now := time.Now()
	r.CompletedAt = &now
	r.UpdatedAt = now
}
