package entities

import (
	"time"
)

// ReportFlags is the queryable degradation surface of a report. Every
// best-effort or partially-failed condition is visible here; nothing is
// silently swallowed.
type ReportFlags struct {
	TranscriptionDegraded    bool `json:"transcription_degraded"`
	DiarizationDegraded      bool `json:"diarization_degraded"`
	EntityExtractionDegraded bool `json:"entity_extraction_degraded"`
	DeadlineExceeded         bool `json:"deadline_exceeded"`
}

// Degraded reports whether any capability contributed less than fully
// verified output
func (f ReportFlags) Degraded() bool {
	return f.TranscriptionDegraded || f.DiarizationDegraded ||
		f.EntityExtractionDegraded || f.DeadlineExceeded
}

// ReportStats are the summary statistics computed at assembly
type ReportStats struct {
	DurationSeconds   float64                     `json:"duration_seconds"`
	SpeakerCount      int                         `json:"speaker_count"`
	SegmentCount      int                         `json:"segment_count"`
	EntityCount       int                         `json:"entity_count"`
	DiscrepancyCounts map[DiscrepancySeverity]int `json:"discrepancy_counts"`
	DiscrepancyTotal  int                         `json:"discrepancy_total"`
}

// AnalysisReport is the root aggregate of one analysis run. Once assembled
// it is immutable; every export format is a pure projection of this one
// structure, so all formats agree by construction.
type AnalysisReport struct {
	Evidence       EvidenceFile        `json:"evidence"`
	AnalyzedAt     time.Time           `json:"analyzed_at"`
	CaseNumber     string              `json:"case_number,omitempty"`
	EvidenceNumber string              `json:"evidence_number,omitempty"`
	Segments       []TranscriptSegment `json:"segments"`
	Speakers       SpeakerMap          `json:"speakers"`
	Entities       []Entity            `json:"entities"`
	Discrepancies  []Discrepancy       `json:"discrepancies"`
	Flags          ReportFlags         `json:"flags"`
	Warnings       []string            `json:"warnings,omitempty"`
	Stats          ReportStats         `json:"stats"`
}

// FullyVerified reports whether every capability completed without
// degradation
func (r *AnalysisReport) FullyVerified() bool {
	return !r.Flags.Degraded()
}
