package entities

// DiscrepancyType tags the discrepancy variant
type DiscrepancyType string

const (
	DiscrepancyTypeTimeline      DiscrepancyType = "timeline"
	DiscrepancyTypeStatement     DiscrepancyType = "statement"
	DiscrepancyTypeContradiction DiscrepancyType = "contradiction"
)

// DiscrepancySeverity grades a discrepancy
type DiscrepancySeverity string

const (
	SeverityMinor    DiscrepancySeverity = "minor"
	SeverityMajor    DiscrepancySeverity = "major"
	SeverityCritical DiscrepancySeverity = "critical"
)

// Discrepancy is an immutable structured observation of a mismatch between
// the recording-derived record and an external document. It carries no
// legal conclusion; the significance annotation is advisory only.
type Discrepancy struct {
	Type                  DiscrepancyType     `json:"type"`
	Severity              DiscrepancySeverity `json:"severity"`
	EvidentiaryAssertion  string              `json:"evidentiary_assertion"`
	ConflictingAssertion  string              `json:"conflicting_assertion"`
	ExternalSource        string              `json:"external_source"`
	Description           string              `json:"description"`
	PotentialSignificance string              `json:"potential_significance,omitempty"`
}

// DedupeKey identifies a discrepancy for deduplication
func (d Discrepancy) DedupeKey() string {
	return string(d.Type) + "|" + d.EvidentiaryAssertion + "|" + d.ConflictingAssertion
}

// ExternalEvent is one entry of the caller-supplied external timeline
// (e.g. a dispatch/CAD log), timed relative to recording start
type ExternalEvent struct {
	EventType        string  `json:"event_type" validate:"required"`
	TimestampSeconds float64 `json:"timestamp_seconds" validate:"gte=0"`
	Actor            string  `json:"actor"`
}

// DerivedEvent is an event inferred from the recording itself via
// keyword/entity heuristics during discrepancy detection
type DerivedEvent struct {
	EventType        string  `json:"event_type"`
	TimestampSeconds float64 `json:"timestamp_seconds"`
	SegmentIndex     int     `json:"segment_index"`
	Snippet          string  `json:"snippet"`
}
