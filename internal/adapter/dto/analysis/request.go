package analysis

// ExternalEventRequest is one entry of a submitted external timeline
type ExternalEventRequest struct {
	EventType        string  `json:"event_type" validate:"required,min=1,max=100"`
	TimestampSeconds float64 `json:"timestamp_seconds" validate:"gte=0"`
	Actor            string  `json:"actor,omitempty" validate:"omitempty,max=255"`
}

// SubmitAnalysisRequest represents the request to start an analysis run
type SubmitAnalysisRequest struct {
	EvidencePath   string `json:"evidence_path" validate:"required,min=1"`
	DisplayName    string `json:"display_name,omitempty" validate:"omitempty,max=500"`
	AcquiredBy     string `json:"acquired_by" validate:"required,min=1,max=255"`
	Source         string `json:"source,omitempty" validate:"omitempty,max=1000"`
	CaseNumber     string `json:"case_number,omitempty" validate:"omitempty,case_identifier"`
	EvidenceNumber string `json:"evidence_number,omitempty" validate:"omitempty,case_identifier"`

	Roster            []string               `json:"roster,omitempty" validate:"omitempty,dive,min=1,max=255"`
	ExternalTimeline  []ExternalEventRequest `json:"external_timeline,omitempty" validate:"omitempty,dive"`
	TimelineSource    string                 `json:"timeline_source,omitempty" validate:"omitempty,max=255"`
	ExternalNarrative string                 `json:"external_narrative,omitempty"`
	NarrativeSource   string                 `json:"narrative_source,omitempty" validate:"omitempty,max=255"`

	CeilingSeconds int `json:"ceiling_seconds,omitempty" validate:"omitempty,gte=0,lte=86400"`
}
