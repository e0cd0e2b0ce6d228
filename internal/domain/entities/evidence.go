package entities

import (
	"time"
)

// EvidenceFile is the chain-of-custody record for one piece of evidence.
// The SHA-256 digest is the permanent identity key for every downstream
// artifact; the record is never mutated after hashing.
type EvidenceFile struct {
	Path        string    `json:"path"`
	DisplayName string    `json:"display_name"`
	SizeBytes   int64     `json:"size_bytes"`
	SHA256      string    `json:"sha256"`
	AcquiredAt  time.Time `json:"acquired_at"`
	AcquiredBy  string    `json:"acquired_by"`
	Source      string    `json:"source"`
}

// AcquisitionMeta is the caller-supplied provenance recorded at ingestion
type AcquisitionMeta struct {
	AcquiredBy     string
	Source         string
	DisplayName    string
	CaseNumber     string
	EvidenceNumber string
}
