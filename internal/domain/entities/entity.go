package entities

import "strings"

// EntityCategory classifies an extracted entity
type EntityCategory string

const (
	EntityCategoryPerson       EntityCategory = "person"
	EntityCategoryLocation     EntityCategory = "location"
	EntityCategoryDateTime     EntityCategory = "date_time"
	EntityCategoryOrganization EntityCategory = "organization"
	EntityCategoryIdentifier   EntityCategory = "identifier"
)

// Entity is a named entity extracted from the merged transcript,
// deduplicated by (category, normalized value)
type Entity struct {
	Category EntityCategory `json:"category"`
	Value    string         `json:"value"`
	// SegmentIndexes are back-references into the report's ordered
	// TranscriptSegments where this entity appears
	SegmentIndexes []int `json:"segment_indexes"`
}

// NormalizeEntityValue canonicalizes an entity value for deduplication
func NormalizeEntityValue(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// DedupeKey returns the deduplication key for an entity
func (e Entity) DedupeKey() string {
	return string(e.Category) + "|" + NormalizeEntityValue(e.Value)
}
