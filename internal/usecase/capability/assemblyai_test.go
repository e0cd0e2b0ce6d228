package capability

import (
	"testing"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
)

func word(text string, start, end, confidence float64) entities.WordTimestamp {
	return entities.WordTimestamp{Word: text, Start: start, End: end, Confidence: confidence}
}

func TestChunkWords_BreaksOnSentenceEnd(t *testing.T) {
	words := []entities.WordTimestamp{
		word("Show", 0.0, 0.3, 0.9),
		word("me", 0.3, 0.5, 0.9),
		word("your", 0.5, 0.7, 0.9),
		word("hands.", 0.7, 1.0, 0.9),
		word("Okay.", 1.1, 1.4, 0.8),
	}

	segments := chunkWords(words)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Text != "Show me your hands." {
		t.Fatalf("unexpected first segment text %q", segments[0].Text)
	}
	if segments[0].Start != 0.0 || segments[0].End != 1.0 {
		t.Fatalf("unexpected first segment bounds [%v, %v]", segments[0].Start, segments[0].End)
	}
	if segments[1].Text != "Okay." {
		t.Fatalf("unexpected second segment text %q", segments[1].Text)
	}
}

func TestChunkWords_BreaksOnSilenceGap(t *testing.T) {
	words := []entities.WordTimestamp{
		word("copy", 0.0, 0.4, 0.9),
		word("that", 0.4, 0.6, 0.9),
		// 3 second silence
		word("unit", 3.6, 3.9, 0.9),
		word("responding", 3.9, 4.5, 0.9),
	}

	segments := chunkWords(words)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[1].Start != 3.6 {
		t.Fatalf("second segment should start after the gap, got %v", segments[1].Start)
	}
}

func TestChunkWords_SegmentConfidenceIsMeanOfWords(t *testing.T) {
	words := []entities.WordTimestamp{
		word("ten", 0.0, 0.2, 1.0),
		word("four.", 0.2, 0.4, 0.5),
	}

	segments := chunkWords(words)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if got := segments[0].Confidence; got != 0.75 {
		t.Fatalf("expected mean confidence 0.75, got %v", got)
	}
}

func TestChunkWords_Empty(t *testing.T) {
	if segments := chunkWords(nil); segments != nil {
		t.Fatalf("expected nil for empty word stream, got %v", segments)
	}
}

func TestMapEntityCategory(t *testing.T) {
	cases := []struct {
		entityType string
		want       entities.EntityCategory
		mapped     bool
	}{
		{"person_name", entities.EntityCategoryPerson, true},
		{"location", entities.EntityCategoryLocation, true},
		{"date", entities.EntityCategoryDateTime, true},
		{"time", entities.EntityCategoryDateTime, true},
		{"organization", entities.EntityCategoryOrganization, true},
		{"license_plate", entities.EntityCategoryIdentifier, true},
		{"language", "", false},
	}

	for _, tc := range cases {
		got, mapped := mapEntityCategory(tc.entityType)
		if mapped != tc.mapped || got != tc.want {
			t.Errorf("mapEntityCategory(%q) = (%q, %v), want (%q, %v)", tc.entityType, got, mapped, tc.want, tc.mapped)
		}
	}
}

func TestSegmentIndexAt(t *testing.T) {
	segments := []entities.TranscriptSegment{
		{Start: 0, End: 5, Text: "first"},
		{Start: 6, End: 10, Text: "second"},
	}

	if idx := segmentIndexAt(segments, 7.5); idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
	if idx := segmentIndexAt(segments, 5.5); idx != -1 {
		t.Fatalf("expected -1 for time between segments, got %d", idx)
	}
}

func TestSegmentIndexByText(t *testing.T) {
	segments := []entities.TranscriptSegment{
		{Start: 0, End: 5, Text: "Dispatch this is unit twelve"},
		{Start: 6, End: 10, Text: "Officer Daniels on scene"},
	}

	if idx := segmentIndexByText(segments, "officer daniels"); idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
	if idx := segmentIndexByText(segments, "sergeant cole"); idx != -1 {
		t.Fatalf("expected -1 for missing text, got %d", idx)
	}
}
