package discrepancy

import (
	"reflect"
	"testing"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
)

func segments() []entities.TranscriptSegment {
	return []entities.TranscriptSegment{
		{Start: 30, End: 35, Text: "Dispatch we are on scene at the residence"},
		{Start: 120, End: 125, Text: "Sir I need you to stop resisting"},
		{Start: 300, End: 305, Text: "Marcus Webb is sitting on the curb"},
	}
}

func TestDetect_NoExternalInputsNoDiscrepancies(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	out := d.Detect(Input{Segments: segments()})

	if len(out.Discrepancies) != 0 {
		t.Fatalf("expected no discrepancies without external inputs, got %d", len(out.Discrepancies))
	}
}

func TestDetect_UnsupportedExternalEventIsCritical(t *testing.T) {
	// Scenario: one external event at t=500s with no recording-derived
	// counterpart inside the 5-minute window.
	d := NewDetector(DefaultConfig(), nil)
	out := d.Detect(Input{
		Segments: []entities.TranscriptSegment{
			{Start: 10, End: 15, Text: "nothing notable here"},
		},
		Timeline:       []entities.ExternalEvent{{EventType: "use-of-force", TimestampSeconds: 500, Actor: "Ofc. Daniels"}},
		TimelineSource: "CAD export",
	})

	if len(out.Discrepancies) != 1 {
		t.Fatalf("expected exactly 1 discrepancy, got %d", len(out.Discrepancies))
	}
	got := out.Discrepancies[0]
	if got.Type != entities.DiscrepancyTypeTimeline || got.Severity != entities.SeverityCritical {
		t.Fatalf("expected critical timeline discrepancy, got %s/%s", got.Type, got.Severity)
	}
	if got.ExternalSource != "CAD export" {
		t.Fatalf("source label not carried: %q", got.ExternalSource)
	}
}

func TestDetect_TimingDeltaBeyondThresholdIsMajor(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	// Recording arrival at t=30, external claims t=150: delta 120s,
	// inside the support window but beyond the 60s close-match threshold.
	out := d.Detect(Input{
		Segments:       segments(),
		Timeline:       []entities.ExternalEvent{{EventType: "arrival", TimestampSeconds: 150}},
		TimelineSource: "dispatch log",
	})

	var timeline []entities.Discrepancy
	for _, disc := range out.Discrepancies {
		if disc.Type == entities.DiscrepancyTypeTimeline {
			timeline = append(timeline, disc)
		}
	}
	// The use-of-force derived event also has no external counterpart,
	// so expect the major arrival mismatch plus one reverse critical.
	if len(timeline) != 2 {
		t.Fatalf("expected 2 timeline discrepancies, got %d: %+v", len(timeline), timeline)
	}

	var sawMajor, sawReverseCritical bool
	for _, disc := range timeline {
		switch disc.Severity {
		case entities.SeverityMajor:
			sawMajor = true
		case entities.SeverityCritical:
			sawReverseCritical = true
		}
	}
	if !sawMajor || !sawReverseCritical {
		t.Fatalf("expected one major and one reverse-critical, got %+v", timeline)
	}
}

func TestDetect_CloseMatchProducesNoDiscrepancy(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	out := d.Detect(Input{
		Segments:       []entities.TranscriptSegment{{Start: 30, End: 35, Text: "we are on scene"}},
		Timeline:       []entities.ExternalEvent{{EventType: "arrival", TimestampSeconds: 45}},
		TimelineSource: "dispatch log",
	})

	if len(out.Discrepancies) != 0 {
		t.Fatalf("expected no discrepancies for a 15s delta, got %+v", out.Discrepancies)
	}
}

func TestDetect_MalformedTimelineEntrySkippedWithWarning(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	out := d.Detect(Input{
		Segments:       []entities.TranscriptSegment{{Start: 30, End: 35, Text: "we are on scene"}},
		Timeline:       []entities.ExternalEvent{{EventType: "", TimestampSeconds: 10}, {EventType: "arrival", TimestampSeconds: 45}},
		TimelineSource: "dispatch log",
	})

	if len(out.Warnings) != 1 {
		t.Fatalf("expected 1 warning for malformed entry, got %v", out.Warnings)
	}
	if len(out.Discrepancies) != 0 {
		t.Fatalf("malformed entry must not produce discrepancies, got %+v", out.Discrepancies)
	}
}

func TestDetect_OmittedPersonEntityIsSingleMajor(t *testing.T) {
	// The person appears in 3 segments but yields exactly one
	// deduplicated omission discrepancy.
	d := NewDetector(DefaultConfig(), nil)
	out := d.Detect(Input{
		Segments: segments(),
		Entities: []entities.Entity{
			{Category: entities.EntityCategoryPerson, Value: "Marcus Webb", SegmentIndexes: []int{0, 1, 2}},
		},
		Narrative:       "Officers responded to the residence. The subject was compliant throughout.",
		NarrativeSource: "incident report #881",
	})

	if len(out.Discrepancies) != 1 {
		t.Fatalf("expected exactly 1 discrepancy, got %d: %+v", len(out.Discrepancies), out.Discrepancies)
	}
	got := out.Discrepancies[0]
	if got.Type != entities.DiscrepancyTypeStatement || got.Severity != entities.SeverityMajor {
		t.Fatalf("expected major statement discrepancy, got %s/%s", got.Type, got.Severity)
	}
	if got.PotentialSignificance == "" {
		t.Fatal("expected an advisory significance note")
	}
}

func TestDetect_ContradictionSeverityByCategory(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	in := Input{
		Segments: []entities.TranscriptSegment{
			{Start: 0, End: 5, Text: "Marcus Webb was alone on the porch"},
			{Start: 10, End: 15, Text: "Derek Hall stayed in the car"},
		},
		Entities: []entities.Entity{
			{Category: entities.EntityCategoryPerson, Value: "Marcus Webb", SegmentIndexes: []int{0}},
			{Category: entities.EntityCategoryPerson, Value: "Derek Hall", SegmentIndexes: []int{1}},
		},
		// The narrative puts both people in one sentence; the recording
		// never places them together.
		Narrative:       "Marcus Webb and Derek Hall approached the officers together.",
		NarrativeSource: "incident report",
	}

	out := d.Detect(in)
	if len(out.Discrepancies) != 1 {
		t.Fatalf("expected 1 contradiction (deduplicated pair), got %d: %+v", len(out.Discrepancies), out.Discrepancies)
	}
	got := out.Discrepancies[0]
	if got.Type != entities.DiscrepancyTypeContradiction {
		t.Fatalf("expected contradiction, got %s", got.Type)
	}
	if got.Severity != entities.SeverityCritical {
		t.Fatalf("person contradictions are safety-critical, got %s", got.Severity)
	}
}

func TestDetect_LocationContradictionIsMinor(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	in := Input{
		Segments: []entities.TranscriptSegment{
			{Start: 0, End: 5, Text: "we are at Elm Street"},
			{Start: 10, End: 15, Text: "heading to Oak Avenue now"},
		},
		Entities: []entities.Entity{
			{Category: entities.EntityCategoryLocation, Value: "Elm Street", SegmentIndexes: []int{0}},
			{Category: entities.EntityCategoryLocation, Value: "Oak Avenue", SegmentIndexes: []int{1}},
		},
		Narrative:       "Contact occurred at Elm Street near Oak Avenue.",
		NarrativeSource: "incident report",
	}

	out := d.Detect(in)
	if len(out.Discrepancies) != 1 {
		t.Fatalf("expected 1 contradiction, got %d", len(out.Discrepancies))
	}
	if got := out.Discrepancies[0].Severity; got != entities.SeverityMinor {
		t.Fatalf("location contradictions default to minor, got %s", got)
	}
}

func TestDetect_EntitiesCoOccurringInRecordingAreNotContradictions(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	in := Input{
		Segments: []entities.TranscriptSegment{
			{Start: 0, End: 5, Text: "Marcus Webb and Derek Hall are both on the porch"},
		},
		Entities: []entities.Entity{
			{Category: entities.EntityCategoryPerson, Value: "Marcus Webb", SegmentIndexes: []int{0}},
			{Category: entities.EntityCategoryPerson, Value: "Derek Hall", SegmentIndexes: []int{0}},
		},
		Narrative:       "Marcus Webb and Derek Hall approached together.",
		NarrativeSource: "incident report",
	}

	out := d.Detect(in)
	if len(out.Discrepancies) != 0 {
		t.Fatalf("shared recording context must not contradict, got %+v", out.Discrepancies)
	}
}

func TestDetect_Deterministic(t *testing.T) {
	d := NewDetector(DefaultConfig(), nil)
	input := Input{
		Segments: segments(),
		Entities: []entities.Entity{
			{Category: entities.EntityCategoryPerson, Value: "Marcus Webb", SegmentIndexes: []int{2}},
			{Category: entities.EntityCategoryLocation, Value: "Maple Court", SegmentIndexes: []int{0}},
		},
		Timeline:        []entities.ExternalEvent{{EventType: "arrival", TimestampSeconds: 200}},
		TimelineSource:  "dispatch log",
		Narrative:       "Officers responded.",
		NarrativeSource: "incident report",
	}

	first := d.Detect(input)
	second := d.Detect(input)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("repeated detection produced different output")
	}
	if len(first.Discrepancies) == 0 {
		t.Fatal("expected at least one discrepancy in this fixture")
	}
}

func TestDeriveEvents_KeywordHeuristics(t *testing.T) {
	events := DeriveEvents(segments())

	if len(events) != 2 {
		t.Fatalf("expected 2 derived events, got %d: %+v", len(events), events)
	}
	if events[0].EventType != "arrival" || events[0].TimestampSeconds != 30 {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].EventType != "use-of-force" || events[1].TimestampSeconds != 120 {
		t.Fatalf("unexpected second event %+v", events[1])
	}
}
