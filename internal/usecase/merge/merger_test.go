package merge

import (
	"sort"
	"testing"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
)

func seg(start, end float64, text string) entities.TranscriptSegment {
	return entities.TranscriptSegment{Start: start, End: end, Text: text}
}

func iv(token string, start, end float64) entities.SpeakerInterval {
	return entities.SpeakerInterval{Token: token, Start: start, End: end}
}

func TestMerge_ContainedSegmentGetsContainingSpeaker(t *testing.T) {
	m := NewMerger(nil)
	result := m.Merge(
		[]entities.TranscriptSegment{seg(2, 4, "step out of the vehicle")},
		[]entities.SpeakerInterval{iv("A", 0, 10), iv("B", 12, 20)},
		nil,
	)

	if got := result.Segments[0].SpeakerToken; got != "A" {
		t.Fatalf("expected token A, got %q", got)
	}
}

func TestMerge_MaximalOverlapWins(t *testing.T) {
	m := NewMerger(nil)
	// Segment [4,10]: overlap with A is 2s, with B is 4s.
	result := m.Merge(
		[]entities.TranscriptSegment{seg(4, 10, "")},
		[]entities.SpeakerInterval{iv("A", 0, 6), iv("B", 6, 14)},
		nil,
	)

	if got := result.Segments[0].SpeakerToken; got != "B" {
		t.Fatalf("expected token B, got %q", got)
	}
}

func TestMerge_TieBreaksByEarliestIntervalStart(t *testing.T) {
	m := NewMerger(nil)
	// Segment [4,8]: 2s overlap with both. B starts earlier.
	result := m.Merge(
		[]entities.TranscriptSegment{seg(4, 8, "")},
		[]entities.SpeakerInterval{iv("A", 6, 12), iv("B", 2, 6)},
		nil,
	)

	if got := result.Segments[0].SpeakerToken; got != "B" {
		t.Fatalf("expected tie to break to earlier interval B, got %q", got)
	}
}

func TestMerge_ZeroOverlapGoesToNearestInterval(t *testing.T) {
	m := NewMerger(nil)
	// Segment [10,11]: 2s after A ends, 4s before B starts.
	result := m.Merge(
		[]entities.TranscriptSegment{seg(10, 11, "")},
		[]entities.SpeakerInterval{iv("A", 0, 8), iv("B", 15, 20)},
		nil,
	)

	if got := result.Segments[0].SpeakerToken; got != "A" {
		t.Fatalf("expected nearest interval A, got %q", got)
	}
}

func TestMerge_NoIntervalsAssignsUnknown(t *testing.T) {
	m := NewMerger(nil)
	result := m.Merge(
		[]entities.TranscriptSegment{seg(0, 2, "a"), seg(2, 4, "b")},
		nil,
		[]string{"Officer Daniels"},
	)

	for _, s := range result.Segments {
		if s.SpeakerToken != entities.UnknownSpeakerToken {
			t.Fatalf("expected UNKNOWN token, got %q", s.SpeakerToken)
		}
		if s.SpeakerLabel != entities.UnknownSpeakerToken {
			t.Fatalf("expected UNKNOWN label, got %q", s.SpeakerLabel)
		}
	}
	if result.Speakers.DistinctLabels() != 1 {
		t.Fatalf("expected a single synthetic speaker, got %d", result.Speakers.DistinctLabels())
	}
}

func TestMerge_CrossTalkFlagged(t *testing.T) {
	m := NewMerger(nil)
	result := m.Merge(
		[]entities.TranscriptSegment{seg(4, 8, "both talking"), seg(0, 3, "only one")},
		[]entities.SpeakerInterval{iv("A", 0, 6), iv("B", 5, 12)},
		nil,
	)

	// Result is ordered by start time.
	if result.Segments[0].CrossTalk {
		t.Fatal("single-speaker segment wrongly flagged as cross-talk")
	}
	if !result.Segments[1].CrossTalk {
		t.Fatal("overlapping-speaker segment not flagged as cross-talk")
	}
}

func TestMerge_SegmentsStayOrderedByStart(t *testing.T) {
	m := NewMerger(nil)
	result := m.Merge(
		[]entities.TranscriptSegment{seg(5, 6, "later"), seg(0, 1, "earlier"), seg(2, 3, "middle")},
		[]entities.SpeakerInterval{iv("A", 0, 10)},
		nil,
	)

	if !sort.SliceIsSorted(result.Segments, func(i, j int) bool {
		return result.Segments[i].Start < result.Segments[j].Start
	}) {
		t.Fatal("merged segments not ordered by start time")
	}
}

func TestResolve_SubstringMatch(t *testing.T) {
	m := NewMerger(nil)
	result := m.Merge(
		[]entities.TranscriptSegment{seg(0, 2, "")},
		[]entities.SpeakerInterval{iv("daniels", 0, 2)},
		[]string{"Officer Daniels", "Marcus Webb"},
	)

	if got := result.Speakers["daniels"]; got != "Officer Daniels" {
		t.Fatalf("expected substring match to Officer Daniels, got %q", got)
	}
}

func TestResolve_OpaqueTokensFallBackToRosterOrder(t *testing.T) {
	m := NewMerger(nil)
	result := m.Merge(
		[]entities.TranscriptSegment{seg(0, 2, ""), seg(3, 5, ""), seg(6, 8, "")},
		[]entities.SpeakerInterval{iv("A", 0, 2), iv("B", 3, 5), iv("A", 6, 8)},
		[]string{"Officer Daniels", "Marcus Webb"},
	)

	if got := result.Speakers["A"]; got != "Officer Daniels" {
		t.Fatalf("first-appearing token should take first roster name, got %q", got)
	}
	if got := result.Speakers["B"]; got != "Marcus Webb" {
		t.Fatalf("second token should take second roster name, got %q", got)
	}
	if result.Speakers.DistinctLabels() != 2 {
		t.Fatalf("expected 2 resolved speakers, got %d", result.Speakers.DistinctLabels())
	}
}

func TestResolve_UnmatchedTokenStaysUnidentified(t *testing.T) {
	m := NewMerger(nil)
	// Three tokens, roster of two: no ordinal fallback possible.
	result := m.Merge(
		[]entities.TranscriptSegment{seg(0, 1, ""), seg(1, 2, ""), seg(2, 3, "")},
		[]entities.SpeakerInterval{iv("SPEAKER_00", 0, 1), iv("SPEAKER_01", 1, 2), iv("SPEAKER_02", 2, 3)},
		[]string{"Officer Daniels", "Marcus Webb"},
	)

	for _, token := range []string{"SPEAKER_00", "SPEAKER_01", "SPEAKER_02"} {
		want := entities.UnidentifiedLabelPrefix + token
		if got := result.Speakers[token]; got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestResolve_EmptyRoster(t *testing.T) {
	m := NewMerger(nil)
	result := m.Merge(
		[]entities.TranscriptSegment{seg(0, 1, "")},
		[]entities.SpeakerInterval{iv("SPEAKER_00", 0, 1)},
		nil,
	)

	if got := result.Speakers["SPEAKER_00"]; got != "unidentified-SPEAKER_00" {
		t.Fatalf("expected unidentified label, got %q", got)
	}
}
