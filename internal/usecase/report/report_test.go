package report

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
)

func sampleInputs() Inputs {
	return Inputs{
		Evidence: entities.EvidenceFile{
			Path:       "/evidence/bwc_0412.mp4",
			SizeBytes:  1024,
			SHA256:     "aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899",
			AcquiredAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
			AcquiredBy: "Det. Rivera",
			Source:     "precinct-12 evidence locker",
		},
		CaseNumber:     "2026-CF-0412",
		EvidenceNumber: "E-17",
		Segments: []entities.TranscriptSegment{
			{Start: 0, End: 4.5, Text: "Step out of the vehicle please.", SpeakerLabel: "Officer Daniels"},
			{Start: 5.0, End: 8.0, Text: "Okay, okay, I'm getting out.", SpeakerLabel: "Marcus Webb"},
			{Start: 9.2, End: 12.7, Text: "Hands where I can see them.", SpeakerLabel: "Officer Daniels"},
		},
		Speakers: entities.SpeakerMap{"A": "Officer Daniels", "B": "Marcus Webb"},
		Entities: []entities.Entity{
			{Category: entities.EntityCategoryPerson, Value: "Marcus Webb", SegmentIndexes: []int{1}},
		},
		Discrepancies: []entities.Discrepancy{
			{Type: entities.DiscrepancyTypeTimeline, Severity: entities.SeverityMajor,
				EvidentiaryAssertion: "arrest at 10.0s", ConflictingAssertion: "arrest at 200.0s",
				ExternalSource: "CAD log", Description: "arrest time differs from CAD log"},
			{Type: entities.DiscrepancyTypeStatement, Severity: entities.SeverityCritical,
				EvidentiaryAssertion: "person mentioned in recording", ConflictingAssertion: "absent from report",
				ExternalSource: "incident report", Description: "person omitted from incident report",
				PotentialSignificance: "omission of a person may require review"},
		},
	}
}

func TestAssemble_Stats(t *testing.T) {
	r := NewAssembler(nil).Assemble(sampleInputs())

	if r.Stats.DurationSeconds != 12.7 {
		t.Fatalf("duration = %v, want 12.7", r.Stats.DurationSeconds)
	}
	if r.Stats.SegmentCount != 3 {
		t.Fatalf("segment count = %d, want 3", r.Stats.SegmentCount)
	}
	if r.Stats.SpeakerCount != 2 {
		t.Fatalf("speaker count = %d, want 2", r.Stats.SpeakerCount)
	}
	if r.Stats.DiscrepancyTotal != 2 {
		t.Fatalf("discrepancy total = %d, want 2", r.Stats.DiscrepancyTotal)
	}
	if r.Stats.DiscrepancyCounts[entities.SeverityMajor] != 1 ||
		r.Stats.DiscrepancyCounts[entities.SeverityCritical] != 1 ||
		r.Stats.DiscrepancyCounts[entities.SeverityMinor] != 0 {
		t.Fatalf("severity counts wrong: %v", r.Stats.DiscrepancyCounts)
	}
	if !r.FullyVerified() {
		t.Fatal("report with no flags or warnings should be fully verified")
	}
}

func TestAssemble_DegradedNotFullyVerified(t *testing.T) {
	in := sampleInputs()
	in.Flags.DiarizationDegraded = true

	r := NewAssembler(nil).Assemble(in)
	if r.FullyVerified() {
		t.Fatal("degraded report must not be fully verified")
	}
}

// Every export format must agree on the headline numbers.
func TestExportConsistency(t *testing.T) {
	r := NewAssembler(nil).Assemble(sampleInputs())

	total := strconv.Itoa(r.Stats.DiscrepancyTotal)

	jsonBytes, _, err := Render(r, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	var decoded entities.AnalysisReport
	if err := json.Unmarshal(jsonBytes, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Stats.DiscrepancyTotal != r.Stats.DiscrepancyTotal {
		t.Fatalf("json total = %d, want %d", decoded.Stats.DiscrepancyTotal, r.Stats.DiscrepancyTotal)
	}
	if decoded.Stats.DurationSeconds != r.Stats.DurationSeconds {
		t.Fatalf("json duration = %v, want %v", decoded.Stats.DurationSeconds, r.Stats.DurationSeconds)
	}

	for _, format := range []Format{FormatText, FormatMarkdown} {
		data, _, err := Render(r, format)
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		body := string(data)
		if !strings.Contains(body, total+" total") && !strings.Contains(body, total+" discrepancies") {
			t.Errorf("%s export does not state the discrepancy total %s", format, total)
		}
		if !strings.Contains(body, "12.7 seconds") {
			t.Errorf("%s export does not state the total duration", format)
		}
	}
}

func TestRender_Deterministic(t *testing.T) {
	r := NewAssembler(nil).Assemble(sampleInputs())

	for _, format := range Formats() {
		a, _, err := Render(r, format)
		if err != nil {
			t.Fatal(err)
		}
		b, _, err := Render(r, format)
		if err != nil {
			t.Fatal(err)
		}
		if string(a) != string(b) {
			t.Errorf("%s render is not deterministic", format)
		}
	}
}

func TestObjectName(t *testing.T) {
	r := NewAssembler(nil).Assemble(sampleInputs())

	if got := ObjectName(r, FormatJSON); got != "2026-CF-0412_E-17_analysis.json" {
		t.Fatalf("object name = %q", got)
	}
	if got := ObjectName(r, FormatMarkdown); got != "2026-CF-0412_E-17_analysis.md" {
		t.Fatalf("object name = %q", got)
	}

	in := sampleInputs()
	in.CaseNumber = ""
	in.EvidenceNumber = ""
	anon := NewAssembler(nil).Assemble(in)
	got := ObjectName(anon, FormatText)
	if got != "aabbccddeeff_analysis.txt" {
		t.Fatalf("fallback object name = %q", got)
	}
	if strings.Contains(got, "bwc_0412") {
		t.Fatal("object name must never derive from the raw evidence filename")
	}
}

type fakeStore struct {
	failOn  string
	written map[string]int
}

func (s *fakeStore) UploadBytes(_ context.Context, name string, data []byte, _ string) error {
	if strings.HasSuffix(name, s.failOn) && s.failOn != "" {
		return errors.New("store unavailable")
	}
	if s.written == nil {
		s.written = map[string]int{}
	}
	s.written[name] = len(data)
	return nil
}

func TestExportAll_FailureIsolation(t *testing.T) {
	r := NewAssembler(nil).Assemble(sampleInputs())
	store := &fakeStore{failOn: ".md"}

	outcomes := NewExporter(store, nil).ExportAll(context.Background(), r)
	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}

	var failed, succeeded int
	for _, o := range outcomes {
		if o.Succeeded() {
			succeeded++
			if store.written[o.ObjectName] == 0 {
				t.Errorf("%s reported success but nothing written", o.Format)
			}
		} else {
			failed++
			if o.Format != FormatMarkdown {
				t.Errorf("unexpected failure for %s", o.Format)
			}
		}
	}
	if succeeded != 2 || failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 2/1", succeeded, failed)
	}
}
