// Package discrepancy cross-references the recording-derived record
// against optional external documents and surfaces structured
// observations of mismatches. The detector never fails an analysis:
// absent inputs simply shrink the discrepancy list, and malformed
// entries are skipped with a warning recorded on the report.
package discrepancy

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
)

// Config exposes the comparison thresholds as configuration. The
// defaults are reasonable, not authoritative.
type Config struct {
	// CloseMatchThresholdSec is the maximum time delta between an
	// external event and its recording counterpart before a major
	// timeline discrepancy is raised.
	CloseMatchThresholdSec float64
	// SupportWindowSec is the widest window in which a counterpart is
	// searched at all; an event unsupported within it is critical.
	SupportWindowSec float64
	// SafetyCriticalCategories drive contradiction severity.
	SafetyCriticalCategories []entities.EntityCategory
}

// DefaultConfig returns the default thresholds
func DefaultConfig() Config {
	return Config{
		CloseMatchThresholdSec: 60,
		SupportWindowSec:       300,
		SafetyCriticalCategories: []entities.EntityCategory{
			entities.EntityCategoryPerson,
			entities.EntityCategoryDateTime,
		},
	}
}

// Input bundles everything the detector compares
type Input struct {
	Segments        []entities.TranscriptSegment
	Entities        []entities.Entity
	Timeline        []entities.ExternalEvent
	TimelineSource  string
	Narrative       string
	NarrativeSource string
}

// Output is the deduplicated, order-stable discrepancy list plus any
// per-entry input warnings
type Output struct {
	Discrepancies []entities.Discrepancy
	Warnings      []string
}

// Detector runs the timeline and statement comparison passes
type Detector struct {
	cfg    Config
	logger *zap.Logger
}

// NewDetector creates a detector with the given thresholds
func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	if cfg.CloseMatchThresholdSec <= 0 {
		cfg.CloseMatchThresholdSec = DefaultConfig().CloseMatchThresholdSec
	}
	if cfg.SupportWindowSec <= 0 {
		cfg.SupportWindowSec = DefaultConfig().SupportWindowSec
	}
	if len(cfg.SafetyCriticalCategories) == 0 {
		cfg.SafetyCriticalCategories = DefaultConfig().SafetyCriticalCategories
	}
	return &Detector{cfg: cfg, logger: logger}
}

// Detect runs both passes, either of which is skipped when its input is
// absent, then deduplicates by (type, evidentiary, conflicting) and
// sorts the result deterministically.
func (d *Detector) Detect(in Input) Output {
	var out Output

	if len(in.Timeline) > 0 {
		found, warnings := d.compareTimeline(in)
		out.Discrepancies = append(out.Discrepancies, found...)
		out.Warnings = append(out.Warnings, warnings...)
	}

	if strings.TrimSpace(in.Narrative) != "" {
		out.Discrepancies = append(out.Discrepancies, d.compareStatements(in)...)
	}

	out.Discrepancies = dedupe(out.Discrepancies)
	sort.SliceStable(out.Discrepancies, func(i, j int) bool {
		a, b := out.Discrepancies[i], out.Discrepancies[j]
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.EvidentiaryAssertion != b.EvidentiaryAssertion {
			return a.EvidentiaryAssertion < b.EvidentiaryAssertion
		}
		return a.ConflictingAssertion < b.ConflictingAssertion
	})

	if d.logger != nil {
		d.logger.Info("discrepancy detection complete",
			zap.Int("discrepancy_count", len(out.Discrepancies)),
			zap.Int("warning_count", len(out.Warnings)),
		)
	}

	return out
}

// eventKeywords are the simple heuristics used to infer recording-derived
// events from transcript content. No semantic understanding is attempted.
var eventKeywords = map[string][]string{
	"arrival":      {"on scene", "arrived", "arriving", "we're here", "10-23"},
	"use-of-force": {"taser", "get on the ground", "stop resisting", "use of force", "hands behind your back"},
	"arrest":       {"under arrest", "handcuff", "cuff him", "cuff her", "detained"},
	"medical":      {"ambulance", "paramedic", "medic", "ems", "need medical"},
	"departure":    {"leaving the scene", "clear the scene", "10-8", "heading back"},
}

// DeriveEvents scans segments for event keywords and returns the
// recording-derived event list, ordered by time
func DeriveEvents(segments []entities.TranscriptSegment) []entities.DerivedEvent {
	var events []entities.DerivedEvent
	for i, seg := range segments {
		text := strings.ToLower(seg.Text)
		for eventType, keywords := range eventKeywords {
			for _, kw := range keywords {
				if strings.Contains(text, kw) {
					events = append(events, entities.DerivedEvent{
						EventType:        eventType,
						TimestampSeconds: seg.Start,
						SegmentIndex:     i,
						Snippet:          seg.Text,
					})
					break
				}
			}
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].TimestampSeconds != events[j].TimestampSeconds {
			return events[i].TimestampSeconds < events[j].TimestampSeconds
		}
		return events[i].EventType < events[j].EventType
	})
	return events
}

func (d *Detector) compareTimeline(in Input) ([]entities.Discrepancy, []string) {
	var found []entities.Discrepancy
	var warnings []string

	derived := DeriveEvents(in.Segments)
	supportedDerived := make(map[int]bool)

	for _, ext := range in.Timeline {
		if strings.TrimSpace(ext.EventType) == "" || ext.TimestampSeconds < 0 {
			warnings = append(warnings, fmt.Sprintf(
				"skipped malformed timeline entry (type=%q, t=%.1fs) from %s",
				ext.EventType, ext.TimestampSeconds, in.TimelineSource))
			continue
		}

		closest, delta := closestDerived(derived, ext)
		switch {
		case closest < 0 || delta > d.cfg.SupportWindowSec:
			// External event entirely unsupported by the recording.
			found = append(found, entities.Discrepancy{
				Type:     entities.DiscrepancyTypeTimeline,
				Severity: entities.SeverityCritical,
				EvidentiaryAssertion: fmt.Sprintf(
					"recording contains no %q event within %.0f seconds of t=%.0fs",
					ext.EventType, d.cfg.SupportWindowSec, ext.TimestampSeconds),
				ConflictingAssertion: describeExternal(ext),
				ExternalSource:       in.TimelineSource,
				Description: fmt.Sprintf(
					"external record places a %q event at t=%.0fs with no corresponding event in the recording",
					ext.EventType, ext.TimestampSeconds),
				PotentialSignificance: "an externally documented event without support in the primary recording may warrant further review",
			})
		case delta > d.cfg.CloseMatchThresholdSec:
			supportedDerived[closest] = true
			found = append(found, entities.Discrepancy{
				Type:     entities.DiscrepancyTypeTimeline,
				Severity: entities.SeverityMajor,
				EvidentiaryAssertion: fmt.Sprintf(
					"recording places the %q event at t=%.0fs",
					ext.EventType, derived[closest].TimestampSeconds),
				ConflictingAssertion: describeExternal(ext),
				ExternalSource:       in.TimelineSource,
				Description: fmt.Sprintf(
					"%q event timing differs by %.0f seconds between recording and external record",
					ext.EventType, delta),
				PotentialSignificance: "a timing difference beyond the configured threshold may warrant further review",
			})
		default:
			supportedDerived[closest] = true
		}
	}

	// Reverse direction: recording-derived events with no external
	// counterpart, with the evidentiary/conflicting roles swapped.
	for i, ev := range derived {
		if supportedDerived[i] {
			continue
		}
		if hasExternalCounterpart(in.Timeline, ev, d.cfg.SupportWindowSec) {
			continue
		}
		found = append(found, entities.Discrepancy{
			Type:     entities.DiscrepancyTypeTimeline,
			Severity: entities.SeverityCritical,
			EvidentiaryAssertion: fmt.Sprintf(
				"recording indicates a %q event at t=%.0fs (%q)",
				ev.EventType, ev.TimestampSeconds, ev.Snippet),
			ConflictingAssertion: fmt.Sprintf(
				"external record contains no %q event within %.0f seconds",
				ev.EventType, d.cfg.SupportWindowSec),
			ExternalSource: in.TimelineSource,
			Description: fmt.Sprintf(
				"recording-derived %q event at t=%.0fs has no counterpart in the external record",
				ev.EventType, ev.TimestampSeconds),
			PotentialSignificance: "an event evident in the recording but absent from official documentation may warrant further review",
		})
	}

	return found, warnings
}

func (d *Detector) compareStatements(in Input) []entities.Discrepancy {
	var found []entities.Discrepancy

	narrativeLower := strings.ToLower(in.Narrative)
	sentences := splitSentences(in.Narrative)

	for _, ent := range in.Entities {
		if ent.Category != entities.EntityCategoryPerson && ent.Category != entities.EntityCategoryLocation {
			continue
		}
		value := strings.TrimSpace(ent.Value)
		if value == "" {
			continue
		}

		if !strings.Contains(narrativeLower, strings.ToLower(value)) {
			found = append(found, entities.Discrepancy{
				Type:     entities.DiscrepancyTypeStatement,
				Severity: entities.SeverityMajor,
				EvidentiaryAssertion: fmt.Sprintf(
					"%s %q appears in the recording (%d segment(s))",
					ent.Category, value, len(ent.SegmentIndexes)),
				ConflictingAssertion: fmt.Sprintf("%s %q does not appear in the external narrative", ent.Category, value),
				ExternalSource:       in.NarrativeSource,
				Description: fmt.Sprintf(
					"%s %q is present in the recording but omitted from the external narrative",
					ent.Category, value),
				PotentialSignificance: "omission of an entity present in primary evidence may warrant further review",
			})
			continue
		}

		found = append(found, d.contradictions(in, ent, sentences)...)
	}

	return found
}

// contradictions looks for same-category entity values that co-occur in
// one narrative sentence but never co-occur in any single recording
// segment, a materially different surrounding context.
func (d *Detector) contradictions(in Input, ent entities.Entity, sentences []string) []entities.Discrepancy {
	var found []entities.Discrepancy
	value := strings.ToLower(ent.Value)

	for _, sentence := range sentences {
		sentenceLower := strings.ToLower(sentence)
		if !strings.Contains(sentenceLower, value) {
			continue
		}
		for _, other := range in.Entities {
			if other.Category != ent.Category {
				continue
			}
			otherValue := strings.ToLower(other.Value)
			if otherValue == value || !strings.Contains(sentenceLower, otherValue) {
				continue
			}
			if coOccurInRecording(in.Segments, ent, other) {
				continue
			}

			first, second := ent.Value, other.Value
			if strings.ToLower(second) < strings.ToLower(first) {
				first, second = second, first
			}
			found = append(found, entities.Discrepancy{
				Type:     entities.DiscrepancyTypeContradiction,
				Severity: d.contradictionSeverity(ent.Category),
				EvidentiaryAssertion: fmt.Sprintf(
					"recording never places %s %q and %q in the same segment",
					ent.Category, first, second),
				ConflictingAssertion: fmt.Sprintf("external narrative associates them: %q", strings.TrimSpace(sentence)),
				ExternalSource:       in.NarrativeSource,
				Description: fmt.Sprintf(
					"surrounding context for %s %q differs materially between recording and narrative",
					ent.Category, first),
				PotentialSignificance: "a contextual difference around this entity may warrant further review",
			})
		}
	}

	return found
}

func (d *Detector) contradictionSeverity(category entities.EntityCategory) entities.DiscrepancySeverity {
	for _, critical := range d.cfg.SafetyCriticalCategories {
		if category == critical {
			return entities.SeverityCritical
		}
	}
	return entities.SeverityMinor
}

// closestDerived finds the derived event of matching type with minimal
// time delta; returns (-1, +Inf) when no event of that type exists
func closestDerived(derived []entities.DerivedEvent, ext entities.ExternalEvent) (int, float64) {
	best := -1
	bestDelta := math.Inf(1)
	for i, ev := range derived {
		if !strings.EqualFold(ev.EventType, ext.EventType) {
			continue
		}
		delta := math.Abs(ev.TimestampSeconds - ext.TimestampSeconds)
		if delta < bestDelta {
			best = i
			bestDelta = delta
		}
	}
	return best, bestDelta
}

func hasExternalCounterpart(timeline []entities.ExternalEvent, ev entities.DerivedEvent, window float64) bool {
	for _, ext := range timeline {
		if strings.EqualFold(ext.EventType, ev.EventType) &&
			math.Abs(ext.TimestampSeconds-ev.TimestampSeconds) <= window {
			return true
		}
	}
	return false
}

// coOccurInRecording reports whether two entities share any transcript
// segment reference
func coOccurInRecording(segments []entities.TranscriptSegment, a, b entities.Entity) bool {
	set := make(map[int]struct{}, len(a.SegmentIndexes))
	for _, idx := range a.SegmentIndexes {
		set[idx] = struct{}{}
	}
	for _, idx := range b.SegmentIndexes {
		if _, ok := set[idx]; ok {
			return true
		}
	}
	// Also treat textual co-occurrence in one segment as shared context.
	aLower, bLower := strings.ToLower(a.Value), strings.ToLower(b.Value)
	for _, seg := range segments {
		text := strings.ToLower(seg.Text)
		if strings.Contains(text, aLower) && strings.Contains(text, bLower) {
			return true
		}
	}
	return false
}

func describeExternal(ext entities.ExternalEvent) string {
	if ext.Actor != "" {
		return fmt.Sprintf("external record places a %q event at t=%.0fs (actor: %s)", ext.EventType, ext.TimestampSeconds, ext.Actor)
	}
	return fmt.Sprintf("external record places a %q event at t=%.0fs", ext.EventType, ext.TimestampSeconds)
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func dedupe(discrepancies []entities.Discrepancy) []entities.Discrepancy {
	seen := make(map[string]struct{}, len(discrepancies))
	result := discrepancies[:0]
	for _, d := range discrepancies {
		key := d.DedupeKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, d)
	}
	return result
}
