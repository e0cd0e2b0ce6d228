// Package extract turns the merged transcript into a deduplicated entity
// set via the injected extraction capability.
package extract

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/capability"
)

// Extractor wraps an EntityExtractor capability
type Extractor struct {
	engine capability.EntityExtractor
	logger *zap.Logger
}

// NewExtractor creates an extractor around the injected capability
func NewExtractor(engine capability.EntityExtractor, logger *zap.Logger) *Extractor {
	return &Extractor{engine: engine, logger: logger}
}

// Extract builds the transcript document, runs the engine, and
// deduplicates hits by (category, normalized value). Segment
// back-references are merged across duplicate hits. Engine
// unavailability surfaces as capability.ErrEngineUnavailable; the
// pipeline degrades to an empty set and flags the report.
func (e *Extractor) Extract(ctx context.Context, digest string, segments []entities.TranscriptSegment) ([]entities.Entity, error) {
	doc := BuildDocument(digest, segments)

	hits, err := e.engine.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*entities.Entity)
	var order []string
	for _, hit := range hits {
		value := strings.TrimSpace(hit.Value)
		if value == "" {
			continue
		}
		candidate := entities.Entity{Category: hit.Category, Value: value}
		key := candidate.DedupeKey()
		existing, ok := byKey[key]
		if !ok {
			byKey[key] = &candidate
			existing = &candidate
			order = append(order, key)
		}
		if hit.SegmentIndex >= 0 && !containsInt(existing.SegmentIndexes, hit.SegmentIndex) {
			existing.SegmentIndexes = append(existing.SegmentIndexes, hit.SegmentIndex)
		}
	}

	result := make([]entities.Entity, 0, len(order))
	for _, key := range order {
		ent := byKey[key]
		sort.Ints(ent.SegmentIndexes)
		result = append(result, *ent)
	}

	// Deterministic output order regardless of engine iteration order.
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		return entities.NormalizeEntityValue(result[i].Value) < entities.NormalizeEntityValue(result[j].Value)
	})

	if e.logger != nil {
		e.logger.Info("entities extracted",
			zap.Int("hit_count", len(hits)),
			zap.Int("entity_count", len(result)),
		)
	}

	return result, nil
}

// BuildDocument concatenates segment texts, one segment per line, so the
// engine sees segment boundaries as context markers
func BuildDocument(digest string, segments []entities.TranscriptSegment) capability.TranscriptDocument {
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, seg.Text)
	}
	return capability.TranscriptDocument{
		Digest:   digest,
		Text:     strings.Join(lines, "\n"),
		Segments: segments,
	}
}

func containsInt(values []int, v int) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
