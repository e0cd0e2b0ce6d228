// Package merge aligns transcription output with diarization intervals
// and resolves speaker identities. The two phases (temporal assignment,
// identity resolution) are deliberately independent so either can be
// tested and replaced on its own.
package merge

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
)

// Result is the merged, speaker-attributed transcript
type Result struct {
	Segments []entities.TranscriptSegment
	Speakers entities.SpeakerMap
}

// Merger assigns speaker tokens to transcript segments and resolves
// tokens against a known-participant roster
type Merger struct {
	logger *zap.Logger
}

// NewMerger creates a merger
func NewMerger(logger *zap.Logger) *Merger {
	return &Merger{logger: logger}
}

// Merge runs both phases. Segments keep their creation order (ordered by
// start time); the returned SpeakerMap is frozen after this call.
func (m *Merger) Merge(segments []entities.TranscriptSegment, intervals []entities.SpeakerInterval, roster []string) Result {
	merged := make([]entities.TranscriptSegment, len(segments))
	copy(merged, segments)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Start < merged[j].Start })

	m.assignSpeakers(merged, intervals)
	speakers := m.resolveIdentities(merged, roster)

	for i := range merged {
		merged[i].SpeakerLabel = speakers.Label(merged[i].SpeakerToken)
	}

	if m.logger != nil {
		m.logger.Info("transcript merged",
			zap.Int("segment_count", len(merged)),
			zap.Int("interval_count", len(intervals)),
			zap.Int("speaker_count", speakers.DistinctLabels()),
		)
	}

	return Result{Segments: merged, Speakers: speakers}
}

// assignSpeakers gives each segment the token of the diarization interval
// with maximal temporal overlap. Ties break by earliest interval start; a
// segment with zero overlap goes to the nearest interval by time gap;
// with no intervals at all every segment gets the synthetic UNKNOWN
// token. Segments overlapping two or more distinct speakers are flagged
// as cross-talk.
func (m *Merger) assignSpeakers(segments []entities.TranscriptSegment, intervals []entities.SpeakerInterval) {
	if len(intervals) == 0 {
		for i := range segments {
			segments[i].SpeakerToken = entities.UnknownSpeakerToken
		}
		return
	}

	for i := range segments {
		seg := &segments[i]

		best := -1
		bestOverlap := 0.0
		overlappingTokens := make(map[string]struct{})

		for j, iv := range intervals {
			overlap := overlapDuration(seg.Start, seg.End, iv.Start, iv.End)
			if overlap <= 0 {
				continue
			}
			overlappingTokens[iv.Token] = struct{}{}
			if overlap > bestOverlap ||
				(overlap == bestOverlap && best >= 0 && iv.Start < intervals[best].Start) {
				best = j
				bestOverlap = overlap
			}
		}

		if best < 0 {
			best = nearestInterval(seg.Start, seg.End, intervals)
		}

		seg.SpeakerToken = intervals[best].Token
		seg.CrossTalk = len(overlappingTokens) > 1
	}
}

// resolveIdentities maps tokens to human labels. A token matching a
// roster name (case-insensitive substring either way) takes that name.
// When the engine emits opaque tokens and the roster covers the token
// count, remaining tokens take unclaimed roster names in order of first
// appearance. Anything else stays unidentified.
func (m *Merger) resolveIdentities(segments []entities.TranscriptSegment, roster []string) entities.SpeakerMap {
	speakers := make(entities.SpeakerMap)

	var tokens []string
	seen := make(map[string]struct{})
	for _, seg := range segments {
		if _, ok := seen[seg.SpeakerToken]; ok {
			continue
		}
		seen[seg.SpeakerToken] = struct{}{}
		tokens = append(tokens, seg.SpeakerToken)
	}

	claimed := make(map[string]struct{})
	var unresolved []string

	for _, token := range tokens {
		if token == entities.UnknownSpeakerToken {
			speakers[token] = entities.UnknownSpeakerToken
			continue
		}
		if name, ok := matchRoster(token, roster, claimed); ok {
			speakers[token] = name
			claimed[name] = struct{}{}
			continue
		}
		unresolved = append(unresolved, token)
	}

	// Ordinal fallback: opaque engine tokens (SPEAKER_00, A, B, ...)
	// never substring-match real names. When the roster has room for
	// every unresolved token, assign unclaimed names by first appearance.
	if len(unresolved) > 0 && len(unresolved) <= len(roster)-len(claimed) {
		free := unclaimedNames(roster, claimed)
		for i, token := range unresolved {
			speakers[token] = free[i]
		}
		return speakers
	}

	for _, token := range unresolved {
		speakers[token] = entities.UnidentifiedLabelPrefix + token
	}

	return speakers
}

func matchRoster(token string, roster []string, claimed map[string]struct{}) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(token))
	// Short opaque tokens ("A", "B", "S1") would substring-match almost
	// any name; leave them to the ordinal fallback.
	if len(needle) < 3 {
		return "", false
	}
	for _, name := range roster {
		if _, taken := claimed[name]; taken {
			continue
		}
		candidate := strings.ToLower(strings.TrimSpace(name))
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, needle) || strings.Contains(needle, candidate) {
			return name, true
		}
	}
	return "", false
}

func unclaimedNames(roster []string, claimed map[string]struct{}) []string {
	var free []string
	for _, name := range roster {
		if _, taken := claimed[name]; !taken {
			free = append(free, name)
		}
	}
	return free
}

// overlapDuration returns the length of the intersection of two spans,
// or zero when they do not intersect
func overlapDuration(aStart, aEnd, bStart, bEnd float64) float64 {
	overlap := math.Min(aEnd, bEnd) - math.Max(aStart, bStart)
	if overlap < 0 {
		return 0
	}
	return overlap
}

// nearestInterval returns the index of the interval with the smallest
// time gap to the segment, forward or backward
func nearestInterval(start, end float64, intervals []entities.SpeakerInterval) int {
	best := 0
	bestGap := math.Inf(1)
	for i, iv := range intervals {
		var gap float64
		switch {
		case iv.Start > end:
			gap = iv.Start - end
		case iv.End < start:
			gap = start - iv.End
		default:
			gap = 0
		}
		if gap < bestGap {
			best = i
			bestGap = gap
		}
	}
	return best
}
