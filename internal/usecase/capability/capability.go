// Package capability defines the narrow interfaces the pipeline uses to
// consume external machine-learning engines. Implementations are injected
// at construction time so backends can be swapped, or mocked in tests,
// without touching orchestration logic.
package capability

import (
	"context"
	"io"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
)

// ErrEngineUnavailable is the non-fatal degradation signal: the pipeline
// proceeds without the capability's contribution and flags the report.
var ErrEngineUnavailable = entities.ErrEngineUnavailable

// Source is one verified evidence stream. Open returns an independent
// read view, so transcription and diarization can consume the same
// evidence concurrently. Digest is the chain-of-custody identity key.
type Source struct {
	Digest      string
	DisplayName string
	Open        func() (io.ReadCloser, error)
}

// RawTranscript is the ordered, speaker-less output of a transcription
// engine
type RawTranscript struct {
	Language string
	Segments []entities.TranscriptSegment
}

// TranscriptDocument is the merged transcript handed to entity
// extraction, with segment boundaries preserved as context markers.
// Digest ties the document back to its evidence file.
type TranscriptDocument struct {
	Digest   string
	Text     string
	Segments []entities.TranscriptSegment
}

// RawEntity is one extraction hit before deduplication
type RawEntity struct {
	Category     entities.EntityCategory
	Value        string
	SegmentIndex int
}

// Transcriber converts an audio/video stream into time-stamped,
// confidence-scored transcript segments
type Transcriber interface {
	Transcribe(ctx context.Context, src Source) (*RawTranscript, error)
}

// Diarizer partitions the stream into speaker-labeled time intervals
type Diarizer interface {
	Diarize(ctx context.Context, src Source) ([]entities.SpeakerInterval, error)
}

// EntityExtractor pulls named entities out of the merged transcript
type EntityExtractor interface {
	Extract(ctx context.Context, doc TranscriptDocument) ([]RawEntity, error)
}
