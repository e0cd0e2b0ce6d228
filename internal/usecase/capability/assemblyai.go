package capability

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
	backoff "github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
	"github.com/casefile-labs/bwc-pipeline/pkg/runcontext"
)

// segment chunking bounds for the word stream
const (
	segmentMaxWords = 50
	segmentGapSec   = 1.2
)

// AssemblyAIEngine backs all three capabilities with a single remote
// AssemblyAI transcription job per evidence digest. The job is submitted
// once and shared; each capability view degrades independently. The
// engine is safe for concurrent use across runs: jobs are keyed by
// digest and deduplicated behind a mutex.
type AssemblyAIEngine struct {
	client       *aai.Client
	logger       *zap.Logger
	pollInterval time.Duration

	mu   sync.Mutex
	jobs map[string]*remoteJob
}

type remoteJob struct {
	once       sync.Once
	transcript aai.Transcript
	err        error
}

// NewAssemblyAIEngine creates an engine bound to one API key. The client
// is constructed once and reused across runs.
func NewAssemblyAIEngine(apiKey string, logger *zap.Logger) *AssemblyAIEngine {
	return &AssemblyAIEngine{
		client:       aai.NewClient(apiKey),
		logger:       logger,
		pollInterval: 3 * time.Second,
		jobs:         make(map[string]*remoteJob),
	}
}

// Transcribe implements Transcriber. Segments are rebuilt from the raw
// word stream (not from speaker utterances), so transcription stays an
// independent signal from diarization.
func (e *AssemblyAIEngine) Transcribe(ctx context.Context, src Source) (*RawTranscript, error) {
	transcript, err := e.result(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: transcription: %v", ErrEngineUnavailable, err)
	}

	words := make([]entities.WordTimestamp, 0, len(transcript.Words))
	for _, w := range transcript.Words {
		word := entities.WordTimestamp{}
		if w.Text != nil {
			word.Word = *w.Text
		}
		if w.Start != nil {
			word.Start = float64(*w.Start) / 1000.0 // ms to seconds
		}
		if w.End != nil {
			word.End = float64(*w.End) / 1000.0
		}
		if w.Confidence != nil {
			word.Confidence = *w.Confidence
		}
		words = append(words, word)
	}

	raw := &RawTranscript{
		Language: string(transcript.LanguageCode),
		Segments: chunkWords(words),
	}

	if e.logger != nil {
		e.logger.Info("transcription complete",
			zap.String("digest", src.Digest),
			zap.Int("word_count", len(words)),
			zap.Int("segment_count", len(raw.Segments)),
		)
	}

	return raw, nil
}

// Diarize implements Diarizer using the job's speaker-labeled utterances
func (e *AssemblyAIEngine) Diarize(ctx context.Context, src Source) ([]entities.SpeakerInterval, error) {
	transcript, err := e.result(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: diarization: %v", ErrEngineUnavailable, err)
	}

	intervals := make([]entities.SpeakerInterval, 0, len(transcript.Utterances))
	for _, utt := range transcript.Utterances {
		interval := entities.SpeakerInterval{}
		if utt.Speaker != nil {
			interval.Token = *utt.Speaker
		}
		if utt.Start != nil {
			interval.Start = float64(*utt.Start) / 1000.0
		}
		if utt.End != nil {
			interval.End = float64(*utt.End) / 1000.0
		}
		intervals = append(intervals, interval)
	}

	return intervals, nil
}

// Extract implements EntityExtractor. Entities come from the same remote
// job (keyed by the document's digest); hits are correlated back to
// merged segments by timestamp containment.
func (e *AssemblyAIEngine) Extract(ctx context.Context, doc TranscriptDocument) ([]RawEntity, error) {
	if doc.Digest == "" {
		return nil, fmt.Errorf("%w: entity extraction: no evidence digest on document", ErrEngineUnavailable)
	}

	e.mu.Lock()
	job, ok := e.jobs[doc.Digest]
	e.mu.Unlock()
	if !ok || job.err != nil {
		return nil, fmt.Errorf("%w: entity extraction: no completed transcription for digest", ErrEngineUnavailable)
	}

	results := make([]RawEntity, 0, len(job.transcript.Entities))
	for _, ent := range job.transcript.Entities {
		category, mapped := mapEntityCategory(string(ent.EntityType))
		if !mapped || ent.Text == nil {
			continue
		}
		raw := RawEntity{Category: category, Value: *ent.Text, SegmentIndex: -1}
		if ent.Start != nil {
			raw.SegmentIndex = segmentIndexAt(doc.Segments, float64(*ent.Start)/1000.0)
		}
		if raw.SegmentIndex < 0 {
			raw.SegmentIndex = segmentIndexByText(doc.Segments, *ent.Text)
		}
		results = append(results, raw)
	}

	return results, nil
}

// result returns the completed remote transcript for a source, submitting
// the job on first use
func (e *AssemblyAIEngine) result(ctx context.Context, src Source) (aai.Transcript, error) {
	e.mu.Lock()
	job, ok := e.jobs[src.Digest]
	if !ok {
		job = &remoteJob{}
		e.jobs[src.Digest] = job
	}
	e.mu.Unlock()

	job.once.Do(func() {
		job.transcript, job.err = e.run(ctx, src)
	})
	return job.transcript, job.err
}

// run uploads the evidence stream and polls the transcription job to
// completion. Submission is retried with exponential backoff; polling
// honors context cancellation.
func (e *AssemblyAIEngine) run(ctx context.Context, src Source) (aai.Transcript, error) {
	var transcriptID string

	submitFn := func() error {
		stream, err := src.Open()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("open evidence stream: %w", err))
		}
		defer stream.Close()

		uploadURL, err := e.client.Upload(ctx, stream)
		if err != nil {
			err = fmt.Errorf("upload to assemblyai: %w", err)
			if runcontext.IsNonRetryableError(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		params := &aai.TranscriptOptionalParams{
			SpeakerLabels:   aai.Bool(true),
			EntityDetection: aai.Bool(true),
		}
		transcript, err := e.client.Transcripts.SubmitFromURL(ctx, uploadURL, params)
		if err != nil {
			err = fmt.Errorf("submit transcription: %w", err)
			if runcontext.IsNonRetryableError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		if transcript.ID != nil {
			transcriptID = *transcript.ID
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.MaxInterval = 10 * time.Second
	bo.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(submitFn, backoff.WithContext(bo, ctx)); err != nil {
		return aai.Transcript{}, err
	}
	if transcriptID == "" {
		return aai.Transcript{}, fmt.Errorf("assemblyai returned no transcript id")
	}

	if e.logger != nil {
		fields := []zap.Field{
			zap.String("digest", src.Digest),
			zap.String("transcript_id", transcriptID),
		}
		if runID, ok := runcontext.GetRunID(ctx); ok {
			fields = append(fields,
				zap.String("run_id", runID.String()),
				zap.Int("worker_id", runcontext.GetWorkerID(ctx)),
			)
		}
		e.logger.Info("transcription job submitted", fields...)
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return aai.Transcript{}, ctx.Err()
		case <-ticker.C:
		}

		transcript, err := e.client.Transcripts.Get(ctx, transcriptID)
		if err != nil {
			return aai.Transcript{}, fmt.Errorf("poll transcription: %w", err)
		}

		switch string(transcript.Status) {
		case "completed":
			return transcript, nil
		case "error":
			return aai.Transcript{}, fmt.Errorf("assemblyai reported error status for transcript %s", transcriptID)
		}
	}
}

// chunkWords groups a word stream into segments, breaking on
// sentence-ending punctuation, long silences, and a word-count cap
func chunkWords(words []entities.WordTimestamp) []entities.TranscriptSegment {
	if len(words) == 0 {
		return nil
	}

	var segments []entities.TranscriptSegment
	var current []entities.WordTimestamp

	flush := func() {
		if len(current) == 0 {
			return
		}
		texts := make([]string, len(current))
		var confidence float64
		for i, w := range current {
			texts[i] = w.Word
			confidence += w.Confidence
		}
		segments = append(segments, entities.TranscriptSegment{
			Start:      current[0].Start,
			End:        current[len(current)-1].End,
			Text:       strings.Join(texts, " "),
			Words:      current,
			Confidence: confidence / float64(len(current)),
		})
		current = nil
	}

	for i, w := range words {
		current = append(current, w)
		if endsSentence(w.Word) || len(current) >= segmentMaxWords {
			flush()
			continue
		}
		if i+1 < len(words) && words[i+1].Start-w.End > segmentGapSec {
			flush()
		}
	}
	flush()

	return segments
}

func endsSentence(word string) bool {
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "?") || strings.HasSuffix(word, "!")
}

// segmentIndexAt returns the index of the segment containing the given
// time, or -1
func segmentIndexAt(segments []entities.TranscriptSegment, at float64) int {
	for i, seg := range segments {
		if at >= seg.Start && at <= seg.End {
			return i
		}
	}
	return -1
}

// segmentIndexByText falls back to a case-insensitive substring search
func segmentIndexByText(segments []entities.TranscriptSegment, text string) int {
	needle := strings.ToLower(text)
	for i, seg := range segments {
		if strings.Contains(strings.ToLower(seg.Text), needle) {
			return i
		}
	}
	return -1
}

// mapEntityCategory maps AssemblyAI entity types onto the report's five
// categories; unmapped types are dropped
func mapEntityCategory(entityType string) (entities.EntityCategory, bool) {
	switch entityType {
	case "person_name":
		return entities.EntityCategoryPerson, true
	case "location":
		return entities.EntityCategoryLocation, true
	case "date", "time", "date_of_birth", "date_interval":
		return entities.EntityCategoryDateTime, true
	case "organization":
		return entities.EntityCategoryOrganization, true
	case "phone_number", "email_address", "driver's_license", "license_plate",
		"credit_card_number", "account_number", "us_social_security_number",
		"vehicle_id", "username":
		return entities.EntityCategoryIdentifier, true
	default:
		return "", false
	}
}
