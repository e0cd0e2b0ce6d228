package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/casefile-labs/bwc-pipeline/errors"
	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
	domainrepo "github.com/casefile-labs/bwc-pipeline/internal/domain/repositories"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/capability"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/custody"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/discrepancy"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/extract"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/merge"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/report"
	"github.com/casefile-labs/bwc-pipeline/pkg/runcontext"
)

// SubmitRequest carries everything a caller provides at submission
type SubmitRequest struct {
	EvidencePath   string
	Meta           entities.AcquisitionMeta
	Inputs         entities.RunInputs
	CeilingSeconds int
}

// RunCache is an optional read-through cache for status polling. The
// pipeline writes through on every stage transition; a miss always falls
// back to the repository.
type RunCache interface {
	SetRun(ctx context.Context, run *entities.AnalysisRun)
	GetRun(ctx context.Context, runID uuid.UUID) (*entities.AnalysisRun, bool)
	InvalidateRun(ctx context.Context, runID uuid.UUID)
}

// Service defines analysis orchestration methods
type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*entities.AnalysisRun, error)
	Status(ctx context.Context, runID uuid.UUID) (*entities.AnalysisRun, error)
	ListByCase(ctx context.Context, caseNumber string) ([]entities.AnalysisRun, error)
	Report(ctx context.Context, runID uuid.UUID) (*entities.AnalysisReport, error)
	Cancel(ctx context.Context, runID uuid.UUID) error
	Export(ctx context.Context, runID uuid.UUID) ([]report.Outcome, error)
	StartWorkerPool(ctx context.Context, workerCount int) error
	StopWorkerPool() error
}

type analysisService struct {
	runRepo     domainrepo.RunRepository
	tracker     *custody.Tracker
	transcriber capability.Transcriber
	diarizer    capability.Diarizer
	extractor   *extract.Extractor
	merger      *merge.Merger
	detector    *discrepancy.Detector
	assembler   *report.Assembler
	exporter    *report.Exporter
	cache       RunCache
	logger      *zap.Logger

	defaultCeiling time.Duration
	pollInterval   time.Duration

	// cancels maps in-flight runs to their context cancellation; taking
	// the entry out is how the cancel endpoint reaches into the pipeline.
	cancelMu sync.Mutex
	cancels  map[uuid.UUID]context.CancelFunc

	workerStopChan      chan struct{}
	workerWg            sync.WaitGroup
	isWorkerPoolRunning bool
	workerMutex         sync.Mutex
}

// NewService constructs the orchestration service
func NewService(
	runRepo domainrepo.RunRepository,
	tracker *custody.Tracker,
	transcriber capability.Transcriber,
	diarizer capability.Diarizer,
	extractor *extract.Extractor,
	merger *merge.Merger,
	detector *discrepancy.Detector,
	assembler *report.Assembler,
	exporter *report.Exporter,
	cache RunCache,
	defaultCeiling time.Duration,
	logger *zap.Logger,
) Service {
	if defaultCeiling <= 0 {
		defaultCeiling = runcontext.DefaultCeiling
	}
	return &analysisService{
		runRepo:        runRepo,
		tracker:        tracker,
		transcriber:    transcriber,
		diarizer:       diarizer,
		extractor:      extractor,
		merger:         merger,
		detector:       detector,
		assembler:      assembler,
		exporter:       exporter,
		cache:          cache,
		logger:         logger,
		defaultCeiling: defaultCeiling,
		pollInterval:   3 * time.Second,
		cancels:        make(map[uuid.UUID]context.CancelFunc),
	}
}

// Submit validates the request, persists a queued run, and returns
// immediately. The worker pool picks the run up asynchronously.
func (s *analysisService) Submit(ctx context.Context, req SubmitRequest) (*entities.AnalysisRun, error) {
	if req.EvidencePath == "" {
		return nil, apperrors.ErrInvalidArgument("evidence path is required")
	}
	if req.Meta.AcquiredBy == "" {
		return nil, apperrors.ErrInvalidArgument("acquired_by is required")
	}
	if info, err := os.Stat(req.EvidencePath); err != nil || info.IsDir() {
		return nil, apperrors.ErrEvidenceUnreadable(req.EvidencePath, err)
	}
	for i, ev := range req.Inputs.ExternalTimeline {
		if ev.EventType == "" || ev.TimestampSeconds < 0 {
			return nil, apperrors.ErrInputMalformed(
				fmt.Sprintf("external_timeline[%d]", i),
				"event_type is required and timestamp_seconds must be non-negative",
			)
		}
	}

	if req.CeilingSeconds <= 0 {
		req.CeilingSeconds = int(s.defaultCeiling / time.Second)
	}

	run := entities.NewAnalysisRun(req.EvidencePath, req.Meta, req.Inputs)
	run.CeilingSeconds = req.CeilingSeconds

	if err := s.runRepo.CreateRun(ctx, run); err != nil {
		return nil, apperrors.ErrSubmissionFailed(err)
	}

	if s.logger != nil {
		s.logger.Info("analysis run submitted",
			zap.String("run_id", run.ID.String()),
			zap.String("evidence_path", run.EvidencePath),
			zap.String("case_number", run.CaseNumber),
		)
	}
	return run, nil
}

// Status returns the durable run record, served from the hot-poll cache
// when a fresh snapshot is available
func (s *analysisService) Status(ctx context.Context, runID uuid.UUID) (*entities.AnalysisRun, error) {
	if s.cache != nil {
		if run, ok := s.cache.GetRun(ctx, runID); ok {
			return run, nil
		}
	}

	run, err := s.runRepo.GetRunByID(ctx, runID)
	if err != nil {
		return nil, apperrors.ErrDBQueryFailed("get run", err)
	}
	if run == nil {
		return nil, apperrors.ErrRunNotFound(runID.String())
	}
	if s.cache != nil {
		s.cache.SetRun(ctx, run)
	}
	return run, nil
}

// ListByCase returns every run filed under a case number, newest first
func (s *analysisService) ListByCase(ctx context.Context, caseNumber string) ([]entities.AnalysisRun, error) {
	if caseNumber == "" {
		return nil, apperrors.ErrInvalidArgument("case number is required")
	}
	runs, err := s.runRepo.ListRunsByCase(ctx, caseNumber)
	if err != nil {
		return nil, apperrors.ErrDBQueryFailed("list runs by case", err)
	}
	return runs, nil
}

// Report returns the frozen report of a completed run
func (s *analysisService) Report(ctx context.Context, runID uuid.UUID) (*entities.AnalysisReport, error) {
	run, err := s.Status(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status != entities.RunStatusComplete {
		return nil, apperrors.ErrRunNotComplete(runID.String(), string(run.Status))
	}
	rep := run.Report.Data()
	if rep == nil {
		return nil, apperrors.ErrReportNotFound(runID.String())
	}
	return rep, nil
}

// Cancel requests cooperative cancellation. A queued run is cancelled
// directly; an in-flight run is cut off at its next stage boundary; a
// terminal run cannot be cancelled.
func (s *analysisService) Cancel(ctx context.Context, runID uuid.UUID) error {
	run, err := s.Status(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status.Terminal() {
		return apperrors.ErrRunNotCancellable(runID.String(), string(run.Status))
	}

	s.cancelMu.Lock()
	cancel, inFlight := s.cancels[runID]
	s.cancelMu.Unlock()

	if inFlight {
		cancel()
		if s.logger != nil {
			s.logger.Info("cancellation requested for in-flight run",
				zap.String("run_id", runID.String()),
			)
		}
		return nil
	}

	// Still queued: no worker owns it yet, cancel in place. The write is
	// conditional on the queued status so a worker claiming the run in
	// this window is detected instead of raced.
	if s.cache != nil {
		s.cache.InvalidateRun(ctx, runID)
	}
	cancelled, err := s.runRepo.CancelQueuedRun(ctx, runID)
	if err != nil {
		return apperrors.ErrDBQueryFailed("cancel run", err)
	}
	if cancelled {
		if s.logger != nil {
			s.logger.Info("queued run cancelled",
				zap.String("run_id", runID.String()),
			)
		}
		return nil
	}

	// A worker claimed the run between our status read and the write. If
	// it has registered its cancel func by now, use it; otherwise mark
	// the run cancelled directly and let the worker's next guarded status
	// write observe the terminal state and stop.
	s.cancelMu.Lock()
	cancel, inFlight = s.cancels[runID]
	s.cancelMu.Unlock()
	if inFlight {
		cancel()
		return nil
	}

	current, err := s.runRepo.GetRunByID(ctx, runID)
	if err != nil {
		return apperrors.ErrDBQueryFailed("get run", err)
	}
	if current == nil {
		return apperrors.ErrRunNotFound(runID.String())
	}
	if current.Status.Terminal() {
		return apperrors.ErrRunNotCancellable(runID.String(), string(current.Status))
	}

	if err := s.runRepo.MarkRunCancelled(ctx, runID); err != nil {
		if errors.Is(err, domainrepo.ErrRunTerminal) {
			return apperrors.ErrRunNotCancellable(runID.String(), string(current.Status))
		}
		return apperrors.ErrDBQueryFailed("cancel run", err)
	}
	if s.logger != nil {
		s.logger.Info("claimed run cancelled before its worker registered",
			zap.String("run_id", runID.String()),
		)
	}
	return nil
}

// Export writes every export format of a completed run's report,
// returning per-format outcomes
func (s *analysisService) Export(ctx context.Context, runID uuid.UUID) ([]report.Outcome, error) {
	rep, err := s.Report(ctx, runID)
	if err != nil {
		return nil, err
	}
	return s.exporter.ExportAll(ctx, rep), nil
}

// StartWorkerPool starts background workers that claim queued runs
func (s *analysisService) StartWorkerPool(ctx context.Context, workerCount int) error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if s.isWorkerPoolRunning {
		return fmt.Errorf("worker pool already running")
	}
	if workerCount <= 0 {
		workerCount = 2
	}

	s.isWorkerPoolRunning = true
	s.workerStopChan = make(chan struct{})

	if s.logger != nil {
		s.logger.Info("starting analysis worker pool",
			zap.Int("worker_count", workerCount),
		)
	}

	for i := 0; i < workerCount; i++ {
		s.workerWg.Add(1)
		go s.runWorker(ctx, i)
	}

	s.workerWg.Add(1)
	go s.runReaper(ctx)

	return nil
}

// StopWorkerPool gracefully stops all worker goroutines
func (s *analysisService) StopWorkerPool() error {
	s.workerMutex.Lock()
	defer s.workerMutex.Unlock()

	if !s.isWorkerPoolRunning {
		return fmt.Errorf("worker pool not running")
	}

	close(s.workerStopChan)
	s.workerWg.Wait()
	s.isWorkerPoolRunning = false

	if s.logger != nil {
		s.logger.Info("analysis worker pool stopped")
	}
	return nil
}

// runWorker polls for queued runs and executes the pipeline for each one
// it claims
func (s *analysisService) runWorker(parentCtx context.Context, workerID int) {
	defer s.workerWg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.workerStopChan:
			return

		case <-ticker.C:
			runs, err := s.runRepo.ListRunsByStatus(parentCtx, entities.RunStatusQueued, 5)
			if err != nil {
				if s.logger != nil {
					s.logger.Error("failed to poll queued runs",
						zap.Int("worker_id", workerID),
						zap.Error(err),
					)
				}
				continue
			}

			for _, run := range runs {
				claimed, err := s.runRepo.ClaimRun(parentCtx, run.ID)
				if err != nil {
					if s.logger != nil {
						s.logger.Error("failed to claim run",
							zap.String("run_id", run.ID.String()),
							zap.Error(err),
						)
					}
					continue
				}
				if !claimed {
					continue
				}
				s.execute(parentCtx, workerID, run.ID)
			}
		}
	}
}

// runReaper fails runs abandoned mid-pipeline by a dead worker. A run with
// a live worker is touched on every stage transition, so an in-flight run
// whose updated_at is older than the ceiling plus a grace period has no one
// coming back for it.
func (s *analysisService) runReaper(parentCtx context.Context) {
	defer s.workerWg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.workerStopChan:
			return

		case <-ticker.C:
			cutoff := time.Now().Add(-(runcontext.DefaultCeiling + 5*time.Minute))
			stale, err := s.runRepo.ListStaleRuns(parentCtx, cutoff, 20)
			if err != nil {
				if s.logger != nil {
					s.logger.Error("failed to list stale runs", zap.Error(err))
				}
				continue
			}

			for _, run := range stale {
				// Skip runs this instance is still driving.
				s.cancelMu.Lock()
				_, inFlight := s.cancels[run.ID]
				s.cancelMu.Unlock()
				if inFlight {
					continue
				}

				if err := s.runRepo.MarkRunFailed(parentCtx, run.ID,
					"run abandoned: no progress since "+run.UpdatedAt.Format(time.RFC3339)); err != nil {
					if !errors.Is(err, domainrepo.ErrRunTerminal) && s.logger != nil {
						s.logger.Error("failed to reap stale run",
							zap.String("run_id", run.ID.String()),
							zap.Error(err),
						)
					}
					continue
				}
				if s.cache != nil {
					s.cache.InvalidateRun(parentCtx, run.ID)
				}
				if s.logger != nil {
					s.logger.Warn("reaped stale run",
						zap.String("run_id", run.ID.String()),
						zap.String("stalled_status", string(run.Status)),
					)
				}
			}
		}
	}
}

// execute drives one claimed run through the full pipeline
func (s *analysisService) execute(parentCtx context.Context, workerID int, runID uuid.UUID) {
	run, err := s.runRepo.GetRunByID(parentCtx, runID)
	if err != nil || run == nil {
		if s.logger != nil {
			s.logger.Error("claimed run vanished",
				zap.String("run_id", runID.String()),
				zap.Error(err),
			)
		}
		return
	}
	if run.Status.Terminal() {
		// Cancelled between claim and pickup; nothing to do.
		return
	}

	ceiling := time.Duration(run.CeilingSeconds) * time.Second
	runCtx, cancel := runcontext.RunBegin(parentCtx, runID, workerID, ceiling)

	s.cancelMu.Lock()
	s.cancels[runID] = cancel
	s.cancelMu.Unlock()

	defer func() {
		s.cancelMu.Lock()
		delete(s.cancels, runID)
		s.cancelMu.Unlock()
		cancel()
	}()

	if s.logger != nil {
		s.logger.Info("worker claimed run",
			zap.Int("worker_id", workerID),
			zap.String("run_id", runID.String()),
		)
	}

	s.runPipeline(runCtx, parentCtx, run)
}

// pipelineState accumulates stage outputs so that a deadline cutoff can
// still assemble a partial report from whatever completed
type pipelineState struct {
	evidence  *entities.EvidenceFile
	segments  []entities.TranscriptSegment
	intervals []entities.SpeakerInterval
	speakers  entities.SpeakerMap
	entities  []entities.Entity
	result    discrepancy.Output
	flags     entities.ReportFlags
	warnings  []string
}

// runPipeline executes the stages in order, checking for cancellation at
// each stage boundary. persistCtx stays alive past the run ceiling so
// terminal states can always be written.
func (s *analysisService) runPipeline(ctx, persistCtx context.Context, run *entities.AnalysisRun) {
	state := &pipelineState{}

	stages := []struct {
		status entities.RunStatus
		fn     func(context.Context, *entities.AnalysisRun, *pipelineState) error
	}{
		{entities.RunStatusHashing, s.stageIngest},
		{entities.RunStatusTranscribing, s.stageTranscribeAndDiarize},
		{entities.RunStatusMerging, s.stageMerge},
		{entities.RunStatusExtracting, s.stageExtract},
		{entities.RunStatusDetecting, s.stageDetect},
	}

	for _, stage := range stages {
		if stopped := s.checkBoundary(ctx, persistCtx, run, state); stopped {
			return
		}

		if err := s.advance(persistCtx, run, stage.status); err != nil {
			if errors.Is(err, domainrepo.ErrRunTerminal) {
				// Cancelled out from under the worker; the terminal
				// status stands and all pipeline work is discarded.
				if s.logger != nil {
					s.logger.Info("run terminated externally, abandoning pipeline",
						zap.String("run_id", run.ID.String()),
					)
				}
				return
			}
			s.fail(persistCtx, run, fmt.Sprintf("failed to advance run: %v", err))
			return
		}

		if err := stage.fn(ctx, run, state); err != nil {
			if errors.Is(err, domainrepo.ErrRunTerminal) {
				return
			}
			// A dead context surfaces as a stage error too; classify it
			// at the boundary rather than failing the run.
			if ctx.Err() != nil {
				if stopped := s.checkBoundary(ctx, persistCtx, run, state); stopped {
					return
				}
			}
			s.fail(persistCtx, run, err.Error())
			return
		}
	}

	if stopped := s.checkBoundary(ctx, persistCtx, run, state); stopped {
		return
	}
	s.complete(persistCtx, run, state)
}

// checkBoundary handles the two ways a run stops early: explicit
// cancellation discards all work, while a wall-clock cutoff freezes a
// partial report. Returns true when the run reached a terminal state.
func (s *analysisService) checkBoundary(ctx, persistCtx context.Context, run *entities.AnalysisRun, state *pipelineState) bool {
	if ctx.Err() == nil {
		return false
	}

	if runcontext.DeadlineExpired(ctx) {
		state.flags.DeadlineExceeded = true
		state.warnings = append(state.warnings, "analysis stopped at the wall-clock ceiling; report reflects completed stages only")
		if s.logger != nil {
			s.logger.Warn("run hit wall-clock ceiling",
				zap.String("run_id", run.ID.String()),
				zap.String("stage", string(run.Status)),
			)
		}
		s.complete(persistCtx, run, state)
		return true
	}

	if s.cache != nil {
		s.cache.InvalidateRun(persistCtx, run.ID)
	}
	if err := s.runRepo.MarkRunCancelled(persistCtx, run.ID); err != nil && !errors.Is(err, domainrepo.ErrRunTerminal) && s.logger != nil {
		s.logger.Error("failed to persist cancellation",
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
	}
	if s.logger != nil {
		s.logger.Info("run cancelled",
			zap.String("run_id", run.ID.String()),
			zap.String("stage", string(run.Status)),
		)
	}
	return true
}

func (s *analysisService) advance(ctx context.Context, run *entities.AnalysisRun, status entities.RunStatus) error {
	run.AdvanceTo(status)
	if err := s.runRepo.UpdateRunStatus(ctx, run.ID, status); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.SetRun(ctx, run)
	}
	return nil
}

func (s *analysisService) stageIngest(ctx context.Context, run *entities.AnalysisRun, state *pipelineState) error {
	meta := entities.AcquisitionMeta{
		AcquiredBy:     run.AcquiredBy,
		Source:         run.Source,
		DisplayName:    run.DisplayName,
		CaseNumber:     run.CaseNumber,
		EvidenceNumber: run.EvidenceNumber,
	}
	ev, err := s.tracker.Ingest(ctx, run.EvidencePath, meta)
	if err != nil {
		return err
	}
	state.evidence = ev
	return nil
}

// stageTranscribeAndDiarize runs both engines concurrently against
// independent read views of the same verified evidence. Engine
// unavailability degrades the report instead of failing the run.
func (s *analysisService) stageTranscribeAndDiarize(ctx context.Context, run *entities.AnalysisRun, state *pipelineState) error {
	// Every access to the nominal path re-verifies the acquisition
	// digest. A file that changed since ingest must never reach an
	// engine; the mismatch fails the run.
	if err := s.tracker.Verify(ctx, state.evidence); err != nil {
		return err
	}

	src := capability.Source{
		Digest:      state.evidence.SHA256,
		DisplayName: state.evidence.DisplayName,
		Open: func() (io.ReadCloser, error) {
			if err := s.tracker.Verify(ctx, state.evidence); err != nil {
				return nil, err
			}
			return os.Open(state.evidence.Path)
		},
	}

	var (
		wg         sync.WaitGroup
		transcript *capability.RawTranscript
		intervals  []entities.SpeakerInterval
		tErr, dErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		transcript, tErr = s.transcriber.Transcribe(ctx, src)
	}()
	go func() {
		defer wg.Done()
		intervals, dErr = s.diarizer.Diarize(ctx, src)
	}()
	wg.Wait()

	if err := s.advance(ctx, run, entities.RunStatusDiarizing); err != nil {
		if errors.Is(err, domainrepo.ErrRunTerminal) {
			return err
		}
		if s.logger != nil {
			s.logger.Warn("failed to advance stage marker", zap.Error(err))
		}
	}

	if tErr != nil {
		if !errors.Is(tErr, capability.ErrEngineUnavailable) {
			return apperrors.ErrEngineFailed("transcription", tErr)
		}
		state.flags.TranscriptionDegraded = true
		state.warnings = append(state.warnings, "transcription engine unavailable; transcript is empty")
		if s.logger != nil {
			s.logger.Warn("transcription degraded",
				zap.String("run_id", run.ID.String()),
				zap.Error(tErr),
			)
		}
	} else if transcript != nil {
		state.segments = transcript.Segments
	}

	if dErr != nil {
		if !errors.Is(dErr, capability.ErrEngineUnavailable) {
			return apperrors.ErrEngineFailed("diarization", dErr)
		}
		state.flags.DiarizationDegraded = true
		state.warnings = append(state.warnings, "diarization engine unavailable; all speech attributed to a single unknown speaker")
		if s.logger != nil {
			s.logger.Warn("diarization degraded",
				zap.String("run_id", run.ID.String()),
				zap.Error(dErr),
			)
		}
		intervals = nil
	}

	state.intervals = intervals
	return nil
}

func (s *analysisService) stageMerge(ctx context.Context, run *entities.AnalysisRun, state *pipelineState) error {
	result := s.merger.Merge(state.segments, state.intervals, run.Inputs.Roster)
	state.segments = result.Segments
	state.speakers = result.Speakers
	return nil
}

func (s *analysisService) stageExtract(ctx context.Context, run *entities.AnalysisRun, state *pipelineState) error {
	if state.flags.TranscriptionDegraded || len(state.segments) == 0 {
		// Nothing to extract from
		return nil
	}
	ents, err := s.extractor.Extract(ctx, state.evidence.SHA256, state.segments)
	if err != nil {
		if !errors.Is(err, capability.ErrEngineUnavailable) {
			return apperrors.ErrEngineFailed("entity extraction", err)
		}
		state.flags.EntityExtractionDegraded = true
		state.warnings = append(state.warnings, "entity extraction unavailable; entity list and statement comparison are empty")
		if s.logger != nil {
			s.logger.Warn("entity extraction degraded",
				zap.String("run_id", run.ID.String()),
				zap.Error(err),
			)
		}
		return nil
	}
	state.entities = ents
	return nil
}

func (s *analysisService) stageDetect(ctx context.Context, run *entities.AnalysisRun, state *pipelineState) error {
	state.result = s.detector.Detect(discrepancy.Input{
		Segments:        state.segments,
		Entities:        state.entities,
		Timeline:        run.Inputs.ExternalTimeline,
		TimelineSource:  run.Inputs.TimelineSource,
		Narrative:       run.Inputs.ExternalNarrative,
		NarrativeSource: run.Inputs.NarrativeSource,
	})
	return nil
}

// complete assembles the frozen report from whatever stages finished and
// terminates the run
func (s *analysisService) complete(ctx context.Context, run *entities.AnalysisRun, state *pipelineState) {
	if state.evidence == nil {
		// Ceiling hit before custody finished; without a digest there is
		// no defensible report to freeze.
		s.fail(ctx, run, "wall-clock ceiling reached before evidence ingestion completed")
		return
	}

	warnings := append(state.warnings, state.result.Warnings...)
	rep := s.assembler.Assemble(report.Inputs{
		Evidence:       *state.evidence,
		CaseNumber:     run.CaseNumber,
		EvidenceNumber: run.EvidenceNumber,
		Segments:       state.segments,
		Speakers:       state.speakers,
		Entities:       state.entities,
		Discrepancies:  state.result.Discrepancies,
		Flags:          state.flags,
		Warnings:       warnings,
	})

	run.MarkAsComplete(rep)
	if s.cache != nil {
		s.cache.InvalidateRun(ctx, run.ID)
	}
	if err := s.runRepo.MarkRunComplete(ctx, run); err != nil {
		if errors.Is(err, domainrepo.ErrRunTerminal) {
			if s.logger != nil {
				s.logger.Info("run terminated externally, report discarded",
					zap.String("run_id", run.ID.String()),
				)
			}
			return
		}
		if s.logger != nil {
			s.logger.Error("failed to persist completed run",
				zap.String("run_id", run.ID.String()),
				zap.Error(err),
			)
		}
		return
	}

	if s.logger != nil {
		s.logger.Info("run complete",
			zap.String("run_id", run.ID.String()),
			zap.Bool("fully_verified", rep.FullyVerified()),
			zap.Int("discrepancies", rep.Stats.DiscrepancyTotal),
		)
	}
}

func (s *analysisService) fail(ctx context.Context, run *entities.AnalysisRun, reason string) {
	if s.cache != nil {
		s.cache.InvalidateRun(ctx, run.ID)
	}
	if err := s.runRepo.MarkRunFailed(ctx, run.ID, reason); err != nil && !errors.Is(err, domainrepo.ErrRunTerminal) && s.logger != nil {
		s.logger.Error("failed to persist run failure",
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
	}
	if s.logger != nil {
		s.logger.Error("run failed",
			zap.String("run_id", run.ID.String()),
			zap.String("reason", reason),
		)
	}
}
