package handler

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/casefile-labs/bwc-pipeline/errors"
	dto "github.com/casefile-labs/bwc-pipeline/internal/adapter/dto/analysis"
	"github.com/casefile-labs/bwc-pipeline/internal/domain/entities"
	"github.com/casefile-labs/bwc-pipeline/internal/usecase/analysis"
)

// Analysis exposes the analysis run lifecycle over HTTP
type Analysis struct {
	service analysis.Service
	logger  *zap.Logger
}

// NewAnalysisHandler creates the analysis handler
func NewAnalysisHandler(service analysis.Service, logger *zap.Logger) *Analysis {
	return &Analysis{service: service, logger: logger}
}

// Submit accepts a new analysis request and returns the run ID
// immediately; the pipeline runs asynchronously.
// POST /v1/analyses
func (h *Analysis) Submit(c echo.Context) error {
	var req dto.SubmitAnalysisRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	timeline := make([]entities.ExternalEvent, 0, len(req.ExternalTimeline))
	for _, ev := range req.ExternalTimeline {
		timeline = append(timeline, entities.ExternalEvent{
			EventType:        ev.EventType,
			TimestampSeconds: ev.TimestampSeconds,
			Actor:            ev.Actor,
		})
	}

	run, err := h.service.Submit(c.Request().Context(), analysis.SubmitRequest{
		EvidencePath: req.EvidencePath,
		Meta: entities.AcquisitionMeta{
			AcquiredBy:     req.AcquiredBy,
			Source:         req.Source,
			DisplayName:    req.DisplayName,
			CaseNumber:     req.CaseNumber,
			EvidenceNumber: req.EvidenceNumber,
		},
		Inputs: entities.RunInputs{
			Roster:            req.Roster,
			ExternalTimeline:  timeline,
			ExternalNarrative: req.ExternalNarrative,
			TimelineSource:    req.TimelineSource,
			NarrativeSource:   req.NarrativeSource,
		},
		CeilingSeconds: req.CeilingSeconds,
	})
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleAccepted(h.logger, c, dto.NewSubmitResponse(run))
}

// Status returns the current stage and progress of a run
// GET /v1/analyses/:id/status
func (h *Analysis) Status(c echo.Context) error {
	runID, err := h.runID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	run, err := h.service.Status(c.Request().Context(), runID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, dto.NewStatusResponse(run))
}

// Report returns the frozen report of a completed run
// GET /v1/analyses/:id/report
func (h *Analysis) Report(c echo.Context) error {
	runID, err := h.runID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	rep, err := h.service.Report(c.Request().Context(), runID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, rep)
}

// Export writes every export format of a completed run's report and
// returns the per-format outcomes
// POST /v1/analyses/:id/exports
func (h *Analysis) Export(c echo.Context) error {
	runID, err := h.runID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	outcomes, err := h.service.Export(c.Request().Context(), runID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, &dto.ExportResponse{
		RunID:    runID.String(),
		Outcomes: outcomes,
	})
}

// ListByCase returns every run filed under a case number
// GET /v1/cases/:caseNumber/analyses
func (h *Analysis) ListByCase(c echo.Context) error {
	caseNumber := c.Param("caseNumber")
	runs, err := h.service.ListByCase(c.Request().Context(), caseNumber)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	views := make([]*dto.StatusResponse, 0, len(runs))
	for i := range runs {
		views = append(views, dto.NewStatusResponse(&runs[i]))
	}
	return HandleSuccess(h.logger, c, views)
}

// Cancel requests cooperative cancellation of a run
// POST /v1/analyses/:id/cancel
func (h *Analysis) Cancel(c echo.Context) error {
	runID, err := h.runID(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	if err := h.service.Cancel(c.Request().Context(), runID); err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, map[string]string{
		"run_id": runID.String(),
		"status": "cancellation requested",
	})
}

func (h *Analysis) runID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errors.ErrInvalidArgument("run id must be a UUID")
	}
	return id, nil
}
