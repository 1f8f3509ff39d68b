package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/service"
	xhttp "PriceCast/pkg/http"
	xlogger "PriceCast/pkg/logger"
)

type trainingService interface {
	Enqueue(ctx context.Context, id models.Identity, opts service.FitOptions) (models.TrainingJob, error)
}

type TrainHandler struct {
	logger  *xlogger.Logger
	trainer trainingService
}

func NewTrainHandler(logger *xlogger.Logger, trainer trainingService) *TrainHandler {
	return &TrainHandler{logger: logger, trainer: trainer}
}

func (h *TrainHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/train/:ticker", h.Train)
}

// Train queues a training job and answers 202 with the job.
func (h *TrainHandler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	id := models.NewIdentity(req.Ticker, req.Interval)
	job, err := h.trainer.Enqueue(c.Request().Context(), id, service.FitOptions{Epochs: req.Epochs, BatchSize: req.BatchSize})
	if err != nil {
		h.logger.Warn("enqueue training failed", xlogger.String("identity", id.Key()), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	h.logger.Info("training queued", xlogger.String("identity", id.Key()), xlogger.String("job", job.ID))
	return xhttp.AcceptedResponse(c, job)
}
