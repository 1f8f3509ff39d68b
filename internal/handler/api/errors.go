package api

import (
	"context"
	"errors"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/service/twelvedata"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/forecast"
	"PriceCast/internal/usecase"
	xhttp "PriceCast/pkg/http"
	"PriceCast/pkg/queue"
)

// toAppError classifies a usecase error for transport.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, forecast.ErrNotFound):
		return xhttp.NotFoundError("no trained model for this ticker and interval").WithError(err)
	case errors.Is(err, forecast.ErrInvalidHorizon),
		errors.Is(err, forecast.ErrPastDate),
		errors.Is(err, forecast.ErrTooFar):
		return xhttp.UnprocessableError("invalid forecast horizon").WithError(err)
	case errors.Is(err, features.ErrInsufficientData),
		errors.Is(err, domrepo.ErrNoMarketData):
		return xhttp.UnprocessableError("not enough market data").WithError(err)
	case errors.Is(err, twelvedata.ErrNoAPIKey):
		return xhttp.InternalError("API key is not configured.").WithError(err)
	case errors.Is(err, models.ErrUpstreamData):
		return xhttp.UpstreamError("market data provider error").WithError(err)
	case errors.Is(err, usecase.ErrTrainingInProgress):
		return xhttp.ConflictError("training already in progress").WithError(err)
	case errors.Is(err, queue.ErrDisabled):
		return xhttp.UnavailableError("training queue is disabled").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.UnavailableError("request timed out").WithError(err)
	}
	var statusErr *xhttp.StatusError
	if errors.As(err, &statusErr) {
		return xhttp.UpstreamError("market data provider error").WithError(err)
	}
	return xhttp.InternalError("Something went wrong").WithError(err)
}
