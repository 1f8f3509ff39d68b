package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/usecase"
	xhttp "PriceCast/pkg/http"
	xlogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

type stockService interface {
	Overview(ctx context.Context, p usecase.StockParams) (*models.StockOverview, error)
	PredictDate(ctx context.Context, ticker string, target time.Time) (*models.DateOverview, error)
}

// StockHandler serves the stock page payload. Its bodies are not wrapped
// in the response envelope; existing front-ends read them directly.
type StockHandler struct {
	logger *xlogger.Logger
	stock  stockService
	loc    *time.Location
}

func NewStockHandler(logger *xlogger.Logger, stock stockService) *StockHandler {
	return &StockHandler{logger: logger, stock: stock, loc: time.Local}
}

func (h *StockHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/stock/:ticker", h.Stock)
}

func (h *StockHandler) Stock(c echo.Context) error {
	req := &models.StockRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if req.TargetDate != "" {
		target, err := util.ParseDate(req.TargetDate, h.loc)
		if err != nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
		}
		res, err := h.stock.PredictDate(ctx, req.Ticker, target)
		if err != nil {
			h.logger.Error("stock date prediction error", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, toAppError(err))
		}
		return c.JSON(http.StatusOK, res)
	}

	res, err := h.stock.Overview(ctx, usecase.StockParams{
		Ticker:            req.Ticker,
		Interval:          req.Interval,
		IncludePrediction: includePrediction(req.IncludePrediction),
	})
	if err != nil {
		h.logger.Error("stock overview error", xlogger.String("ticker", req.Ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return c.JSON(http.StatusOK, res)
}

// includePrediction defaults to true when the flag is absent.
func includePrediction(v string) bool {
	if v == "" {
		return true
	}
	b, err := strconv.ParseBool(v)
	return err != nil || b
}
