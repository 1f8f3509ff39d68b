package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"PriceCast/internal/domain/models"
	xhttp "PriceCast/pkg/http"
	xlogger "PriceCast/pkg/logger"
)

type forecastService interface {
	Series(ctx context.Context, id models.Identity, steps int) (*models.ForecastSeries, error)
	MaxSteps() int
}

// ForecastHandler serves raw forecast series over HTTP and websocket.
type ForecastHandler struct {
	logger    *xlogger.Logger
	predictor forecastService
	upgrader  websocket.Upgrader
	writeWait time.Duration
}

func NewForecastHandler(logger *xlogger.Logger, predictor forecastService) *ForecastHandler {
	return &ForecastHandler{
		logger:    logger,
		predictor: predictor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeWait: 10 * time.Second,
	}
}

func (h *ForecastHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/forecast/:ticker", h.Forecast)
	e.GET("/ws/forecast/:ticker", h.Stream)
}

func (h *ForecastHandler) bind(c echo.Context) (models.Identity, int, []xhttp.ValidationError) {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return models.Identity{}, 0, verr
	}
	if limit := h.predictor.MaxSteps(); req.Steps > limit {
		return models.Identity{}, 0, []xhttp.ValidationError{{
			Code:    "ERR_LTE",
			Field:   "Steps",
			Message: fmt.Sprintf("Steps must be less than or equal to %d", limit),
			Params:  map[string]interface{}{"lte": limit},
		}}
	}
	return models.NewIdentity(req.Ticker, req.Interval), req.Steps, nil
}

func (h *ForecastHandler) Forecast(c echo.Context) error {
	id, steps, verr := h.bind(c)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.predictor.Series(c.Request().Context(), id, steps)
	if err != nil {
		h.logger.Warn("forecast error", xlogger.String("identity", id.Key()), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

type streamDone struct {
	Done  bool   `json:"done"`
	Steps int    `json:"steps"`
	Error string `json:"error,omitempty"`
}

// Stream upgrades to a websocket, sends one message per forecast step and
// a final done message. Failures are reported in the done message.
func (h *ForecastHandler) Stream(c echo.Context) error {
	id, steps, verr := h.bind(c)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	res, err := h.predictor.Series(c.Request().Context(), id, steps)
	if err != nil {
		return h.write(conn, streamDone{Done: true, Error: toAppError(err).Message})
	}
	for _, p := range res.Points {
		if err := h.write(conn, p); err != nil {
			h.logger.Debug("websocket client went away", xlogger.String("identity", id.Key()), xlogger.Error(err))
			return nil
		}
	}
	if err := h.write(conn, streamDone{Done: true, Steps: len(res.Points)}); err != nil {
		return nil
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(h.writeWait))
	return nil
}

func (h *ForecastHandler) write(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(h.writeWait))
	return conn.WriteJSON(v)
}
