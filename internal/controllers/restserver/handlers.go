package restserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/chrissnell/wastecast/internal/forecast"
	"github.com/chrissnell/wastecast/internal/report"
	"github.com/chrissnell/wastecast/pkg/responseformat"
)

// Handlers contains all HTTP handlers for the REST server
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// timeSeriesResponse is the body of /api/timeseries
type timeSeriesResponse struct {
	Success        bool                       `json:"success"`
	TimeSeriesData []forecast.TimeSeriesPoint `json:"timeSeriesData"`
}

// GetForecast handles /api/forecast
func (h *Handlers) GetForecast(w http.ResponseWriter, req *http.Request) {
	fr, err := parseForecastRequest(req.URL.Query())
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	env, err := h.controller.service.Forecast(req.Context(), fr)
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	headers := map[string]string{"Cache-Control": "max-age=60"}
	if err := h.formatter.WriteResponse(w, req, http.StatusOK, env, headers); err != nil {
		h.controller.logger.Errorw("error encoding forecast response", "request_id", requestID(req), "error", err)
	}
}

// GetTimeSeries handles /api/timeseries
func (h *Handlers) GetTimeSeries(w http.ResponseWriter, req *http.Request) {
	filter, err := parseFilter(req.URL.Query())
	if err != nil {
		h.writeError(w, req, err)
		return
	}

	points, err := h.controller.service.TimeSeries(req.Context(), filter)
	if err != nil {
		h.writeError(w, req, err)
		return
	}
	if points == nil {
		points = []forecast.TimeSeriesPoint{}
	}

	resp := timeSeriesResponse{Success: true, TimeSeriesData: points}
	if err := h.formatter.WriteResponse(w, req, http.StatusOK, resp, nil); err != nil {
		h.controller.logger.Errorw("error encoding time series response", "request_id", requestID(req), "error", err)
	}
}

// GetHealth handles /healthz
func (h *Handlers) GetHealth(w http.ResponseWriter, req *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK

	if h.controller.db != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := h.controller.db.Ping(ctx); err != nil {
			h.controller.logger.Warnw("health check database ping failed", "error", err)
			status["status"] = "degraded"
			status["database"] = "unreachable"
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}

	if err := h.formatter.WriteResponse(w, req, code, status, nil); err != nil {
		h.controller.logger.Errorw("error encoding health response", "request_id", requestID(req), "error", err)
	}
}

// statusFor maps an error to the HTTP status returned to the client
func statusFor(err error) int {
	var pe *paramError
	switch {
	case errors.As(err, &pe), forecast.IsConfigError(err):
		return http.StatusBadRequest
	case forecast.IsDataError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, req *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		h.controller.logger.Errorw("forecast request failed",
			"request_id", requestID(req),
			"outcome", report.Outcome(err),
			"error", err)
		// Store errors may carry connection details
		if !forecast.IsComputeError(err) {
			message = "error fetching waste data"
		}
	} else {
		h.controller.logger.Debugw("rejected forecast request", "request_id", requestID(req), "error", err)
	}

	h.formatter.WriteError(w, req, status, message)
}
