package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"MarketGate/internal/domain/models"
	"MarketGate/internal/domain/repository"
	"MarketGate/internal/service/approval"
	"MarketGate/internal/usecase"
	xhttp "MarketGate/pkg/http"
	applogger "MarketGate/pkg/logger"
)

// GateHandler exposes the compliance-gated retrieval tools over HTTP.
type GateHandler struct {
	l         *applogger.Logger
	gate      *usecase.Gate
	approvals *approval.Registry
	cache     repository.RecordCache
}

// NewGateHandler creates the HTTP handler for the gate.
func NewGateHandler(l *applogger.Logger, gate *usecase.Gate, approvals *approval.Registry, cache repository.RecordCache) *GateHandler {
	return &GateHandler{l: l, gate: gate, approvals: approvals, cache: cache}
}

// RegisterRoutes registers all gate endpoints.
func (h *GateHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/tools/check_client_suitability", h.CheckSuitability)
	e.POST("/tools/get_market_data", h.GetMarketData)
	e.POST("/workflow/run", h.RunWorkflow)
	e.POST("/workflow/approve", h.Approve)
	e.GET("/workflow/pending", h.Pending)
	e.GET("/cache/stats", h.CacheStats)
	e.GET("/healthz", h.Health)
}

type tickerRequest struct {
	Ticker    string `json:"ticker" validate:"required,max=32"`
	SessionID string `json:"session_id" default:"default" validate:"max=128"`
}

type approveRequest struct {
	Ticker     string `json:"ticker" validate:"required,max=32"`
	Approved   *bool  `json:"approved" validate:"required"`
	ApproverID string `json:"approver_id" validate:"required,max=128"`
}

// CheckSuitability runs validation and the four screening layers without
// touching retrieval.
func (h *GateHandler) CheckSuitability(c echo.Context) error {
	var req tickerRequest
	if errs := xhttp.ReadAndValidateRequest(c, &req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}

	decision, rerr := h.gate.CheckEntity(c.Request().Context(), req.Ticker)
	if rerr != nil {
		return retrievalErrorResponse(c, rerr)
	}
	return xhttp.SuccessResponse(c, decision)
}

// GetMarketData runs the retrieval pipeline (cache, rate limit, fetch,
// normalize) for a symbol.
func (h *GateHandler) GetMarketData(c echo.Context) error {
	var req tickerRequest
	if errs := xhttp.ReadAndValidateRequest(c, &req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}

	record, rerr := h.gate.GetEntityData(c.Request().Context(), req.Ticker, req.SessionID)
	if rerr != nil {
		return retrievalErrorResponse(c, rerr)
	}
	return xhttp.SuccessResponse(c, record)
}

// RunWorkflow executes the full gated workflow and returns its terminal
// result, including the compliance decision.
func (h *GateHandler) RunWorkflow(c echo.Context) error {
	var req tickerRequest
	if errs := xhttp.ReadAndValidateRequest(c, &req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}

	res := h.gate.Run(c.Request().Context(), req.Ticker, req.SessionID)
	return xhttp.SuccessResponse(c, res)
}

// Approve resolves a watchlist hold with an explicit human decision.
func (h *GateHandler) Approve(c echo.Context) error {
	var req approveRequest
	if errs := xhttp.ReadAndValidateRequest(c, &req); errs != nil {
		return xhttp.BadRequestResponse(c, errs)
	}

	delivered := h.approvals.Resolve(req.Ticker, *req.Approved, req.ApproverID)
	if !delivered {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no workflow holding on ticker %s", req.Ticker))
	}

	h.l.Info("hold resolved",
		applogger.String("ticker", req.Ticker),
		applogger.Bool("approved", *req.Approved),
		applogger.String("approver_id", req.ApproverID),
	)
	return xhttp.SuccessResponse(c, map[string]any{"ticker": req.Ticker, "delivered": true})
}

// Pending lists symbols currently held for approval.
func (h *GateHandler) Pending(c echo.Context) error {
	pending := h.approvals.Pending()
	return xhttp.ListResponse(c, pending, int64(len(pending)))
}

// CacheStats reports a monitoring snapshot of the record cache.
func (h *GateHandler) CacheStats(c echo.Context) error {
	stats, err := h.cache.Stats(c.Request().Context())
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("cache stats: %v", err))
	}
	return xhttp.SuccessResponse(c, stats)
}

// Health is a liveness probe.
func (h *GateHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// retrievalErrorResponse maps a typed retrieval failure to an HTTP status.
// The error body is returned as-is so callers can branch on error_code.
func retrievalErrorResponse(c echo.Context, rerr *models.RetrievalError) error {
	status := http.StatusInternalServerError
	switch rerr.Code {
	case models.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case models.ErrCodeComplianceDenied, models.ErrCodeOwnershipDataUnavailable:
		status = http.StatusForbidden
	case models.ErrCodeRateLimitExceeded:
		status = http.StatusTooManyRequests
	case models.ErrCodeInvalidTicker:
		status = http.StatusNotFound
	case models.ErrCodeAPIThrottle, models.ErrCodeNetworkError:
		status = http.StatusBadGateway
	case models.ErrCodeInsufficientData:
		status = http.StatusUnprocessableEntity
	}
	return xhttp.DataResponse(c, status, rerr)
}
