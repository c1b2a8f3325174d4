package alerts

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/tapiceria-erp/tapiceria-erp/internal/platform/httpx"
	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// ScanEnqueuer queues an out-of-band digest run on the worker.
type ScanEnqueuer interface {
	EnqueueAlertDigest(ctx context.Context) error
}

// Handler wires HTTP endpoints for alerts.
type Handler struct {
	logger  *slog.Logger
	service *Service
	digests *DigestRepository
	scans   ScanEnqueuer
}

// NewHandler constructs the alerts handler. digests and scans may be nil
// when digest history or the job queue is not mounted.
func NewHandler(logger *slog.Logger, service *Service, digests *DigestRepository, scans ScanEnqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, digests: digests, scans: scans}
}

// MountRoutes registers alert routes. Evaluation walks every ledger, so
// the live endpoint carries a per-IP rate limit.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Get("/alerts", h.handleEvaluate)
	})
	if h.digests != nil {
		r.Get("/alerts/digests", h.handleDigests)
	}
	if h.scans != nil {
		r.Post("/alerts/scan", h.handleScan)
	}
}

func (h *Handler) handleScan(w http.ResponseWriter, r *http.Request) {
	if err := h.scans.EnqueueAlertDigest(r.Context()); err != nil {
		h.logger.Error("enqueue alert scan", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Evaluate(r.Context(), shared.CompanyFromContext(r.Context()))
	if err != nil {
		h.logger.Error("evaluate alerts", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Alert{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleDigests(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	list, err := h.digests.ListRecent(r.Context(), shared.CompanyFromContext(r.Context()), limit)
	if err != nil {
		h.logger.Error("list alert digests", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []Digest{}
	}
	httpx.JSON(w, http.StatusOK, list)
}
