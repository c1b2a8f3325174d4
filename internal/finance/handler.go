package finance

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"golang.org/x/sync/singleflight"

	"github.com/tapiceria-erp/tapiceria-erp/internal/platform/httpx"
	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// Handler serves the financial summary. Nothing is cached: every request
// recomputes from a full ledger scan, with concurrent requests for the
// same company collapsed into one scan.
type Handler struct {
	logger *slog.Logger
	loader *Loader
	group  singleflight.Group
}

// NewHandler constructs the finance handler.
func NewHandler(logger *slog.Logger, loader *Loader) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, loader: loader}
}

// MountRoutes registers finance routes. The summary walks every ledger, so
// it carries a per-IP rate limit.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, time.Minute))
		r.Get("/finance/summary", h.handleSummary)
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	// The scan runs once for all collapsed callers, so it must not die
	// with whichever caller happened to start it.
	ctx := context.WithoutCancel(r.Context())
	v, err, _ := h.group.Do(companyID, func() (any, error) {
		return h.loader.Summary(ctx, companyID)
	})
	if err != nil {
		h.logger.Error("build financial summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v.(Summary))
}
