package expenses

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tapiceria-erp/tapiceria-erp/internal/platform/httpx"
	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// Handler wires HTTP endpoints for the expense ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the expenses handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers expense routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/expenses", h.handleList)
	r.Post("/expenses", h.handleCreate)
	r.Get("/expenses/{id}", h.handleGet)
	r.Delete("/expenses/{id}", h.handleDelete)
}

type createExpenseRequest struct {
	Name          string  `json:"name" validate:"required"`
	Category      string  `json:"category" validate:"required"`
	Amount        float64 `json:"amount" validate:"gt=0"`
	Kind          string  `json:"kind"`
	PaymentMethod string  `json:"payment_method"`
	Date          string  `json:"date,omitempty"`
	Frequency     string  `json:"frequency"`
	HasInvoice    bool    `json:"has_invoice"`
	InvoiceNumber string  `json:"invoice_number"`
	Supplier      string  `json:"supplier"`
	SupplierTaxID string  `json:"supplier_tax_id"`
	Area          string  `json:"area"`
	Notes         string  `json:"notes"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var date time.Time
	if req.Date != "" {
		parsed, err := time.Parse(time.RFC3339, req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Timestamp", "expected RFC 3339 timestamp")
			return
		}
		date = parsed
	}
	e, err := h.service.Create(r.Context(), shared.CompanyFromContext(r.Context()), CreateInput{
		Name:          req.Name,
		Category:      Category(req.Category),
		Amount:        req.Amount,
		Kind:          ExpenseKind(req.Kind),
		PaymentMethod: req.PaymentMethod,
		Date:          date,
		Frequency:     Frequency(req.Frequency),
		HasInvoice:    req.HasInvoice,
		InvoiceNumber: req.InvoiceNumber,
		Supplier:      req.Supplier,
		SupplierTaxID: req.SupplierTaxID,
		Area:          Area(req.Area),
		Notes:         req.Notes,
	})
	if err != nil {
		h.respondError(w, "create expense", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), shared.CompanyFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "delete expense", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	e, err := h.service.Get(r.Context(), shared.CompanyFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get expense", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), shared.CompanyFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "list expenses", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidCategory):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error(op, slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
