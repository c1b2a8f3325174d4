package materials

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tapiceria-erp/tapiceria-erp/internal/platform/httpx"
	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// Handler wires HTTP endpoints for the material ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the materials handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers material routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/materials", h.handleList)
	r.Post("/materials", h.handleCreate)
	r.Get("/materials/movements", h.handleMovements)
	r.Get("/materials/{id}", h.handleGet)
	r.Post("/materials/{id}/purchases", h.handlePurchase)
	r.Post("/materials/{id}/waste", h.handleWaste)
	r.Post("/materials/{id}/corrections", h.handleCorrection)
	r.Post("/materials/asset-intakes", h.handleAssetIntake)
}

type createMaterialRequest struct {
	Name      string  `json:"name" validate:"required"`
	Kind      string  `json:"kind"`
	Unit      string  `json:"unit"`
	Quantity  float64 `json:"quantity_on_hand" validate:"gte=0"`
	UnitCost  float64 `json:"avg_unit_cost" validate:"gte=0"`
	MinStock  float64 `json:"min_stock" validate:"gte=0"`
	CreatedAt string  `json:"created_at,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createMaterialRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	createdAt, ok := parseOptionalTime(w, req.CreatedAt)
	if !ok {
		return
	}
	m, err := h.service.Create(r.Context(), shared.CompanyFromContext(r.Context()), CreateInput{
		Name:      req.Name,
		Kind:      req.Kind,
		Unit:      req.Unit,
		Quantity:  req.Quantity,
		UnitCost:  req.UnitCost,
		MinStock:  req.MinStock,
		CreatedAt: createdAt,
	})
	if err != nil {
		h.respondError(w, "create material", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

type purchaseRequest struct {
	Quantity   float64 `json:"quantity" validate:"gt=0"`
	TotalCost  float64 `json:"total_cost" validate:"gte=0"`
	HasInvoice bool    `json:"has_invoice"`
}

func (h *Handler) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.RegisterPurchase(r.Context(), shared.CompanyFromContext(r.Context()), PurchaseInput{
		MaterialID: chi.URLParam(r, "id"),
		Quantity:   req.Quantity,
		TotalCost:  req.TotalCost,
		HasInvoice: req.HasInvoice,
	})
	if err != nil {
		h.respondError(w, "register purchase", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

type wasteRequest struct {
	Quantity float64 `json:"quantity" validate:"gt=0"`
}

func (h *Handler) handleWaste(w http.ResponseWriter, r *http.Request) {
	var req wasteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.RegisterWaste(r.Context(), shared.CompanyFromContext(r.Context()), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		h.respondError(w, "register waste", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

type correctionRequest struct {
	Quantity float64 `json:"quantity" validate:"gt=0"`
	Reason   string  `json:"reason" validate:"required"`
}

func (h *Handler) handleCorrection(w http.ResponseWriter, r *http.Request) {
	var req correctionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	costRemoved, err := h.service.RegisterCorrection(r.Context(), shared.CompanyFromContext(r.Context()), chi.URLParam(r, "id"), req.Quantity, req.Reason)
	if err != nil {
		h.respondError(w, "register correction", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]float64{"cost_removed": costRemoved})
}

type assetIntakeRequest struct {
	Name      string  `json:"name" validate:"required"`
	Kind      string  `json:"kind"`
	Unit      string  `json:"unit"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	TotalCost float64 `json:"total_cost" validate:"gte=0"`
	Note      string  `json:"note"`
	OrderRef  string  `json:"order_ref,omitempty"`
	CreatedAt string  `json:"created_at,omitempty"`
}

func (h *Handler) handleAssetIntake(w http.ResponseWriter, r *http.Request) {
	var req assetIntakeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	createdAt, ok := parseOptionalTime(w, req.CreatedAt)
	if !ok {
		return
	}
	m, err := h.service.RegisterAssetIntake(r.Context(), shared.CompanyFromContext(r.Context()), AssetIntakeInput{
		Name:      req.Name,
		Kind:      req.Kind,
		Unit:      req.Unit,
		Quantity:  req.Quantity,
		TotalCost: req.TotalCost,
		Note:      req.Note,
		OrderRef:  req.OrderRef,
		CreatedAt: createdAt,
	})
	if err != nil {
		h.respondError(w, "register asset intake", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.Get(r.Context(), shared.CompanyFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get material", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), shared.CompanyFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "list materials", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListMovements(r.Context(), shared.CompanyFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var stockErr *InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		httpx.ProblemWithMeta(w, http.StatusConflict, "Insufficient Stock", stockErr.Error(), stockErr.Shortfalls)
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrInvalidCost):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error(op, slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}

// parseOptionalTime reports false after writing a problem response for an
// unparseable timestamp.
func parseOptionalTime(w http.ResponseWriter, v string) (time.Time, bool) {
	if v == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Timestamp", err.Error())
		return time.Time{}, false
	}
	return t, true
}
