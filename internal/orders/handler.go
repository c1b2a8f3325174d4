package orders

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tapiceria-erp/tapiceria-erp/internal/materials"
	"github.com/tapiceria-erp/tapiceria-erp/internal/platform/httpx"
	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// Handler wires HTTP endpoints for the order ledger.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the orders handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.handleList)
	r.Post("/orders", h.handleCreate)
	r.Get("/payments", h.handleListAllPayments)
	r.Get("/orders/{id}", h.handleGet)
	r.Delete("/orders/{id}", h.handleDelete)
	r.Post("/orders/{id}/state", h.handleTransition)
	r.Post("/orders/{id}/payments", h.handlePayment)
	r.Get("/orders/{id}/payments", h.handleListPayments)
	r.Post("/orders/{id}/cancel", h.handleCancel)
}

type clientRequest struct {
	Name       string `json:"name" validate:"required"`
	NationalID string `json:"national_id"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	Vehicle    string `json:"vehicle"`
}

type customizationRequest struct {
	MainMaterialColor      string `json:"main_material_color"`
	SecondaryMaterialColor string `json:"secondary_material_color"`
	MainStitchColor        string `json:"main_stitch_color"`
	SecondaryStitchColor   string `json:"secondary_stitch_color"`
	MainStitchType         string `json:"main_stitch_type"`
	SecondaryStitchType    string `json:"secondary_stitch_type"`
}

type createOrderRequest struct {
	Client        clientRequest        `json:"client" validate:"required"`
	ProductID     string               `json:"product_id" validate:"required,uuid4"`
	WorkType      string               `json:"work_type"`
	SalePrice     float64              `json:"sale_price" validate:"gte=0"`
	DownPayment   float64              `json:"down_payment" validate:"gte=0"`
	InvoiceType   string               `json:"invoice_type" validate:"omitempty,oneof=FACTURA CONSUMIDOR_FINAL"`
	Customization customizationRequest `json:"customization"`
	Notes         string               `json:"notes"`
	CreatedAt     string               `json:"created_at,omitempty"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	createdAt, ok := h.parseOptionalTime(w, req.CreatedAt)
	if !ok {
		return
	}
	o, err := h.service.Create(r.Context(), shared.CompanyFromContext(r.Context()), CreateInput{
		Client: Client{
			Name:       req.Client.Name,
			NationalID: req.Client.NationalID,
			Phone:      req.Client.Phone,
			Address:    req.Client.Address,
			Vehicle:    req.Client.Vehicle,
		},
		ProductID:   req.ProductID,
		WorkType:    req.WorkType,
		SalePrice:   req.SalePrice,
		DownPayment: req.DownPayment,
		InvoiceType: InvoiceType(req.InvoiceType),
		Customization: Customization{
			MainMaterialColor:      req.Customization.MainMaterialColor,
			SecondaryMaterialColor: req.Customization.SecondaryMaterialColor,
			MainStitchColor:        req.Customization.MainStitchColor,
			SecondaryStitchColor:   req.Customization.SecondaryStitchColor,
			MainStitchType:         req.Customization.MainStitchType,
			SecondaryStitchType:    req.Customization.SecondaryStitchType,
		},
		Notes:     req.Notes,
		CreatedAt: createdAt,
	})
	if err != nil {
		h.respondError(w, "create order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, o)
}

type transitionRequest struct {
	State string `json:"state" validate:"required"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	o, err := h.service.Transition(r.Context(), shared.CompanyFromContext(r.Context()), chi.URLParam(r, "id"), State(req.State))
	if err != nil {
		h.respondError(w, "transition order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

type paymentRequest struct {
	Amount     float64 `json:"amount" validate:"gte=0"`
	Method     string  `json:"method"`
	HasInvoice bool    `json:"has_invoice"`
	Notes      string  `json:"notes"`
	Date       string  `json:"date,omitempty"`
}

func (h *Handler) handlePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, ok := h.parseOptionalTime(w, req.Date)
	if !ok {
		return
	}
	method := PaymentMethod(req.Method)
	if req.Method == "" {
		method = MethodCash
	}
	o, err := h.service.RegisterPayment(r.Context(), shared.CompanyFromContext(r.Context()), PaymentInput{
		OrderID:    chi.URLParam(r, "id"),
		Amount:     req.Amount,
		Method:     method,
		HasInvoice: req.HasInvoice,
		Notes:      req.Notes,
		Date:       date,
	})
	if err != nil {
		h.respondError(w, "register payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required,oneof=DEVOLUCION CANCELADO_FABRICACION"`
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	o, err := h.service.Cancel(r.Context(), shared.CompanyFromContext(r.Context()), chi.URLParam(r, "id"), State(req.Reason))
	if err != nil {
		h.respondError(w, "cancel order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), shared.CompanyFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "delete order", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Get(r.Context(), shared.CompanyFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, o)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), shared.CompanyFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleListPayments(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPayments(r.Context(), shared.CompanyFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "list order payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleListAllPayments(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPayments(r.Context(), shared.CompanyFromContext(r.Context()), "")
	if err != nil {
		h.respondError(w, "list payments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	var stockErr *materials.InsufficientStockError
	switch {
	case errors.As(err, &stockErr):
		httpx.ProblemWithMeta(w, http.StatusConflict, "Insufficient Stock", stockErr.Error(), stockErr.Shortfalls)
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidCancelReason):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	default:
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error(op, slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}

func (h *Handler) parseOptionalTime(w http.ResponseWriter, raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Timestamp", "expected RFC 3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}
