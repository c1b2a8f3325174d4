package catalog

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tapiceria-erp/tapiceria-erp/internal/platform/httpx"
	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// Handler wires HTTP endpoints for the product catalog.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.handleList)
	r.Post("/products", h.handleCreate)
	r.Get("/products/{id}", h.handleGet)
	r.Delete("/products/{id}", h.handleDelete)
}

type recipeItemRequest struct {
	MaterialID string  `json:"material_id" validate:"required,uuid"`
	Quantity   float64 `json:"quantity" validate:"gt=0"`
}

type createProductRequest struct {
	Name           string              `json:"name" validate:"required"`
	Description    string              `json:"description"`
	SuggestedPrice float64             `json:"suggested_price" validate:"gte=0"`
	Stock          float64             `json:"stock" validate:"gte=0"`
	Recipe         []recipeItemRequest `json:"recipe" validate:"dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := shared.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	recipe := make([]RecipeItem, 0, len(req.Recipe))
	for _, item := range req.Recipe {
		recipe = append(recipe, RecipeItem{MaterialID: item.MaterialID, Quantity: item.Quantity})
	}
	p, err := h.service.Create(r.Context(), shared.CompanyFromContext(r.Context()), CreateInput{
		Name:           req.Name,
		Description:    req.Description,
		SuggestedPrice: req.SuggestedPrice,
		Stock:          req.Stock,
		Recipe:         recipe,
	})
	if err != nil {
		h.respondError(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Get(r.Context(), shared.CompanyFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context(), shared.CompanyFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), shared.CompanyFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrEmptyName), errors.Is(err, ErrInvalidRecipe):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error(op, slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
