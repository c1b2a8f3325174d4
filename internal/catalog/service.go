package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tapiceria-erp/tapiceria-erp/internal/materials"
	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// RepositoryPort abstracts catalog persistence.
type RepositoryPort interface {
	Insert(ctx context.Context, p Product) error
	Delete(ctx context.Context, companyID, id string) error
	Get(ctx context.Context, companyID, id string) (Product, error)
	List(ctx context.Context, companyID string) ([]Product, error)
}

// MaterialSource supplies current materials for live cost estimation.
type MaterialSource interface {
	List(ctx context.Context, companyID string) ([]materials.Material, error)
}

// Service manages the product/recipe catalog.
type Service struct {
	repo      RepositoryPort
	inventory MaterialSource
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, inventory MaterialSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, inventory: inventory, logger: logger, now: time.Now}
}

// CreateInput describes a new product with its recipe.
type CreateInput struct {
	Name           string
	Description    string
	SuggestedPrice float64
	Stock          float64
	Recipe         []RecipeItem
}

// Create persists the product together with its recipe rows.
func (s *Service) Create(ctx context.Context, companyID string, in CreateInput) (Product, error) {
	if companyID == "" {
		return Product{}, shared.ErrCompanyRequired
	}
	if in.Name == "" {
		return Product{}, ErrEmptyName
	}
	for _, item := range in.Recipe {
		if item.Quantity <= 0 {
			return Product{}, ErrInvalidRecipe
		}
	}
	p := Product{
		ID:             uuid.NewString(),
		CompanyID:      companyID,
		Name:           in.Name,
		Description:    in.Description,
		SuggestedPrice: in.SuggestedPrice,
		Stock:          in.Stock,
		Recipe:         in.Recipe,
		CreatedAt:      s.now(),
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// Delete removes a product and its recipe.
func (s *Service) Delete(ctx context.Context, companyID, id string) error {
	if companyID == "" {
		return shared.ErrCompanyRequired
	}
	return s.repo.Delete(ctx, companyID, id)
}

// Get returns one product with its recipe.
func (s *Service) Get(ctx context.Context, companyID, id string) (Product, error) {
	if companyID == "" {
		return Product{}, shared.ErrCompanyRequired
	}
	return s.repo.Get(ctx, companyID, id)
}

// ProductView decorates a product with its live estimated cost.
type ProductView struct {
	Product
	EstimatedCost float64 `json:"estimated_cost"`
}

// List returns all products with live cost estimates.
func (s *Service) List(ctx context.Context, companyID string) ([]ProductView, error) {
	if companyID == "" {
		return nil, shared.ErrCompanyRequired
	}
	products, err := s.repo.List(ctx, companyID)
	if err != nil {
		return nil, err
	}
	mats, err := s.inventory.List(ctx, companyID)
	if err != nil {
		return nil, err
	}
	byID := MaterialIndex(mats)
	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, ProductView{Product: p, EstimatedCost: EstimateCost(p.Recipe, byID)})
	}
	return views, nil
}

// MaterialIndex keys materials by id for recipe lookups.
func MaterialIndex(mats []materials.Material) map[string]materials.Material {
	byID := make(map[string]materials.Material, len(mats))
	for _, m := range mats {
		byID[m.ID] = m
	}
	return byID
}

// EstimateCost sums quantity times the material's current average cost.
// Recipe lines pointing at unknown materials contribute nothing.
func EstimateCost(recipe []RecipeItem, byID map[string]materials.Material) float64 {
	var total float64
	for _, item := range recipe {
		if m, ok := byID[item.MaterialID]; ok {
			total += item.Quantity * m.AvgUnitCost
		}
	}
	return total
}

// ValidateAvailability checks every recipe line against current stock and
// collects all shortfalls, not just the first.
func ValidateAvailability(recipe []RecipeItem, byID map[string]materials.Material) []materials.Shortfall {
	var short []materials.Shortfall
	for _, item := range recipe {
		m, ok := byID[item.MaterialID]
		if !ok {
			short = append(short, materials.Shortfall{
				MaterialID: item.MaterialID,
				Name:       "Material Desconocido",
				Required:   item.Quantity,
			})
			continue
		}
		if m.QuantityOnHand < item.Quantity {
			short = append(short, materials.Shortfall{
				MaterialID: m.ID,
				Name:       m.Name,
				Required:   item.Quantity,
				Available:  m.QuantityOnHand,
			})
		}
	}
	return short
}
