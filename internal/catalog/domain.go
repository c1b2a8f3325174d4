package catalog

import (
	"errors"
	"time"
)

// RecipeItem binds a quantity of one material into a product's recipe.
type RecipeItem struct {
	MaterialID string  `json:"material_id"`
	Quantity   float64 `json:"quantity"`
}

// Product is a manufactured good described by a fixed recipe. Its
// estimated cost is always evaluated live against current material
// averages; only orders freeze costs.
type Product struct {
	ID             string       `json:"id"`
	CompanyID      string       `json:"company_id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	SuggestedPrice float64      `json:"suggested_price"`
	Stock          float64      `json:"stock"`
	Recipe         []RecipeItem `json:"recipe"`
	CreatedAt      time.Time    `json:"created_at"`
}

var (
	// ErrEmptyName indicates a product without a name.
	ErrEmptyName = errors.New("catalog: product name required")
	// ErrInvalidRecipe indicates a recipe line with non-positive quantity.
	ErrInvalidRecipe = errors.New("catalog: recipe quantities must be positive")
)
