package materials

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MovementKind enumerates inventory movement types.
type MovementKind string

const (
	// MovementPurchase records a stock purchase.
	MovementPurchase MovementKind = "PURCHASE"
	// MovementConsumption records material consumed by a work order.
	MovementConsumption MovementKind = "CONSUMPTION"
	// MovementWaste records merma: physical loss with no new cost.
	MovementWaste MovementKind = "WASTE"
	// MovementAssetIntake records recovered or donated assets entering stock.
	MovementAssetIntake MovementKind = "ASSET_INTAKE"
	// MovementCorrection records a data-entry reversal.
	MovementCorrection MovementKind = "CORRECTION"
)

// KindFinishedProduct is the default kind for materials created through
// asset intake.
const KindFinishedProduct = "Producto Terminado"

// UnitEach is the default measurement unit.
const UnitEach = "Unidad"

// Material is a stocked raw material or recovered asset. QuantityOnHand
// times AvgUnitCost is the total capitalized value of the material.
type Material struct {
	ID             string    `json:"id"`
	CompanyID      string    `json:"company_id"`
	Name           string    `json:"name"`
	Kind           string    `json:"kind"`
	Unit           string    `json:"unit"`
	QuantityOnHand float64   `json:"quantity_on_hand"`
	AvgUnitCost    float64   `json:"avg_unit_cost"`
	MinStock       float64   `json:"min_stock"`
	CreatedAt      time.Time `json:"created_at"`
}

// Movement is an append-only audit record. It is never read back to
// recompute stock; state lives on the material row.
type Movement struct {
	ID          string       `json:"id"`
	CompanyID   string       `json:"company_id"`
	MaterialID  string       `json:"material_id"`
	Kind        MovementKind `json:"kind"`
	Quantity    float64      `json:"quantity"`
	TotalCost   float64      `json:"total_cost"`
	OriginNote  string       `json:"origin_note,omitempty"`
	ReferenceID string       `json:"reference_id,omitempty"`
	Date        time.Time    `json:"date"`
}

// Shortfall describes one material that cannot cover a requested quantity.
type Shortfall struct {
	MaterialID string  `json:"material_id"`
	Name       string  `json:"name"`
	Required   float64 `json:"required"`
	Available  float64 `json:"available"`
}

// InsufficientStockError reports every short material in one pass so the
// operator does not have to retry per material.
type InsufficientStockError struct {
	Shortfalls []Shortfall
}

func (e *InsufficientStockError) Error() string {
	names := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		names = append(names, s.Name)
	}
	return fmt.Sprintf("materials: insufficient stock: %s", strings.Join(names, ", "))
}

var (
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("materials: quantity must be positive")
	// ErrInvalidCost indicates a negative total cost.
	ErrInvalidCost = errors.New("materials: total cost must be >= 0")
)
