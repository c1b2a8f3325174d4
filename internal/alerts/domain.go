package alerts

import "time"

// Kind is the closed set of alert rules. Every evaluation runs all of
// them; each alert carries the kind that produced it so consumers can
// branch without parsing titles.
type Kind string

const (
	KindProductOutOfStock      Kind = "PRODUCT_OUT_OF_STOCK"
	KindLowProductMargin       Kind = "LOW_PRODUCT_MARGIN"
	KindMaterialBelowMinimum   Kind = "MATERIAL_BELOW_MINIMUM"
	KindOperatingExpenseSpike  Kind = "OPERATING_EXPENSE_SPIKE"
	KindProfitDecline          Kind = "PROFIT_DECLINE"
	KindProductionCostIncrease Kind = "PRODUCTION_COST_INCREASE"
	KindCashFlowRisk           Kind = "CASH_FLOW_RISK"
	KindCashFlowStable         Kind = "CASH_FLOW_STABLE"
	KindWasteMarginErosion     Kind = "WASTE_MARGIN_EROSION"
	KindMaterialOverstock      Kind = "MATERIAL_OVERSTOCK"
	KindMaterialDeadStock      Kind = "MATERIAL_DEAD_STOCK"
	KindLowProductRotation     Kind = "LOW_PRODUCT_ROTATION"
	KindProfitProjection       Kind = "PROFIT_PROJECTION"
)

// Category groups alerts for the operator dashboard.
type Category string

const (
	CategoryInventory Category = "INVENTARIO"
	CategoryFinancial Category = "FINANCIERO"
	CategoryOperative Category = "OPERATIVO"
)

// Priority orders alerts by urgency.
type Priority string

const (
	PriorityHigh   Priority = "ALTA"
	PriorityMedium Priority = "MEDIA"
	PriorityLow    Priority = "BAJA"
)

// ProfitProjection is the structured payload of the monthly projection
// alert.
type ProfitProjection struct {
	MonthIncome          float64 `json:"month_income"`
	MonthProductionCosts float64 `json:"month_production_costs"`
	MonthOperatingCosts  float64 `json:"month_operating_costs"`
	ProfitSoFar          float64 `json:"profit_so_far"`
	DailyAverage         float64 `json:"daily_average"`
	ProjectedProfit      float64 `json:"projected_profit"`
	PriorMonthProfit     float64 `json:"prior_month_profit"`
	DaysElapsed          int     `json:"days_elapsed"`
	DaysInMonth          int     `json:"days_in_month"`
}

// Alert is one evaluated finding. The ID is deterministic per rule and
// subject so repeated scans of unchanged ledgers produce stable sets.
type Alert struct {
	ID          string            `json:"id"`
	Kind        Kind              `json:"kind"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Category    Category          `json:"category"`
	Priority    Priority          `json:"priority"`
	GeneratedAt time.Time         `json:"generated_at"`
	Projection  *ProfitProjection `json:"projection,omitempty"`
}
