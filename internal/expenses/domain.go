package expenses

import (
	"errors"
	"time"
)

// Category enumerates the expense classification. CategoryMaterialPurchase
// is a sentinel: spend in that category is capitalized inventory funding,
// excluded from operating expense totals.
type Category string

const (
	CategoryRent             Category = "Arriendo"
	CategoryUtilities        Category = "Servicios Básicos"
	CategoryInternet         Category = "Internet"
	CategorySalaries         Category = "Sueldos"
	CategoryTransport        Category = "Transporte"
	CategoryMaintenance      Category = "Mantenimiento"
	CategoryMarketing        Category = "Publicidad / Marketing"
	CategoryAdminSupplies    Category = "Insumos Administrativos"
	CategoryEquipment        Category = "Equipamiento"
	CategorySoftware         Category = "Software / Suscripciones"
	CategoryTaxes            Category = "Impuestos"
	CategoryProfessionalFees Category = "Honorarios Profesionales"
	CategorySecurity         Category = "Seguridad"
	CategoryCleaning         Category = "Limpieza"
	CategoryLogistics        Category = "Logística"
	CategoryOther            Category = "Otros"
	CategoryMaterialPurchase Category = "Compra Materiales"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryRent, CategoryUtilities, CategoryInternet, CategorySalaries,
		CategoryTransport, CategoryMaintenance, CategoryMarketing,
		CategoryAdminSupplies, CategoryEquipment, CategorySoftware,
		CategoryTaxes, CategoryProfessionalFees, CategorySecurity,
		CategoryCleaning, CategoryLogistics, CategoryOther,
		CategoryMaterialPurchase:
		return true
	}
	return false
}

// Operating reports whether c counts toward operating expense totals.
func (c Category) Operating() bool {
	return c != CategoryMaterialPurchase
}

// Frequency enumerates how often a recurring expense repeats.
type Frequency string

const (
	FrequencyOnce      Frequency = "Único"
	FrequencyDaily     Frequency = "Diario"
	FrequencyWeekly    Frequency = "Semanal"
	FrequencyMonthly   Frequency = "Mensual"
	FrequencyQuarterly Frequency = "Trimestral"
	FrequencyYearly    Frequency = "Anual"
)

// ExpenseKind distinguishes fixed from variable spend.
type ExpenseKind string

const (
	KindFixed    ExpenseKind = "Fijo"
	KindVariable ExpenseKind = "Variable"
)

// Area enumerates which part of the business the expense serves.
type Area string

const (
	AreaProduction Area = "Producción"
	AreaAdmin      Area = "Administración"
	AreaSales      Area = "Ventas"
	AreaLogistics  Area = "Logística"
	AreaMarketing  Area = "Marketing"
	AreaGeneral    Area = "General"
)

// Expense is one spend record. HasInvoice decides whether it counts as
// tax-deductible in the declared ledger.
type Expense struct {
	ID            string      `json:"id"`
	CompanyID     string      `json:"company_id"`
	Name          string      `json:"name"`
	Category      Category    `json:"category"`
	Amount        float64     `json:"amount"`
	Kind          ExpenseKind `json:"kind"`
	PaymentMethod string      `json:"payment_method,omitempty"`
	Date          time.Time   `json:"date"`
	Frequency     Frequency   `json:"frequency"`
	HasInvoice    bool        `json:"has_invoice"`
	InvoiceNumber string      `json:"invoice_number,omitempty"`
	Supplier      string      `json:"supplier,omitempty"`
	SupplierTaxID string      `json:"supplier_tax_id,omitempty"`
	Area          Area        `json:"area"`
	Notes         string      `json:"notes,omitempty"`
}

var (
	// ErrInvalidAmount indicates a non-positive expense amount.
	ErrInvalidAmount = errors.New("expenses: amount must be positive")
	// ErrInvalidCategory indicates an unknown category.
	ErrInvalidCategory = errors.New("expenses: unknown category")
)
