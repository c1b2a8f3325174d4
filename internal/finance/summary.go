package finance

import (
	"github.com/tapiceria-erp/tapiceria-erp/internal/expenses"
	"github.com/tapiceria-erp/tapiceria-erp/internal/orders"
)

// RiskLevel classifies the declared-ledger deduction ratio.
type RiskLevel string

const (
	RiskLow    RiskLevel = "BAJO"
	RiskMedium RiskLevel = "MEDIO"
	RiskHigh   RiskLevel = "ALTO"
)

// Summary is the dual-ledger financial picture. The real side works on
// every payment received; the declared side only on invoiced records.
type Summary struct {
	// Real (cash) ledger.
	TotalSales             float64 `json:"total_sales"`
	UndeclaredIncome       float64 `json:"undeclared_income"`
	OperatingExpensesTotal float64 `json:"operating_expenses_total"`
	CostOfGoods            float64 `json:"cost_of_goods"`
	RealProfit             float64 `json:"real_profit"`

	// Declared (tax) ledger.
	DeclaredSales             float64 `json:"declared_sales"`
	OperatingExpensesInvoiced float64 `json:"operating_expenses_invoiced"`
	MaterialPurchasesTotal    float64 `json:"material_purchases_total"`
	MaterialPurchasesInvoiced float64 `json:"material_purchases_invoiced"`
	DeductibleExpensesTotal   float64 `json:"deductible_expenses_total"`
	TaxableProfit             float64 `json:"taxable_profit"`

	TaxRiskRatio float64   `json:"tax_risk_ratio"`
	RiskLevel    RiskLevel `json:"risk_level"`
}

// BuildSummary folds the full payment, expense and order ledgers into the
// dual-ledger summary. Pure: no stored state, recomputed on every call.
//
// Material purchases never subtract from real profit; that spend is
// capitalized into stock and only hits the real ledger through the frozen
// cost of goods when orders consume it. On the declared side the same
// purchases are deductible at purchase time, so cost of goods is excluded
// there to avoid deducting the same spend twice.
func BuildSummary(payments []orders.Payment, expenseList []expenses.Expense, orderList []orders.Order) Summary {
	var s Summary

	for _, p := range payments {
		if p.HasInvoice {
			s.DeclaredSales += p.Amount
		} else {
			s.UndeclaredIncome += p.Amount
		}
	}
	s.TotalSales = s.UndeclaredIncome + s.DeclaredSales

	for _, e := range expenseList {
		if e.Category.Operating() {
			s.OperatingExpensesTotal += e.Amount
			if e.HasInvoice {
				s.OperatingExpensesInvoiced += e.Amount
			}
		} else {
			s.MaterialPurchasesTotal += e.Amount
			if e.HasInvoice {
				s.MaterialPurchasesInvoiced += e.Amount
			}
		}
	}

	for _, o := range orderList {
		for _, item := range o.MaterialsUsed {
			s.CostOfGoods += item.ComputedCost
		}
	}

	s.RealProfit = s.TotalSales - (s.OperatingExpensesTotal + s.CostOfGoods)

	s.DeductibleExpensesTotal = s.OperatingExpensesInvoiced + s.MaterialPurchasesInvoiced
	s.TaxableProfit = s.DeclaredSales - s.DeductibleExpensesTotal

	if s.DeclaredSales > 0 {
		s.TaxRiskRatio = s.DeductibleExpensesTotal / s.DeclaredSales
	}
	switch {
	case s.TaxRiskRatio > 0.85:
		s.RiskLevel = RiskHigh
	case s.TaxRiskRatio < 0.20 && s.DeclaredSales > 0:
		s.RiskLevel = RiskMedium
	default:
		s.RiskLevel = RiskLow
	}
	return s
}
