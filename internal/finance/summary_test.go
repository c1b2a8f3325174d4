package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tapiceria-erp/tapiceria-erp/internal/expenses"
	"github.com/tapiceria-erp/tapiceria-erp/internal/orders"
)

func payment(amount float64, invoiced bool) orders.Payment {
	return orders.Payment{Amount: amount, HasInvoice: invoiced, Date: time.Now()}
}

func expense(category expenses.Category, amount float64, invoiced bool) expenses.Expense {
	return expenses.Expense{Category: category, Amount: amount, HasInvoice: invoiced}
}

func orderWithCOGS(costs ...float64) orders.Order {
	var o orders.Order
	for _, c := range costs {
		o.MaterialsUsed = append(o.MaterialsUsed, orders.OrderItem{ComputedCost: c})
	}
	return o
}

func TestSummaryDualLedgerScenario(t *testing.T) {
	// One invoiced payment of 100, one invoiced material purchase of 30,
	// one non-invoiced rent of 20.
	s := BuildSummary(
		[]orders.Payment{payment(100, true)},
		[]expenses.Expense{
			expense(expenses.CategoryMaterialPurchase, 30, true),
			expense(expenses.CategoryRent, 20, false),
		},
		nil,
	)

	require.InDelta(t, 100, s.DeclaredSales, 1e-9)
	require.InDelta(t, 30, s.DeductibleExpensesTotal, 1e-9)
	require.InDelta(t, 70, s.TaxableProfit, 1e-9)
	require.InDelta(t, 0.30, s.TaxRiskRatio, 1e-9)
	require.Equal(t, RiskLow, s.RiskLevel)
}

func TestSummaryDualLedgerIndependence(t *testing.T) {
	// A non-invoiced payment feeds the real ledger only.
	s := BuildSummary([]orders.Payment{payment(500, false)}, nil, nil)

	require.InDelta(t, 500, s.UndeclaredIncome, 1e-9)
	require.InDelta(t, 500, s.TotalSales, 1e-9)
	require.Zero(t, s.DeclaredSales)
	require.Zero(t, s.TaxableProfit)
	require.Zero(t, s.TaxRiskRatio)
	require.Equal(t, RiskLow, s.RiskLevel)
}

func TestSummaryNoDoubleCounting(t *testing.T) {
	s := BuildSummary(
		[]orders.Payment{payment(1000, true)},
		[]expenses.Expense{
			expense(expenses.CategoryMaterialPurchase, 400, true),
			expense(expenses.CategoryRent, 100, true),
		},
		[]orders.Order{orderWithCOGS(250, 50)},
	)

	// Real profit subtracts operating expenses and frozen COGS, never the
	// raw material purchases.
	require.InDelta(t, 1000-(100+300), s.RealProfit, 1e-9)

	// Taxable profit subtracts invoiced deductibles, never COGS.
	require.InDelta(t, 1000-500, s.TaxableProfit, 1e-9)
	require.InDelta(t, 300, s.CostOfGoods, 1e-9)
	require.InDelta(t, 400, s.MaterialPurchasesTotal, 1e-9)
}

func TestSummaryRiskThresholds(t *testing.T) {
	// ratio > 0.85 is high exposure.
	s := BuildSummary(
		[]orders.Payment{payment(100, true)},
		[]expenses.Expense{expense(expenses.CategoryRent, 90, true)},
		nil,
	)
	require.Equal(t, RiskHigh, s.RiskLevel)

	// ratio < 0.20 with declared income flags suspiciously few deductions.
	s = BuildSummary(
		[]orders.Payment{payment(100, true)},
		[]expenses.Expense{expense(expenses.CategoryRent, 10, true)},
		nil,
	)
	require.Equal(t, RiskMedium, s.RiskLevel)

	// No declared income at all stays low regardless of spend.
	s = BuildSummary(
		nil,
		[]expenses.Expense{expense(expenses.CategoryRent, 10, true)},
		nil,
	)
	require.Equal(t, RiskLow, s.RiskLevel)
}

func TestSummaryEmptyLedgers(t *testing.T) {
	s := BuildSummary(nil, nil, nil)
	require.Zero(t, s.TotalSales)
	require.Zero(t, s.RealProfit)
	require.Zero(t, s.TaxRiskRatio)
	require.Equal(t, RiskLow, s.RiskLevel)
}

func TestSummaryOperatingSplitByInvoice(t *testing.T) {
	s := BuildSummary(
		nil,
		[]expenses.Expense{
			expense(expenses.CategoryRent, 100, true),
			expense(expenses.CategoryInternet, 40, false),
			expense(expenses.CategoryMaterialPurchase, 60, false),
		},
		nil,
	)
	require.InDelta(t, 140, s.OperatingExpensesTotal, 1e-9)
	require.InDelta(t, 100, s.OperatingExpensesInvoiced, 1e-9)
	require.InDelta(t, 60, s.MaterialPurchasesTotal, 1e-9)
	require.Zero(t, s.MaterialPurchasesInvoiced)
	require.InDelta(t, 100, s.DeductibleExpensesTotal, 1e-9)
}
