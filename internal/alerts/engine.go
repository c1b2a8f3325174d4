package alerts

import (
	"math"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tapiceria-erp/tapiceria-erp/internal/finance"
	"github.com/tapiceria-erp/tapiceria-erp/internal/materials"
)

// printer renders operator-facing numbers with Spanish separators.
var printer = message.NewPrinter(language.Spanish)

// Evaluate runs every rule against a full ledger snapshot. Pure: the same
// snapshot and clock always produce the same set. Records dated in the
// future are ignored by every month window.
func Evaluate(snap finance.Snapshot, now time.Time) []Alert {
	e := evaluator{snap: snap, now: now}
	e.curYear, e.curMonth = now.Year(), now.Month()
	prev := time.Date(e.curYear, e.curMonth, 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
	e.prevYear, e.prevMonth = prev.Year(), prev.Month()

	e.productRules()
	e.materialMinimumRule()
	e.expenseSpikeRule()
	e.profitDeclineRule()
	e.productionCostRule()
	e.cashFlowRule()
	e.wasteErosionRule()
	e.materialCoverageRules()
	e.productRotationRule()
	e.profitProjection()
	return e.out
}

type evaluator struct {
	snap finance.Snapshot
	now  time.Time
	out  []Alert

	curYear   int
	curMonth  time.Month
	prevYear  int
	prevMonth time.Month
}

func (e *evaluator) push(a Alert) {
	a.GeneratedAt = e.now
	e.out = append(e.out, a)
}

// inMonth reports whether d falls in the given month and is not in the
// future.
func (e *evaluator) inMonth(d time.Time, year int, month time.Month) bool {
	return d.Year() == year && d.Month() == month && !d.After(e.now)
}

func (e *evaluator) daysOld(created time.Time) int {
	if created.IsZero() {
		// Unknown age counts as old.
		return 9999
	}
	return int(math.Ceil(e.now.Sub(created).Hours() / 24))
}

// opexByMonth sums non-capitalized expenses for one month.
func (e *evaluator) opexByMonth(year int, month time.Month) float64 {
	var total float64
	for _, exp := range e.snap.Expenses {
		if exp.Category.Operating() && e.inMonth(exp.Date, year, month) {
			total += exp.Amount
		}
	}
	return total
}

func (e *evaluator) orderCOGSByMonth(year int, month time.Month) (total float64, count int) {
	for _, o := range e.snap.Orders {
		if !e.inMonth(o.CreatedAt, year, month) {
			continue
		}
		count++
		for _, item := range o.MaterialsUsed {
			total += item.ComputedCost
		}
	}
	return total, count
}

func (e *evaluator) salesByMonth(year int, month time.Month) float64 {
	var total float64
	for _, o := range e.snap.Orders {
		if e.inMonth(o.CreatedAt, year, month) {
			total += o.SalePrice
		}
	}
	return total
}

// profitByMonth approximates realized profit as booked sales minus
// operating spend minus frozen production cost.
func (e *evaluator) profitByMonth(year int, month time.Month) float64 {
	cogs, _ := e.orderCOGSByMonth(year, month)
	return e.salesByMonth(year, month) - e.opexByMonth(year, month) - cogs
}

func (e *evaluator) productionCostAvgByMonth(year int, month time.Month) float64 {
	cogs, count := e.orderCOGSByMonth(year, month)
	if count == 0 {
		return 0
	}
	return cogs / float64(count)
}

func (e *evaluator) paymentsByMonth(year int, month time.Month) float64 {
	var total float64
	for _, p := range e.snap.Payments {
		if e.inMonth(p.Date, year, month) {
			total += p.Amount
		}
	}
	return total
}

func (e *evaluator) wasteByMonth(year int, month time.Month) float64 {
	var total float64
	for _, mv := range e.snap.Movements {
		if mv.Kind == materials.MovementWaste && e.inMonth(mv.Date, year, month) {
			total += mv.Quantity
		}
	}
	return total
}

func (e *evaluator) materialUseByMonth(materialID string, year int, month time.Month) float64 {
	var total float64
	for _, o := range e.snap.Orders {
		if !e.inMonth(o.CreatedAt, year, month) {
			continue
		}
		for _, item := range o.MaterialsUsed {
			if item.MaterialID == materialID {
				total += item.Quantity
			}
		}
	}
	return total
}

// productRules covers zero stock and thin margins per product.
func (e *evaluator) productRules() {
	for _, pv := range e.snap.Products {
		p := pv.Product
		if p.Stock <= 0 {
			e.push(Alert{
				ID:       "prod-stock-" + p.ID,
				Kind:     KindProductOutOfStock,
				Title:    "Producto Sin Stock",
				Message:  printer.Sprintf("El producto %s no tiene stock disponible", p.Name),
				Category: CategoryInventory,
				Priority: PriorityHigh,
			})
		}
		if p.SuggestedPrice > 0 && len(p.Recipe) > 0 {
			margin := (p.SuggestedPrice - pv.EstimatedCost) / p.SuggestedPrice
			if margin < 0.20 {
				e.push(Alert{
					ID:       "prod-margen-" + p.ID,
					Kind:     KindLowProductMargin,
					Title:    "Margen de Utilidad Bajo",
					Message:  printer.Sprintf("El producto %s tiene un margen de %.1f%%", p.Name, margin*100),
					Category: CategoryFinancial,
					Priority: PriorityMedium,
				})
			}
		}
	}
}

func (e *evaluator) materialMinimumRule() {
	for _, m := range e.snap.Materials {
		if m.QuantityOnHand <= m.MinStock {
			e.push(Alert{
				ID:       "mat-stock-" + m.ID,
				Kind:     KindMaterialBelowMinimum,
				Title:    "Material Bajo Stock Mínimo",
				Message:  printer.Sprintf("El material %s está bajo el mínimo (%.2f / %.2f)", m.Name, m.QuantityOnHand, m.MinStock),
				Category: CategoryInventory,
				Priority: PriorityHigh,
			})
		}
	}
}

func (e *evaluator) expenseSpikeRule() {
	current := e.opexByMonth(e.curYear, e.curMonth)
	previous := e.opexByMonth(e.prevYear, e.prevMonth)
	if previous > 0 && current > previous*1.20 {
		e.push(Alert{
			ID:       "gasto-alto-" + e.monthTag(),
			Kind:     KindOperatingExpenseSpike,
			Title:    "Gastos Operativos Altos",
			Message:  "Los gastos operativos aumentaron más del 20% respecto al mes anterior",
			Category: CategoryOperative,
			Priority: PriorityMedium,
		})
	}
}

func (e *evaluator) profitDeclineRule() {
	current := e.profitByMonth(e.curYear, e.curMonth)
	previous := e.profitByMonth(e.prevYear, e.prevMonth)
	if previous > 0 && current < previous {
		e.push(Alert{
			ID:       "utilidad-baja-" + e.monthTag(),
			Kind:     KindProfitDecline,
			Title:    "Caída de Utilidad",
			Message:  "La utilidad del negocio es menor al mes pasado",
			Category: CategoryFinancial,
			Priority: PriorityMedium,
		})
	}
}

func (e *evaluator) productionCostRule() {
	current := e.productionCostAvgByMonth(e.curYear, e.curMonth)
	previous := e.productionCostAvgByMonth(e.prevYear, e.prevMonth)
	if previous > 0 && current > previous*1.10 {
		e.push(Alert{
			ID:       "costo-prod-alto-" + e.monthTag(),
			Kind:     KindProductionCostIncrease,
			Title:    "Aumento Costo Producción",
			Message:  "El costo de producción aumentó este mes (+10%)",
			Category: CategoryOperative,
			Priority: PriorityMedium,
		})
	}
}

// cashFlowRule projects month-end cash against the expenses still due this
// month.
func (e *evaluator) cashFlowRule() {
	var collected float64
	for _, o := range e.snap.Orders {
		if o.CreatedAt.After(e.now) {
			continue
		}
		collected += o.SalePrice - o.Balance
	}
	var paid float64
	for _, exp := range e.snap.Expenses {
		if exp.Date.After(e.now) {
			continue
		}
		paid += exp.Amount
	}
	cashNow := collected - paid

	currentOpex := e.opexByMonth(e.curYear, e.curMonth)
	previousOpex := e.opexByMonth(e.prevYear, e.prevMonth)
	estimatedMonthly := previousOpex
	if estimatedMonthly <= 0 {
		estimatedMonthly = currentOpex * 1.5
		if estimatedMonthly == 0 {
			estimatedMonthly = 2000
		}
	}
	remaining := estimatedMonthly - currentOpex
	if remaining < 0 {
		remaining = 0
	}

	daysElapsed := e.now.Day()
	if daysElapsed < 1 {
		daysElapsed = 1
	}
	daysInMonth := time.Date(e.curYear, e.curMonth+1, 0, 0, 0, 0, 0, e.now.Location()).Day()
	daysRemaining := daysInMonth - daysElapsed
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	monthSales := e.salesByMonth(e.curYear, e.curMonth)
	dailyRate := monthSales / float64(daysElapsed)
	projectedRemainingSales := dailyRate * float64(daysRemaining)

	margin := 0.30
	if monthSales > 0 {
		margin = e.profitByMonth(e.curYear, e.curMonth) / monthSales
	}
	projectedCashEnd := cashNow + projectedRemainingSales*margin

	switch {
	case projectedCashEnd < remaining:
		e.push(Alert{
			ID:       "flujo-negativo-" + e.monthTag(),
			Kind:     KindCashFlowRisk,
			Title:    "Riesgo de Flujo de Caja Negativo",
			Message:  "Según el ritmo actual, no habrá suficiente dinero para cubrir gastos restantes.",
			Category: CategoryFinancial,
			Priority: PriorityHigh,
		})
	case projectedCashEnd >= remaining*1.20 && remaining > 0:
		e.push(Alert{
			ID:       "flujo-estable-" + e.monthTag(),
			Kind:     KindCashFlowStable,
			Title:    "Flujo de Caja Estable",
			Message:  "El flujo de caja proyectado cubrirá los gastos restantes del mes.",
			Category: CategoryFinancial,
			Priority: PriorityLow,
		})
	}
}

func (e *evaluator) wasteErosionRule() {
	wasteNow := e.wasteByMonth(e.curYear, e.curMonth)
	wastePrev := e.wasteByMonth(e.prevYear, e.prevMonth)
	if wastePrev <= 0 || wasteNow <= wastePrev*1.15 {
		return
	}
	costNow := e.productionCostAvgByMonth(e.curYear, e.curMonth)
	costPrev := e.productionCostAvgByMonth(e.prevYear, e.prevMonth)
	if costPrev > 0 && costNow > costPrev*1.05 {
		e.push(Alert{
			ID:       "merma-rentabilidad-" + e.monthTag(),
			Kind:     KindWasteMarginErosion,
			Title:    "Posible Caída de Rentabilidad por Merma",
			Message:  "El aumento de merma está incrementando el costo de producción (>5%).",
			Category: CategoryOperative,
			Priority: PriorityMedium,
		})
	}
}

// materialCoverageRules flags overstock and dead stock. Materials younger
// than 30 days are skipped so fresh purchases do not trip either rule.
func (e *evaluator) materialCoverageRules() {
	for _, m := range e.snap.Materials {
		if e.daysOld(m.CreatedAt) < 30 {
			continue
		}
		useNow := e.materialUseByMonth(m.ID, e.curYear, e.curMonth)
		usePrev := e.materialUseByMonth(m.ID, e.prevYear, e.prevMonth)
		avgMonthlyUse := (useNow + usePrev) / 2

		if avgMonthlyUse > 0 {
			coverage := m.QuantityOnHand / avgMonthlyUse
			if coverage >= 2 {
				e.push(Alert{
					ID:       "sobrestock-" + m.ID,
					Kind:     KindMaterialOverstock,
					Title:    "Sobrestock de Material Detectado",
					Message:  printer.Sprintf("El material %s tiene stock para %.1f meses.", m.Name, coverage),
					Category: CategoryInventory,
					Priority: PriorityMedium,
				})
			}
		} else if m.QuantityOnHand > 0 {
			e.push(Alert{
				ID:       "sobrestock-muerto-" + m.ID,
				Kind:     KindMaterialDeadStock,
				Title:    "Material Sin Movimiento",
				Message:  printer.Sprintf("El material %s tiene stock pero no se ha usado en 2 meses.", m.Name),
				Category: CategoryInventory,
				Priority: PriorityMedium,
			})
		}
	}
}

func (e *evaluator) productRotationRule() {
	cutoff := e.now.AddDate(0, 0, -30)
	for _, pv := range e.snap.Products {
		p := pv.Product
		if e.daysOld(p.CreatedAt) < 30 || p.Stock <= 0 {
			continue
		}
		sold := false
		for _, o := range e.snap.Orders {
			if o.ProductID == p.ID && !o.CreatedAt.Before(cutoff) && !o.CreatedAt.After(e.now) {
				sold = true
				break
			}
		}
		if !sold {
			e.push(Alert{
				ID:       "prod-dead-" + p.ID,
				Kind:     KindLowProductRotation,
				Title:    "Producto con Baja Rotación",
				Message:  printer.Sprintf("El producto %s tiene stock pero no se ha vendido en 30 días.", p.Name),
				Category: CategoryInventory,
				Priority: PriorityMedium,
			})
		}
	}
}

// profitProjection always emits an informational card. Income here means
// payments actually received, unlike the sales-based decline rule.
func (e *evaluator) profitProjection() {
	daysElapsed := e.now.Day()
	if daysElapsed < 1 {
		daysElapsed = 1
	}
	daysInMonth := time.Date(e.curYear, e.curMonth+1, 0, 0, 0, 0, 0, e.now.Location()).Day()

	income := e.paymentsByMonth(e.curYear, e.curMonth)
	cogs, _ := e.orderCOGSByMonth(e.curYear, e.curMonth)
	opex := e.opexByMonth(e.curYear, e.curMonth)
	profitSoFar := income - cogs - opex
	dailyAvg := profitSoFar / float64(daysElapsed)
	projected := dailyAvg * float64(daysInMonth)

	priorIncome := e.paymentsByMonth(e.prevYear, e.prevMonth)
	priorCOGS, _ := e.orderCOGSByMonth(e.prevYear, e.prevMonth)
	priorProfit := priorIncome - priorCOGS - e.opexByMonth(e.prevYear, e.prevMonth)

	priority := PriorityLow
	if priorProfit > 0 && projected < priorProfit {
		priority = PriorityHigh
	}

	e.push(Alert{
		ID:       "proyeccion-utilidad-" + e.monthTag(),
		Kind:     KindProfitProjection,
		Title:    "Proyección de Utilidad Mensual",
		Message:  printer.Sprintf("Utilidad proyectada del mes: %.2f", projected),
		Category: CategoryFinancial,
		Priority: priority,
		Projection: &ProfitProjection{
			MonthIncome:          income,
			MonthProductionCosts: cogs,
			MonthOperatingCosts:  opex,
			ProfitSoFar:          profitSoFar,
			DailyAverage:         dailyAvg,
			ProjectedProfit:      projected,
			PriorMonthProfit:     priorProfit,
			DaysElapsed:          daysElapsed,
			DaysInMonth:          daysInMonth,
		},
	})
}

func (e *evaluator) monthTag() string {
	return e.now.Format("2006-01")
}
