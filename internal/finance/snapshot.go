package finance

import (
	"context"
	"fmt"

	"github.com/tapiceria-erp/tapiceria-erp/internal/catalog"
	"github.com/tapiceria-erp/tapiceria-erp/internal/expenses"
	"github.com/tapiceria-erp/tapiceria-erp/internal/materials"
	"github.com/tapiceria-erp/tapiceria-erp/internal/orders"
)

// Snapshot is a full read of every ledger for one company. The summary and
// alert engines fold over it; nothing derived is cached.
type Snapshot struct {
	Materials []materials.Material
	Movements []materials.Movement
	Products  []catalog.ProductView
	Orders    []orders.Order
	Payments  []orders.Payment
	Expenses  []expenses.Expense
}

// MaterialSource reads the material ledger.
type MaterialSource interface {
	List(ctx context.Context, companyID string) ([]materials.Material, error)
	ListMovements(ctx context.Context, companyID string) ([]materials.Movement, error)
}

// ProductSource reads the catalog with live estimated costs.
type ProductSource interface {
	List(ctx context.Context, companyID string) ([]catalog.ProductView, error)
}

// OrderSource reads the order and payment ledgers.
type OrderSource interface {
	List(ctx context.Context, companyID string) ([]orders.Order, error)
	ListPayments(ctx context.Context, companyID, orderID string) ([]orders.Payment, error)
}

// ExpenseSource reads the expense ledger.
type ExpenseSource interface {
	List(ctx context.Context, companyID string) ([]expenses.Expense, error)
}

// Loader assembles ledger snapshots from the domain services.
type Loader struct {
	materials MaterialSource
	products  ProductSource
	orders    OrderSource
	expenses  ExpenseSource
}

// NewLoader builds Loader.
func NewLoader(mats MaterialSource, products ProductSource, ords OrderSource, exps ExpenseSource) *Loader {
	return &Loader{materials: mats, products: products, orders: ords, expenses: exps}
}

// Load reads every ledger for one company.
func (l *Loader) Load(ctx context.Context, companyID string) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.Materials, err = l.materials.List(ctx, companyID); err != nil {
		return Snapshot{}, fmt.Errorf("load materials: %w", err)
	}
	if snap.Movements, err = l.materials.ListMovements(ctx, companyID); err != nil {
		return Snapshot{}, fmt.Errorf("load movements: %w", err)
	}
	if snap.Products, err = l.products.List(ctx, companyID); err != nil {
		return Snapshot{}, fmt.Errorf("load products: %w", err)
	}
	if snap.Orders, err = l.orders.List(ctx, companyID); err != nil {
		return Snapshot{}, fmt.Errorf("load orders: %w", err)
	}
	if snap.Payments, err = l.orders.ListPayments(ctx, companyID, ""); err != nil {
		return Snapshot{}, fmt.Errorf("load payments: %w", err)
	}
	if snap.Expenses, err = l.expenses.List(ctx, companyID); err != nil {
		return Snapshot{}, fmt.Errorf("load expenses: %w", err)
	}
	return snap, nil
}

// Summary loads the ledgers and folds them into the dual-ledger summary.
func (l *Loader) Summary(ctx context.Context, companyID string) (Summary, error) {
	snap, err := l.Load(ctx, companyID)
	if err != nil {
		return Summary{}, err
	}
	return BuildSummary(snap.Payments, snap.Expenses, snap.Orders), nil
}
