package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tapiceria-erp/tapiceria-erp/internal/materials"
	"github.com/tapiceria-erp/tapiceria-erp/internal/platform/db"
	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// Repository persists work orders and payments in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx runs fn inside a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const orderColumns = `id, company_id, client_name, client_national_id, client_phone, client_address, client_vehicle,
product_id, work_type, sale_price, down_payment, balance, invoice_type, state,
main_material_color, secondary_material_color, main_stitch_color, secondary_stitch_color,
main_stitch_type, secondary_stitch_type, notes, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var invoiceType, state string
	err := row.Scan(&o.ID, &o.CompanyID,
		&o.Client.Name, &o.Client.NationalID, &o.Client.Phone, &o.Client.Address, &o.Client.Vehicle,
		&o.ProductID, &o.WorkType, &o.SalePrice, &o.DownPayment, &o.Balance, &invoiceType, &state,
		&o.Customization.MainMaterialColor, &o.Customization.SecondaryMaterialColor,
		&o.Customization.MainStitchColor, &o.Customization.SecondaryStitchColor,
		&o.Customization.MainStitchType, &o.Customization.SecondaryStitchType,
		&o.Notes, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("orders: %w", shared.ErrNotFound)
		}
		return Order{}, err
	}
	o.InvoiceType = InvoiceType(invoiceType)
	o.State = State(state)
	return o, nil
}

func (r *txRepo) GetMaterialForUpdate(ctx context.Context, companyID, materialID string) (materials.Material, error) {
	row := r.tx.QueryRow(ctx, `SELECT id, company_id, name, kind, unit, quantity_on_hand, avg_unit_cost, min_stock, created_at
FROM materials WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, materialID)
	var m materials.Material
	err := row.Scan(&m.ID, &m.CompanyID, &m.Name, &m.Kind, &m.Unit, &m.QuantityOnHand, &m.AvgUnitCost, &m.MinStock, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return materials.Material{}, fmt.Errorf("orders: %w", shared.ErrNotFound)
		}
		return materials.Material{}, err
	}
	return m, nil
}

// AdjustMaterialQuantity shifts quantity_on_hand by delta. The average
// unit cost column is deliberately untouched.
func (r *txRepo) AdjustMaterialQuantity(ctx context.Context, companyID, materialID string, delta float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE materials SET quantity_on_hand = quantity_on_hand + $3 WHERE company_id=$1 AND id=$2`,
		companyID, materialID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("orders: %w", shared.ErrNotFound)
	}
	return nil
}

func (r *txRepo) InsertOrder(ctx context.Context, o Order) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO work_orders (`+orderColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		o.ID, o.CompanyID,
		o.Client.Name, o.Client.NationalID, o.Client.Phone, o.Client.Address, o.Client.Vehicle,
		o.ProductID, o.WorkType, o.SalePrice, o.DownPayment, o.Balance, string(o.InvoiceType), string(o.State),
		o.Customization.MainMaterialColor, o.Customization.SecondaryMaterialColor,
		o.Customization.MainStitchColor, o.Customization.SecondaryStitchColor,
		o.Customization.MainStitchType, o.Customization.SecondaryStitchType,
		o.Notes, o.CreatedAt)
	if err != nil {
		return err
	}
	for _, item := range o.MaterialsUsed {
		_, err := r.tx.Exec(ctx, `INSERT INTO order_items (order_id, company_id, material_id, quantity, computed_cost)
VALUES ($1,$2,$3,$4,$5)`, o.ID, o.CompanyID, item.MaterialID, item.Quantity, item.ComputedCost)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (r *txRepo) GetOrderForUpdate(ctx context.Context, companyID, orderID string) (Order, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM work_orders WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, orderID)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	rows, err := r.tx.Query(ctx, `SELECT material_id, quantity, computed_cost FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.MaterialID, &item.Quantity, &item.ComputedCost); err != nil {
			return Order{}, err
		}
		o.MaterialsUsed = append(o.MaterialsUsed, item)
	}
	return o, rows.Err()
}

func (r *txRepo) UpdateOrderState(ctx context.Context, companyID, orderID string, state State, balance float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE work_orders SET state=$3, balance=$4 WHERE company_id=$1 AND id=$2`,
		companyID, orderID, string(state), balance)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("orders: %w", shared.ErrNotFound)
	}
	return nil
}

func (r *txRepo) InsertPayment(ctx context.Context, p Payment) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO payments (id, company_id, order_id, amount, method, has_invoice, occurred_at, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.CompanyID, p.OrderID, p.Amount, string(p.Method), p.HasInvoice, p.Date, p.Notes)
	return err
}

func (r *txRepo) DeletePaymentsByOrder(ctx context.Context, companyID, orderID string) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM payments WHERE company_id=$1 AND order_id=$2`, companyID, orderID)
	return err
}

func (r *txRepo) DeleteMovementsByReference(ctx context.Context, companyID, orderID string) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM inventory_movements WHERE company_id=$1 AND reference_id=$2`, companyID, orderID)
	return err
}

func (r *txRepo) DeleteOrder(ctx context.Context, companyID, orderID string) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM order_items WHERE company_id=$1 AND order_id=$2`, companyID, orderID); err != nil {
		return err
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM work_orders WHERE company_id=$1 AND id=$2`, companyID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("orders: %w", shared.ErrNotFound)
	}
	return nil
}

// Get returns one order with its frozen material snapshot.
func (r *Repository) Get(ctx context.Context, companyID, orderID string) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM work_orders WHERE company_id=$1 AND id=$2`, companyID, orderID)
	o, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	items, err := r.loadItems(ctx, companyID, []string{orderID})
	if err != nil {
		return Order{}, err
	}
	o.MaterialsUsed = items[orderID]
	return o, nil
}

// List returns all orders for a company, newest first.
func (r *Repository) List(ctx context.Context, companyID string) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM work_orders WHERE company_id=$1 ORDER BY created_at DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	items, err := r.loadItems(ctx, companyID, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].MaterialsUsed = items[out[i].ID]
	}
	return out, nil
}

func (r *Repository) loadItems(ctx context.Context, companyID string, orderIDs []string) (map[string][]OrderItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT order_id, material_id, quantity, computed_cost
FROM order_items WHERE company_id=$1 AND order_id = ANY($2)`, companyID, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make(map[string][]OrderItem, len(orderIDs))
	for rows.Next() {
		var orderID string
		var item OrderItem
		if err := rows.Scan(&orderID, &item.MaterialID, &item.Quantity, &item.ComputedCost); err != nil {
			return nil, err
		}
		items[orderID] = append(items[orderID], item)
	}
	return items, rows.Err()
}

const paymentColumns = `id, company_id, order_id, amount, method, has_invoice, occurred_at, notes`

func scanPayments(rows pgx.Rows) ([]Payment, error) {
	defer rows.Close()
	var out []Payment
	for rows.Next() {
		var p Payment
		var method string
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.OrderID, &p.Amount, &method, &p.HasInvoice, &p.Date, &p.Notes); err != nil {
			return nil, err
		}
		p.Method = PaymentMethod(method)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPayments returns the full payment ledger, newest first.
func (r *Repository) ListPayments(ctx context.Context, companyID string) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE company_id=$1 ORDER BY occurred_at DESC`, companyID)
	if err != nil {
		return nil, err
	}
	return scanPayments(rows)
}

// ListPaymentsByOrder returns payments linked to one order.
func (r *Repository) ListPaymentsByOrder(ctx context.Context, companyID, orderID string) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE company_id=$1 AND order_id=$2 ORDER BY occurred_at DESC`, companyID, orderID)
	if err != nil {
		return nil, err
	}
	return scanPayments(rows)
}

// InsertMovement appends one consumption movement row.
func (r *Repository) InsertMovement(ctx context.Context, mv materials.Movement) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO inventory_movements (id, company_id, material_id, kind, quantity, total_cost, origin_note, reference_id, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9)`,
		mv.ID, mv.CompanyID, mv.MaterialID, string(mv.Kind), mv.Quantity, mv.TotalCost, mv.OriginNote, mv.ReferenceID, mv.Date)
	return err
}
