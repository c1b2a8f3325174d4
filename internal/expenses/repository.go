package expenses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// Repository persists expenses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const expenseColumns = `id, company_id, name, category, amount, kind, payment_method, occurred_at, frequency,
has_invoice, invoice_number, supplier, supplier_tax_id, area, notes`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	var category, kind, frequency, area string
	err := row.Scan(&e.ID, &e.CompanyID, &e.Name, &category, &e.Amount, &kind, &e.PaymentMethod, &e.Date, &frequency,
		&e.HasInvoice, &e.InvoiceNumber, &e.Supplier, &e.SupplierTaxID, &area, &e.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Expense{}, fmt.Errorf("expenses: %w", shared.ErrNotFound)
		}
		return Expense{}, err
	}
	e.Category = Category(category)
	e.Kind = ExpenseKind(kind)
	e.Frequency = Frequency(frequency)
	e.Area = Area(area)
	return e, nil
}

// Insert appends one expense row.
func (r *Repository) Insert(ctx context.Context, e Expense) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO expenses (`+expenseColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		e.ID, e.CompanyID, e.Name, string(e.Category), e.Amount, string(e.Kind), e.PaymentMethod, e.Date, string(e.Frequency),
		e.HasInvoice, e.InvoiceNumber, e.Supplier, e.SupplierTaxID, string(e.Area), e.Notes)
	return err
}

// Delete removes one expense row.
func (r *Repository) Delete(ctx context.Context, companyID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE company_id=$1 AND id=$2`, companyID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("expenses: %w", shared.ErrNotFound)
	}
	return nil
}

// Get returns one expense by id.
func (r *Repository) Get(ctx context.Context, companyID, id string) (Expense, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE company_id=$1 AND id=$2`, companyID, id)
	return scanExpense(row)
}

// List returns all expenses for a company, newest first.
func (r *Repository) List(ctx context.Context, companyID string) ([]Expense, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE company_id=$1 ORDER BY occurred_at DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
