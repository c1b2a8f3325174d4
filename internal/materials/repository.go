package materials

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tapiceria-erp/tapiceria-erp/internal/platform/db"
	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// Repository persists materials in PostgreSQL.
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

const materialColumns = `id, company_id, name, kind, unit, quantity_on_hand, avg_unit_cost, min_stock, created_at`

func scanMaterial(row pgx.Row) (Material, error) {
	var m Material
	err := row.Scan(&m.ID, &m.CompanyID, &m.Name, &m.Kind, &m.Unit, &m.QuantityOnHand, &m.AvgUnitCost, &m.MinStock, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Material{}, fmt.Errorf("materials: %w", shared.ErrNotFound)
		}
		return Material{}, err
	}
	return m, nil
}

func (r *txRepo) GetMaterialForUpdate(ctx context.Context, companyID, id string) (Material, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id)
	return scanMaterial(row)
}

func (r *txRepo) FindMaterialByName(ctx context.Context, companyID, name string) (Material, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE company_id=$1 AND name=$2 LIMIT 1 FOR UPDATE`, companyID, name)
	return scanMaterial(row)
}

func (r *txRepo) InsertMaterial(ctx context.Context, m Material) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO materials (id, company_id, name, kind, unit, quantity_on_hand, avg_unit_cost, min_stock, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		m.ID, m.CompanyID, m.Name, m.Kind, m.Unit, m.QuantityOnHand, m.AvgUnitCost, m.MinStock, m.CreatedAt)
	return err
}

func (r *txRepo) UpdateMaterialStock(ctx context.Context, companyID, id string, qty, avgCost float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE materials SET quantity_on_hand=$3, avg_unit_cost=$4 WHERE company_id=$1 AND id=$2`, companyID, id, qty, avgCost)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("materials: %w", shared.ErrNotFound)
	}
	return nil
}

// Get returns one material by id.
func (r *Repository) Get(ctx context.Context, companyID, id string) (Material, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+materialColumns+` FROM materials WHERE company_id=$1 AND id=$2`, companyID, id)
	return scanMaterial(row)
}

// List returns all materials for a company ordered by name.
func (r *Repository) List(ctx context.Context, companyID string) ([]Material, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+materialColumns+` FROM materials WHERE company_id=$1 ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Material
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.CompanyID, &m.Name, &m.Kind, &m.Unit, &m.QuantityOnHand, &m.AvgUnitCost, &m.MinStock, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// InsertMovement appends one movement row.
func (r *Repository) InsertMovement(ctx context.Context, mv Movement) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO inventory_movements (id, company_id, material_id, kind, quantity, total_cost, origin_note, reference_id, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9)`,
		mv.ID, mv.CompanyID, mv.MaterialID, string(mv.Kind), mv.Quantity, mv.TotalCost, mv.OriginNote, mv.ReferenceID, mv.Date)
	return err
}

// ListMovements returns movements for a company, newest first.
func (r *Repository) ListMovements(ctx context.Context, companyID string) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, material_id, kind, quantity, total_cost, origin_note, COALESCE(reference_id, ''), occurred_at
FROM inventory_movements WHERE company_id=$1 ORDER BY occurred_at DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Movement
	for rows.Next() {
		var mv Movement
		var kind string
		if err := rows.Scan(&mv.ID, &mv.CompanyID, &mv.MaterialID, &kind, &mv.Quantity, &mv.TotalCost, &mv.OriginNote, &mv.ReferenceID, &mv.Date); err != nil {
			return nil, err
		}
		mv.Kind = MovementKind(kind)
		out = append(out, mv)
	}
	return out, rows.Err()
}
