package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tapiceria-erp/tapiceria-erp/internal/platform/db"
	"github.com/tapiceria-erp/tapiceria-erp/internal/shared"
)

// Repository persists products and recipes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert writes the product and its recipe rows in one transaction, so a
// failed recipe insert never leaves an orphan product.
func (r *Repository) Insert(ctx context.Context, p Product) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO products (id, company_id, name, description, suggested_price, stock, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			p.ID, p.CompanyID, p.Name, p.Description, p.SuggestedPrice, p.Stock, p.CreatedAt)
		if err != nil {
			return err
		}
		for _, item := range p.Recipe {
			_, err := tx.Exec(ctx, `INSERT INTO recipe_items (product_id, company_id, material_id, quantity) VALUES ($1,$2,$3,$4)`,
				p.ID, p.CompanyID, item.MaterialID, item.Quantity)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the product and its recipe rows.
func (r *Repository) Delete(ctx context.Context, companyID, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM recipe_items WHERE company_id=$1 AND product_id=$2`, companyID, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM products WHERE company_id=$1 AND id=$2`, companyID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("catalog: %w", shared.ErrNotFound)
		}
		return nil
	})
}

// Get returns one product with its recipe.
func (r *Repository) Get(ctx context.Context, companyID, id string) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, company_id, name, description, suggested_price, stock, created_at
FROM products WHERE company_id=$1 AND id=$2`, companyID, id)
	var p Product
	if err := row.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Description, &p.SuggestedPrice, &p.Stock, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, fmt.Errorf("catalog: %w", shared.ErrNotFound)
		}
		return Product{}, err
	}
	recipe, err := r.loadRecipes(ctx, companyID, id)
	if err != nil {
		return Product{}, err
	}
	p.Recipe = recipe[id]
	return p, nil
}

// List returns all products with recipes.
func (r *Repository) List(ctx context.Context, companyID string) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, name, description, suggested_price, stock, created_at
FROM products WHERE company_id=$1 ORDER BY name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Description, &p.SuggestedPrice, &p.Stock, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	recipes, err := r.loadRecipes(ctx, companyID, "")
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Recipe = recipes[out[i].ID]
	}
	return out, nil
}

func (r *Repository) loadRecipes(ctx context.Context, companyID, productID string) (map[string][]RecipeItem, error) {
	query := `SELECT product_id, material_id, quantity FROM recipe_items WHERE company_id=$1`
	args := []any{companyID}
	if productID != "" {
		query += ` AND product_id=$2`
		args = append(args, productID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	recipes := make(map[string][]RecipeItem)
	for rows.Next() {
		var pid string
		var item RecipeItem
		if err := rows.Scan(&pid, &item.MaterialID, &item.Quantity); err != nil {
			return nil, err
		}
		recipes[pid] = append(recipes[pid], item)
	}
	return recipes, rows.Err()
}
