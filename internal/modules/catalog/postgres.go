package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const productColumns = `id,tenant_id,name,category,sku,price_cents,unit_cost_cents,tax_rate_bps,stock_quantity,is_available,created_at,updated_at`

func (r *postgresRepo) Create(ctx context.Context, p *Product) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products
		  (id, tenant_id, name, category, sku, price_cents, unit_cost_cents, tax_rate_bps, stock_quantity, is_available)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.TenantID, p.Name, p.Category, p.SKU,
		p.PriceCents, p.UnitCostCents, p.TaxRateBps, p.StockQuantity, p.IsAvailable)
	return err
}

func scanProduct(scan func(...interface{}) error) (*Product, error) {
	p := &Product{}
	err := scan(&p.ID, &p.TenantID, &p.Name, &p.Category, &p.SKU,
		&p.PriceCents, &p.UnitCostCents, &p.TaxRateBps,
		&p.StockQuantity, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, tenantID uuid.UUID, id string) (*Product, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE tenant_id=$1 AND id=$2`,
		tenantID, uid)
	return scanProduct(row.Scan)
}

func (r *postgresRepo) ListSince(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id=$1`
	args := []interface{}{tenantID}
	if since != nil {
		query += ` AND updated_at > $2`
		args = append(args, *since)
	}
	query += ` ORDER BY updated_at ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *postgresRepo) UpdateStock(ctx context.Context, tenantID uuid.UUID, id string, qty int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock_quantity=$1, updated_at=NOW() WHERE tenant_id=$2 AND id=$3`,
		qty, tenantID, id)
	return err
}

func (r *postgresRepo) SetAvailability(ctx context.Context, tenantID uuid.UUID, id string, available bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE products SET is_available=$1, updated_at=NOW() WHERE tenant_id=$2 AND id=$3`,
		available, tenantID, id)
	return err
}
