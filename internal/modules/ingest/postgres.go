package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/ledger"
)

const uniqueViolation = "23505"

type postgresRepo struct {
	db     *sql.DB
	poster ledger.Poster
}

// NewPostgresRepository creates the ingestion repository. The ledger
// poster participates in the same transaction as the order writes.
func NewPostgresRepository(db *sql.DB, poster ledger.Poster) Repository {
	return &postgresRepo{db: db, poster: poster}
}

func (r *postgresRepo) FindByClientRef(ctx context.Context, tenantID uuid.UUID, clientRef string) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx,
		`SELECT id FROM orders WHERE tenant_id=$1 AND client_ref=$2`,
		tenantID, clientRef).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return id, true, nil
}

// ApplySale executes all five steps inside one transaction. The unique
// constraint on (tenant_id, client_ref) serializes concurrent submissions
// of the same reference: the loser rolls back and resolves to the
// duplicate path.
func (r *postgresRepo) ApplySale(ctx context.Context, o *ServerOrder) (*ApplyResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders
		  (id, tenant_id, client_ref, operator_id, order_number, status, offline_origin,
		   subtotal_cents, discount_cents, tax_cents, total_cents, captured_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.TenantID, o.ClientRef, o.OperatorID, o.OrderNumber, o.Status, o.OfflineOrigin,
		o.SubtotalCents, o.DiscountCents, o.TaxCents, o.TotalCents, o.CapturedAt)
	if err != nil {
		if isUniqueViolation(err) {
			tx.Rollback()
			return r.resolveDuplicate(ctx, o)
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}

	var cogsCents int64
	for _, line := range o.Lines {
		deducted, lineCOGS, err := r.deductLine(ctx, tx, o, line)
		if err != nil {
			return nil, err
		}
		line.InventoryDeducted = deducted
		cogsCents += lineCOGS

		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_lines
			  (id, order_id, product_id, description, quantity, unit_price_cents,
			   discount_cents, tax_rate_bps, tax_cents, line_total_cents, inventory_deducted)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			line.ID, o.ID, line.ProductID, line.Description, line.Quantity, line.UnitPriceCents,
			line.DiscountCents, line.TaxRateBps, line.TaxCents, line.LineTotalCents, line.InventoryDeducted)
		if err != nil {
			return nil, fmt.Errorf("insert order_line: %w", err)
		}
	}

	for _, leg := range o.Payments {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_payments
			  (id, order_id, method, amount_cents, tendered_cents, change_cents)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			leg.ID, o.ID, leg.Method, leg.AmountCents, leg.TenderedCents, leg.ChangeCents)
		if err != nil {
			return nil, fmt.Errorf("insert order_payment: %w", err)
		}
	}

	amounts := computeSaleAmounts(o, cogsCents)
	entryID, err := r.poster.PostSale(ctx, tx, o.TenantID, o.ID, amounts)
	if err != nil {
		// No order without its ledger consequence: the whole unit of work
		// rolls back and the client record stays eligible for retry.
		return nil, fmt.Errorf("post ledger entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE orders SET ledger_entry_id=$1, updated_at=NOW() WHERE id=$2`,
		entryID, o.ID)
	if err != nil {
		return nil, fmt.Errorf("link ledger entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return r.resolveDuplicate(ctx, o)
		}
		return nil, err
	}
	o.LedgerEntryID = &entryID
	return &ApplyResult{OrderID: o.ID, LedgerEntryID: entryID}, nil
}

// deductLine decrements stock for a resolvable, not-yet-deducted line and
// writes the stock movement. Stock may go negative: the sale happened
// regardless of what the cached count said, and the discrepancy surfaces
// in the movement trail.
func (r *postgresRepo) deductLine(ctx context.Context, tx *sql.Tx, o *ServerOrder, line *OrderLine) (bool, int64, error) {
	if line.ProductID == nil || line.InventoryDeducted {
		return line.InventoryDeducted, 0, nil
	}

	var unitCost int64
	var resulting int
	err := tx.QueryRowContext(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $1, updated_at = NOW()
		WHERE tenant_id=$2 AND id=$3
		RETURNING unit_cost_cents, stock_quantity`,
		line.Quantity, o.TenantID, *line.ProductID).Scan(&unitCost, &resulting)
	if errors.Is(err, sql.ErrNoRows) {
		log.Printf("WARN: sale %s references unknown product %s; line kept without deduction",
			o.ClientRef, *line.ProductID)
		return false, 0, nil
	}
	if err != nil {
		return false, 0, fmt.Errorf("deduct stock for product %s: %w", *line.ProductID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_movements
		  (id, tenant_id, product_id, order_id, quantity_change, resulting_quantity, reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.New(), o.TenantID, *line.ProductID, o.ID, -line.Quantity, resulting, "OFFLINE_SALE")
	if err != nil {
		return false, 0, fmt.Errorf("insert stock_movement: %w", err)
	}

	return true, int64(line.Quantity) * unitCost, nil
}

// resolveDuplicate re-reads the winner of an idempotency race.
func (r *postgresRepo) resolveDuplicate(ctx context.Context, o *ServerOrder) (*ApplyResult, error) {
	id, found, err := r.FindByClientRef(ctx, o.TenantID, o.ClientRef)
	if err != nil {
		return nil, fmt.Errorf("resolve duplicate %s: %w", o.ClientRef, err)
	}
	if !found {
		return nil, fmt.Errorf("unique violation for %s but no existing order", o.ClientRef)
	}
	return &ApplyResult{OrderID: id, Duplicate: true}, nil
}

func (r *postgresRepo) RecordAction(ctx context.Context, a *ActionRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO terminal_actions
		  (id, tenant_id, client_ref, operator_id, type, detail, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (tenant_id, client_ref) DO NOTHING`,
		a.ID, a.TenantID, a.ClientRef, a.OperatorID, a.Type, nullableJSON(a.Detail), a.OccurredAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *postgresRepo) OperatorActive(ctx context.Context, tenantID, operatorID uuid.UUID) (bool, error) {
	var active bool
	err := r.db.QueryRowContext(ctx,
		`SELECT is_active FROM operators WHERE tenant_id=$1 AND id=$2`,
		tenantID, operatorID).Scan(&active)
	if err != nil {
		return false, err
	}
	return active, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

func nullableJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}
