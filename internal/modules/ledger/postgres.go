package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

type postgresPoster struct{}

// NewPostgresPoster creates the Postgres-backed accounting collaborator.
func NewPostgresPoster() Poster { return &postgresPoster{} }

func (p *postgresPoster) PostSale(ctx context.Context, tx *sql.Tx, tenantID, orderID uuid.UUID, amounts SaleAmounts) (uuid.UUID, error) {
	entry := buildSaleEntry(tenantID, orderID, amounts)
	if !entry.Balanced() {
		d, c := entry.Totals()
		return uuid.Nil, fmt.Errorf("refusing unbalanced entry for order %s: debits %d != credits %d", orderID, d, c)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, tenant_id, order_id, memo, posted_at)
		VALUES ($1,$2,$3,$4,$5)`,
		entry.ID, entry.TenantID, entry.OrderID, entry.Memo, entry.PostedAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert ledger_entry: %w", err)
	}

	for _, line := range entry.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_lines (id, entry_id, account, debit, credit)
			VALUES ($1,$2,$3,$4,$5)`,
			line.ID, entry.ID, line.Account, line.Debit, line.Credit)
		if err != nil {
			return uuid.Nil, fmt.Errorf("insert ledger_line: %w", err)
		}
	}

	return entry.ID, nil
}
