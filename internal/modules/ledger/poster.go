package ledger

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// Poster is the narrow contract the ingestion path calls to record the
// accounting consequence of a sale. The posting joins the caller's
// transaction so an order is never committed without its ledger entry.
type Poster interface {
	// PostSale writes a balanced entry for the given amounts and returns
	// its identifier. Any error aborts the caller's unit of work.
	PostSale(ctx context.Context, tx *sql.Tx, tenantID, orderID uuid.UUID, amounts SaleAmounts) (uuid.UUID, error)
}
