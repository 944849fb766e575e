package ingest

import (
	"context"

	"github.com/google/uuid"
)

// ApplyResult is the outcome of the atomic unit of work.
type ApplyResult struct {
	OrderID       uuid.UUID
	Duplicate     bool
	LedgerEntryID uuid.UUID
}

// Repository defines the ingestion data access. ApplySale is the atomic
// unit of work of the ingestion path.
type Repository interface {
	// FindByClientRef resolves the idempotency key to an existing order.
	FindByClientRef(ctx context.Context, tenantID uuid.UUID, clientRef string) (uuid.UUID, bool, error)

	// ApplySale runs the whole unit of work in one database transaction:
	// order graph insert, per-line inventory deduction with stock
	// movements, ledger posting, ledger link. A concurrent submission of
	// the same reference resolves to the duplicate path, never to
	// corrupted state.
	ApplySale(ctx context.Context, o *ServerOrder) (*ApplyResult, error)

	// RecordAction applies one action idempotently by its client
	// reference. Returns false without error when it was already applied.
	RecordAction(ctx context.Context, a *ActionRecord) (bool, error)

	// OperatorActive reports whether the operator is still active; used
	// for anomaly logging only, never for rejection.
	OperatorActive(ctx context.Context, tenantID, operatorID uuid.UUID) (bool, error)
}
