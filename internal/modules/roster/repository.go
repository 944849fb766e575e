package roster

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines data access for operators.
type Repository interface {
	Create(ctx context.Context, o *Operator) error

	GetByID(ctx context.Context, tenantID uuid.UUID, id string) (*Operator, error)

	// GetByCode looks up an operator by the short code keyed at the
	// terminal login screen.
	GetByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Operator, error)

	// ListSince returns operators updated after the cursor, oldest first.
	// A nil cursor returns the full roster.
	ListSince(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]*Operator, error)

	SetActive(ctx context.Context, tenantID uuid.UUID, id string, active bool) error
}
