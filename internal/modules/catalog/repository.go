package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines data access for the tenant product catalog.
type Repository interface {
	Create(ctx context.Context, p *Product) error

	GetByID(ctx context.Context, tenantID uuid.UUID, id string) (*Product, error)

	// ListSince returns products updated after the given cursor, oldest
	// first. A nil cursor returns the full catalog.
	ListSince(ctx context.Context, tenantID uuid.UUID, since *time.Time) ([]*Product, error)

	// UpdateStock sets the absolute stock quantity for a product.
	UpdateStock(ctx context.Context, tenantID uuid.UUID, id string, qty int) error

	SetAvailability(ctx context.Context, tenantID uuid.UUID, id string, available bool) error
}
