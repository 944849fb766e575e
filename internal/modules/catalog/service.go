package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service defines catalog business logic.
type Service interface {
	CreateProduct(ctx context.Context, tenantID uuid.UUID, req CreateProductRequest) (*Product, error)
	GetProduct(ctx context.Context, tenantID uuid.UUID, id string) (*Product, error)

	// Delta returns products changed since the cursor, plus the server
	// timestamp terminals should store as the next cursor.
	Delta(ctx context.Context, tenantID uuid.UUID, since *time.Time) (*DeltaResponse, error)

	UpdateStock(ctx context.Context, tenantID uuid.UUID, id string, qty int) error
	SetAvailability(ctx context.Context, tenantID uuid.UUID, id string, available bool) error
}

type service struct{ repo Repository }

// NewService creates a new catalog service.
func NewService(repo Repository) Service { return &service{repo: repo} }

func (s *service) CreateProduct(ctx context.Context, tenantID uuid.UUID, req CreateProductRequest) (*Product, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if req.PriceCents < 0 {
		return nil, fmt.Errorf("price_cents cannot be negative")
	}
	if req.UnitCostCents < 0 {
		return nil, fmt.Errorf("unit_cost_cents cannot be negative")
	}
	if req.TaxRateBps < 0 {
		return nil, fmt.Errorf("tax_rate_bps cannot be negative")
	}

	p := &Product{
		ID:            uuid.New(),
		TenantID:      tenantID,
		Name:          req.Name,
		Category:      req.Category,
		SKU:           req.SKU,
		PriceCents:    req.PriceCents,
		UnitCostCents: req.UnitCostCents,
		TaxRateBps:    req.TaxRateBps,
		StockQuantity: req.StockQuantity,
		IsAvailable:   true,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to persist product: %w", err)
	}
	return p, nil
}

func (s *service) GetProduct(ctx context.Context, tenantID uuid.UUID, id string) (*Product, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

func (s *service) Delta(ctx context.Context, tenantID uuid.UUID, since *time.Time) (*DeltaResponse, error) {
	// The timestamp is taken before the query so a write that lands while
	// the query runs is re-sent on the next pull rather than skipped.
	now := time.Now().UTC()
	items, err := s.repo.ListSince(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}
	return &DeltaResponse{Items: items, Count: len(items), SyncTimestamp: now}, nil
}

func (s *service) UpdateStock(ctx context.Context, tenantID uuid.UUID, id string, qty int) error {
	return s.repo.UpdateStock(ctx, tenantID, id, qty)
}

func (s *service) SetAvailability(ctx context.Context, tenantID uuid.UUID, id string, available bool) error {
	return s.repo.SetAvailability(ctx, tenantID, id, available)
}
