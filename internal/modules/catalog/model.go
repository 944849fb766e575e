package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Product is a sellable item in a tenant's catalog. It carries everything a
// terminal needs for offline decision-making: price, unit cost, stock and
// tax rate, so no further lookup is required once cached on-device.
// Monetary fields are integer cents; the tax rate is basis points.
type Product struct {
	ID            uuid.UUID `json:"id"`
	TenantID      uuid.UUID `json:"tenant_id"`
	Name          string    `json:"name"`
	Category      string    `json:"category,omitempty"`
	SKU           string    `json:"sku,omitempty"`
	PriceCents    int64     `json:"price_cents"`
	UnitCostCents int64     `json:"unit_cost_cents"`
	TaxRateBps    int       `json:"tax_rate_bps"`
	StockQuantity int       `json:"stock_quantity"`
	IsAvailable   bool      `json:"is_available"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateProductRequest is the payload for adding a product to the catalog.
type CreateProductRequest struct {
	Name          string `json:"name"`
	Category      string `json:"category,omitempty"`
	SKU           string `json:"sku,omitempty"`
	PriceCents    int64  `json:"price_cents"`
	UnitCostCents int64  `json:"unit_cost_cents"`
	TaxRateBps    int    `json:"tax_rate_bps"`
	StockQuantity int    `json:"stock_quantity"`
}

// DeltaResponse is the incremental-pull envelope consumed by terminals.
// SyncTimestamp is the cursor for the next pull.
type DeltaResponse struct {
	Items         []*Product `json:"items"`
	Count         int        `json:"count"`
	SyncTimestamp time.Time  `json:"sync_timestamp"`
}
