package ingest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PaymentMethod is how a payment leg was settled at the terminal.
type PaymentMethod string

const (
	PaymentCash        PaymentMethod = "CASH"
	PaymentCard        PaymentMethod = "CARD"
	PaymentMobileMoney PaymentMethod = "MOBILE_MONEY"
	PaymentVoucher     PaymentMethod = "VOUCHER"
)

// ServerOrder is the authoritative record created from a queued offline
// sale. It is keyed by the client-supplied reference within the tenant;
// after creation only the per-line deduction flags and the ledger link are
// ever written, each exactly once.
type ServerOrder struct {
	ID            uuid.UUID     `json:"id"`
	TenantID      uuid.UUID     `json:"tenant_id"`
	ClientRef     string        `json:"client_ref"`
	OperatorID    uuid.UUID     `json:"operator_id"`
	OrderNumber   string        `json:"order_number"`
	Status        string        `json:"status"`
	OfflineOrigin bool          `json:"offline_origin"`
	SubtotalCents int64         `json:"subtotal_cents"`
	DiscountCents int64         `json:"discount_cents"`
	TaxCents      int64         `json:"tax_cents"`
	TotalCents    int64         `json:"total_cents"`
	Lines         []*OrderLine  `json:"lines,omitempty"`
	Payments      []*PaymentLeg `json:"payments,omitempty"`
	LedgerEntryID *uuid.UUID    `json:"ledger_entry_id,omitempty"`
	CapturedAt    time.Time     `json:"captured_at"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// StatusCompleted is the only status an offline sale ever lands in: the
// sale already happened at the counter.
const StatusCompleted = "COMPLETED"

// OrderLine is one captured line item. Monetary fields are frozen at
// capture time.
type OrderLine struct {
	ID                uuid.UUID  `json:"id"`
	OrderID           uuid.UUID  `json:"order_id"`
	ProductID         *uuid.UUID `json:"product_id,omitempty"`
	Description       string     `json:"description,omitempty"`
	Quantity          int        `json:"quantity"`
	UnitPriceCents    int64      `json:"unit_price_cents"`
	DiscountCents     int64      `json:"discount_cents"`
	TaxRateBps        int        `json:"tax_rate_bps"`
	TaxCents          int64      `json:"tax_cents"`
	LineTotalCents    int64      `json:"line_total_cents"`
	InventoryDeducted bool       `json:"inventory_deducted"`
}

// PaymentLeg is one tender against the sale.
type PaymentLeg struct {
	ID            uuid.UUID     `json:"id"`
	OrderID       uuid.UUID     `json:"order_id"`
	Method        PaymentMethod `json:"method"`
	AmountCents   int64         `json:"amount_cents"`
	TenderedCents int64         `json:"tendered_cents,omitempty"`
	ChangeCents   int64         `json:"change_cents,omitempty"`
}

// StockMovement is the immutable audit record of one inventory change.
type StockMovement struct {
	ID                uuid.UUID `json:"id"`
	TenantID          uuid.UUID `json:"tenant_id"`
	ProductID         uuid.UUID `json:"product_id"`
	OrderID           uuid.UUID `json:"order_id"`
	QuantityChange    int       `json:"quantity_change"`
	ResultingQuantity int       `json:"resulting_quantity"`
	Reason            string    `json:"reason"`
	CreatedAt         time.Time `json:"created_at"`
}

// ── wire payloads ────────────────────────────────────────────────────────────

// SaleLine is a line item as pushed by a terminal.
type SaleLine struct {
	ProductID      string `json:"product_id,omitempty"`
	Description    string `json:"description,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	DiscountCents  int64  `json:"discount_cents,omitempty"`
	TaxRateBps     int    `json:"tax_rate_bps,omitempty"`
	TaxCents       int64  `json:"tax_cents,omitempty"`
}

// SalePayment is a payment leg as pushed by a terminal.
type SalePayment struct {
	Method        string `json:"method"`
	AmountCents   int64  `json:"amount_cents"`
	TenderedCents int64  `json:"tendered_cents,omitempty"`
	ChangeCents   int64  `json:"change_cents,omitempty"`
}

// SubmitSaleRequest is the push-sale payload. ClientRef is the idempotency
// key minted on the device.
type SubmitSaleRequest struct {
	ClientRef  string        `json:"client_ref"`
	OperatorID string        `json:"operator_id"`
	CapturedAt time.Time     `json:"captured_at"`
	Lines      []SaleLine    `json:"lines"`
	Payments   []SalePayment `json:"payments"`
}

// SubmitSaleResponse reports the server order the sale landed in.
// Duplicate is true when the reference had already been applied.
type SubmitSaleResponse struct {
	ServerOrderID uuid.UUID `json:"server_order_id"`
	Duplicate     bool      `json:"duplicate"`
}

// SyncAction is a privileged or notable terminal event pushed for audit.
type SyncAction struct {
	ClientRef  string          `json:"client_ref"`
	OperatorID string          `json:"operator_id"`
	Type       string          `json:"type"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// SubmitActionsRequest is the push-actions payload.
type SubmitActionsRequest struct {
	Actions []SyncAction `json:"actions"`
}

// ActionError is a per-item failure in an actions batch.
type ActionError struct {
	ClientRef string `json:"client_ref"`
	Error     string `json:"error"`
}

// SubmitActionsResponse is the per-item result of an actions batch.
// Duplicates are counted as synced.
type SubmitActionsResponse struct {
	Synced int           `json:"synced"`
	Errors []ActionError `json:"errors"`
	Total  int           `json:"total"`
}

// ActionRecord is the stored form of a SyncAction.
type ActionRecord struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	ClientRef  string          `json:"client_ref"`
	OperatorID uuid.UUID       `json:"operator_id"`
	Type       string          `json:"type"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	CreatedAt  time.Time       `json:"created_at"`
}
