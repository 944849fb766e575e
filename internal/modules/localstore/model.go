package localstore

import (
	"encoding/json"
	"time"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/roster"
)

// SyncStatus is the outbound-queue lifecycle of a locally captured record.
type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSyncing SyncStatus = "SYNCING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncFailed  SyncStatus = "FAILED"
)

// LineItem is one captured sale line. Monetary fields are frozen at
// capture time; the sale is a completed cash event.
type LineItem struct {
	ProductID      string `json:"product_id,omitempty"`
	Description    string `json:"description,omitempty"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	DiscountCents  int64  `json:"discount_cents,omitempty"`
	TaxRateBps     int    `json:"tax_rate_bps,omitempty"`
	TaxCents       int64  `json:"tax_cents,omitempty"`
}

// PaymentLeg is one tender captured against the sale.
type PaymentLeg struct {
	Method        string `json:"method"`
	AmountCents   int64  `json:"amount_cents"`
	TenderedCents int64  `json:"tendered_cents,omitempty"`
	ChangeCents   int64  `json:"change_cents,omitempty"`
}

// QueuedTransaction is an immutable record of a completed sale waiting to
// reach the server. Only the sync-status fields ever change after capture;
// the record leaves the queue only after the server confirms application.
type QueuedTransaction struct {
	ClientRef     string       `json:"client_ref"`
	OperatorID    string       `json:"operator_id"`
	Lines         []LineItem   `json:"lines"`
	Payments      []PaymentLeg `json:"payments"`
	SubtotalCents int64        `json:"subtotal_cents"`
	DiscountCents int64        `json:"discount_cents"`
	TaxCents      int64        `json:"tax_cents"`
	TotalCents    int64        `json:"total_cents"`
	CapturedAt    time.Time    `json:"captured_at"`

	Status        SyncStatus `json:"status"`
	Attempts      int        `json:"attempts"`
	LastError     string     `json:"last_error,omitempty"`
	ServerOrderID string     `json:"server_order_id,omitempty"`
}

// ComputeTotals derives the frozen totals from the captured lines.
func (q *QueuedTransaction) ComputeTotals() {
	q.SubtotalCents, q.DiscountCents, q.TaxCents, q.TotalCents = 0, 0, 0, 0
	for _, l := range q.Lines {
		q.SubtotalCents += int64(l.Quantity) * l.UnitPriceCents
		q.DiscountCents += l.DiscountCents
		q.TaxCents += l.TaxCents
	}
	q.TotalCents = q.SubtotalCents - q.DiscountCents + q.TaxCents
}

// QueuedAction is an audit-style record of a privileged or notable
// terminal event (void, discard, drawer open) with the same sync
// lifecycle as a transaction but no monetary totals.
type QueuedAction struct {
	ClientRef  string          `json:"client_ref"`
	OperatorID string          `json:"operator_id"`
	Type       string          `json:"type"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`

	Status    SyncStatus `json:"status"`
	Attempts  int        `json:"attempts"`
	LastError string     `json:"last_error,omitempty"`
}

// CatalogEntry is a read-only mirror of a server product, denormalized so
// the terminal can ring up sales with no further lookups.
type CatalogEntry struct {
	ID            string `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	Category      string `db:"category" json:"category,omitempty"`
	PriceCents    int64  `db:"price_cents" json:"price_cents"`
	UnitCostCents int64  `db:"unit_cost_cents" json:"unit_cost_cents"`
	TaxRateBps    int    `db:"tax_rate_bps" json:"tax_rate_bps"`
	StockQuantity int    `db:"stock_quantity" json:"stock_quantity"`
	IsAvailable   bool   `db:"is_available" json:"is_available"`
}

// OperatorEntry is a read-only mirror of a server operator. The PIN digest
// is a one-way bcrypt hash; caching it on-device is how offline PIN checks
// work.
type OperatorEntry struct {
	ID           string              `json:"id"`
	Code         string              `json:"code"`
	Name         string              `json:"name"`
	Role         string              `json:"role"`
	PINDigest    string              `json:"pin_digest"`
	Capabilities roster.Capabilities `json:"capabilities"`
	IsActive     bool                `json:"is_active"`
}

// Shift is the active cash-drawer session on this terminal.
type Shift struct {
	ID                string     `db:"id" json:"id"`
	OperatorID        string     `db:"operator_id" json:"operator_id"`
	OpenedAt          time.Time  `db:"opened_at" json:"opened_at"`
	OpeningFloatCents int64      `db:"opening_float_cents" json:"opening_float_cents"`
	ClosedAt          *time.Time `db:"closed_at" json:"closed_at,omitempty"`
	ClosingCountCents int64      `db:"closing_count_cents" json:"closing_count_cents"`
}

// Cursor names for the incremental pulls.
const (
	CursorCatalog = "catalog"
	CursorRoster  = "roster"
)
