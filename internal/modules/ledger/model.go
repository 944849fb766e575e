package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Account identifies a ledger account affected by a posting.
type Account string

const (
	AccountCash       Account = "CASH"
	AccountReceivable Account = "ACCOUNTS_RECEIVABLE"
	AccountRevenue    Account = "SALES_REVENUE"
	AccountTaxPayable Account = "TAX_PAYABLE"
	AccountCOGS       Account = "COST_OF_GOODS_SOLD"
	AccountInventory  Account = "INVENTORY"
)

// Entry is a double-entry posting. It is only valid when the debit and
// credit sides sum to equal totals; an unbalanced entry is never written.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	OrderID   uuid.UUID `json:"order_id"`
	Memo      string    `json:"memo,omitempty"`
	Lines     []*Line   `json:"lines"`
	PostedAt  time.Time `json:"posted_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Line is one side-entry within a posting. Amounts are integer cents;
// exactly one of Debit or Credit is non-zero.
type Line struct {
	ID      uuid.UUID `json:"id"`
	EntryID uuid.UUID `json:"entry_id"`
	Account Account   `json:"account"`
	Debit   int64     `json:"debit"`
	Credit  int64     `json:"credit"`
}

// SaleAmounts carries the computed totals of one ingested sale, in cents.
type SaleAmounts struct {
	CashTotal    int64
	NonCashTotal int64
	Revenue      int64
	Tax          int64
	COGS         int64
}

// Totals returns the summed debit and credit sides.
func (e *Entry) Totals() (debits, credits int64) {
	for _, l := range e.Lines {
		debits += l.Debit
		credits += l.Credit
	}
	return debits, credits
}

// Balanced reports whether debits equal credits.
func (e *Entry) Balanced() bool {
	d, c := e.Totals()
	return d == c
}

// buildSaleEntry assembles the posting for a completed sale: payment legs
// and COGS on the debit side, revenue, tax payable and inventory on the
// credit side. Zero-amount lines are omitted.
func buildSaleEntry(tenantID, orderID uuid.UUID, a SaleAmounts) *Entry {
	e := &Entry{
		ID:       uuid.New(),
		TenantID: tenantID,
		OrderID:  orderID,
		Memo:     "offline sale",
		PostedAt: time.Now().UTC(),
	}
	add := func(account Account, debit, credit int64) {
		if debit == 0 && credit == 0 {
			return
		}
		e.Lines = append(e.Lines, &Line{
			ID:      uuid.New(),
			EntryID: e.ID,
			Account: account,
			Debit:   debit,
			Credit:  credit,
		})
	}
	add(AccountCash, a.CashTotal, 0)
	add(AccountReceivable, a.NonCashTotal, 0)
	add(AccountRevenue, 0, a.Revenue)
	add(AccountTaxPayable, 0, a.Tax)
	add(AccountCOGS, a.COGS, 0)
	add(AccountInventory, 0, a.COGS)
	return e
}
