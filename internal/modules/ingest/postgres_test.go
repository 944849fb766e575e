package ingest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/ledger"
)

// The repository tests run against an embedded database. The driver is
// extended with a NOW() function so the repository SQL runs unmodified.
func init() {
	sql.Register("sqlite3_ingest", &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("now", func() string {
				return time.Now().UTC().Format("2006-01-02 15:04:05")
			}, false)
		},
	})
}

func openIngestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3_ingest", filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE products (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, name TEXT,
			unit_cost_cents INTEGER NOT NULL, stock_quantity INTEGER NOT NULL,
			updated_at TEXT
		);
		CREATE TABLE orders (
			id TEXT PRIMARY KEY, tenant_id TEXT NOT NULL, client_ref TEXT NOT NULL,
			operator_id TEXT, order_number TEXT, status TEXT, offline_origin BOOLEAN,
			subtotal_cents INTEGER, discount_cents INTEGER, tax_cents INTEGER,
			total_cents INTEGER, captured_at TIMESTAMP, ledger_entry_id TEXT,
			updated_at TEXT,
			UNIQUE (tenant_id, client_ref)
		);
		CREATE TABLE order_lines (
			id TEXT PRIMARY KEY, order_id TEXT, product_id TEXT, description TEXT,
			quantity INTEGER, unit_price_cents INTEGER, discount_cents INTEGER,
			tax_rate_bps INTEGER, tax_cents INTEGER, line_total_cents INTEGER,
			inventory_deducted BOOLEAN
		);
		CREATE TABLE order_payments (
			id TEXT PRIMARY KEY, order_id TEXT, method TEXT,
			amount_cents INTEGER, tendered_cents INTEGER, change_cents INTEGER
		);
		CREATE TABLE stock_movements (
			id TEXT PRIMARY KEY, tenant_id TEXT, product_id TEXT, order_id TEXT,
			quantity_change INTEGER, resulting_quantity INTEGER, reason TEXT
		);
		CREATE TABLE ledger_entries (
			id TEXT PRIMARY KEY, tenant_id TEXT, order_id TEXT, memo TEXT,
			posted_at TIMESTAMP
		);
		CREATE TABLE ledger_lines (
			id TEXT PRIMARY KEY, entry_id TEXT, account TEXT,
			debit INTEGER, credit INTEGER
		);
		CREATE TABLE terminal_actions (
			id TEXT PRIMARY KEY, tenant_id TEXT, client_ref TEXT, operator_id TEXT,
			type TEXT, detail TEXT, occurred_at TIMESTAMP,
			UNIQUE (tenant_id, client_ref)
		);
	`)
	require.NoError(t, err)
	return db
}

func seedProduct(t *testing.T, db *sql.DB, tenantID uuid.UUID, unitCost int64, stock int) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO products (id, tenant_id, name, unit_cost_cents, stock_quantity) VALUES (?,?,?,?,?)`,
		id, tenantID, "Espresso", unitCost, stock)
	require.NoError(t, err)
	return id
}

func saleFor(productID, operatorID uuid.UUID) SubmitSaleRequest {
	return SubmitSaleRequest{
		ClientRef:  "lane1-0001",
		OperatorID: operatorID.String(),
		CapturedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Lines: []SaleLine{
			{ProductID: productID.String(), Quantity: 2, UnitPriceCents: 500, TaxRateBps: 1500, TaxCents: 150},
		},
		Payments: []SalePayment{
			{Method: "CASH", AmountCents: 1150, TenderedCents: 1200, ChangeCents: 50},
		},
	}
}

func ledgerLines(t *testing.T, db *sql.DB, entryID uuid.UUID) map[string][2]int64 {
	t.Helper()
	rows, err := db.Query(`SELECT account, debit, credit FROM ledger_lines WHERE entry_id=?`, entryID)
	require.NoError(t, err)
	defer rows.Close()
	out := map[string][2]int64{}
	for rows.Next() {
		var account string
		var debit, credit int64
		require.NoError(t, rows.Scan(&account, &debit, &credit))
		out[account] = [2]int64{debit, credit}
	}
	require.NoError(t, rows.Err())
	return out
}

func TestApplySale_DeductsStockAndPostsBalancedEntry(t *testing.T) {
	db := openIngestDB(t)
	ctx := context.Background()
	tenantID, operatorID := uuid.New(), uuid.New()
	productID := seedProduct(t, db, tenantID, 300, 10)

	repo := NewPostgresRepository(db, ledger.NewPostgresPoster())
	o := buildOrder(tenantID, operatorID, saleFor(productID, operatorID))

	result, err := repo.ApplySale(ctx, o)
	require.NoError(t, err)
	assert.False(t, result.Duplicate)

	// Two units sold against a stock of ten.
	var stock int
	require.NoError(t, db.QueryRow(
		`SELECT stock_quantity FROM products WHERE id=?`, productID).Scan(&stock))
	assert.Equal(t, 8, stock)

	var change, resulting int
	var reason string
	require.NoError(t, db.QueryRow(
		`SELECT quantity_change, resulting_quantity, reason FROM stock_movements WHERE product_id=?`,
		productID).Scan(&change, &resulting, &reason))
	assert.Equal(t, -2, change)
	assert.Equal(t, 8, resulting)
	assert.Equal(t, "OFFLINE_SALE", reason)

	var deducted bool
	require.NoError(t, db.QueryRow(
		`SELECT inventory_deducted FROM order_lines WHERE order_id=?`, o.ID).Scan(&deducted))
	assert.True(t, deducted)

	// The ledger entry is linked on the order and balances to the cent:
	// cash 1150 and COGS 600 against revenue 1000, tax 150, inventory 600.
	var linked uuid.UUID
	require.NoError(t, db.QueryRow(
		`SELECT ledger_entry_id FROM orders WHERE id=?`, o.ID).Scan(&linked))
	assert.Equal(t, result.LedgerEntryID, linked)

	lines := ledgerLines(t, db, result.LedgerEntryID)
	assert.Equal(t, [2]int64{1150, 0}, lines["CASH"])
	assert.Equal(t, [2]int64{0, 1000}, lines["SALES_REVENUE"])
	assert.Equal(t, [2]int64{0, 150}, lines["TAX_PAYABLE"])
	assert.Equal(t, [2]int64{600, 0}, lines["COST_OF_GOODS_SOLD"])
	assert.Equal(t, [2]int64{0, 600}, lines["INVENTORY"])

	var debits, credits int64
	for _, dc := range lines {
		debits += dc[0]
		credits += dc[1]
	}
	assert.Equal(t, int64(1750), debits)
	assert.Equal(t, debits, credits)
}

func TestApplySale_UnknownProductSkipsDeductionOnly(t *testing.T) {
	db := openIngestDB(t)
	ctx := context.Background()
	tenantID, operatorID := uuid.New(), uuid.New()

	repo := NewPostgresRepository(db, ledger.NewPostgresPoster())
	// A product id the server has never seen: the sale still applies.
	o := buildOrder(tenantID, operatorID, saleFor(uuid.New(), operatorID))

	result, err := repo.ApplySale(ctx, o)
	require.NoError(t, err)

	var deducted bool
	require.NoError(t, db.QueryRow(
		`SELECT inventory_deducted FROM order_lines WHERE order_id=?`, o.ID).Scan(&deducted))
	assert.False(t, deducted)

	var movements int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM stock_movements`).Scan(&movements))
	assert.Zero(t, movements)

	// No cost basis, so the entry has no COGS or inventory lines but still
	// balances on the payment side.
	lines := ledgerLines(t, db, result.LedgerEntryID)
	assert.NotContains(t, lines, "COST_OF_GOODS_SOLD")
	assert.NotContains(t, lines, "INVENTORY")
	assert.Equal(t, [2]int64{1150, 0}, lines["CASH"])
}

func TestDeductLine_FastPaths(t *testing.T) {
	repo := &postgresRepo{}
	o := &ServerOrder{ID: uuid.New(), TenantID: uuid.New(), ClientRef: "lane1-0002"}

	// An unresolvable line never touches the database.
	deducted, cogs, err := repo.deductLine(context.Background(), nil, o, &OrderLine{ID: uuid.New()})
	require.NoError(t, err)
	assert.False(t, deducted)
	assert.Zero(t, cogs)

	// An already-deducted line is not deducted twice.
	pid := uuid.New()
	line := &OrderLine{ID: uuid.New(), ProductID: &pid, Quantity: 2, InventoryDeducted: true}
	deducted, cogs, err = repo.deductLine(context.Background(), nil, o, line)
	require.NoError(t, err)
	assert.True(t, deducted)
	assert.Zero(t, cogs)
}

func TestRecordAction_IdempotentOnClientRef(t *testing.T) {
	db := openIngestDB(t)
	ctx := context.Background()
	repo := NewPostgresRepository(db, ledger.NewPostgresPoster())

	rec := &ActionRecord{
		ID:         uuid.New(),
		TenantID:   uuid.New(),
		ClientRef:  "act-0001",
		OperatorID: uuid.New(),
		Type:       "VOID",
		OccurredAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	applied, err := repo.RecordAction(ctx, rec)
	require.NoError(t, err)
	assert.True(t, applied)

	replay := *rec
	replay.ID = uuid.New()
	applied, err = repo.RecordAction(ctx, &replay)
	require.NoError(t, err)
	assert.False(t, applied)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM terminal_actions`).Scan(&count))
	assert.Equal(t, 1, count)
}
