package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/roster"
)

type sqliteStore struct{ db *sqlx.DB }

// Open opens (and initializes if needed) the terminal's embedded store.
// WAL mode keeps single-record writes atomic and durable across crashes.
func Open(path string) (Store, error) {
	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init local store schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func initSchema(db *sqlx.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS queued_transactions (
			client_ref      TEXT PRIMARY KEY,
			operator_id     TEXT NOT NULL,
			lines           TEXT NOT NULL,
			payments        TEXT NOT NULL,
			subtotal_cents  INTEGER NOT NULL,
			discount_cents  INTEGER NOT NULL,
			tax_cents       INTEGER NOT NULL,
			total_cents     INTEGER NOT NULL,
			captured_at     TIMESTAMP NOT NULL,
			status          TEXT NOT NULL DEFAULT 'PENDING',
			attempts        INTEGER NOT NULL DEFAULT 0,
			last_error      TEXT NOT NULL DEFAULT '',
			server_order_id TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS queued_actions (
			client_ref  TEXT PRIMARY KEY,
			operator_id TEXT NOT NULL,
			type        TEXT NOT NULL,
			detail      TEXT NOT NULL DEFAULT '',
			occurred_at TIMESTAMP NOT NULL,
			status      TEXT NOT NULL DEFAULT 'PENDING',
			attempts    INTEGER NOT NULL DEFAULT 0,
			last_error  TEXT NOT NULL DEFAULT ''
		);
		CREATE TABLE IF NOT EXISTS catalog_cache (
			id              TEXT PRIMARY KEY,
			name            TEXT NOT NULL,
			category        TEXT NOT NULL DEFAULT '',
			price_cents     INTEGER NOT NULL,
			unit_cost_cents INTEGER NOT NULL,
			tax_rate_bps    INTEGER NOT NULL,
			stock_quantity  INTEGER NOT NULL,
			is_available    BOOLEAN NOT NULL
		);
		CREATE TABLE IF NOT EXISTS roster_cache (
			id           TEXT PRIMARY KEY,
			code         TEXT NOT NULL,
			name         TEXT NOT NULL,
			role         TEXT NOT NULL,
			pin_digest   TEXT NOT NULL,
			capabilities TEXT NOT NULL DEFAULT '{}',
			is_active    BOOLEAN NOT NULL
		);
		CREATE TABLE IF NOT EXISTS sync_cursors (
			name   TEXT PRIMARY KEY,
			cursor TIMESTAMP NOT NULL
		);
		CREATE TABLE IF NOT EXISTS shift_state (
			id                  TEXT PRIMARY KEY,
			operator_id         TEXT NOT NULL,
			opened_at           TIMESTAMP NOT NULL,
			opening_float_cents INTEGER NOT NULL,
			closed_at           TIMESTAMP,
			closing_count_cents INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}

func (s *sqliteStore) Close() error { return s.db.Close() }

// ── transaction queue ────────────────────────────────────────────────────────

type txRow struct {
	ClientRef     string    `db:"client_ref"`
	OperatorID    string    `db:"operator_id"`
	Lines         string    `db:"lines"`
	Payments      string    `db:"payments"`
	SubtotalCents int64     `db:"subtotal_cents"`
	DiscountCents int64     `db:"discount_cents"`
	TaxCents      int64     `db:"tax_cents"`
	TotalCents    int64     `db:"total_cents"`
	CapturedAt    time.Time `db:"captured_at"`
	Status        string    `db:"status"`
	Attempts      int       `db:"attempts"`
	LastError     string    `db:"last_error"`
	ServerOrderID string    `db:"server_order_id"`
}

func (s *sqliteStore) EnqueueTransaction(ctx context.Context, tx *QueuedTransaction) error {
	if tx.ClientRef == "" {
		return fmt.Errorf("client_ref is required")
	}
	lines, err := json.Marshal(tx.Lines)
	if err != nil {
		return err
	}
	payments, err := json.Marshal(tx.Payments)
	if err != nil {
		return err
	}
	tx.Status = SyncPending
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO queued_transactions
		  (client_ref, operator_id, lines, payments, subtotal_cents, discount_cents,
		   tax_cents, total_cents, captured_at, status)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		tx.ClientRef, tx.OperatorID, string(lines), string(payments),
		tx.SubtotalCents, tx.DiscountCents, tx.TaxCents, tx.TotalCents,
		tx.CapturedAt, SyncPending)
	return err
}

func (s *sqliteStore) PendingTransactions(ctx context.Context) ([]*QueuedTransaction, error) {
	var rows []txRow
	// SYNCING records are interrupted attempts from a crashed cycle; they
	// are still owed to the server.
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM queued_transactions
		WHERE status IN ('PENDING','FAILED','SYNCING')
		ORDER BY captured_at ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	out := make([]*QueuedTransaction, 0, len(rows))
	for i := range rows {
		tx, err := rows[i].toQueued()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func (r *txRow) toQueued() (*QueuedTransaction, error) {
	tx := &QueuedTransaction{
		ClientRef:     r.ClientRef,
		OperatorID:    r.OperatorID,
		SubtotalCents: r.SubtotalCents,
		DiscountCents: r.DiscountCents,
		TaxCents:      r.TaxCents,
		TotalCents:    r.TotalCents,
		CapturedAt:    r.CapturedAt,
		Status:        SyncStatus(r.Status),
		Attempts:      r.Attempts,
		LastError:     r.LastError,
		ServerOrderID: r.ServerOrderID,
	}
	if err := json.Unmarshal([]byte(r.Lines), &tx.Lines); err != nil {
		return nil, fmt.Errorf("decode lines for %s: %w", r.ClientRef, err)
	}
	if err := json.Unmarshal([]byte(r.Payments), &tx.Payments); err != nil {
		return nil, fmt.Errorf("decode payments for %s: %w", r.ClientRef, err)
	}
	return tx, nil
}

func (s *sqliteStore) MarkSyncing(ctx context.Context, clientRef string) error {
	return s.mustUpdate(ctx, clientRef, `
		UPDATE queued_transactions
		SET status='SYNCING', attempts = attempts + 1
		WHERE client_ref=?`, clientRef)
}

func (s *sqliteStore) MarkSynced(ctx context.Context, clientRef, serverOrderID string) error {
	return s.mustUpdate(ctx, clientRef, `
		UPDATE queued_transactions
		SET status='SYNCED', last_error='', server_order_id=?
		WHERE client_ref=?`, serverOrderID, clientRef)
}

func (s *sqliteStore) MarkFailed(ctx context.Context, clientRef, reason string) error {
	return s.mustUpdate(ctx, clientRef, `
		UPDATE queued_transactions
		SET status='FAILED', last_error=?
		WHERE client_ref=?`, reason, clientRef)
}

func (s *sqliteStore) mustUpdate(ctx context.Context, clientRef, query string, args ...interface{}) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no queued record %s", clientRef)
	}
	return nil
}

// ── action queue ─────────────────────────────────────────────────────────────

type actionRow struct {
	ClientRef  string    `db:"client_ref"`
	OperatorID string    `db:"operator_id"`
	Type       string    `db:"type"`
	Detail     string    `db:"detail"`
	OccurredAt time.Time `db:"occurred_at"`
	Status     string    `db:"status"`
	Attempts   int       `db:"attempts"`
	LastError  string    `db:"last_error"`
}

func (s *sqliteStore) EnqueueAction(ctx context.Context, a *QueuedAction) error {
	if a.ClientRef == "" {
		return fmt.Errorf("client_ref is required")
	}
	a.Status = SyncPending
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queued_actions
		  (client_ref, operator_id, type, detail, occurred_at, status)
		VALUES (?,?,?,?,?,?)`,
		a.ClientRef, a.OperatorID, a.Type, string(a.Detail), a.OccurredAt, SyncPending)
	return err
}

func (s *sqliteStore) PendingActions(ctx context.Context) ([]*QueuedAction, error) {
	var rows []actionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM queued_actions
		WHERE status IN ('PENDING','FAILED','SYNCING')
		ORDER BY occurred_at ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	out := make([]*QueuedAction, 0, len(rows))
	for _, r := range rows {
		a := &QueuedAction{
			ClientRef:  r.ClientRef,
			OperatorID: r.OperatorID,
			Type:       r.Type,
			OccurredAt: r.OccurredAt,
			Status:     SyncStatus(r.Status),
			Attempts:   r.Attempts,
			LastError:  r.LastError,
		}
		if r.Detail != "" {
			a.Detail = json.RawMessage(r.Detail)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *sqliteStore) MarkActionsSynced(ctx context.Context, clientRefs []string) error {
	if len(clientRefs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		`UPDATE queued_actions SET status='SYNCED', last_error='' WHERE client_ref IN (?)`,
		clientRefs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}

func (s *sqliteStore) PurgeSynced(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM queued_transactions WHERE status='SYNCED'`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM queued_actions WHERE status='SYNCED'`)
	return err
}

// ── reference caches ─────────────────────────────────────────────────────────

func (s *sqliteStore) ReplaceCatalog(ctx context.Context, entries []*CatalogEntry, cursor time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_cache`); err != nil {
		return err
	}
	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO catalog_cache
			  (id, name, category, price_cents, unit_cost_cents, tax_rate_bps, stock_quantity, is_available)
			VALUES (?,?,?,?,?,?,?,?)`,
			e.ID, e.Name, e.Category, e.PriceCents, e.UnitCostCents,
			e.TaxRateBps, e.StockQuantity, e.IsAvailable)
		if err != nil {
			return err
		}
	}
	if err := upsertCursor(ctx, tx, CursorCatalog, cursor); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Catalog(ctx context.Context) ([]*CatalogEntry, error) {
	var entries []*CatalogEntry
	err := s.db.SelectContext(ctx, &entries,
		`SELECT * FROM catalog_cache ORDER BY name ASC`)
	return entries, err
}

func (s *sqliteStore) CatalogEntry(ctx context.Context, id string) (*CatalogEntry, error) {
	var e CatalogEntry
	if err := s.db.GetContext(ctx, &e,
		`SELECT * FROM catalog_cache WHERE id=?`, id); err != nil {
		return nil, err
	}
	return &e, nil
}

type rosterRow struct {
	ID           string `db:"id"`
	Code         string `db:"code"`
	Name         string `db:"name"`
	Role         string `db:"role"`
	PINDigest    string `db:"pin_digest"`
	Capabilities string `db:"capabilities"`
	IsActive     bool   `db:"is_active"`
}

func (s *sqliteStore) ReplaceRoster(ctx context.Context, entries []*OperatorEntry, cursor time.Time) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM roster_cache`); err != nil {
		return err
	}
	for _, e := range entries {
		caps, err := json.Marshal(e.Capabilities)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO roster_cache
			  (id, code, name, role, pin_digest, capabilities, is_active)
			VALUES (?,?,?,?,?,?,?)`,
			e.ID, e.Code, e.Name, e.Role, e.PINDigest, string(caps), e.IsActive)
		if err != nil {
			return err
		}
	}
	if err := upsertCursor(ctx, tx, CursorRoster, cursor); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) Roster(ctx context.Context) ([]*OperatorEntry, error) {
	var rows []rosterRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM roster_cache ORDER BY code ASC`); err != nil {
		return nil, err
	}
	out := make([]*OperatorEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntry())
	}
	return out, nil
}

func (s *sqliteStore) OperatorByCode(ctx context.Context, code string) (*OperatorEntry, error) {
	var r rosterRow
	if err := s.db.GetContext(ctx, &r,
		`SELECT * FROM roster_cache WHERE code=?`, code); err != nil {
		return nil, err
	}
	return r.toEntry(), nil
}

func (r *rosterRow) toEntry() *OperatorEntry {
	return &OperatorEntry{
		ID:        r.ID,
		Code:      r.Code,
		Name:      r.Name,
		Role:      r.Role,
		PINDigest: r.PINDigest,
		// Unknown keys are dropped; missing keys mean no permission.
		Capabilities: roster.DecodeCapabilities([]byte(r.Capabilities)),
		IsActive:     r.IsActive,
	}
}

// ── cursors ──────────────────────────────────────────────────────────────────

func upsertCursor(ctx context.Context, tx *sqlx.Tx, name string, cursor time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sync_cursors (name, cursor) VALUES (?,?)
		ON CONFLICT(name) DO UPDATE SET cursor=excluded.cursor`,
		name, cursor)
	return err
}

func (s *sqliteStore) AdvanceCursor(ctx context.Context, name string, cursor time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_cursors (name, cursor) VALUES (?,?)
		ON CONFLICT(name) DO UPDATE SET cursor=excluded.cursor`,
		name, cursor)
	return err
}

func (s *sqliteStore) Cursor(ctx context.Context, name string) (time.Time, bool, error) {
	var cursor time.Time
	err := s.db.GetContext(ctx, &cursor,
		`SELECT cursor FROM sync_cursors WHERE name=?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return cursor, true, nil
}

// ── shift state ──────────────────────────────────────────────────────────────

func (s *sqliteStore) SaveShift(ctx context.Context, sh *Shift) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shift_state
		  (id, operator_id, opened_at, opening_float_cents, closed_at, closing_count_cents)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
		  closed_at=excluded.closed_at,
		  closing_count_cents=excluded.closing_count_cents`,
		sh.ID, sh.OperatorID, sh.OpenedAt, sh.OpeningFloatCents, sh.ClosedAt, sh.ClosingCountCents)
	return err
}

func (s *sqliteStore) ActiveShift(ctx context.Context) (*Shift, bool, error) {
	var sh Shift
	err := s.db.GetContext(ctx, &sh, `
		SELECT * FROM shift_state WHERE closed_at IS NULL
		ORDER BY opened_at DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &sh, true, nil
}
