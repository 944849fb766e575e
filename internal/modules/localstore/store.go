package localstore

import (
	"context"
	"time"
)

// Store is the terminal's durable on-device state: outbound queues, cached
// reference data, sync cursors and shift state. It is the only component
// allowed to persist financial facts before they reach the server. Every
// mutation is atomic at the single-record level and survives restarts.
type Store interface {
	// EnqueueTransaction appends a completed sale with status pending. It
	// never rejects on business grounds: a completed sale is a fact, not
	// a request.
	EnqueueTransaction(ctx context.Context, tx *QueuedTransaction) error

	// PendingTransactions returns every record still owed to the server
	// (pending, failed, or interrupted mid-sync) in capture order, oldest
	// first. Ordering matters: later corrections depend on the original
	// sale arriving first.
	PendingTransactions(ctx context.Context) ([]*QueuedTransaction, error)

	// MarkSyncing flags one record as in flight and increments its
	// attempt count.
	MarkSyncing(ctx context.Context, clientRef string) error

	// MarkSynced records the server-assigned order and retires the record
	// from the pending set.
	MarkSynced(ctx context.Context, clientRef, serverOrderID string) error

	// MarkFailed stores a human-readable reason. The record stays
	// eligible for the next cycle; a transaction is never dropped on
	// failure.
	MarkFailed(ctx context.Context, clientRef, reason string) error

	EnqueueAction(ctx context.Context, a *QueuedAction) error
	PendingActions(ctx context.Context) ([]*QueuedAction, error)
	MarkActionsSynced(ctx context.Context, clientRefs []string) error

	// PurgeSynced removes only synced records from both queues.
	PurgeSynced(ctx context.Context) error

	// ReplaceCatalog wholesale-replaces the cache and advances the cursor
	// in one atomic step. Replace, not merge: stale entries must not
	// survive a refresh.
	ReplaceCatalog(ctx context.Context, entries []*CatalogEntry, cursor time.Time) error
	Catalog(ctx context.Context) ([]*CatalogEntry, error)
	CatalogEntry(ctx context.Context, id string) (*CatalogEntry, error)

	ReplaceRoster(ctx context.Context, entries []*OperatorEntry, cursor time.Time) error
	Roster(ctx context.Context) ([]*OperatorEntry, error)
	OperatorByCode(ctx context.Context, code string) (*OperatorEntry, error)

	// AdvanceCursor moves a cursor without touching the cache, for the
	// empty-delta case.
	AdvanceCursor(ctx context.Context, name string, cursor time.Time) error
	Cursor(ctx context.Context, name string) (time.Time, bool, error)

	SaveShift(ctx context.Context, s *Shift) error
	ActiveShift(ctx context.Context) (*Shift, bool, error)

	Close() error
}
