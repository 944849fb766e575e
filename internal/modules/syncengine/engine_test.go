package syncengine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/localstore"
)

// fakeStore is an in-memory localstore.Store that records the engine's
// calls against it.
type fakeStore struct {
	transactions []*localstore.QueuedTransaction
	actions      []*localstore.QueuedAction
	cursors      map[string]time.Time

	catalog []*localstore.CatalogEntry
	roster  []*localstore.OperatorEntry

	markedSyncing []string
	markedSynced  map[string]string
	markedFailed  map[string]string
	actionsSynced []string
	purged        bool

	catalogReplaced bool
	rosterReplaced  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cursors:      map[string]time.Time{},
		markedSynced: map[string]string{},
		markedFailed: map[string]string{},
	}
}

func (f *fakeStore) EnqueueTransaction(ctx context.Context, tx *localstore.QueuedTransaction) error {
	f.transactions = append(f.transactions, tx)
	return nil
}

func (f *fakeStore) PendingTransactions(ctx context.Context) ([]*localstore.QueuedTransaction, error) {
	var out []*localstore.QueuedTransaction
	for _, tx := range f.transactions {
		if tx.Status != localstore.SyncSynced {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkSyncing(ctx context.Context, ref string) error {
	f.markedSyncing = append(f.markedSyncing, ref)
	f.setStatus(ref, localstore.SyncSyncing)
	return nil
}

func (f *fakeStore) MarkSynced(ctx context.Context, ref, serverOrderID string) error {
	f.markedSynced[ref] = serverOrderID
	f.setStatus(ref, localstore.SyncSynced)
	return nil
}

func (f *fakeStore) MarkFailed(ctx context.Context, ref, reason string) error {
	f.markedFailed[ref] = reason
	f.setStatus(ref, localstore.SyncFailed)
	return nil
}

func (f *fakeStore) setStatus(ref string, status localstore.SyncStatus) {
	for _, tx := range f.transactions {
		if tx.ClientRef == ref {
			tx.Status = status
		}
	}
}

func (f *fakeStore) EnqueueAction(ctx context.Context, a *localstore.QueuedAction) error {
	f.actions = append(f.actions, a)
	return nil
}

func (f *fakeStore) PendingActions(ctx context.Context) ([]*localstore.QueuedAction, error) {
	var out []*localstore.QueuedAction
	for _, a := range f.actions {
		if a.Status != localstore.SyncSynced {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkActionsSynced(ctx context.Context, refs []string) error {
	f.actionsSynced = append(f.actionsSynced, refs...)
	for _, a := range f.actions {
		for _, ref := range refs {
			if a.ClientRef == ref {
				a.Status = localstore.SyncSynced
			}
		}
	}
	return nil
}

func (f *fakeStore) PurgeSynced(ctx context.Context) error {
	f.purged = true
	return nil
}

func (f *fakeStore) ReplaceCatalog(ctx context.Context, entries []*localstore.CatalogEntry, cursor time.Time) error {
	f.catalogReplaced = true
	f.catalog = entries
	f.cursors[localstore.CursorCatalog] = cursor
	return nil
}

func (f *fakeStore) Catalog(ctx context.Context) ([]*localstore.CatalogEntry, error) {
	return f.catalog, nil
}

func (f *fakeStore) CatalogEntry(ctx context.Context, id string) (*localstore.CatalogEntry, error) {
	for _, e := range f.catalog {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeStore) ReplaceRoster(ctx context.Context, entries []*localstore.OperatorEntry, cursor time.Time) error {
	f.rosterReplaced = true
	f.roster = entries
	f.cursors[localstore.CursorRoster] = cursor
	return nil
}

func (f *fakeStore) Roster(ctx context.Context) ([]*localstore.OperatorEntry, error) {
	return f.roster, nil
}

func (f *fakeStore) OperatorByCode(ctx context.Context, code string) (*localstore.OperatorEntry, error) {
	for _, op := range f.roster {
		if op.Code == code {
			return op, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeStore) AdvanceCursor(ctx context.Context, name string, cursor time.Time) error {
	f.cursors[name] = cursor
	return nil
}

func (f *fakeStore) Cursor(ctx context.Context, name string) (time.Time, bool, error) {
	c, ok := f.cursors[name]
	return c, ok, nil
}

func (f *fakeStore) SaveShift(ctx context.Context, s *localstore.Shift) error { return nil }
func (f *fakeStore) ActiveShift(ctx context.Context) (*localstore.Shift, bool, error) {
	return nil, false, nil
}
func (f *fakeStore) Close() error { return nil }

// fakeClient scripts server responses per client_ref.
type fakeClient struct {
	pushedRefs []string
	rejections map[string]string // client_ref -> rejection message
	transport  map[string]error  // client_ref -> transport failure
	duplicates map[string]bool

	actionsResult *ActionsResult
	actionsErr    error

	catalogEntries []*localstore.CatalogEntry
	catalogCursor  time.Time
	catalogErr     error

	rosterEntries []*localstore.OperatorEntry
	rosterCursor  time.Time
	rosterErr     error
}

func (c *fakeClient) PushSale(ctx context.Context, tx *localstore.QueuedTransaction) (string, bool, error) {
	c.pushedRefs = append(c.pushedRefs, tx.ClientRef)
	if err, ok := c.transport[tx.ClientRef]; ok {
		return "", false, err
	}
	if msg, ok := c.rejections[tx.ClientRef]; ok {
		return "", false, &RejectionError{Status: 400, Message: msg}
	}
	return "order-" + tx.ClientRef, c.duplicates[tx.ClientRef], nil
}

func (c *fakeClient) PushActions(ctx context.Context, actions []*localstore.QueuedAction) (*ActionsResult, error) {
	if c.actionsErr != nil {
		return nil, c.actionsErr
	}
	if c.actionsResult != nil {
		return c.actionsResult, nil
	}
	return &ActionsResult{Synced: len(actions), Total: len(actions), Errors: map[string]string{}}, nil
}

func (c *fakeClient) PullCatalog(ctx context.Context, since time.Time, haveCursor bool) ([]*localstore.CatalogEntry, time.Time, error) {
	return c.catalogEntries, c.catalogCursor, c.catalogErr
}

func (c *fakeClient) PullRoster(ctx context.Context, since time.Time, haveCursor bool) ([]*localstore.OperatorEntry, time.Time, error) {
	return c.rosterEntries, c.rosterCursor, c.rosterErr
}

func queued(ref string, capturedAt time.Time) *localstore.QueuedTransaction {
	return &localstore.QueuedTransaction{
		ClientRef:  ref,
		OperatorID: "op-1",
		Lines:      []localstore.LineItem{{Quantity: 1, UnitPriceCents: 500}},
		Payments:   []localstore.PaymentLeg{{Method: "CASH", AmountCents: 500}},
		TotalCents: 500,
		CapturedAt: capturedAt,
		Status:     localstore.SyncPending,
	}
}

func TestRunCycle_PushesInCaptureOrder(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, ref := range []string{"ref-1", "ref-2", "ref-3"} {
		store.transactions = append(store.transactions, queued(ref, base))
		base = base.Add(time.Minute)
	}
	client := &fakeClient{}
	engine := NewEngine(store, client, nil)

	require.NoError(t, engine.RunCycle(context.Background()))

	assert.Equal(t, []string{"ref-1", "ref-2", "ref-3"}, client.pushedRefs)
	assert.Equal(t, []string{"ref-1", "ref-2", "ref-3"}, store.markedSyncing)
	assert.Equal(t, "order-ref-2", store.markedSynced["ref-2"])
	assert.True(t, store.purged)
}

func TestRunCycle_RejectionDoesNotBlockLaterRecords(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.transactions = append(store.transactions,
		queued("bad", base), queued("good", base.Add(time.Minute)))
	client := &fakeClient{rejections: map[string]string{"bad": "unknown payment method"}}
	engine := NewEngine(store, client, nil)

	require.NoError(t, engine.RunCycle(context.Background()))

	assert.Equal(t, "unknown payment method", store.markedFailed["bad"])
	assert.Contains(t, store.markedSynced, "good")
}

func TestRunCycle_TransportFailureStopsPushWalk(t *testing.T) {
	store := newFakeStore()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.transactions = append(store.transactions,
		queued("first", base), queued("second", base.Add(time.Minute)))
	client := &fakeClient{transport: map[string]error{"first": errors.New("connection refused")}}
	engine := NewEngine(store, client, nil)

	err := engine.RunCycle(context.Background())
	require.Error(t, err)

	// The second record was never attempted against a dead link, and the
	// first stays owed for the next cycle.
	assert.Equal(t, []string{"first"}, client.pushedRefs)
	assert.NotContains(t, store.markedSynced, "second")
	pending, _ := store.PendingTransactions(context.Background())
	assert.Len(t, pending, 2)
}

func TestRunCycle_StepFailuresAreIsolated(t *testing.T) {
	store := newFakeStore()
	client := &fakeClient{
		catalogErr:   errors.New("catalog feed down"),
		rosterCursor: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		rosterEntries: []*localstore.OperatorEntry{
			{ID: "op-1", Code: "1001", Name: "Asha", Role: "MANAGER", IsActive: true},
		},
	}
	engine := NewEngine(store, client, nil)

	err := engine.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog feed down")

	// The roster pull ran despite the catalog failure.
	assert.True(t, store.rosterReplaced)
	assert.True(t, store.purged)
}

func TestRunCycle_DuplicateCountsAsSynced(t *testing.T) {
	store := newFakeStore()
	store.transactions = append(store.transactions,
		queued("replayed", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)))
	client := &fakeClient{duplicates: map[string]bool{"replayed": true}}
	engine := NewEngine(store, client, nil)

	require.NoError(t, engine.RunCycle(context.Background()))
	assert.Equal(t, "order-replayed", store.markedSynced["replayed"])
}

func TestRunCycle_ActionBatchSettlesOnlyConfirmed(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store.actions = append(store.actions,
		&localstore.QueuedAction{ClientRef: "act-ok", OperatorID: "op-1", Type: "VOID", OccurredAt: now},
		&localstore.QueuedAction{ClientRef: "act-bad", OperatorID: "op-1", Type: "???", OccurredAt: now},
	)
	client := &fakeClient{actionsResult: &ActionsResult{
		Synced: 1, Total: 2,
		Errors: map[string]string{"act-bad": "unknown action type"},
	}}
	engine := NewEngine(store, client, nil)

	require.NoError(t, engine.RunCycle(context.Background()))

	assert.Equal(t, []string{"act-ok"}, store.actionsSynced)
	pending, _ := store.PendingActions(context.Background())
	require.Len(t, pending, 1)
	assert.Equal(t, "act-bad", pending[0].ClientRef)
}

func TestRunCycle_EmptyDeltaAdvancesCursorOnly(t *testing.T) {
	store := newFakeStore()
	old := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store.cursors[localstore.CursorCatalog] = old
	store.catalog = []*localstore.CatalogEntry{{ID: "p1", Name: "Espresso"}}

	newCursor := old.Add(time.Hour)
	client := &fakeClient{catalogCursor: newCursor, rosterCursor: newCursor}
	engine := NewEngine(store, client, nil)

	require.NoError(t, engine.RunCycle(context.Background()))

	assert.False(t, store.catalogReplaced)
	assert.Len(t, store.catalog, 1)
	assert.True(t, store.cursors[localstore.CursorCatalog].Equal(newCursor))
}

func TestRunCycle_FirstPullReplacesEvenWhenEmpty(t *testing.T) {
	store := newFakeStore()
	cursor := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	client := &fakeClient{catalogCursor: cursor, rosterCursor: cursor}
	engine := NewEngine(store, client, nil)

	require.NoError(t, engine.RunCycle(context.Background()))

	// With no cursor yet, an empty result is a real snapshot, not a delta.
	assert.True(t, store.catalogReplaced)
	assert.True(t, store.rosterReplaced)
}

func TestRunCycle_RejectsConcurrentEntry(t *testing.T) {
	engine := NewEngine(newFakeStore(), &fakeClient{}, nil)
	engine.inFlight.Store(true)

	err := engine.RunCycle(context.Background())
	assert.ErrorIs(t, err, ErrCycleInProgress)
}

func TestRunCycle_ResumesInterruptedPush(t *testing.T) {
	store := newFakeStore()
	tx := queued("interrupted", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	// A crash mid-cycle leaves the record flagged in flight.
	tx.Status = localstore.SyncSyncing
	tx.Attempts = 1
	store.transactions = append(store.transactions, tx)
	client := &fakeClient{duplicates: map[string]bool{"interrupted": true}}
	engine := NewEngine(store, client, nil)

	require.NoError(t, engine.RunCycle(context.Background()))

	// The retry went out and the server's idempotency resolved it.
	assert.Equal(t, []string{"interrupted"}, client.pushedRefs)
	assert.Contains(t, store.markedSynced, "interrupted")
}
