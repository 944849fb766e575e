package syncengine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/Mani87-nq/yardbooks-web-sub005/internal/metrics"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/connectivity"
	"github.com/Mani87-nq/yardbooks-web-sub005/internal/modules/localstore"
)

// ErrCycleInProgress is returned when RunCycle is called while an earlier
// cycle is still running. The caller should simply wait for the next tick.
var ErrCycleInProgress = errors.New("sync cycle already in progress")

// Engine drains the local queues to the server and refreshes the cached
// reference data. One engine per terminal process.
type Engine struct {
	store   localstore.Store
	client  Client
	monitor *connectivity.Monitor

	inFlight atomic.Bool
}

func NewEngine(store localstore.Store, client Client, monitor *connectivity.Monitor) *Engine {
	return &Engine{store: store, client: client, monitor: monitor}
}

// RunCycle executes one full synchronization pass: push transactions oldest
// first, push actions, pull the catalog delta, pull the roster delta, then
// purge settled records. The steps run in that order but fail independently;
// a dead catalog pull never blocks the roster refresh. The returned error
// aggregates whatever went wrong, after every step had its chance.
//
// Concurrent calls are rejected, not queued. Re-running a cycle is always
// safe: pushes are idempotent on client_ref and pulls are cursor-based.
func (e *Engine) RunCycle(ctx context.Context) error {
	if !e.inFlight.CompareAndSwap(false, true) {
		return ErrCycleInProgress
	}
	defer e.inFlight.Store(false)

	var errs []error
	if err := e.pushTransactions(ctx); err != nil {
		errs = append(errs, fmt.Errorf("push transactions: %w", err))
	}
	if err := e.pushActions(ctx); err != nil {
		errs = append(errs, fmt.Errorf("push actions: %w", err))
	}
	if err := e.pullCatalog(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pull catalog: %w", err))
	}
	if err := e.pullRoster(ctx); err != nil {
		errs = append(errs, fmt.Errorf("pull roster: %w", err))
	}
	if err := e.store.PurgeSynced(ctx); err != nil {
		errs = append(errs, fmt.Errorf("purge synced: %w", err))
	}

	e.publishQueueDepth(ctx)
	return errors.Join(errs...)
}

// pushTransactions sends every owed record in capture order. A server
// rejection marks the record failed and moves on; a transport failure stops
// the walk since the remaining pushes would meet the same dead link.
func (e *Engine) pushTransactions(ctx context.Context) error {
	pending, err := e.store.PendingTransactions(ctx)
	if err != nil {
		return err
	}
	for _, tx := range pending {
		if err := e.store.MarkSyncing(ctx, tx.ClientRef); err != nil {
			return err
		}
		serverOrderID, duplicate, err := e.client.PushSale(ctx, tx)
		if err != nil {
			var rejection *RejectionError
			if errors.As(err, &rejection) {
				metrics.SyncPushTotal.WithLabelValues("failed").Inc()
				log.Printf("WARN: sale %s rejected by server: %s", tx.ClientRef, rejection.Message)
				if markErr := e.store.MarkFailed(ctx, tx.ClientRef, rejection.Message); markErr != nil {
					return markErr
				}
				continue
			}
			metrics.SyncPushTotal.WithLabelValues("failed").Inc()
			if markErr := e.store.MarkFailed(ctx, tx.ClientRef, err.Error()); markErr != nil {
				return markErr
			}
			return err
		}
		if duplicate {
			metrics.SyncDuplicateTotal.Inc()
		}
		metrics.SyncPushTotal.WithLabelValues("synced").Inc()
		if err := e.store.MarkSynced(ctx, tx.ClientRef, serverOrderID); err != nil {
			return err
		}
	}
	return nil
}

// pushActions sends the whole action backlog as one batch and settles only
// the items the server confirmed. Per-item rejections stay queued with
// their reason; the server treats resubmitted duplicates as synced, so
// retrying the survivors is harmless.
func (e *Engine) pushActions(ctx context.Context) error {
	pending, err := e.store.PendingActions(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}
	result, err := e.client.PushActions(ctx, pending)
	if err != nil {
		return err
	}
	var synced []string
	for _, a := range pending {
		if reason, rejected := result.Errors[a.ClientRef]; rejected {
			log.Printf("WARN: action %s rejected by server: %s", a.ClientRef, reason)
			continue
		}
		synced = append(synced, a.ClientRef)
	}
	return e.store.MarkActionsSynced(ctx, synced)
}

func (e *Engine) pullCatalog(ctx context.Context) error {
	since, haveCursor, err := e.store.Cursor(ctx, localstore.CursorCatalog)
	if err != nil {
		return err
	}
	entries, cursor, err := e.client.PullCatalog(ctx, since, haveCursor)
	if err != nil {
		return err
	}
	if len(entries) == 0 && haveCursor {
		// Nothing changed server-side. Keep the cache, move the cursor.
		return e.store.AdvanceCursor(ctx, localstore.CursorCatalog, cursor)
	}
	return e.store.ReplaceCatalog(ctx, entries, cursor)
}

func (e *Engine) pullRoster(ctx context.Context) error {
	since, haveCursor, err := e.store.Cursor(ctx, localstore.CursorRoster)
	if err != nil {
		return err
	}
	entries, cursor, err := e.client.PullRoster(ctx, since, haveCursor)
	if err != nil {
		return err
	}
	if len(entries) == 0 && haveCursor {
		return e.store.AdvanceCursor(ctx, localstore.CursorRoster, cursor)
	}
	return e.store.ReplaceRoster(ctx, entries, cursor)
}

func (e *Engine) publishQueueDepth(ctx context.Context) {
	pending, err := e.store.PendingTransactions(ctx)
	if err != nil {
		log.Printf("WARN: counting pending queue: %v", err)
		return
	}
	if e.monitor != nil {
		e.monitor.SetPendingCount(len(pending))
	} else {
		metrics.PendingQueueDepth.Set(float64(len(pending)))
	}
}

// Schedule wires the engine to the connectivity monitor: every transition
// back to a usable link triggers an immediate cycle. Periodic runs are the
// caller's job (a cron entry calling RunCycle).
func (e *Engine) Schedule(ctx context.Context) {
	e.monitor.Subscribe(func(s connectivity.State) {
		if s.Status == connectivity.StatusOffline {
			return
		}
		go func() {
			if err := e.RunCycle(ctx); err != nil && !errors.Is(err, ErrCycleInProgress) {
				log.Printf("WARN: reconnect sync cycle: %v", err)
			}
		}()
	})
}

// CyclePeriod is the steady-state cadence for scheduler-driven cycles.
// Reconnect transitions trigger an extra cycle on top of this.
const CyclePeriod = 60 * time.Second
