package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ledgerbook/internal/amqp"
	"ledgerbook/internal/core"
	"ledgerbook/internal/metrics"
	"ledgerbook/internal/sheets"
	"ledgerbook/internal/storage"
)

// SyncWorker mirrors committed ledger totals to an external sheet. Events
// only say which ledger changed; the totals exported are always re-read
// from the store.
type SyncWorker struct {
	store    storage.Queries
	exporter sheets.SnapshotExporter
	metrics  *metrics.Metrics

	mu       sync.Mutex
	exported map[int64]int64 // ledger id -> last exported version
}

func NewSyncWorker(store storage.Queries, exporter sheets.SnapshotExporter, m *metrics.Metrics) *SyncWorker {
	return &SyncWorker{
		store:    store,
		exporter: exporter,
		metrics:  m,
		exported: make(map[int64]int64),
	}
}

// HandleLedgerEvent exports the current state of the event's ledger.
// Events for a version that was already exported are acknowledged without
// writing a new row.
func (w *SyncWorker) HandleLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event_id", e.ID,
		"ledger_id", e.LedgerID,
		"operation", e.Operation)

	l, err := w.store.GetLedger(ctx, e.LedgerID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Ledger no longer exists, dropping event",
			"event_id", e.ID,
			"ledger_id", e.LedgerID)
		w.metrics.RecordExport(metrics.EventSkipped)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get ledger from storage: %w", err)
	}

	_, err = w.export(ctx, l)
	return err
}

// ExportUserLedgers exports every ledger owned by userID. It backfills the
// sheet after the worker was down and missed events.
func (w *SyncWorker) ExportUserLedgers(ctx context.Context, userID int64) (int, error) {
	ledgers, err := w.store.ListLedgers(ctx, userID, "")
	if err != nil {
		return 0, fmt.Errorf("list ledgers: %w", err)
	}

	exported, failed := 0, 0
	for _, l := range ledgers {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		ok, err := w.export(ctx, l)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export ledger", "ledger_id", l.ID, "error", err)
			failed++
			continue
		}
		if ok {
			exported++
		}
	}

	slog.InfoContext(ctx, "Ledger backfill completed",
		"user_id", userID,
		"total", len(ledgers),
		"exported", exported,
		"errors", failed)
	return exported, nil
}

func (w *SyncWorker) export(ctx context.Context, l core.Ledger) (bool, error) {
	w.mu.Lock()
	last, seen := w.exported[l.ID]
	w.mu.Unlock()
	if seen && last >= l.Version {
		slog.DebugContext(ctx, "Ledger version already exported",
			"ledger_id", l.ID,
			"version", l.Version)
		w.metrics.RecordExport(metrics.EventSkipped)
		return false, nil
	}

	ref, err := w.exporter.Export(ctx, l.Snapshot())
	if err != nil {
		w.metrics.RecordExport(metrics.EventFailed)
		return false, fmt.Errorf("export ledger %d: %w", l.ID, err)
	}

	w.mu.Lock()
	if prev, ok := w.exported[l.ID]; !ok || l.Version > prev {
		w.exported[l.ID] = l.Version
	}
	w.mu.Unlock()
	w.metrics.RecordExport(metrics.EventPublished)

	slog.InfoContext(ctx, "Exported ledger snapshot",
		"ledger_id", l.ID,
		"version", l.Version,
		"sheets_ref", ref,
		"credits", l.TotalCredits.String(),
		"debits", l.TotalDebits.String())
	return true, nil
}
