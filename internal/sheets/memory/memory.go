package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ledgerbook/internal/core"
	ports "ledgerbook/internal/sheets"
)

var _ ports.SnapshotExporter = (*Store)(nil)

// Store keeps exported snapshots in memory. Used by tests and by the worker
// when no spreadsheet is configured.
type Store struct {
	mu    sync.Mutex
	items []core.LedgerSnapshot
}

func New() *Store {
	return &Store{}
}

// Export stores the snapshot and returns a synthetic row reference.
func (s *Store) Export(_ context.Context, snap core.LedgerSnapshot) (string, error) {
	if snap.LedgerID <= 0 {
		return "", errors.New("snapshot has no ledger id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, snap)
	return fmt.Sprintf("mem:%d", len(s.items)), nil
}

// Snapshots returns every exported snapshot in export order.
func (s *Store) Snapshots() []core.LedgerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.LedgerSnapshot(nil), s.items...)
}

// Latest returns the last snapshot exported for ledgerID.
func (s *Store) Latest(ledgerID int64) (core.LedgerSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].LedgerID == ledgerID {
			return s.items[i], true
		}
	}
	return core.LedgerSnapshot{}, false
}
