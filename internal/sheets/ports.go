package sheets

import (
	"context"

	"ledgerbook/internal/core"
)

// Ports for outbound adapters.
type (
	// SnapshotExporter mirrors a ledger's totals to an external sheet.
	SnapshotExporter interface {
		// Export appends s and returns a reference to the written row.
		Export(ctx context.Context, s core.LedgerSnapshot) (rowRef string, err error)
	}
)
