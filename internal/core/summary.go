package core

import "time"

// LedgerSnapshot is the exported view of a ledger after a commit.
type LedgerSnapshot struct {
	LedgerID     int64
	Year         int
	Month        int // 1-12
	Type         LedgerType
	Title        string
	TotalCredits Money
	TotalDebits  Money
	Balance      Money
	UpdatedAt    time.Time
}

// Snapshot returns the exported view of l.
func (l Ledger) Snapshot() LedgerSnapshot {
	return LedgerSnapshot{
		LedgerID:     l.ID,
		Year:         l.Year,
		Month:        l.Month,
		Type:         l.Type,
		Title:        l.Title,
		TotalCredits: l.TotalCredits,
		TotalDebits:  l.TotalDebits,
		Balance:      l.Balance(),
		UpdatedAt:    l.UpdatedAt,
	}
}

// Totals sums transaction amounts per column.
func Totals(txs []Transaction) (credits, debits Money) {
	for _, t := range txs {
		if t.Type == Credit {
			credits = credits.Add(t.Amount)
		} else {
			debits = debits.Add(t.Amount)
		}
	}
	return credits, debits
}
