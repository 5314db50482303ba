package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ledgerbook/internal/core"
)

// snapshotRow lays out s as the A:H columns of the ledgers sheet:
// year, month, type, title, credits, debits, balance, updated at.
// Ledgers without a month leave the month column empty.
func snapshotRow(s core.LedgerSnapshot) []any {
	var month any = ""
	if s.Month > 0 {
		month = s.Month
	}
	return []any{
		snapshotYear(s),
		month,
		string(s.Type),
		s.Title,
		s.TotalCredits.String(),
		s.TotalDebits.String(),
		s.Balance.String(),
		s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// snapshotYear is the ledger's year, or the year it was last updated for
// ledgers that are not month-scoped.
func snapshotYear(s core.LedgerSnapshot) int {
	if s.Year > 0 {
		return s.Year
	}
	return s.UpdatedAt.Year()
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
