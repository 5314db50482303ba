package core

import (
	"errors"
	"time"
)

const (
	Monthly RepetitionTypes = "monthly"
	Yearly  RepetitionTypes = "yearly"
	Weekly  RepetitionTypes = "weekly"
	Daily   RepetitionTypes = "daily"
)

const (
	BudgetLedger     LedgerType = "budget"
	SavingsLedger    LedgerType = "savings"
	LoanLedger       LedgerType = "loan"
	PayableLedger    LedgerType = "payable"
	ReceivableLedger LedgerType = "receivable"
)

const (
	StatusNA        LedgerStatus = "n/a"
	StatusPending   LedgerStatus = "pending"
	StatusPaid      LedgerStatus = "paid"
	StatusOverdue   LedgerStatus = "overdue"
	StatusCancelled LedgerStatus = "cancelled"
)

const (
	Credit TransactionType = "credit"
	Debit  TransactionType = "debit"
)

// Ledger columns holding the running totals.
const (
	TotalCreditsColumn TotalColumn = "total_credits"
	TotalDebitsColumn  TotalColumn = "total_debits"
)

type (
	RepetitionTypes string
	LedgerType      string
	LedgerStatus    string
	TransactionType string
	TotalColumn     string

	Date struct {
		time.Time
	}

	// Ledger is an accounting container with running credit/debit totals.
	// TotalCredits and TotalDebits are a projection of the ledger's
	// transactions and only change through the commit protocol.
	Ledger struct {
		ID           int64
		UserID       int64
		Title        string // optional
		Description  string // optional
		Year         int
		Month        int // 1-12
		Type         LedgerType
		Status       LedgerStatus
		TotalCredits Money
		TotalDebits  Money
		Version      int64
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	Transaction struct {
		ID          int64
		LedgerID    int64
		Description string
		Amount      Money
		Date        time.Time
		Category    Category
		Type        TransactionType
		IsEstimated bool
		CreatedAt   time.Time
		UpdatedAt   time.Time
	}

	// RecurrentTransaction is a template that is materialised into the
	// owner's budget every time it becomes due.
	RecurrentTransaction struct {
		ID              int64
		UserID          int64
		StartDate       Date
		Every           RepetitionTypes
		Description     string
		Amount          Money
		Category        Category
		Type            TransactionType
		IsEstimated     bool
		LastExecutionAt time.Time // zero if never executed
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	User struct {
		ID           int64
		Email        string
		Username     string
		PasswordHash string
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	Session struct {
		ID        string
		UserID    int64
		ExpiresAt time.Time
		CreatedAt time.Time
		UpdatedAt time.Time
	}
)

var (
	ErrInvalidDay    = errors.New("invalid day")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidAmount = errors.New("invalid amount")
)

// IsValid reports whether t is one of the known ledger types.
func (t LedgerType) IsValid() bool {
	switch t {
	case BudgetLedger, SavingsLedger, LoanLedger, PayableLedger, ReceivableLedger:
		return true
	default:
		return false
	}
}

func (s LedgerStatus) IsValid() bool {
	switch s {
	case StatusNA, StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	default:
		return false
	}
}

func (t TransactionType) IsValid() bool {
	return t == Credit || t == Debit
}

// Column returns the ledger total affected by transactions of type t.
func (t TransactionType) Column() TotalColumn {
	if t == Credit {
		return TotalCreditsColumn
	}
	return TotalDebitsColumn
}

func (r RepetitionTypes) IsValid() bool {
	switch r {
	case Daily, Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

// Balance is credits minus debits. It is derived and never stored.
func (l Ledger) Balance() Money {
	return l.TotalCredits.Sub(l.TotalDebits)
}

// Total returns the running total held in col.
func (l Ledger) Total(col TotalColumn) Money {
	if col == TotalCreditsColumn {
		return l.TotalCredits
	}
	return l.TotalDebits
}

// WithTotal returns a copy of l with col set to m.
func (l Ledger) WithTotal(col TotalColumn, m Money) Ledger {
	if col == TotalCreditsColumn {
		l.TotalCredits = m
	} else {
		l.TotalDebits = m
	}
	return l
}

// Period returns the calendar month the ledger belongs to, anchored to its first day.
func (l Ledger) Period() time.Time {
	return time.Date(l.Year, time.Month(l.Month), 1, 0, 0, 0, 0, time.UTC)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// MonthStart returns the first day of t's month in t's location.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
