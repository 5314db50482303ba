package core

import (
	"strings"
	"time"
)

// NewLedger is the closed set of ledger creation inputs. Every variant is
// validated with its own rules and then funnelled into the same ledger
// checks before a row is written.
type NewLedger interface {
	draft() ledgerDraft
	trimmed() NewLedger
}

// BudgetParams creates the budget of the month containing Date.
type BudgetParams struct {
	UserID int64        `json:"userId"`
	Date   time.Time    `json:"date" validate:"required"`
	Status LedgerStatus `json:"status" validate:"omitempty,eq=n/a"`
}

// LoanParams creates a loan ledger. Loans accept only payment and loan
// transactions.
type LoanParams struct {
	UserID      int64        `json:"userId"`
	Title       string       `json:"title" validate:"required,max=50"`
	Description string       `json:"description" validate:"max=100"`
	Date        time.Time    `json:"date" validate:"required"`
	Status      LedgerStatus `json:"status" validate:"omitempty,ledgerstatus"`
}

type SavingsParams struct {
	UserID      int64        `json:"userId"`
	Title       string       `json:"title" validate:"required,max=50"`
	Description string       `json:"description" validate:"max=100"`
	Date        time.Time    `json:"date" validate:"required"`
	Status      LedgerStatus `json:"status" validate:"omitempty,ledgerstatus"`
}

// PayableReceivableParams creates a payable or a receivable, picked by Type.
type PayableReceivableParams struct {
	UserID      int64        `json:"userId"`
	Type        LedgerType   `json:"type" validate:"oneof=payable receivable"`
	Title       string       `json:"title" validate:"required,max=50"`
	Description string       `json:"description" validate:"max=100"`
	Date        time.Time    `json:"date" validate:"required"`
	Status      LedgerStatus `json:"status" validate:"omitempty,ledgerstatus"`
}

// ledgerDraft is what every variant funnels into.
type ledgerDraft struct {
	UserID      int64        `json:"userId" validate:"gt=0"`
	Year        int          `json:"year" validate:"gt=0"`
	Month       int          `json:"month" validate:"gt=0,lte=12"`
	Type        LedgerType   `json:"type" validate:"ledgertype"`
	Status      LedgerStatus `json:"status" validate:"ledgerstatus"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
}

func newDraft(userID int64, typ LedgerType, status LedgerStatus, date time.Time, title, description string) ledgerDraft {
	if status == "" {
		status = StatusNA
	}
	d := ledgerDraft{
		UserID:      userID,
		Type:        typ,
		Status:      status,
		Title:       title,
		Description: description,
	}
	if !date.IsZero() {
		d.Year = date.Year()
		d.Month = int(date.Month())
	}
	return d
}

func (p BudgetParams) trimmed() NewLedger { return p }

func (p LoanParams) trimmed() NewLedger {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	return p
}

func (p SavingsParams) trimmed() NewLedger {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	return p
}

func (p PayableReceivableParams) trimmed() NewLedger {
	p.Title = strings.TrimSpace(p.Title)
	p.Description = strings.TrimSpace(p.Description)
	return p
}

func (p BudgetParams) draft() ledgerDraft {
	return newDraft(p.UserID, BudgetLedger, p.Status, p.Date, "", "")
}

func (p LoanParams) draft() ledgerDraft {
	return newDraft(p.UserID, LoanLedger, p.Status, p.Date, p.Title, p.Description)
}

func (p SavingsParams) draft() ledgerDraft {
	return newDraft(p.UserID, SavingsLedger, p.Status, p.Date, p.Title, p.Description)
}

func (p PayableReceivableParams) draft() ledgerDraft {
	return newDraft(p.UserID, p.Type, p.Status, p.Date, p.Title, p.Description)
}

// TransactionParams is the input of a transaction create. Amount is the
// decimal text as entered; it is parsed exactly during validation.
type TransactionParams struct {
	LedgerID    int64           `json:"ledgerId" validate:"gt=0"`
	Description string          `json:"description" validate:"required,max=255"`
	Amount      string          `json:"amount" validate:"amount"`
	Date        time.Time       `json:"date" validate:"required,notfuture"`
	Category    Category        `json:"category" validate:"category"`
	Type        TransactionType `json:"type" validate:"txtype"`
	IsEstimated bool            `json:"isEstimated"`
}

// TransactionUpdate carries the replacement values of a transaction.
// Type may be left empty; when set it must match the stored type.
type TransactionUpdate struct {
	Description string          `json:"description" validate:"required,max=255"`
	Amount      string          `json:"amount" validate:"amount"`
	Date        time.Time       `json:"date" validate:"required,notfuture"`
	Category    Category        `json:"category" validate:"category"`
	Type        TransactionType `json:"type" validate:"omitempty,txtype"`
	IsEstimated bool            `json:"isEstimated"`
}

// RegisterParams is the input of a user registration.
type RegisterParams struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=20"`
	Password string `json:"password" validate:"required,min=8,max=20"`
}

// RecurrentTransactionParams defines a template that is materialised in the
// owner's budget each time it falls due.
type RecurrentTransactionParams struct {
	UserID      int64           `json:"userId" validate:"gt=0"`
	Description string          `json:"description" validate:"required,max=255"`
	Amount      string          `json:"amount" validate:"amount"`
	StartDate   time.Time       `json:"startDate" validate:"required"`
	Every       RepetitionTypes `json:"every" validate:"repetition"`
	Category    Category        `json:"category" validate:"category"`
	Type        TransactionType `json:"type" validate:"txtype"`
	IsEstimated bool            `json:"isEstimated"`
}
