package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// messages overrides the generic wording for specific field/tag pairs.
var messages = map[string]string{
	"userId.gt":            "User ID must be a positive integer",
	"year.gt":              "Year must be a positive integer",
	"month.gt":             "Month must be a positive integer",
	"month.lte":            "Month must be between 1 and 12",
	"type.ledgertype":      "Type is not a valid ledger type",
	"type.oneof":           "Type must be of type payable or receivable",
	"type.txtype":          "Type must be credit or debit",
	"status.eq":            "Status must be of status n/a",
	"status.ledgerstatus":  "Status is not a valid ledger status",
	"title.required":       "Title cannot be empty",
	"date.required":        "Date is required",
	"date.notfuture":       "Date cannot be in the future",
	"ledgerId.gt":          "Budget/Ledger ID must be a positive integer",
	"amount.amount":        "Amount must be a positive number",
	"description.required": "Description is required",
	"category.category":    "Category is not valid",
	"email.required":       "Email is required",
	"email.email":          "Email is not valid",
	"username.required":    "Username is required",
	"password.required":    "Password is required",
	"every.repetition":     "Every must be daily, weekly, monthly or yearly",
	"startDate.required":   "Start date is required",
	"startDate.notfuture":  "Start date cannot be in the future",
}

// Validator runs the input rules of every write path. It reports all
// violations of an input at once.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// NewValidator builds a Validator. now is the clock used for the
// "not in the future" rule; nil means time.Now.
func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	val := &Validator{
		v:   validator.New(validator.WithRequiredStructEnabled()),
		now: now,
	}
	val.v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = val.v.RegisterValidation("ledgertype", func(fl validator.FieldLevel) bool {
		return LedgerType(fl.Field().String()).IsValid()
	})
	_ = val.v.RegisterValidation("ledgerstatus", func(fl validator.FieldLevel) bool {
		return LedgerStatus(fl.Field().String()).IsValid()
	})
	_ = val.v.RegisterValidation("txtype", func(fl validator.FieldLevel) bool {
		return TransactionType(fl.Field().String()).IsValid()
	})
	_ = val.v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).IsValid()
	})
	_ = val.v.RegisterValidation("repetition", func(fl validator.FieldLevel) bool {
		return RepetitionTypes(fl.Field().String()).IsValid()
	})
	_ = val.v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := ParseAmount(fl.Field().String())
		return err == nil
	})
	_ = val.v.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		return ok && !t.After(val.now())
	})
	return val
}

// Now returns the validator's clock reading.
func (v *Validator) Now() time.Time { return v.now() }

// ValidateLedger checks a creation input and returns the ledger row to
// insert, with zero totals.
func (v *Validator) ValidateLedger(p NewLedger) (Ledger, error) {
	if p == nil {
		return Ledger{}, &ValidationError{Errors: []FieldError{{Field: "type", Message: "Type is required"}}}
	}
	p = p.trimmed()
	d := p.draft()

	var errs fieldErrors
	errs.add(v.check(p)...)
	errs.add(v.check(d)...)
	if len(errs) > 0 {
		return Ledger{}, &ValidationError{Errors: errs}
	}
	return Ledger{
		UserID:      d.UserID,
		Title:       d.Title,
		Description: d.Description,
		Year:        d.Year,
		Month:       d.Month,
		Type:        d.Type,
		Status:      d.Status,
	}, nil
}

// ValidateTransaction checks a create input against the type of the ledger
// it targets and returns the transaction row to insert.
func (v *Validator) ValidateTransaction(ledgerType LedgerType, p TransactionParams) (Transaction, error) {
	p.Description = strings.TrimSpace(p.Description)

	var errs fieldErrors
	errs.add(v.check(p)...)
	errs.add(categoryRule(ledgerType, p.Category)...)
	if len(errs) > 0 {
		return Transaction{}, &ValidationError{Errors: errs}
	}
	amount, _ := ParseAmount(p.Amount)
	return Transaction{
		LedgerID:    p.LedgerID,
		Description: p.Description,
		Amount:      amount,
		Date:        p.Date,
		Category:    p.Category,
		Type:        p.Type,
		IsEstimated: p.IsEstimated,
	}, nil
}

// ValidateTransactionUpdate is ValidateTransaction for updates. The
// returned transaction has no ids set.
func (v *Validator) ValidateTransactionUpdate(ledgerType LedgerType, p TransactionUpdate) (Transaction, error) {
	p.Description = strings.TrimSpace(p.Description)

	var errs fieldErrors
	errs.add(v.check(p)...)
	errs.add(categoryRule(ledgerType, p.Category)...)
	if len(errs) > 0 {
		return Transaction{}, &ValidationError{Errors: errs}
	}
	amount, _ := ParseAmount(p.Amount)
	return Transaction{
		Description: p.Description,
		Amount:      amount,
		Date:        p.Date,
		Category:    p.Category,
		Type:        p.Type,
		IsEstimated: p.IsEstimated,
	}, nil
}

// Struct validates any tagged struct with the registered rules. Used by
// inputs outside the ledger engine such as user registration.
func (v *Validator) Struct(s any) error {
	if errs := v.check(s); len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func categoryRule(ledgerType LedgerType, c Category) []FieldError {
	if !c.IsValid() || !ledgerType.IsValid() || c.AllowedFor(ledgerType) {
		return nil
	}
	return []FieldError{{
		Field:   "category",
		Message: fmt.Sprintf("Category %s is not allowed on %s ledgers", c, ledgerType),
	}}
}

func (v *Validator) check(s any) []FieldError {
	err := v.v.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return []FieldError{{Field: "", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ves))
	for _, fe := range ves {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	if m, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return m
	}
	name := label(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
	case "gt":
		return name + " must be a positive integer"
	default:
		return name + " is invalid"
	}
}

func label(field string) string {
	if field == "" {
		return "Value"
	}
	return strings.ToUpper(field[:1]) + field[1:]
}

// fieldErrors keeps at most one violation per field, first one wins.
type fieldErrors []FieldError

func (fe *fieldErrors) add(errs ...FieldError) {
	for _, e := range errs {
		seen := false
		for _, existing := range *fe {
			if existing.Field == e.Field {
				seen = true
				break
			}
		}
		if !seen {
			*fe = append(*fe, e)
		}
	}
}

// ValidateRecurrent checks a recurring template. Templates always land in
// budgets, so the category must be legal there.
func (v *Validator) ValidateRecurrent(p RecurrentTransactionParams) (RecurrentTransaction, error) {
	p.Description = strings.TrimSpace(p.Description)

	var errs fieldErrors
	errs.add(v.check(p)...)
	errs.add(categoryRule(BudgetLedger, p.Category)...)
	if len(errs) > 0 {
		return RecurrentTransaction{}, &ValidationError{Errors: errs}
	}
	amount, _ := ParseAmount(p.Amount)
	start := p.StartDate
	return RecurrentTransaction{
		UserID:      p.UserID,
		StartDate:   NewDate(start.Year(), int(start.Month()), start.Day()),
		Every:       p.Every,
		Description: p.Description,
		Amount:      amount,
		Category:    p.Category,
		Type:        p.Type,
		IsEstimated: p.IsEstimated,
	}, nil
}
