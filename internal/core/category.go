package core

// Category classifies a transaction.
type Category string

const (
	Housing            Category = "housing"
	Utilities          Category = "utilities"
	Groceries          Category = "groceries"
	Restaurants        Category = "restaurants"
	FoodDelivery       Category = "foodDelivery"
	Transportation     Category = "transportation"
	HealthcareWellness Category = "healthcare&wellness"
	PersonalCare       Category = "personalCare"
	Shopping           Category = "shopping"
	Entertainment      Category = "entertainment"
	TravelVacations    Category = "travel&vacations"
	Education          Category = "education"
	ChildrenDependents Category = "children&dependents"
	Pets               Category = "pets"
	GiftsDonations     Category = "gifts&donations"
	FinancialServices  Category = "financialServices"
	SavingsInvestments Category = "savings&investments"
	WorkExpenses       Category = "workExpenses"
	HomeImprovement    Category = "homeImprovement"
	Taxes              Category = "taxes"
	Miscellaneous      Category = "miscellaneous"
	Income             Category = "income"
	Payment            Category = "payment"
	LoanCategory       Category = "loan"
)

// Categories lists every known category in display order.
var Categories = []Category{
	Housing, Utilities, Groceries, Restaurants, FoodDelivery, Transportation,
	HealthcareWellness, PersonalCare, Shopping, Entertainment, TravelVacations,
	Education, ChildrenDependents, Pets, GiftsDonations, FinancialServices,
	SavingsInvestments, WorkExpenses, HomeImprovement, Taxes, Miscellaneous,
	Income, Payment, LoanCategory,
}

// loanCategories are reserved for loan ledgers.
var loanCategories = map[Category]struct{}{
	Payment:      {},
	LoanCategory: {},
}

var knownCategories = func() map[Category]struct{} {
	m := make(map[Category]struct{}, len(Categories))
	for _, c := range Categories {
		m[c] = struct{}{}
	}
	return m
}()

func (c Category) IsValid() bool {
	_, ok := knownCategories[c]
	return ok
}

// AllowedFor reports whether c may be used on a ledger of type t.
// Loan ledgers accept only payment and loan; every other type accepts the
// rest of the set.
func (c Category) AllowedFor(t LedgerType) bool {
	if !c.IsValid() {
		return false
	}
	_, reserved := loanCategories[c]
	if t == LoanLedger {
		return reserved
	}
	return !reserved
}

// CategoriesFor returns the categories a ledger of type t accepts.
func CategoriesFor(t LedgerType) []Category {
	out := make([]Category, 0, len(Categories))
	for _, c := range Categories {
		if c.AllowedFor(t) {
			out = append(out, c)
		}
	}
	return out
}
