package core

// MonthSummary aggregates one calendar month of the ledger.
type MonthSummary struct {
	Year     int
	Month    int
	Sales    Money
	Expenses Money
}

// Profit is sales minus expenses; may be negative.
func (s MonthSummary) Profit() Money {
	return Money{Cents: s.Sales.Cents - s.Expenses.Cents}
}
