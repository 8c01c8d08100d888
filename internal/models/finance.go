// internal/models/finance.go
package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// BudgetSnapshot is a read-only view of a budget used by the rule engine.
type BudgetSnapshot struct {
	BudgetID    string          `json:"budgetId"`
	UserID      string          `json:"userId"`
	CategoryID  string          `json:"categoryId"`
	LimitAmount decimal.Decimal `json:"limitAmount"`
	StartDate   time.Time       `json:"startDate"`
	EndDate     time.Time       `json:"endDate"`
}

// ActiveOn reports whether day falls within [StartDate, EndDate], compared by
// calendar date.
func (b BudgetSnapshot) ActiveOn(day time.Time) bool {
	d := TruncateDay(day)
	return !d.Before(TruncateDay(b.StartDate)) && !d.After(TruncateDay(b.EndDate))
}

// SavingSnapshot is a read-only view of a savings goal.
type SavingSnapshot struct {
	SavingID      string          `json:"savingId"`
	UserID        string          `json:"userId"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	GoalDate      time.Time       `json:"goalDate"`
}

// TruncateDay drops the time-of-day part, keeping the location.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	da := TruncateDay(a)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, da.Location())
	return int(math.Round(db.Sub(da).Hours() / 24))
}
