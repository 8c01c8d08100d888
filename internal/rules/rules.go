// Package rules evaluates budgets and savings goals and emits deduplicated
// notifications on a fixed schedule.
package rules

import (
	"time"

	"finance-notifier/internal/models"

	"github.com/shopspring/decimal"
)

var (
	hundred         = decimal.NewFromInt(100)
	warningPercent  = decimal.NewFromInt(50)
	milestone50     = decimal.NewFromInt(50)
	milestone75     = decimal.NewFromInt(75)
	completePercent = decimal.NewFromInt(100)
)

// Candidate is a rule that fired, before dedup and message composition.
type Candidate struct {
	Kind        models.NotificationKind
	Urgency     models.Urgency
	ReferenceID string
	Amount      decimal.Decimal
	// Facts used to compose the message.
	Limit    decimal.Decimal
	Spent    decimal.Decimal
	Target   decimal.Decimal
	Current  decimal.Decimal
	DaysLeft int
	Date     time.Time
}

// EvaluateSpend applies Exceeded then Warning to one budget. At most one of
// the two fires. Budgets with a non-positive limit have no spend rules.
func EvaluateSpend(b models.BudgetSnapshot, spent decimal.Decimal) (Candidate, bool) {
	limit := b.LimitAmount
	if !limit.IsPositive() {
		return Candidate{}, false
	}

	base := Candidate{ReferenceID: b.BudgetID, Limit: limit, Spent: spent, Date: b.EndDate}

	if spent.GreaterThanOrEqual(limit) {
		base.Kind = models.KindBudgetExceeded
		base.Urgency = models.UrgencyHigh
		base.Amount = spent
		return base, true
	}

	remaining := limit.Sub(spent)
	if remaining.Div(limit).Mul(hundred).LessThanOrEqual(warningPercent) {
		base.Kind = models.KindBudgetWarning
		base.Urgency = models.UrgencyMedium
		base.Amount = remaining
		return base, true
	}
	return Candidate{}, false
}

// EvaluateNearEnd fires when the budget ends exactly nearEndDays after today.
func EvaluateNearEnd(b models.BudgetSnapshot, spent decimal.Decimal, today time.Time, nearEndDays int) (Candidate, bool) {
	days := models.DaysBetween(today, b.EndDate)
	if days != nearEndDays {
		return Candidate{}, false
	}
	return Candidate{
		Kind:        models.KindBudgetNearEnd,
		Urgency:     models.UrgencyMedium,
		ReferenceID: b.BudgetID,
		Amount:      decimal.Max(b.LimitAmount.Sub(spent), decimal.Zero),
		Limit:       b.LimitAmount,
		Spent:       spent,
		DaysLeft:    days,
		Date:        b.EndDate,
	}, true
}

// DeadlineUrgency maps days left to a tier: (3,7] LOW, (1,3] MEDIUM, [0,1] HIGH.
func DeadlineUrgency(daysLeft int) (models.Urgency, bool) {
	switch {
	case daysLeft < 0 || daysLeft > 7:
		return models.UrgencyNone, false
	case daysLeft <= 1:
		return models.UrgencyHigh, true
	case daysLeft <= 3:
		return models.UrgencyMedium, true
	default:
		return models.UrgencyLow, true
	}
}

// EvaluateSavings returns the deadline and milestone candidates for one goal,
// deadline first.
func EvaluateSavings(s models.SavingSnapshot, today time.Time) []Candidate {
	var out []Candidate
	remaining := decimal.Max(s.TargetAmount.Sub(s.CurrentAmount), decimal.Zero)

	base := Candidate{
		ReferenceID: s.SavingID,
		Target:      s.TargetAmount,
		Current:     s.CurrentAmount,
		Date:        s.GoalDate,
	}

	days := models.DaysBetween(today, s.GoalDate)
	if urgency, ok := DeadlineUrgency(days); ok {
		c := base
		c.Kind = models.KindSavingsDeadline
		c.Urgency = urgency
		c.Amount = remaining
		c.DaysLeft = days
		out = append(out, c)
	}

	if !s.TargetAmount.IsPositive() {
		return out
	}

	progress := s.CurrentAmount.Div(s.TargetAmount).Mul(hundred)
	c := base
	switch {
	case progress.GreaterThanOrEqual(completePercent):
		c.Kind = models.KindSavingsCompleted
		c.Urgency = models.UrgencyHigh
		c.Amount = s.CurrentAmount
	case progress.GreaterThanOrEqual(milestone75):
		c.Kind = models.KindSavingsMilestone75
		c.Urgency = models.UrgencyMedium
		c.Amount = remaining
	case progress.GreaterThanOrEqual(milestone50):
		c.Kind = models.KindSavingsMilestone50
		c.Urgency = models.UrgencyLow
		c.Amount = remaining
	default:
		return out
	}
	return append(out, c)
}
