package rules

import (
	"fmt"

	"finance-notifier/internal/models"

	"github.com/shopspring/decimal"
)

const dateLayout = "Jan 2, 2006"

// Compose builds the persisted event for a candidate. label is the category
// name for budget kinds and the goal name for savings kinds.
func Compose(userID string, c Candidate, label string) *models.NotificationEvent {
	title, message := describe(c, label)
	return &models.NotificationEvent{
		UserID:      userID,
		Kind:        c.Kind,
		Urgency:     c.Urgency,
		Title:       title,
		Message:     message,
		ReferenceID: c.ReferenceID,
		Amount:      c.Amount,
		Label:       label,
	}
}

func describe(c Candidate, label string) (string, string) {
	switch c.Kind {
	case models.KindBudgetExceeded:
		return "Budget exceeded",
			fmt.Sprintf("You have spent %s of your %s budget for %s.",
				money(c.Spent), money(c.Limit), label)
	case models.KindBudgetWarning:
		return "Budget running low",
			fmt.Sprintf("Only %s left of your %s budget for %s.",
				money(c.Amount), money(c.Limit), label)
	case models.KindBudgetNearEnd:
		return "Budget period ending soon",
			fmt.Sprintf("Your %s budget ends in %d %s on %s. %s remaining.",
				label, c.DaysLeft, plural(c.DaysLeft, "day", "days"), c.Date.Format(dateLayout), money(c.Amount))
	case models.KindSavingsDeadline:
		return deadlineTitle(c.Urgency),
			fmt.Sprintf("Your goal \"%s\" is due %s. %s still to save.",
				label, dueIn(c.DaysLeft), money(c.Amount))
	case models.KindSavingsMilestone50:
		return "Halfway to your goal",
			fmt.Sprintf("You reached 50%% of \"%s\". %s to go.", label, money(c.Amount))
	case models.KindSavingsMilestone75:
		return "75% of your goal reached",
			fmt.Sprintf("You reached 75%% of \"%s\". %s to go.", label, money(c.Amount))
	case models.KindSavingsCompleted:
		return "Savings goal completed",
			fmt.Sprintf("Congratulations! You saved %s for \"%s\".", money(c.Amount), label)
	}
	return string(c.Kind), ""
}

func deadlineTitle(u models.Urgency) string {
	switch u {
	case models.UrgencyHigh:
		return "Savings goal due"
	case models.UrgencyMedium:
		return "Savings goal due soon"
	case models.UrgencyLow, models.UrgencyNone:
		return "Savings goal deadline approaching"
	}
	return "Savings goal deadline approaching"
}

func dueIn(days int) string {
	switch days {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	}
	return fmt.Sprintf("in %d days", days)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
