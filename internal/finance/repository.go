// Package finance is the read-only view of budgets, savings and spending that
// the rule engine evaluates.
package finance

import (
	"context"
	"time"

	"finance-notifier/internal/models"

	"github.com/shopspring/decimal"
)

// UnknownCategory is the label used when a category cannot be resolved.
const UnknownCategory = "Unknown Category"

// Repository is the data access collaborator consumed by the rule engine.
type Repository interface {
	ListActiveUsers(ctx context.Context) ([]string, error)
	ListActiveBudgets(ctx context.Context, userID string) ([]models.BudgetSnapshot, error)
	// ListBudgetsEndingOn is cross-user; callers filter by user.
	ListBudgetsEndingOn(ctx context.Context, day time.Time) ([]models.BudgetSnapshot, error)
	// SumSpentForBudget returns zero when nothing was spent.
	SumSpentForBudget(ctx context.Context, budgetID string) (decimal.Decimal, error)
	ListActiveSavings(ctx context.Context, userID string) ([]models.SavingSnapshot, error)
	// GetCategoryName returns UnknownCategory when the category is absent.
	GetCategoryName(ctx context.Context, categoryID string) (string, error)
}
