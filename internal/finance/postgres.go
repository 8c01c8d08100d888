package finance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	apperrors "finance-notifier/internal/common/errors"
	"finance-notifier/internal/models"

	"github.com/shopspring/decimal"
)

const (
	queryActiveUsers = `SELECT id::text FROM users WHERE enabled = true ORDER BY id`

	queryActiveBudgets = `SELECT id::text, user_id::text, category_id::text, limit_amount, start_date, end_date
		FROM budgets WHERE user_id = $1 AND deleted = false ORDER BY id`

	queryBudgetsEndingOn = `SELECT id::text, user_id::text, category_id::text, limit_amount, start_date, end_date
		FROM budgets WHERE end_date = $1 AND deleted = false ORDER BY id`

	querySumSpent = `SELECT SUM(t.amount) FROM transactions t
		JOIN budgets b ON b.user_id = t.user_id AND b.category_id = t.category_id
		WHERE b.id = $1 AND t.type = 'EXPENSE' AND t.deleted = false
		AND t.transaction_date BETWEEN b.start_date AND b.end_date`

	queryActiveSavings = `SELECT id::text, user_id::text, name, target_amount, current_amount, goal_date
		FROM savings WHERE user_id = $1 AND deleted = false ORDER BY id`

	queryCategoryName = `SELECT name FROM categories WHERE id = $1`
)

// PostgresRepository reads finance aggregates from PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ListActiveUsers(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, queryActiveUsers)
	if err != nil {
		return nil, queryError(ctx, "list_active_users", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, queryError(ctx, "list_active_users", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "list_active_users", err)
	}
	return ids, nil
}

func (r *PostgresRepository) ListActiveBudgets(ctx context.Context, userID string) ([]models.BudgetSnapshot, error) {
	return r.queryBudgets(ctx, "list_active_budgets", queryActiveBudgets, userID)
}

func (r *PostgresRepository) ListBudgetsEndingOn(ctx context.Context, day time.Time) ([]models.BudgetSnapshot, error) {
	return r.queryBudgets(ctx, "list_budgets_ending_on", queryBudgetsEndingOn, day.Format("2006-01-02"))
}

func (r *PostgresRepository) queryBudgets(ctx context.Context, queryType, query string, arg interface{}) ([]models.BudgetSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, queryError(ctx, queryType, err)
	}
	defer rows.Close()

	var budgets []models.BudgetSnapshot
	for rows.Next() {
		var b models.BudgetSnapshot
		if err := rows.Scan(&b.BudgetID, &b.UserID, &b.CategoryID, &b.LimitAmount, &b.StartDate, &b.EndDate); err != nil {
			return nil, queryError(ctx, queryType, err)
		}
		budgets = append(budgets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, queryType, err)
	}
	return budgets, nil
}

func (r *PostgresRepository) SumSpentForBudget(ctx context.Context, budgetID string) (decimal.Decimal, error) {
	var spent decimal.NullDecimal
	if err := r.db.QueryRowContext(ctx, querySumSpent, budgetID).Scan(&spent); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, queryError(ctx, "sum_spent_for_budget", err)
	}
	if !spent.Valid {
		return decimal.Zero, nil
	}
	return spent.Decimal, nil
}

func (r *PostgresRepository) ListActiveSavings(ctx context.Context, userID string) ([]models.SavingSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, queryActiveSavings, userID)
	if err != nil {
		return nil, queryError(ctx, "list_active_savings", err)
	}
	defer rows.Close()

	var savings []models.SavingSnapshot
	for rows.Next() {
		var s models.SavingSnapshot
		if err := rows.Scan(&s.SavingID, &s.UserID, &s.Name, &s.TargetAmount, &s.CurrentAmount, &s.GoalDate); err != nil {
			return nil, queryError(ctx, "list_active_savings", err)
		}
		savings = append(savings, s)
	}
	if err := rows.Err(); err != nil {
		return nil, queryError(ctx, "list_active_savings", err)
	}
	return savings, nil
}

func (r *PostgresRepository) GetCategoryName(ctx context.Context, categoryID string) (string, error) {
	var name sql.NullString
	err := r.db.QueryRowContext(ctx, queryCategoryName, categoryID).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UnknownCategory, nil
		}
		return "", queryError(ctx, "get_category_name", err)
	}
	if !name.Valid || name.String == "" {
		return UnknownCategory, nil
	}
	return name.String, nil
}

// queryError classifies a failure as a timeout when the context expired.
func queryError(ctx context.Context, queryType string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.NewQueryTimeoutError(queryType), err)
	}
	return apperrors.NewQueryExecutionFailedError(queryType, err)
}
