package finance

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "finance-notifier/internal/common/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresRepository_ListActiveUsers(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT id::text FROM users WHERE enabled = true`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1").AddRow("u2"))

	users, err := repo.ListActiveUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, users)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListActiveBudgets(t *testing.T) {
	repo, mock := newMockRepo(t)
	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM budgets WHERE user_id = \$1 AND deleted = false`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "category_id", "limit_amount", "start_date", "end_date"}).
			AddRow("b1", "u1", "c1", "1000.00", start, end))

	budgets, err := repo.ListActiveBudgets(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	assert.Equal(t, "b1", budgets[0].BudgetID)
	assert.True(t, decimal.NewFromInt(1000).Equal(budgets[0].LimitAmount))
	assert.Equal(t, end, budgets[0].EndDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListBudgetsEndingOn_FormatsDate(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM budgets WHERE end_date = \$1`).
		WithArgs("2026-10-22").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "category_id", "limit_amount", "start_date", "end_date"}))

	budgets, err := repo.ListBudgetsEndingOn(context.Background(), time.Date(2026, 10, 22, 15, 4, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, budgets)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_SumSpentForBudget(t *testing.T) {
	t.Run("null sum is zero", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`SELECT SUM\(t.amount\) FROM transactions`).
			WithArgs("b1").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(nil))

		spent, err := repo.SumSpentForBudget(context.Background(), "b1")
		require.NoError(t, err)
		assert.True(t, spent.IsZero())
	})

	t.Run("decimal sum", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`SELECT SUM\(t.amount\) FROM transactions`).
			WithArgs("b1").
			WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("612.35"))

		spent, err := repo.SumSpentForBudget(context.Background(), "b1")
		require.NoError(t, err)
		assert.Equal(t, "612.35", spent.StringFixed(2))
	})

	t.Run("query failure is classified", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`SELECT SUM`).WithArgs("b1").WillReturnError(errors.New("connection reset"))

		_, err := repo.SumSpentForBudget(context.Background(), "b1")
		require.Error(t, err)
		var stdErr *apperrors.StandardError
		require.True(t, errors.As(err, &stdErr))
		assert.Equal(t, apperrors.ErrCodeQueryExecutionFailed, stdErr.Code)
	})
}

func TestPostgresRepository_ListActiveSavings(t *testing.T) {
	repo, mock := newMockRepo(t)
	goal := time.Date(2026, 12, 24, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM savings WHERE user_id = \$1 AND deleted = false`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "name", "target_amount", "current_amount", "goal_date"}).
			AddRow("s1", "u1", "Holiday", "500", "250", goal))

	savings, err := repo.ListActiveSavings(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, savings, 1)
	assert.Equal(t, "Holiday", savings[0].Name)
	assert.True(t, decimal.NewFromInt(250).Equal(savings[0].CurrentAmount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetCategoryName(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`SELECT name FROM categories`).WithArgs("c1").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Groceries"))

		name, err := repo.GetCategoryName(context.Background(), "c1")
		require.NoError(t, err)
		assert.Equal(t, "Groceries", name)
	})

	t.Run("missing falls back", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(`SELECT name FROM categories`).WithArgs("c9").
			WillReturnRows(sqlmock.NewRows([]string{"name"}))

		name, err := repo.GetCategoryName(context.Background(), "c9")
		require.NoError(t, err)
		assert.Equal(t, UnknownCategory, name)
	})
}

func TestPostgresRepository_TimeoutIsClassified(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`FROM savings`).WithArgs("u1").WillDelayFor(50 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := repo.ListActiveSavings(ctx, "u1")
	require.Error(t, err)
	var stdErr *apperrors.StandardError
	require.True(t, errors.As(err, &stdErr))
	assert.Equal(t, apperrors.ErrCodeQueryTimeout, stdErr.Code)
}
