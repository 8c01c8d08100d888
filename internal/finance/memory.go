package finance

import (
	"context"
	"sort"
	"sync"
	"time"

	"finance-notifier/internal/models"

	"github.com/shopspring/decimal"
)

// MemoryRepository keeps finance data in process. It backs the "memory"
// storage driver and the engine tests.
type MemoryRepository struct {
	mu         sync.RWMutex
	users      map[string]bool
	budgets    map[string]models.BudgetSnapshot
	spent      map[string]decimal.Decimal
	savings    map[string]models.SavingSnapshot
	categories map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:      make(map[string]bool),
		budgets:    make(map[string]models.BudgetSnapshot),
		spent:      make(map[string]decimal.Decimal),
		savings:    make(map[string]models.SavingSnapshot),
		categories: make(map[string]string),
	}
}

// PutUser registers a user; disabled users are not returned by ListActiveUsers.
func (r *MemoryRepository) PutUser(userID string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = enabled
}

func (r *MemoryRepository) PutBudget(b models.BudgetSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budgets[b.BudgetID] = b
}

func (r *MemoryRepository) RemoveBudget(budgetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.budgets, budgetID)
	delete(r.spent, budgetID)
}

// SetSpent overrides the spent aggregate of a budget.
func (r *MemoryRepository) SetSpent(budgetID string, amount decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spent[budgetID] = amount
}

func (r *MemoryRepository) PutSaving(s models.SavingSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.savings[s.SavingID] = s
}

func (r *MemoryRepository) RemoveSaving(savingID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.savings, savingID)
}

func (r *MemoryRepository) PutCategory(categoryID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[categoryID] = name
}

func (r *MemoryRepository) ListActiveUsers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.users))
	for id, enabled := range r.users {
		if enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *MemoryRepository) ListActiveBudgets(ctx context.Context, userID string) ([]models.BudgetSnapshot, error) {
	return r.filterBudgets(ctx, func(b models.BudgetSnapshot) bool { return b.UserID == userID })
}

func (r *MemoryRepository) ListBudgetsEndingOn(ctx context.Context, day time.Time) ([]models.BudgetSnapshot, error) {
	want := day.Format("2006-01-02")
	return r.filterBudgets(ctx, func(b models.BudgetSnapshot) bool { return b.EndDate.Format("2006-01-02") == want })
}

func (r *MemoryRepository) filterBudgets(ctx context.Context, keep func(models.BudgetSnapshot) bool) ([]models.BudgetSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.BudgetSnapshot
	for _, b := range r.budgets {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BudgetID < out[j].BudgetID })
	return out, nil
}

func (r *MemoryRepository) SumSpentForBudget(ctx context.Context, budgetID string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.spent[budgetID]; ok {
		return v, nil
	}
	return decimal.Zero, nil
}

func (r *MemoryRepository) ListActiveSavings(ctx context.Context, userID string) ([]models.SavingSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.SavingSnapshot
	for _, s := range r.savings {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SavingID < out[j].SavingID })
	return out, nil
}

func (r *MemoryRepository) GetCategoryName(ctx context.Context, categoryID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.categories[categoryID]; ok && name != "" {
		return name, nil
	}
	return UnknownCategory, nil
}
