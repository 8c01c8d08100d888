package rules

import (
	"testing"
	"time"

	"finance-notifier/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func budget(limit string) models.BudgetSnapshot {
	return models.BudgetSnapshot{
		BudgetID:    "b1",
		UserID:      "u1",
		CategoryID:  "c1",
		LimitAmount: dec(limit),
		StartDate:   day.AddDate(0, 0, -10),
		EndDate:     day.AddDate(0, 0, 20),
	}
}

func TestEvaluateSpend(t *testing.T) {
	tests := []struct {
		name        string
		limit       string
		spent       string
		wantFire    bool
		wantKind    models.NotificationKind
		wantUrgency models.Urgency
		wantAmount  string
	}{
		{"exactly at limit", "1000", "1000", true, models.KindBudgetExceeded, models.UrgencyHigh, "1000"},
		{"over limit", "1000", "1250.50", true, models.KindBudgetExceeded, models.UrgencyHigh, "1250.5"},
		{"half remaining", "1000", "500", true, models.KindBudgetWarning, models.UrgencyMedium, "500"},
		{"just under limit", "1000", "999.99", true, models.KindBudgetWarning, models.UrgencyMedium, "0.01"},
		{"more than half remaining", "1000", "499.99", false, "", "", ""},
		{"nothing spent", "1000", "0", false, "", "", ""},
		{"zero limit", "0", "10", false, "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := EvaluateSpend(budget(tt.limit), dec(tt.spent))
			require.Equal(t, tt.wantFire, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantKind, c.Kind)
			assert.Equal(t, tt.wantUrgency, c.Urgency)
			assert.True(t, dec(tt.wantAmount).Equal(c.Amount), "amount %s", c.Amount)
			assert.Equal(t, "b1", c.ReferenceID)
		})
	}
}

func TestEvaluateNearEnd(t *testing.T) {
	b := budget("300")
	b.EndDate = day.AddDate(0, 0, 3)

	c, ok := EvaluateNearEnd(b, dec("100"), day, 3)
	require.True(t, ok)
	assert.Equal(t, models.KindBudgetNearEnd, c.Kind)
	assert.Equal(t, models.UrgencyMedium, c.Urgency)
	assert.True(t, dec("200").Equal(c.Amount))

	_, ok = EvaluateNearEnd(b, dec("100"), day.AddDate(0, 0, 1), 3)
	assert.False(t, ok)

	c, ok = EvaluateNearEnd(b, dec("500"), day, 3)
	require.True(t, ok)
	assert.True(t, c.Amount.IsZero(), "overspent budgets report nothing remaining")
}

func TestDeadlineUrgency(t *testing.T) {
	tests := []struct {
		days int
		want models.Urgency
		ok   bool
	}{
		{8, models.UrgencyNone, false},
		{7, models.UrgencyLow, true},
		{4, models.UrgencyLow, true},
		{3, models.UrgencyMedium, true},
		{2, models.UrgencyMedium, true},
		{1, models.UrgencyHigh, true},
		{0, models.UrgencyHigh, true},
		{-1, models.UrgencyNone, false},
	}
	for _, tt := range tests {
		got, ok := DeadlineUrgency(tt.days)
		assert.Equal(t, tt.ok, ok, "days=%d", tt.days)
		assert.Equal(t, tt.want, got, "days=%d", tt.days)
	}
}

func saving(target, current string, goalIn int) models.SavingSnapshot {
	return models.SavingSnapshot{
		SavingID:      "s1",
		UserID:        "u1",
		Name:          "Holiday",
		TargetAmount:  dec(target),
		CurrentAmount: dec(current),
		GoalDate:      day.AddDate(0, 0, goalIn),
	}
}

func kinds(cs []Candidate) []models.NotificationKind {
	out := make([]models.NotificationKind, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Kind)
	}
	return out
}

func TestEvaluateSavings_Milestones(t *testing.T) {
	tests := []struct {
		current string
		want    []models.NotificationKind
	}{
		{"249.99", []models.NotificationKind{}},
		{"250", []models.NotificationKind{models.KindSavingsMilestone50}},
		{"374.99", []models.NotificationKind{models.KindSavingsMilestone50}},
		{"375", []models.NotificationKind{models.KindSavingsMilestone75}},
		{"499.99", []models.NotificationKind{models.KindSavingsMilestone75}},
		{"500", []models.NotificationKind{models.KindSavingsCompleted}},
		{"650", []models.NotificationKind{models.KindSavingsCompleted}},
	}
	for _, tt := range tests {
		t.Run(tt.current, func(t *testing.T) {
			got := EvaluateSavings(saving("500", tt.current, 60), day)
			assert.Equal(t, tt.want, kinds(got))
		})
	}
}

func TestEvaluateSavings_MilestoneAmounts(t *testing.T) {
	got := EvaluateSavings(saving("500", "250", 60), day)
	require.Len(t, got, 1)
	assert.True(t, dec("250").Equal(got[0].Amount), "remaining to goal")
	assert.Equal(t, models.UrgencyLow, got[0].Urgency)

	got = EvaluateSavings(saving("500", "520", 60), day)
	require.Len(t, got, 1)
	assert.True(t, dec("520").Equal(got[0].Amount), "completion reports the saved amount")
}

func TestEvaluateSavings_NonPositiveTargetSkipsMilestones(t *testing.T) {
	got := EvaluateSavings(saving("0", "100", 60), day)
	assert.Empty(t, got)

	got = EvaluateSavings(saving("0", "100", 2), day)
	assert.Equal(t, []models.NotificationKind{models.KindSavingsDeadline}, kinds(got))
}

func TestEvaluateSavings_DeadlineBeforeMilestone(t *testing.T) {
	got := EvaluateSavings(saving("500", "300", 5), day)
	require.Len(t, got, 2)
	assert.Equal(t, models.KindSavingsDeadline, got[0].Kind)
	assert.Equal(t, models.UrgencyLow, got[0].Urgency)
	assert.Equal(t, 5, got[0].DaysLeft)
	assert.True(t, dec("200").Equal(got[0].Amount))
	assert.Equal(t, models.KindSavingsMilestone50, got[1].Kind)
}

func TestCompose(t *testing.T) {
	c, ok := EvaluateSpend(budget("1000"), dec("1000"))
	require.True(t, ok)

	ev := Compose("u1", c, "Groceries")
	assert.Equal(t, "u1", ev.UserID)
	assert.Equal(t, models.KindBudgetExceeded, ev.Kind)
	assert.Equal(t, "Budget exceeded", ev.Title)
	assert.Equal(t, "You have spent 1000.00 of your 1000.00 budget for Groceries.", ev.Message)
	assert.Equal(t, "Groceries", ev.Label)
	assert.Empty(t, ev.ID)

	cs := EvaluateSavings(saving("500", "0", 0), day)
	require.Len(t, cs, 1)
	ev = Compose("u1", cs[0], "Holiday")
	assert.Equal(t, "Savings goal due", ev.Title)
	assert.Contains(t, ev.Message, "due today")
	assert.Contains(t, ev.Message, "500.00 still to save")
}

func TestCompose_EveryKindHasTitle(t *testing.T) {
	for _, k := range models.AllKinds {
		ev := Compose("u1", Candidate{Kind: k, Urgency: models.UrgencyLow}, "x")
		assert.NotEqual(t, string(k), ev.Title, "kind %s", k)
		assert.NotEmpty(t, ev.Message, "kind %s", k)
	}
}
