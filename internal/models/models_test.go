package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 0, DaysBetween(day(2026, 10, 19).Add(23*time.Hour), day(2026, 10, 19)))
	assert.Equal(t, 3, DaysBetween(day(2026, 10, 19).Add(22*time.Hour), day(2026, 10, 22)))
	assert.Equal(t, -1, DaysBetween(day(2026, 10, 19), day(2026, 10, 18)))
}

func TestDaysBetween_AcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	a := time.Date(2026, 10, 24, 12, 0, 0, 0, loc)
	b := time.Date(2026, 10, 26, 0, 0, 0, 0, loc)
	assert.Equal(t, 2, DaysBetween(a, b))
}

func TestBudgetActiveOn(t *testing.T) {
	b := BudgetSnapshot{StartDate: day(2026, 10, 1), EndDate: day(2026, 10, 31)}

	assert.True(t, b.ActiveOn(day(2026, 10, 1)))
	assert.True(t, b.ActiveOn(day(2026, 10, 31).Add(23*time.Hour)))
	assert.False(t, b.ActiveOn(day(2026, 9, 30)))
	assert.False(t, b.ActiveOn(day(2026, 11, 1)))
}

func TestParseKind(t *testing.T) {
	for _, k := range AllKinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("BUDGET_PARTY")
	assert.Error(t, err)
}

func TestParseUrgency(t *testing.T) {
	u, err := ParseUrgency("")
	require.NoError(t, err)
	assert.Equal(t, UrgencyNone, u)

	_, err = ParseUrgency("CRITICAL")
	assert.Error(t, err)
}

func TestNewDedupKey_DropsUrgencyForUntieredKinds(t *testing.T) {
	k := NewDedupKey("u1", KindBudgetExceeded, "b1", UrgencyHigh)
	assert.Equal(t, UrgencyNone, k.Urgency)

	k = NewDedupKey("u1", KindSavingsDeadline, "s1", UrgencyHigh)
	assert.Equal(t, UrgencyHigh, k.Urgency)
	assert.Equal(t, "u1|SAVINGS_DEADLINE|s1|HIGH", k.String())
}

func TestKindIsBudget(t *testing.T) {
	assert.True(t, KindBudgetNearEnd.IsBudget())
	assert.False(t, KindSavingsCompleted.IsBudget())
}
