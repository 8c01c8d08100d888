// internal/models/notification.go
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// NotificationKind is the closed set of alerts the rule engine can raise.
type NotificationKind string

const (
	KindBudgetWarning      NotificationKind = "BUDGET_WARNING"
	KindBudgetExceeded     NotificationKind = "BUDGET_EXCEEDED"
	KindBudgetNearEnd      NotificationKind = "BUDGET_NEAR_END"
	KindSavingsDeadline    NotificationKind = "SAVINGS_DEADLINE"
	KindSavingsMilestone50 NotificationKind = "SAVINGS_MILESTONE_50"
	KindSavingsMilestone75 NotificationKind = "SAVINGS_MILESTONE_75"
	KindSavingsCompleted   NotificationKind = "SAVINGS_COMPLETED"
)

// AllKinds lists every kind in evaluation order.
var AllKinds = []NotificationKind{
	KindBudgetExceeded,
	KindBudgetWarning,
	KindBudgetNearEnd,
	KindSavingsDeadline,
	KindSavingsMilestone50,
	KindSavingsMilestone75,
	KindSavingsCompleted,
}

// ParseKind validates a stored kind value.
func ParseKind(s string) (NotificationKind, error) {
	k := NotificationKind(s)
	switch k {
	case KindBudgetWarning, KindBudgetExceeded, KindBudgetNearEnd,
		KindSavingsDeadline, KindSavingsMilestone50, KindSavingsMilestone75, KindSavingsCompleted:
		return k, nil
	}
	return "", fmt.Errorf("unknown notification kind %q", s)
}

// IsBudget reports whether the kind references a budget.
func (k NotificationKind) IsBudget() bool {
	switch k {
	case KindBudgetWarning, KindBudgetExceeded, KindBudgetNearEnd:
		return true
	case KindSavingsDeadline, KindSavingsMilestone50, KindSavingsMilestone75, KindSavingsCompleted:
		return false
	}
	return false
}

// TieredByUrgency reports whether each urgency tier of the kind is deduplicated
// independently. Only savings deadlines fire once per tier.
func (k NotificationKind) TieredByUrgency() bool {
	return k == KindSavingsDeadline
}

// Urgency is an ordinal severity attached to an event.
type Urgency string

const (
	UrgencyNone   Urgency = ""
	UrgencyLow    Urgency = "LOW"
	UrgencyMedium Urgency = "MEDIUM"
	UrgencyHigh   Urgency = "HIGH"
)

// ParseUrgency validates a stored urgency value. Empty is allowed.
func ParseUrgency(s string) (Urgency, error) {
	u := Urgency(s)
	switch u {
	case UrgencyNone, UrgencyLow, UrgencyMedium, UrgencyHigh:
		return u, nil
	}
	return "", fmt.Errorf("unknown urgency %q", s)
}

// DedupKey identifies one emission slot. Urgency is only populated for kinds
// that are tiered by urgency.
type DedupKey struct {
	UserID      string
	Kind        NotificationKind
	ReferenceID string
	Urgency     Urgency
}

// NewDedupKey builds the key, dropping urgency for kinds that are not tiered.
func NewDedupKey(userID string, kind NotificationKind, referenceID string, urgency Urgency) DedupKey {
	if !kind.TieredByUrgency() {
		urgency = UrgencyNone
	}
	return DedupKey{UserID: userID, Kind: kind, ReferenceID: referenceID, Urgency: urgency}
}

func (k DedupKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.UserID, k.Kind, k.ReferenceID, k.Urgency)
}

// NotificationEvent is a persisted alert.
type NotificationEvent struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	Kind        NotificationKind `json:"type"`
	Urgency     Urgency          `json:"urgency,omitempty"`
	Title       string           `json:"title"`
	Message     string           `json:"message"`
	ReferenceID string           `json:"referenceId"`
	Amount      decimal.Decimal  `json:"amount"`
	Label       string           `json:"categoryName,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	Read        bool             `json:"read"`
	ReadAt      *time.Time       `json:"readAt,omitempty"`
	Deleted     bool             `json:"-"`
	DeletedAt   *time.Time       `json:"-"`
}

// Key returns the dedup key of the event.
func (e *NotificationEvent) Key() DedupKey {
	return NewDedupKey(e.UserID, e.Kind, e.ReferenceID, e.Urgency)
}

// UnreadCount is the payload pushed alongside new events.
type UnreadCount struct {
	UserID string `json:"userId"`
	Count  int    `json:"count"`
}
