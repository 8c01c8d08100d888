// Package notification persists rule engine events and serves the per-user
// notification inbox.
package notification

import (
	"context"
	"errors"
	"fmt"

	apperrors "finance-notifier/internal/common/errors"
	"finance-notifier/internal/models"
)

var (
	ErrNotFound  = errors.New("NOTIFICATION_NOT_FOUND")
	ErrForbidden = errors.New("NOTIFICATION_FORBIDDEN")
	// ErrDuplicate is returned by Save when a live event already holds the dedup key.
	ErrDuplicate = errors.New("DUPLICATE_NOTIFICATION")
)

// Store is the authoritative event store. Implementations enforce uniqueness of
// the dedup key among non-deleted events independently of callers.
type Store interface {
	// Exists reports whether any event, deleted or not, was ever stored for key.
	Exists(ctx context.Context, key models.DedupKey) (bool, error)
	// Save assigns ID and CreatedAt and persists the event.
	Save(ctx context.Context, event *models.NotificationEvent) (*models.NotificationEvent, error)
	ListForUser(ctx context.Context, userID string, opts ListOptions) ([]models.NotificationEvent, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id, userID string) error
	// MarkAllRead returns the number of events updated.
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	SoftDelete(ctx context.Context, id, userID string) error
}

// ListOptions tunes ListForUser. The zero value lists live events only.
type ListOptions struct {
	IncludeDeleted bool
	Limit          int
}

func notFound(id string) error {
	return fmt.Errorf("%w: %w", ErrNotFound, apperrors.NewNotificationNotFoundError(id))
}

func forbidden(id, userID string) error {
	return fmt.Errorf("%w: %w", ErrForbidden, apperrors.NewNotificationForbiddenError(id, userID))
}

func duplicate(key models.DedupKey) error {
	return fmt.Errorf("%w: %w", ErrDuplicate, apperrors.NewDuplicateNotificationError(key.String()))
}
