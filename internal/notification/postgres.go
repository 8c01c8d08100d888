package notification

import (
	"context"
	"database/sql"
	"errors"
	"time"

	apperrors "finance-notifier/internal/common/errors"
	"finance-notifier/internal/models"

	"github.com/google/uuid"
)

const (
	queryExists = `SELECT EXISTS (SELECT 1 FROM notifications
		WHERE user_id = $1 AND kind = $2 AND reference_id = $3 AND dedup_urgency = $4)`

	queryInsert = `INSERT INTO notifications
		(id, user_id, kind, urgency, dedup_urgency, title, message, reference_id, amount, label, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (user_id, kind, reference_id, dedup_urgency) WHERE deleted = false DO NOTHING
		RETURNING id`

	selectColumns = `SELECT id::text, user_id, kind, urgency, title, message, reference_id, amount, label,
		created_at, read, read_at, deleted, deleted_at FROM notifications`

	queryOwner = `SELECT user_id FROM notifications WHERE id = $1 AND deleted = false`

	queryCountUnread = `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = false AND deleted = false`

	queryMarkRead = `UPDATE notifications SET read = true, read_at = COALESCE(read_at, $2)
		WHERE id = $1 AND deleted = false`

	queryMarkAllRead = `UPDATE notifications SET read = true, read_at = $2
		WHERE user_id = $1 AND read = false AND deleted = false`

	querySoftDelete = `UPDATE notifications SET deleted = true, deleted_at = $2
		WHERE id = $1 AND deleted = false`
)

// PostgresStore persists notifications in PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *PostgresStore) Exists(ctx context.Context, key models.DedupKey) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, queryExists,
		key.UserID, string(key.Kind), key.ReferenceID, string(key.Urgency),
	).Scan(&exists)
	if err != nil {
		return false, apperrors.NewQueryExecutionFailedError("notification_exists", err)
	}
	return exists, nil
}

func (s *PostgresStore) Save(ctx context.Context, event *models.NotificationEvent) (*models.NotificationEvent, error) {
	saved := *event
	saved.ID = uuid.New().String()
	saved.CreatedAt = s.now()
	saved.Read, saved.ReadAt = false, nil
	saved.Deleted, saved.DeletedAt = false, nil
	key := saved.Key()

	var id string
	err := s.db.QueryRowContext(ctx, queryInsert,
		saved.ID,
		saved.UserID,
		string(saved.Kind),
		string(saved.Urgency),
		string(key.Urgency),
		saved.Title,
		saved.Message,
		saved.ReferenceID,
		saved.Amount,
		saved.Label,
		saved.CreatedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, duplicate(key)
		}
		return nil, apperrors.NewDatabaseInsertFailedError(err)
	}
	return &saved, nil
}

func (s *PostgresStore) ListForUser(ctx context.Context, userID string, opts ListOptions) ([]models.NotificationEvent, error) {
	query := selectColumns + ` WHERE user_id = $1`
	if !opts.IncludeDeleted {
		query += ` AND deleted = false`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	args := []interface{}{userID}
	if opts.Limit > 0 {
		query += ` LIMIT $2`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_notifications", err)
	}
	defer rows.Close()

	var events []models.NotificationEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("list_notifications", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list_notifications", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (models.NotificationEvent, error) {
	var (
		ev                models.NotificationEvent
		kind, urgency     string
		readAt, deletedAt sql.NullTime
	)
	if err := rows.Scan(
		&ev.ID, &ev.UserID, &kind, &urgency, &ev.Title, &ev.Message, &ev.ReferenceID,
		&ev.Amount, &ev.Label, &ev.CreatedAt, &ev.Read, &readAt, &ev.Deleted, &deletedAt,
	); err != nil {
		return ev, err
	}

	var err error
	if ev.Kind, err = models.ParseKind(kind); err != nil {
		return ev, err
	}
	if ev.Urgency, err = models.ParseUrgency(urgency); err != nil {
		return ev, err
	}
	if readAt.Valid {
		t := readAt.Time
		ev.ReadAt = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		ev.DeletedAt = &t
	}
	return ev, nil
}

func (s *PostgresStore) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryCountUnread, userID).Scan(&count); err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("count_unread", err)
	}
	return count, nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, id, userID string) error {
	if err := s.checkOwner(ctx, id, userID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, queryMarkRead, id, s.now())
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("mark_read", err)
	}
	// Already-read rows still match; zero means deleted since the owner check.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *PostgresStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, queryMarkAllRead, userID, s.now())
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("mark_all_read", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewQueryExecutionFailedError("mark_all_read", err)
	}
	return n, nil
}

func (s *PostgresStore) SoftDelete(ctx context.Context, id, userID string) error {
	if err := s.checkOwner(ctx, id, userID); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, querySoftDelete, id, s.now())
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("soft_delete", err)
	}
	// A concurrent delete between the owner check and the update.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	return nil
}

// checkOwner resolves NotFound before Forbidden. Malformed ids cannot exist.
func (s *PostgresStore) checkOwner(ctx context.Context, id, userID string) error {
	if _, err := uuid.Parse(id); err != nil {
		return notFound(id)
	}

	var owner string
	err := s.db.QueryRowContext(ctx, queryOwner, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound(id)
		}
		return apperrors.NewQueryExecutionFailedError("notification_owner", err)
	}
	if owner != userID {
		return forbidden(id, userID)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
