package notification

// Schema creates the notifications table. dedup_urgency carries the urgency
// only for kinds deduplicated per tier and is empty otherwise, so one partial
// unique index covers every kind.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS notifications (
		id            UUID PRIMARY KEY,
		user_id       TEXT NOT NULL,
		kind          TEXT NOT NULL,
		urgency       TEXT NOT NULL DEFAULT '',
		dedup_urgency TEXT NOT NULL DEFAULT '',
		title         TEXT NOT NULL,
		message       TEXT NOT NULL,
		reference_id  TEXT NOT NULL,
		amount        NUMERIC(19, 2) NOT NULL DEFAULT 0,
		label         TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL,
		read          BOOLEAN NOT NULL DEFAULT false,
		read_at       TIMESTAMPTZ,
		deleted       BOOLEAN NOT NULL DEFAULT false,
		deleted_at    TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS notifications_dedup_key
		ON notifications (user_id, kind, reference_id, dedup_urgency)
		WHERE deleted = false`,
	`CREATE INDEX IF NOT EXISTS notifications_user_created
		ON notifications (user_id, created_at DESC)
		WHERE deleted = false`,
}
