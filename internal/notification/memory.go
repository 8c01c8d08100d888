package notification

import (
	"context"
	"sort"
	"sync"
	"time"

	"finance-notifier/internal/models"

	"github.com/google/uuid"
)

type memoryRecord struct {
	event models.NotificationEvent
	seq   uint64
}

// MemoryStore is an in-process Store with the same uniqueness guarantees as
// the postgres schema.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*memoryRecord
	live    map[models.DedupKey]string
	seen    map[models.DedupKey]struct{}
	seq     uint64
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*memoryRecord),
		live:    make(map[models.DedupKey]string),
		seen:    make(map[models.DedupKey]struct{}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) Exists(ctx context.Context, key models.DedupKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key = models.NewDedupKey(key.UserID, key.Kind, key.ReferenceID, key.Urgency)

	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[key]
	return ok, nil
}

func (s *MemoryStore) Save(ctx context.Context, event *models.NotificationEvent) (*models.NotificationEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	saved := *event
	saved.Read, saved.ReadAt = false, nil
	saved.Deleted, saved.DeletedAt = false, nil
	key := saved.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.live[key]; taken {
		return nil, duplicate(key)
	}

	saved.ID = uuid.New().String()
	saved.CreatedAt = s.now()
	s.seq++
	s.records[saved.ID] = &memoryRecord{event: saved, seq: s.seq}
	s.live[key] = saved.ID
	s.seen[key] = struct{}{}

	out := saved
	return &out, nil
}

func (s *MemoryStore) ListForUser(ctx context.Context, userID string, opts ListOptions) ([]models.NotificationEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type entry struct {
		event models.NotificationEvent
		seq   uint64
	}

	s.mu.RLock()
	matched := make([]entry, 0)
	for _, rec := range s.records {
		if rec.event.UserID != userID {
			continue
		}
		if rec.event.Deleted && !opts.IncludeDeleted {
			continue
		}
		matched = append(matched, entry{event: rec.event, seq: rec.seq})
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.event.CreatedAt.Equal(b.event.CreatedAt) {
			return a.event.CreatedAt.After(b.event.CreatedAt)
		}
		return a.seq > b.seq
	})

	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]models.NotificationEvent, len(matched))
	for i, e := range matched {
		out[i] = e.event
	}
	return out, nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, rec := range s.records {
		if rec.event.UserID == userID && !rec.event.Read && !rec.event.Deleted {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) MarkRead(ctx context.Context, id, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.owned(id, userID)
	if err != nil {
		return err
	}
	if !rec.event.Read {
		now := s.now()
		rec.event.Read = true
		rec.event.ReadAt = &now
	}
	return nil
}

func (s *MemoryStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for _, rec := range s.records {
		if rec.event.UserID == userID && !rec.event.Read && !rec.event.Deleted {
			readAt := now
			rec.event.Read = true
			rec.event.ReadAt = &readAt
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) SoftDelete(ctx context.Context, id, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.owned(id, userID)
	if err != nil {
		return err
	}
	now := s.now()
	rec.event.Deleted = true
	rec.event.DeletedAt = &now
	delete(s.live, rec.event.Key())
	return nil
}

// owned must be called with mu held.
func (s *MemoryStore) owned(id, userID string) (*memoryRecord, error) {
	rec, ok := s.records[id]
	if !ok || rec.event.Deleted {
		return nil, notFound(id)
	}
	if rec.event.UserID != userID {
		return nil, forbidden(id, userID)
	}
	return rec, nil
}

var _ Store = (*MemoryStore)(nil)
