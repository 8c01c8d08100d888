package rules

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"finance-notifier/internal/common/logger"
	"finance-notifier/internal/common/metrics"
	"finance-notifier/internal/delivery"
	"finance-notifier/internal/finance"
	"finance-notifier/internal/models"
	"finance-notifier/internal/notification"

	"github.com/shopspring/decimal"
)

// ErrSweepInProgress is returned by RunOnce while another sweep is running.
var ErrSweepInProgress = errors.New("SWEEP_IN_PROGRESS")

const (
	DefaultInterval    = time.Minute
	DefaultUserTimeout = 10 * time.Second
	DefaultConcurrency = 4
	DefaultNearEndDays = 3
)

// Sweep statuses reported to metrics.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

type Config struct {
	Interval time.Duration
	// UserTimeout bounds every collaborator and store call made for one user.
	UserTimeout time.Duration
	Concurrency int
	NearEndDays int
	Location    *time.Location
}

// Recorder receives one call per finished sweep.
type Recorder interface {
	RecordSweep(ctx context.Context, duration time.Duration, emitted int, status string)
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Users      int           `json:"users"`
	Emitted    int           `json:"emitted"`
	Duplicates int           `json:"duplicates"`
	Failures   int           `json:"failures"`
	Duration   time.Duration `json:"durationNs"`
}

func (r SweepResult) status() string {
	if r.Failures > 0 {
		return StatusPartial
	}
	return StatusSuccess
}

type Engine struct {
	cfg      Config
	repo     finance.Repository
	store    notification.Store
	channel  delivery.Channel
	recorder Recorder
	logger   logger.Logger
	now      func() time.Time

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewEngine(cfg Config, repo finance.Repository, store notification.Store, channel delivery.Channel, recorder Recorder, log logger.Logger) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.UserTimeout <= 0 {
		cfg.UserTimeout = DefaultUserTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.NearEndDays <= 0 {
		cfg.NearEndDays = DefaultNearEndDays
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	return &Engine{
		cfg:      cfg,
		repo:     repo,
		store:    store,
		channel:  channel,
		recorder: recorder,
		logger:   log.WithFields(map[string]interface{}{"component": "rule-engine"}),
		now:      time.Now,
	}
}

// Start runs a sweep every Interval until Stop is called or ctx is done.
// A tick that fires while a sweep is still running is skipped.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.Interval)
		defer ticker.Stop()

		e.logger.Info("rule engine started", map[string]interface{}{
			"interval": e.cfg.Interval.String(),
		})
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("rule engine stopped", nil)
				return
			case <-ticker.C:
				e.tick(ctx)
			}
		}
	}()
}

// Stop cancels the schedule and waits for an in-flight sweep to return.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) tick(ctx context.Context) {
	if _, err := e.RunOnce(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
		e.logger.Error("sweep failed", map[string]interface{}{"error": err})
	}
}

// RunOnce performs a full sweep over every active user. Per-user failures are
// counted in the result, not returned. The error reports a concurrent sweep,
// a failure to list users, or cancellation before every user was evaluated;
// in the last case the users never evaluated are counted as failures.
func (e *Engine) RunOnce(ctx context.Context) (SweepResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		metrics.SweepsSkipped.Inc()
		e.logger.Warn("sweep skipped, previous sweep still running", nil)
		return SweepResult{}, ErrSweepInProgress
	}
	defer e.running.Store(false)

	start := time.Now()
	today := models.TruncateDay(e.now().In(e.cfg.Location))

	result, err := e.sweep(ctx, today)
	result.Duration = time.Since(start)

	status := result.status()
	if err != nil {
		status = StatusFailed
	}
	metrics.SweepsTotal.WithLabelValues(status).Inc()
	metrics.SweepDuration.Observe(result.Duration.Seconds())
	if e.recorder != nil {
		e.recorder.RecordSweep(context.WithoutCancel(ctx), result.Duration, result.Emitted, status)
	}

	e.logger.Info("sweep finished", map[string]interface{}{
		"status":     status,
		"day":        today.Format("2006-01-02"),
		"users":      result.Users,
		"emitted":    result.Emitted,
		"duplicates": result.Duplicates,
		"failures":   result.Failures,
		"durationMs": result.Duration.Milliseconds(),
	})
	return result, err
}

type userOutcome struct {
	emitted    int
	duplicates int
}

func (e *Engine) sweep(ctx context.Context, today time.Time) (SweepResult, error) {
	var result SweepResult

	listCtx, cancel := context.WithTimeout(ctx, e.cfg.UserTimeout)
	users, err := e.repo.ListActiveUsers(listCtx)
	cancel()
	if err != nil {
		return result, fmt.Errorf("list active users: %w", err)
	}
	result.Users = len(users)

	endingByUser := e.budgetsEndingOn(ctx, today.AddDate(0, 0, e.cfg.NearEndDays))

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan string)
	)
	workers := min(e.cfg.Concurrency, len(users))
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range jobs {
				out, err := e.evaluateUserIsolated(ctx, userID, today, endingByUser[userID])

				mu.Lock()
				result.Emitted += out.emitted
				result.Duplicates += out.duplicates
				if err != nil {
					result.Failures++
				}
				mu.Unlock()

				if err != nil {
					metrics.UserEvaluationFailures.Inc()
					e.logger.Error("user evaluation failed", map[string]interface{}{
						"userId": userID,
						"error":  err,
					})
				}
			}
		}()
	}

	fed := 0
feed:
	for _, userID := range users {
		select {
		case jobs <- userID:
			fed++
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if skipped := len(users) - fed; skipped > 0 {
		result.Failures += skipped
		metrics.UserEvaluationFailures.Add(float64(skipped))
		e.logger.Error("sweep interrupted", map[string]interface{}{
			"evaluated": fed,
			"skipped":   skipped,
			"error":     ctx.Err(),
		})
		return result, fmt.Errorf("sweep interrupted after %d of %d users: %w", fed, len(users), ctx.Err())
	}
	return result, nil
}

// budgetsEndingOn groups the cross-user near-end lookup by user. A failure
// only disables the near-end rule for this sweep.
func (e *Engine) budgetsEndingOn(ctx context.Context, day time.Time) map[string][]models.BudgetSnapshot {
	lookupCtx, cancel := context.WithTimeout(ctx, e.cfg.UserTimeout)
	defer cancel()

	budgets, err := e.repo.ListBudgetsEndingOn(lookupCtx, day)
	if err != nil {
		e.logger.Warn("near-end lookup failed", map[string]interface{}{
			"day":   day.Format("2006-01-02"),
			"error": err,
		})
		return nil
	}

	byUser := make(map[string][]models.BudgetSnapshot)
	for _, b := range budgets {
		byUser[b.UserID] = append(byUser[b.UserID], b)
	}
	return byUser
}

// evaluateUserIsolated bounds one user's evaluation by UserTimeout and turns a
// panic into an error so the sweep carries on.
func (e *Engine) evaluateUserIsolated(ctx context.Context, userID string, today time.Time, ending []models.BudgetSnapshot) (out userOutcome, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.UserTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic evaluating user: %v", r)
		}
	}()

	return e.evaluateUser(ctx, userID, today, ending)
}

func (e *Engine) evaluateUser(ctx context.Context, userID string, today time.Time, ending []models.BudgetSnapshot) (userOutcome, error) {
	var out userOutcome
	spentCache := make(map[string]decimal.Decimal)
	spentFor := func(budgetID string) (decimal.Decimal, error) {
		if v, ok := spentCache[budgetID]; ok {
			return v, nil
		}
		v, err := e.repo.SumSpentForBudget(ctx, budgetID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("sum spent for budget %s: %w", budgetID, err)
		}
		spentCache[budgetID] = v
		return v, nil
	}

	budgets, err := e.repo.ListActiveBudgets(ctx, userID)
	if err != nil {
		return out, fmt.Errorf("list active budgets: %w", err)
	}
	for _, b := range budgets {
		if !b.ActiveOn(today) {
			continue
		}
		spent, err := spentFor(b.BudgetID)
		if err != nil {
			return out, err
		}
		if c, ok := EvaluateSpend(b, spent); ok {
			if err := e.emit(ctx, userID, c, e.categoryLabel(b.CategoryID), &out); err != nil {
				return out, err
			}
		}
	}

	for _, b := range ending {
		if b.UserID != userID || !b.ActiveOn(today) {
			continue
		}
		spent, err := spentFor(b.BudgetID)
		if err != nil {
			return out, err
		}
		if c, ok := EvaluateNearEnd(b, spent, today, e.cfg.NearEndDays); ok {
			if err := e.emit(ctx, userID, c, e.categoryLabel(b.CategoryID), &out); err != nil {
				return out, err
			}
		}
	}

	savings, err := e.repo.ListActiveSavings(ctx, userID)
	if err != nil {
		return out, fmt.Errorf("list active savings: %w", err)
	}
	for _, s := range savings {
		for _, c := range EvaluateSavings(s, today) {
			if err := e.emit(ctx, userID, c, staticLabel(s.Name), &out); err != nil {
				return out, err
			}
		}
	}

	return out, nil
}

type labelFunc func(ctx context.Context) (string, error)

func staticLabel(s string) labelFunc {
	return func(context.Context) (string, error) { return s, nil }
}

func (e *Engine) categoryLabel(categoryID string) labelFunc {
	return func(ctx context.Context) (string, error) {
		name, err := e.repo.GetCategoryName(ctx, categoryID)
		if err != nil {
			return "", fmt.Errorf("category name %s: %w", categoryID, err)
		}
		return name, nil
	}
}

// emit runs the check-then-persist path for one candidate and pushes the saved
// event. The storage uniqueness constraint settles races between sweeps.
func (e *Engine) emit(ctx context.Context, userID string, c Candidate, label labelFunc, out *userOutcome) error {
	key := models.NewDedupKey(userID, c.Kind, c.ReferenceID, c.Urgency)

	exists, err := e.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("dedup check %s: %w", key, err)
	}
	if exists {
		out.duplicates++
		metrics.DuplicatesSuppressed.WithLabelValues(string(c.Kind)).Inc()
		return nil
	}

	name, err := label(ctx)
	if err != nil {
		return err
	}

	saved, err := e.store.Save(ctx, Compose(userID, c, name))
	if err != nil {
		if errors.Is(err, notification.ErrDuplicate) {
			out.duplicates++
			metrics.DuplicatesSuppressed.WithLabelValues(string(c.Kind)).Inc()
			return nil
		}
		return fmt.Errorf("save %s: %w", key, err)
	}

	out.emitted++
	metrics.NotificationsEmitted.WithLabelValues(string(c.Kind)).Inc()
	e.logger.Info("notification emitted", map[string]interface{}{
		"userId":         userID,
		"notificationId": saved.ID,
		"kind":           string(saved.Kind),
		"urgency":        string(saved.Urgency),
		"referenceId":    saved.ReferenceID,
	})

	e.deliver(ctx, saved)
	return nil
}

// deliver pushes the event and the new unread count. Failures are logged only.
func (e *Engine) deliver(ctx context.Context, event *models.NotificationEvent) {
	if e.channel == nil {
		return
	}
	if err := e.channel.SendToUser(ctx, event.UserID, event); err != nil {
		e.logger.Warn("push failed", map[string]interface{}{
			"userId":         event.UserID,
			"notificationId": event.ID,
			"error":          err,
		})
	}

	count, err := e.store.CountUnread(ctx, event.UserID)
	if err != nil {
		e.logger.Warn("unread count unavailable", map[string]interface{}{
			"userId": event.UserID,
			"error":  err,
		})
		return
	}
	if err := e.channel.SendUnreadCount(ctx, event.UserID, count); err != nil {
		e.logger.Warn("unread count push failed", map[string]interface{}{
			"userId": event.UserID,
			"error":  err,
		})
	}
}
