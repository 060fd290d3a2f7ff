package reminder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nelrik/waypost/internal/core"
	"github.com/nelrik/waypost/internal/timeparse"
	"go.uber.org/zap"
)

// Store is the relational surface the scheduler needs. UpdateStatus must
// apply the transition only when the row is currently in from, reporting
// whether a row changed, so terminal states are never revisited.
type Store interface {
	InsertReminder(ctx context.Context, r *Reminder) error
	GetReminder(ctx context.Context, id string) (*Reminder, error)
	FindDueReminders(ctx context.Context, now time.Time) ([]*Reminder, error)
	UpdateStatus(ctx context.Context, id string, from, to Status) (bool, error)
	MemoryOwner(ctx context.Context, memoryID string) (string, error)
	ReminderStats(ctx context.Context, userID string, now time.Time) (*Stats, error)
}

// Notifier delivers one reminder message to a recipient address.
type Notifier interface {
	Notify(ctx context.Context, recipient, body string) error
}

// Scheduler owns the reminder lifecycle and the recurring due-reminder poll
// loop. Construct one per process and pass it explicitly; there is no global
// instance.
type Scheduler struct {
	store    Store
	notifier Notifier
	parser   *timeparse.Parser
	interval time.Duration
	logger   *zap.Logger

	now     func() time.Time
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	ticking atomic.Bool
}

// NewScheduler creates a scheduler polling at interval (one minute when
// interval is zero).
func NewScheduler(store Store, notifier Notifier, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		store:    store,
		notifier: notifier,
		parser:   timeparse.New(),
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Create validates ownership and schedules a new reminder. The due instant
// must be strictly in the future.
func (s *Scheduler) Create(ctx context.Context, userID, memoryID string, dueAt time.Time, message, recipient string) (*Reminder, error) {
	owner, err := s.store.MemoryOwner(ctx, memoryID)
	if err != nil {
		return nil, core.Storagef("memory owner: %v", err)
	}
	if owner == "" || owner != userID {
		return nil, core.ErrNotFound
	}
	if !dueAt.After(s.now()) {
		return nil, core.Validationf("due instant must be in the future")
	}

	now := s.now().UTC()
	r := &Reminder{
		ID:        uuid.New().String(),
		UserID:    userID,
		MemoryID:  memoryID,
		DueAt:     dueAt.UTC(),
		Message:   message,
		Recipient: recipient,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertReminder(ctx, r); err != nil {
		return nil, core.Storagef("insert reminder: %v", err)
	}
	s.logger.Info("reminder scheduled",
		zap.String("id", r.ID),
		zap.String("user", userID),
		zap.Time("due_at", r.DueAt))
	return r, nil
}

// CreateFromPhrase resolves a natural-language time phrase in the user's
// timezone, then delegates to Create. ok is false when the phrase did not
// parse; nothing is persisted in that case and the caller should ask the
// user to rephrase.
func (s *Scheduler) CreateFromPhrase(ctx context.Context, userID, memoryID, phrase, message, timezone, recipient string) (*Reminder, bool, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, false, core.Validationf("unknown timezone %q", timezone)
	}
	dueAt, ok := s.parser.Parse(phrase, loc, s.now())
	if !ok {
		return nil, false, nil
	}
	r, err := s.Create(ctx, userID, memoryID, dueAt, message, recipient)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

// Cancel transitions a pending reminder to cancelled. It returns false,
// without error or mutation, for a terminal, missing, or foreign reminder:
// cancellation is idempotent and silent on a no-op.
func (s *Scheduler) Cancel(ctx context.Context, id, userID string) (bool, error) {
	r, err := s.store.GetReminder(ctx, id)
	if err != nil {
		return false, core.Storagef("get reminder: %v", err)
	}
	if r == nil || r.UserID != userID || r.Status != StatusPending {
		return false, nil
	}
	changed, err := s.store.UpdateStatus(ctx, id, StatusPending, StatusCancelled)
	if err != nil {
		return false, core.Storagef("cancel reminder: %v", err)
	}
	if changed {
		s.logger.Info("reminder cancelled", zap.String("id", id))
	}
	return changed, nil
}

// Stats reports reminder counts, scoped to userID when non-empty.
func (s *Scheduler) Stats(ctx context.Context, userID string) (*Stats, error) {
	stats, err := s.store.ReminderStats(ctx, userID, s.now().UTC())
	if err != nil {
		return nil, core.Storagef("reminder stats: %v", err)
	}
	return stats, nil
}

// Start begins the poll loop in a background goroutine.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("reminder scheduler started", zap.Duration("interval", s.interval))
}

// Stop halts the poll loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
		s.logger.Info("reminder scheduler stopped")
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one due-reminder scan. If a previous tick is still executing the
// call is skipped entirely rather than overlapping it; a slow delivery batch
// delays later reminders but never doubles them.
func (s *Scheduler) Tick(ctx context.Context) {
	if !s.ticking.CompareAndSwap(false, true) {
		s.logger.Debug("tick skipped, previous still running")
		return
	}
	defer s.ticking.Store(false)

	now := s.now().UTC()
	due, err := s.store.FindDueReminders(ctx, now)
	if err != nil {
		s.logger.Error("due reminder scan failed", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}
	s.logger.Debug("tick", zap.Int("due", len(due)))

	// Deliveries run strictly sequentially, earliest due first.
	for _, r := range due {
		s.deliver(ctx, r)
	}
}

// deliver attempts one delivery. A failure is contained here: the reminder
// is cancelled, never retried, so one bad recipient cannot block the batch.
func (s *Scheduler) deliver(ctx context.Context, r *Reminder) {
	if err := s.notifier.Notify(ctx, r.Recipient, r.Message); err != nil {
		s.logger.Warn("reminder delivery failed",
			zap.String("id", r.ID),
			zap.String("recipient", r.Recipient),
			zap.Error(err))
		if _, uerr := s.store.UpdateStatus(ctx, r.ID, StatusPending, StatusCancelled); uerr != nil {
			s.logger.Error("status update failed", zap.String("id", r.ID), zap.Error(uerr))
		}
		return
	}
	if _, err := s.store.UpdateStatus(ctx, r.ID, StatusPending, StatusSent); err != nil {
		s.logger.Error("status update failed", zap.String("id", r.ID), zap.Error(err))
		return
	}
	s.logger.Info("reminder delivered",
		zap.String("id", r.ID),
		zap.String("recipient", r.Recipient))
}
