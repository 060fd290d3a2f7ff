package reminder

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/nelrik/waypost/internal/core"
	"go.uber.org/zap"
)

// fakeStore is an in-memory Store mirroring the SQL semantics, including the
// compare-and-swap status guard.
type fakeStore struct {
	reminders map[string]*Reminder
	owners    map[string]string // memoryID -> userID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		reminders: make(map[string]*Reminder),
		owners:    make(map[string]string),
	}
}

func (f *fakeStore) InsertReminder(_ context.Context, r *Reminder) error {
	cp := *r
	f.reminders[r.ID] = &cp
	return nil
}

func (f *fakeStore) GetReminder(_ context.Context, id string) (*Reminder, error) {
	r, ok := f.reminders[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) FindDueReminders(_ context.Context, now time.Time) ([]*Reminder, error) {
	var due []*Reminder
	for _, r := range f.reminders {
		if r.Status == StatusPending && !r.DueAt.After(now) {
			cp := *r
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueAt.Before(due[j].DueAt) })
	return due, nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, id string, from, to Status) (bool, error) {
	r, ok := f.reminders[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (f *fakeStore) MemoryOwner(_ context.Context, memoryID string) (string, error) {
	return f.owners[memoryID], nil
}

func (f *fakeStore) ReminderStats(_ context.Context, userID string, now time.Time) (*Stats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.AddDate(0, 0, 1)
	var stats Stats
	for _, r := range f.reminders {
		if userID != "" && r.UserID != userID {
			continue
		}
		stats.Total++
		switch r.Status {
		case StatusPending:
			stats.Pending++
			if !r.DueAt.Before(dayStart) && r.DueAt.Before(dayEnd) {
				stats.UpcomingToday++
			}
		case StatusSent:
			stats.Sent++
		case StatusCancelled:
			stats.Cancelled++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Sent) / float64(stats.Total)
	}
	return &stats, nil
}

// fakeNotifier records deliveries and can fail selected recipients.
type fakeNotifier struct {
	sent    []string // message bodies in delivery order
	failFor map[string]bool
}

func (f *fakeNotifier) Notify(_ context.Context, recipient, body string) error {
	if f.failFor[recipient] {
		return errors.New("delivery refused")
	}
	f.sent = append(f.sent, body)
	return nil
}

// blockingNotifier parks inside Notify until released, so a tick can be held
// open mid-delivery.
type blockingNotifier struct {
	entered chan struct{}
	release chan struct{}
	calls   int
}

func (b *blockingNotifier) Notify(_ context.Context, _, _ string) error {
	b.calls++
	b.entered <- struct{}{}
	<-b.release
	return nil
}

func newTestScheduler(store *fakeStore, notifier *fakeNotifier, now time.Time) *Scheduler {
	s := NewScheduler(store, notifier, time.Minute, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func TestCreateRejectsPastInstant(t *testing.T) {
	store := newFakeStore()
	store.owners["m1"] = "u1"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(store, &fakeNotifier{}, now)

	_, err := s.Create(context.Background(), "u1", "m1", now.Add(-time.Second), "too late", "log:c1")
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.reminders) != 0 {
		t.Error("past-dated reminder was persisted")
	}
}

func TestCreateRejectsForeignMemory(t *testing.T) {
	store := newFakeStore()
	store.owners["m1"] = "someone-else"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(store, &fakeNotifier{}, now)

	_, err := s.Create(context.Background(), "u1", "m1", now.Add(time.Hour), "msg", "log:c1")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateFromPhrase(t *testing.T) {
	store := newFakeStore()
	store.owners["m1"] = "u1"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(store, &fakeNotifier{}, now)

	r, ok, err := s.CreateFromPhrase(context.Background(), "u1", "m1", "in 2 hours", "call mom", "UTC", "log:c1")
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if !r.DueAt.Equal(now.Add(2 * time.Hour)) {
		t.Errorf("due at %v, want %v", r.DueAt, now.Add(2*time.Hour))
	}
	if r.Status != StatusPending {
		t.Errorf("status = %s, want pending", r.Status)
	}
}

func TestCreateFromPhraseUnparsable(t *testing.T) {
	store := newFakeStore()
	store.owners["m1"] = "u1"
	s := newTestScheduler(store, &fakeNotifier{}, time.Now())

	r, ok, err := s.CreateFromPhrase(context.Background(), "u1", "m1", "gibberish not a time", "msg", "UTC", "log:c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok || r != nil {
		t.Error("unparsable phrase produced a reminder")
	}
	if len(store.reminders) != 0 {
		t.Error("unparsable phrase persisted state")
	}
}

func TestCreateFromPhraseBadTimezone(t *testing.T) {
	s := newTestScheduler(newFakeStore(), &fakeNotifier{}, time.Now())
	_, _, err := s.CreateFromPhrase(context.Background(), "u1", "m1", "in 2 hours", "msg", "Not/AZone", "log:c1")
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCancelIsIdempotentAndSilent(t *testing.T) {
	store := newFakeStore()
	store.owners["m1"] = "u1"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := newTestScheduler(store, &fakeNotifier{}, now)
	ctx := context.Background()

	r, err := s.Create(ctx, "u1", "m1", now.Add(time.Hour), "msg", "log:c1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Pending: cancel succeeds.
	ok, err := s.Cancel(ctx, r.ID, "u1")
	if err != nil || !ok {
		t.Fatalf("cancel pending: ok=%v err=%v", ok, err)
	}

	// Already cancelled: false, no error, no change.
	ok, err = s.Cancel(ctx, r.ID, "u1")
	if err != nil || ok {
		t.Fatalf("cancel terminal: ok=%v err=%v", ok, err)
	}
	if store.reminders[r.ID].Status != StatusCancelled {
		t.Error("terminal status changed")
	}

	// Missing and foreign reminders: false, no error.
	if ok, _ := s.Cancel(ctx, "no-such-id", "u1"); ok {
		t.Error("cancel of missing reminder returned true")
	}
}

func TestCancelOnSentReminder(t *testing.T) {
	store := newFakeStore()
	store.owners["m1"] = "u1"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	notifier := &fakeNotifier{}
	s := newTestScheduler(store, notifier, now)
	ctx := context.Background()

	r, _ := s.Create(ctx, "u1", "m1", now.Add(time.Minute), "msg", "log:c1")
	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	s.Tick(ctx)

	if store.reminders[r.ID].Status != StatusSent {
		t.Fatalf("status = %s, want sent", store.reminders[r.ID].Status)
	}
	ok, err := s.Cancel(ctx, r.ID, "u1")
	if err != nil || ok {
		t.Fatalf("cancel sent: ok=%v err=%v", ok, err)
	}
	if store.reminders[r.ID].Status != StatusSent {
		t.Error("sent status changed")
	}
}

func TestTickDeliversEarliestFirst(t *testing.T) {
	store := newFakeStore()
	store.owners["m1"] = "u1"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	notifier := &fakeNotifier{}
	s := newTestScheduler(store, notifier, now)
	ctx := context.Background()

	// Created later-due first to prove ordering comes from due time.
	if _, err := s.Create(ctx, "u1", "m1", now.Add(2*time.Minute), "second", "log:c1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.Create(ctx, "u1", "m1", now.Add(time.Minute), "first", "log:c1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	s.now = func() time.Time { return now.Add(5 * time.Minute) }
	s.Tick(ctx)

	if len(notifier.sent) != 2 {
		t.Fatalf("delivered %d, want 2", len(notifier.sent))
	}
	if notifier.sent[0] != "first" || notifier.sent[1] != "second" {
		t.Errorf("delivery order %v, want [first second]", notifier.sent)
	}
}

func TestTickFailureCancelsWithoutRetry(t *testing.T) {
	store := newFakeStore()
	store.owners["m1"] = "u1"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	notifier := &fakeNotifier{failFor: map[string]bool{"slack:dead": true}}
	s := newTestScheduler(store, notifier, now)
	ctx := context.Background()

	bad, _ := s.Create(ctx, "u1", "m1", now.Add(time.Minute), "doomed", "slack:dead")
	good, _ := s.Create(ctx, "u1", "m1", now.Add(time.Minute), "fine", "log:c1")

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	s.Tick(ctx)

	if store.reminders[bad.ID].Status != StatusCancelled {
		t.Errorf("failed delivery status = %s, want cancelled", store.reminders[bad.ID].Status)
	}
	// One failing reminder never blocks the batch.
	if store.reminders[good.ID].Status != StatusSent {
		t.Errorf("good delivery status = %s, want sent", store.reminders[good.ID].Status)
	}

	// Next tick must not re-attempt the cancelled reminder.
	delivered := len(notifier.sent)
	s.Tick(ctx)
	if len(notifier.sent) != delivered {
		t.Error("cancelled reminder was re-attempted")
	}
	if store.reminders[bad.ID].Status != StatusCancelled {
		t.Error("cancelled reminder left terminal state")
	}
}

func TestStats(t *testing.T) {
	store := newFakeStore()
	store.owners["m1"] = "u1"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	notifier := &fakeNotifier{failFor: map[string]bool{"slack:dead": true}}
	s := newTestScheduler(store, notifier, now)
	ctx := context.Background()

	s.Create(ctx, "u1", "m1", now.Add(time.Minute), "a", "log:c1")
	s.Create(ctx, "u1", "m1", now.Add(time.Minute), "b", "slack:dead")
	s.Create(ctx, "u1", "m1", now.Add(4*time.Hour), "later today", "log:c1")

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	s.Tick(ctx)

	stats, err := s.Stats(ctx, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Sent != 1 || stats.Cancelled != 1 || stats.Pending != 1 {
		t.Errorf("counts = %+v", stats)
	}
	if stats.UpcomingToday != 1 {
		t.Errorf("upcoming today = %d, want 1", stats.UpcomingToday)
	}
	want := 1.0 / 3.0
	if stats.SuccessRate != want {
		t.Errorf("success rate = %f, want %f", stats.SuccessRate, want)
	}
}

func TestTickSkipsWhileDeliveryInFlight(t *testing.T) {
	store := newFakeStore()
	store.owners["m1"] = "u1"
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	notifier := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewScheduler(store, notifier, time.Minute, zap.NewNop())
	s.now = func() time.Time { return now }
	ctx := context.Background()

	r, err := s.Create(ctx, "u1", "m1", now.Add(time.Minute), "slow", "log:c1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	s.now = func() time.Time { return now.Add(2 * time.Minute) }

	done := make(chan struct{})
	go func() {
		s.Tick(ctx)
		close(done)
	}()
	<-notifier.entered

	// A tick invoked while the first delivery is still in flight must return
	// immediately and attempt nothing.
	s.Tick(ctx)

	close(notifier.release)
	<-done

	if notifier.calls != 1 {
		t.Errorf("delivery attempts = %d, want 1", notifier.calls)
	}
	if store.reminders[r.ID].Status != StatusSent {
		t.Errorf("status = %s, want sent", store.reminders[r.ID].Status)
	}
}

func TestStartStop(t *testing.T) {
	store := newFakeStore()
	s := NewScheduler(store, &fakeNotifier{}, 10*time.Millisecond, zap.NewNop())
	s.Start()
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	// Stop waits for the loop; a second Stop must not panic or hang.
	s.Stop()
}
