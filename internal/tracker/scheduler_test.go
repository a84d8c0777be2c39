package tracker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"worktrack/internal/testutil"
	"worktrack/internal/tracker"
)

func TestScheduler_Tick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notifier := &testutil.RecordingNotifier{}
	scheduler := tracker.NewScheduler(f.tracker, tracker.NewReminders(f.tracker, f.agg), notifier, 0)

	f.clock.Set(at(9, 0))
	mustOK(t)(f.tracker.Start(ctx, 1, "Development"))
	mustOK(t)(f.tracker.Start(ctx, 2, "Meeting"))
	if err := f.tracker.RegisterUser(ctx, tracker.User{ID: 3, Username: "idle"}); err != nil {
		t.Fatalf("RegisterUser() error = %v", err)
	}

	f.clock.Set(at(10, 1))
	delivered, err := scheduler.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if delivered != 2 {
		t.Errorf("Tick() delivered %d, want 2 work reminders", delivered)
	}
	for _, r := range notifier.Sent() {
		if r.Kind != tracker.ReminderWork {
			t.Errorf("unexpected %s reminder for user %d", r.Kind, r.UserID)
		}
	}

	f.clock.Advance(time.Minute)
	delivered, err = scheduler.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if delivered != 0 {
		t.Errorf("second Tick() delivered %d, want 0", delivered)
	}
}

func TestScheduler_DeliveryFailureDoesNotAbortTick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notifier := &testutil.RecordingNotifier{Err: errors.New("chat unreachable")}
	scheduler := tracker.NewScheduler(f.tracker, tracker.NewReminders(f.tracker, f.agg), notifier, 0)

	f.clock.Set(at(9, 0))
	mustOK(t)(f.tracker.Start(ctx, 1, "Development"))
	mustOK(t)(f.tracker.Start(ctx, 2, "Development"))

	f.clock.Set(at(10, 1))
	delivered, err := scheduler.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	if delivered != 0 {
		t.Errorf("Tick() delivered %d, want 0", delivered)
	}

	// Both users were still evaluated: their reminders are recorded.
	for _, id := range []int64{1, 2} {
		last, err := f.db.LastReminderSent(ctx, id, tracker.ReminderWork)
		if err != nil {
			t.Fatalf("LastReminderSent() error = %v", err)
		}
		if last.IsZero() {
			t.Errorf("user %d was not evaluated", id)
		}
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	scheduler := tracker.NewScheduler(f.tracker, tracker.NewReminders(f.tracker, f.agg), &testutil.RecordingNotifier{}, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil on cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancel")
	}
}
