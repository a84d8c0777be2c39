package tracker_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"worktrack/internal/tracker"
)

func TestEvaluate(t *testing.T) {
	start := at(9, 0)
	active := &tracker.Session{ID: "s-1", UserID: user, StartTime: start, Status: tracker.StatusActive}
	paused := &tracker.Session{ID: "s-1", UserID: user, StartTime: start, Status: tracker.StatusPaused}

	onlyWork := tracker.ReminderSettings{Work: tracker.IntervalSetting{Enabled: true, Minutes: 60}}
	onlyBreak := tracker.ReminderSettings{Break: tracker.IntervalSetting{Enabled: true, Minutes: 90}}
	onlyLong := tracker.ReminderSettings{LongBreak: tracker.IntervalSetting{Enabled: true, Minutes: 240}}
	onlyGoal := tracker.ReminderSettings{DailyGoal: tracker.IntervalSetting{Enabled: true, Minutes: 480}}

	tests := []struct {
		name string
		in   tracker.EvaluationInput
		want []tracker.ReminderKind
	}{
		{
			name: "no session",
			in:   tracker.EvaluationInput{Settings: tracker.DefaultReminderSettings(user), Now: start.Add(5 * time.Hour)},
		},
		{
			name: "work before interval",
			in:   tracker.EvaluationInput{Settings: onlyWork, Session: active, Now: start.Add(59 * time.Minute)},
		},
		{
			name: "work at interval",
			in:   tracker.EvaluationInput{Settings: onlyWork, Session: active, Now: start.Add(60 * time.Minute)},
			want: []tracker.ReminderKind{tracker.ReminderWork},
		},
		{
			name: "work debounced",
			in: tracker.EvaluationInput{
				Settings: onlyWork, Session: active, Now: start.Add(100 * time.Minute),
				LastSent: map[tracker.ReminderKind]time.Time{tracker.ReminderWork: start.Add(60 * time.Minute)},
			},
		},
		{
			name: "work fires while paused",
			in:   tracker.EvaluationInput{Settings: onlyWork, Session: paused, Now: start.Add(61 * time.Minute)},
			want: []tracker.ReminderKind{tracker.ReminderWork},
		},
		{
			name: "work disabled",
			in: tracker.EvaluationInput{
				Settings: tracker.ReminderSettings{Work: tracker.IntervalSetting{Enabled: false, Minutes: 60}},
				Session:  active, Now: start.Add(3 * time.Hour),
			},
		},
		{
			name: "break without recent break",
			in:   tracker.EvaluationInput{Settings: onlyBreak, Session: active, Now: start.Add(90 * time.Minute)},
			want: []tracker.ReminderKind{tracker.ReminderBreak},
		},
		{
			name: "break suppressed by recent break",
			in: tracker.EvaluationInput{
				Settings: onlyBreak, Session: active, Now: start.Add(120 * time.Minute),
				Breaks: []*tracker.Break{{StartTime: start.Add(60 * time.Minute)}},
			},
		},
		{
			name: "break after old break",
			in: tracker.EvaluationInput{
				Settings: onlyBreak, Session: active, Now: start.Add(200 * time.Minute),
				Breaks: []*tracker.Break{{StartTime: start.Add(60 * time.Minute)}},
			},
			want: []tracker.ReminderKind{tracker.ReminderBreak},
		},
		{
			name: "break not sent while paused",
			in:   tracker.EvaluationInput{Settings: onlyBreak, Session: paused, Now: start.Add(3 * time.Hour)},
		},
		{
			name: "long break",
			in:   tracker.EvaluationInput{Settings: onlyLong, Session: active, Now: start.Add(4 * time.Hour)},
			want: []tracker.ReminderKind{tracker.ReminderLongBreak},
		},
		{
			name: "daily goal reached without session",
			in:   tracker.EvaluationInput{Settings: onlyGoal, CompletedToday: 8 * 3600, Now: at(18, 0)},
			want: []tracker.ReminderKind{tracker.ReminderDailyGoal},
		},
		{
			name: "daily goal not reached",
			in:   tracker.EvaluationInput{Settings: onlyGoal, CompletedToday: 8*3600 - 1, Now: at(18, 0)},
		},
		{
			name: "daily goal debounced for an hour",
			in: tracker.EvaluationInput{
				Settings: onlyGoal, CompletedToday: 9 * 3600, Now: at(18, 59),
				LastSent: map[tracker.ReminderKind]time.Time{tracker.ReminderDailyGoal: at(18, 0)},
			},
		},
		{
			name: "several kinds at once",
			in: tracker.EvaluationInput{
				Settings: tracker.ReminderSettings{
					Work:      tracker.IntervalSetting{Enabled: true, Minutes: 60},
					Break:     tracker.IntervalSetting{Enabled: true, Minutes: 90},
					LongBreak: tracker.IntervalSetting{Enabled: true, Minutes: 240},
					DailyGoal: tracker.IntervalSetting{Enabled: true, Minutes: 60},
				},
				Session: active, CompletedToday: 3600, Now: start.Add(5 * time.Hour),
			},
			want: []tracker.ReminderKind{tracker.ReminderWork, tracker.ReminderBreak, tracker.ReminderLongBreak, tracker.ReminderDailyGoal},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tracker.Evaluate(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDebounce(t *testing.T) {
	s := tracker.DefaultReminderSettings(user)
	if got := tracker.Debounce(tracker.ReminderWork, s); got != 60*time.Minute {
		t.Errorf("Debounce(work) = %v, want 1h", got)
	}
	if got := tracker.Debounce(tracker.ReminderDailyGoal, s); got != tracker.DailyGoalDebounce {
		t.Errorf("Debounce(daily_goal) = %v, want %v", got, tracker.DailyGoalDebounce)
	}
}

func TestReminders_WorkDebounce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reminders := tracker.NewReminders(f.tracker, f.agg)

	on, off := true, false
	minutes := 60
	if _, err := f.tracker.UpdateSettings(ctx, user, tracker.SettingsUpdate{
		WorkEnabled: &on, WorkMinutes: &minutes,
		BreakEnabled: &off, LongBreakEnabled: &off, DailyGoalEnabled: &off,
	}); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	f.clock.Set(at(9, 0))
	start := mustOK(t)(f.tracker.Start(ctx, user, "Development"))

	evaluate := func(now time.Time) []*tracker.SentReminder {
		t.Helper()
		sent, err := reminders.Evaluate(ctx, user, now)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		return sent
	}

	first := evaluate(at(10, 5))
	if len(first) != 1 || first[0].Kind != tracker.ReminderWork {
		t.Fatalf("Evaluate() at 65min = %v, want one work reminder", first)
	}
	if first[0].SessionID == nil || *first[0].SessionID != start.Session.ID {
		t.Errorf("reminder SessionID = %v, want %s", first[0].SessionID, start.Session.ID)
	}
	if first[0].ID == 0 {
		t.Error("recorded reminder has no id")
	}

	if again := evaluate(at(10, 6)); len(again) != 0 {
		t.Errorf("Evaluate() one minute later = %v, want none", again)
	}

	if later := evaluate(at(11, 6)); len(later) != 1 || later[0].Kind != tracker.ReminderWork {
		t.Errorf("Evaluate() 61 minutes after first = %v, want work reminder", later)
	}
}

func TestReminders_DailyGoal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reminders := tracker.NewReminders(f.tracker, f.agg)

	goal := 60
	if _, err := f.tracker.UpdateSettings(ctx, user, tracker.SettingsUpdate{DailyGoalMinutes: &goal}); err != nil {
		t.Fatalf("UpdateSettings() error = %v", err)
	}

	f.work(t, user, "Development", at(9, 0), 61*time.Minute)

	sent, err := reminders.Evaluate(ctx, user, at(10, 30))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(sent) != 1 || sent[0].Kind != tracker.ReminderDailyGoal {
		t.Fatalf("Evaluate() = %v, want daily goal", sent)
	}
	if sent[0].SessionID != nil {
		t.Errorf("daily goal reminder tied to session %s", *sent[0].SessionID)
	}

	sent, err = reminders.Evaluate(ctx, user, at(11, 0))
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if len(sent) != 0 {
		t.Errorf("Evaluate() within an hour = %v, want none", sent)
	}
}
