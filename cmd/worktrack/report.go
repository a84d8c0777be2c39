package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"worktrack/internal/app"
	"worktrack/internal/tracker"
)

const dateLayout = "2006-01-02"

// conflictHint tells the user what to do instead of a rejected transition.
func conflictHint(tr tracker.Transition) string {
	switch tr.Conflict {
	case tracker.ConflictSessionOpen:
		return fmt.Sprintf("A %s session (%s) is already %s. End it first.", tr.Session.Category, tr.Session.ID, tr.Session.Status)
	case tracker.ConflictNoActiveSession:
		if tr.Session != nil {
			return "The session is already paused. Use 'worktrack resume'."
		}
		return "No active session. Use 'worktrack start CATEGORY'."
	case tracker.ConflictNoPausedSession:
		if tr.Session != nil {
			return "The session is not paused."
		}
		return "No paused session. Use 'worktrack start CATEGORY'."
	case tracker.ConflictNoOpenSession:
		return "No session to end."
	}
	return tr.Conflict.String()
}

func writeStatus(w io.Writer, st *app.SessionStatus, loc *time.Location) {
	if st.Session == nil {
		fmt.Fprintln(w, "No session in progress.")
	} else {
		s := st.Session
		fmt.Fprintf(w, "Session:  %s\n", s.ID)
		fmt.Fprintf(w, "Category: %s\n", s.Category)
		fmt.Fprintf(w, "Status:   %s\n", s.Status)
		fmt.Fprintf(w, "Started:  %s\n", s.StartTime.In(loc).Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "Elapsed:  %s\n", tracker.FormatDuration(st.Elapsed))
		fmt.Fprintf(w, "Breaks:   %d\n", len(st.Breaks))
		if st.OnBreak != nil {
			fmt.Fprintf(w, "On break since %s (%s)\n", st.OnBreak.StartTime.In(loc).Format("15:04:05"), st.OnBreak.Reason)
		}
		if len(st.Notes) > 0 {
			fmt.Fprintf(w, "Notes:    %d\n", len(st.Notes))
		}
	}
	fmt.Fprintf(w, "\nToday: %s across %d completed session(s)\n", tracker.FormatDuration(st.Today.TotalDuration), st.Today.CompletedSessions)
}

func writeNotes(w io.Writer, notes []*tracker.Note, loc *time.Location) {
	if len(notes) == 0 {
		fmt.Fprintln(w, "No notes yet.")
		return
	}
	for i, n := range notes {
		content := n.Content
		if r := []rune(content); len(r) > 100 {
			content = string(r[:100]) + "..."
		}
		fmt.Fprintf(w, "%d. %s - %s\n   %s\n", i+1, n.CreatedAt.In(loc).Format("02.01.2006 15:04"), n.Category, content)
	}
}

func writeTotals(w io.Writer, t tracker.Totals) {
	fmt.Fprintf(w, "Sessions:   %d (%d completed, %d open)\n", t.TotalSessions, t.CompletedSessions, t.ActiveSessions)
	fmt.Fprintf(w, "Work time:  %s\n", tracker.FormatDuration(t.TotalDuration))
	fmt.Fprintf(w, "Breaks:     %d (%s)\n", t.TotalBreaks, tracker.FormatDuration(t.BreakDuration))
}

func writeCategories(w io.Writer, t tracker.Totals) {
	shares := tracker.CategoryShares(t.Categories, t.TotalDuration)
	if len(shares) == 0 {
		fmt.Fprintln(w, "No completed work.")
		return
	}
	fmt.Fprintln(w, "By category:")
	for _, s := range shares {
		fmt.Fprintf(w, "  %-20s %3d  %s  %5.1f%%\n", s.Name, s.Count, tracker.FormatDuration(s.Duration), s.Percent)
	}
}

func writeDay(w io.Writer, d tracker.DayStats) {
	fmt.Fprintf(w, "Statistics for %s\n\n", d.Date.Format(dateLayout))
	writeTotals(w, d.Totals)
	fmt.Fprintln(w)
	writeCategories(w, d.Totals)
}

func writeWeek(w io.Writer, ws tracker.WeekStats) {
	fmt.Fprintf(w, "Statistics for week %s to %s\n\n", ws.Start.Format(dateLayout), ws.End.Format(dateLayout))
	writeTotals(w, ws.Totals)
	fmt.Fprintf(w, "Daily avg:  %s\n\n", tracker.FormatDuration(ws.AverageDaily()))
	writeCategories(w, ws.Totals)
	fmt.Fprintln(w, "\nBy day:")
	for _, d := range ws.Days {
		fmt.Fprintf(w, "  %-10s %s  %2d session(s)  %s\n", d.Date.Weekday(), d.Date.Format(dateLayout), d.CompletedSessions, tracker.FormatDuration(d.TotalDuration))
	}
}

func writeMonth(w io.Writer, m tracker.MonthStats) {
	fmt.Fprintf(w, "Statistics for %s %d\n\n", m.MonthName, m.Year)
	writeTotals(w, m.Totals)
	fmt.Fprintf(w, "Work days:  %d of %d\n", m.WorkingDays(), m.Days())
	fmt.Fprintf(w, "Daily avg:  %s\n\n", tracker.FormatDuration(m.AverageDaily()))
	writeCategories(w, m.Totals)
	fmt.Fprintln(w, "\nBy week:")
	for i, ws := range m.Weeks {
		fmt.Fprintf(w, "  Week %d (%s - %s): %d session(s), %s\n", i+1, ws.Start.Format(dateLayout), ws.End.Format(dateLayout), ws.TotalSessions, tracker.FormatDuration(ws.TotalDuration))
	}
}

func writeSettings(w io.Writer, s tracker.ReminderSettings) {
	row := func(name string, is tracker.IntervalSetting) {
		state := "off"
		if is.Enabled {
			state = "on"
		}
		fmt.Fprintf(w, "%-11s %-3s %4d min\n", name, state, is.Minutes)
	}
	row("work", s.Work)
	row("break", s.Break)
	row("long-break", s.LongBreak)
	row("daily-goal", s.DailyGoal)
}

// parseDate parses YYYY-MM-DD in loc, or returns now when s is empty.
func parseDate(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}

// parseMonth parses YYYY-MM, or returns the month of now when s is empty.
func parseMonth(s string, now time.Time) (int, time.Month, error) {
	if s == "" {
		return now.Year(), now.Month(), nil
	}
	d, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q, want YYYY-MM", s)
	}
	return d.Year(), d.Month(), nil
}
