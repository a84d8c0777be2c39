package tracker

import (
	"context"
	"time"
)

// CategoryTotal aggregates completed sessions of one category.
type CategoryTotal struct {
	Count    int
	Duration int64
}

// Totals are the additive counters shared by every aggregation window.
// Durations are whole seconds.
type Totals struct {
	TotalSessions     int
	CompletedSessions int
	ActiveSessions    int
	TotalDuration     int64
	TotalBreaks       int
	BreakDuration     int64
	Categories        map[string]CategoryTotal
}

func newTotals() Totals {
	return Totals{Categories: make(map[string]CategoryTotal)}
}

// add merges o into t, summing counters and category totals.
func (t *Totals) add(o Totals) {
	t.TotalSessions += o.TotalSessions
	t.CompletedSessions += o.CompletedSessions
	t.ActiveSessions += o.ActiveSessions
	t.TotalDuration += o.TotalDuration
	t.TotalBreaks += o.TotalBreaks
	t.BreakDuration += o.BreakDuration
	for name, c := range o.Categories {
		cur := t.Categories[name]
		cur.Count += c.Count
		cur.Duration += c.Duration
		t.Categories[name] = cur
	}
}

// DayStats covers one calendar day.
type DayStats struct {
	Date time.Time
	Totals
}

// WeekStats covers Monday through Sunday. Days[0] is Monday.
type WeekStats struct {
	Start time.Time
	End   time.Time
	Totals
	Days []DayStats
}

// AverageDaily returns the mean completed duration per day of the week.
func (w WeekStats) AverageDaily() int64 {
	return w.TotalDuration / 7
}

// MonthStats covers one calendar month. Weeks holds the week containing the
// 1st followed by the week of every later Monday inside the month.
type MonthStats struct {
	Year      int
	Month     time.Month
	MonthName string
	Totals
	Weeks []WeekStats
}

// Days returns the number of days in the month.
func (m MonthStats) Days() int {
	return daysIn(m.Year, m.Month)
}

// WorkingDays counts days of the month with completed work.
func (m MonthStats) WorkingDays() int {
	n := 0
	for _, w := range m.Weeks {
		for _, d := range w.Days {
			if d.Date.Year() == m.Year && d.Date.Month() == m.Month && d.TotalDuration > 0 {
				n++
			}
		}
	}
	return n
}

// AverageDaily returns the mean completed duration per calendar day.
func (m MonthStats) AverageDaily() int64 {
	return m.TotalDuration / int64(m.Days())
}

var monthNames = [...]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// MonthName returns the English name of month regardless of host locale.
func MonthName(month time.Month) string {
	if month < time.January || month > time.December {
		return ""
	}
	return monthNames[month-1]
}

// Aggregator computes day, week and month statistics from stored sessions
// and breaks. Calendar boundaries are taken in its location.
type Aggregator struct {
	store   Store
	loc     *time.Location
	timeout time.Duration
}

// NewAggregator creates an Aggregator. A nil loc means time.Local.
func NewAggregator(store Store, loc *time.Location, timeout time.Duration) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &Aggregator{store: store, loc: loc, timeout: timeout}
}

// Location returns the calendar location.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// dayStart returns local midnight of the day containing t.
func (a *Aggregator) dayStart(t time.Time) time.Time {
	y, m, d := t.In(a.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, a.loc)
}

// dayWindow returns the inclusive bounds of the day starting at start.
func dayWindow(start time.Time) (time.Time, time.Time) {
	return start, start.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// WeekStart returns local midnight of the Monday of the week containing t.
func (a *Aggregator) WeekStart(t time.Time) time.Time {
	day := a.dayStart(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// DailyStats aggregates every session overlapping the day containing date.
// Open sessions count in every day they span but contribute no duration.
func (a *Aggregator) DailyStats(ctx context.Context, userID int64, date time.Time) (DayStats, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := a.dayStart(date)
	from, to := dayWindow(start)

	sessions, err := a.store.FindSessionsOverlapping(ctx, userID, from, to)
	if err != nil {
		return DayStats{}, storageErr("finding sessions for day", err)
	}

	totals, err := a.summarize(ctx, sessions)
	if err != nil {
		return DayStats{}, err
	}
	return DayStats{Date: start, Totals: totals}, nil
}

// WeeklyStats sums the seven DailyStats of the Monday-to-Sunday week
// containing date.
func (a *Aggregator) WeeklyStats(ctx context.Context, userID int64, date time.Time) (WeekStats, error) {
	start := a.WeekStart(date)
	week := WeekStats{
		Start:  start,
		End:    start.AddDate(0, 0, 6),
		Totals: newTotals(),
		Days:   make([]DayStats, 0, 7),
	}

	for i := 0; i < 7; i++ {
		day, err := a.DailyStats(ctx, userID, start.AddDate(0, 0, i))
		if err != nil {
			return WeekStats{}, err
		}
		week.Days = append(week.Days, day)
		week.add(day.Totals)
	}
	return week, nil
}

// MonthlyStats aggregates sessions started within the month directly, so a
// session is counted once even when it appears in two weekly sub-reports.
func (a *Aggregator) MonthlyStats(ctx context.Context, userID int64, year int, month time.Month) (MonthStats, error) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, a.loc)
	last := first.AddDate(0, 1, -1)
	_, to := dayWindow(last)

	sctx, cancel := context.WithTimeout(ctx, a.timeout)
	sessions, err := a.store.FindSessionsStartedBetween(sctx, userID, first, to)
	if err != nil {
		cancel()
		return MonthStats{}, storageErr("finding sessions for month", err)
	}
	totals, err := a.summarize(sctx, sessions)
	cancel()
	if err != nil {
		return MonthStats{}, err
	}

	stats := MonthStats{
		Year:      year,
		Month:     month,
		MonthName: MonthName(month),
		Totals:    totals,
	}

	for _, anchor := range weekAnchors(first) {
		week, err := a.WeeklyStats(ctx, userID, anchor)
		if err != nil {
			return MonthStats{}, err
		}
		stats.Weeks = append(stats.Weeks, week)
	}
	return stats, nil
}

// weekAnchors partitions the month starting at first into calendar weeks:
// the 1st itself, then every Monday that follows within the month.
func weekAnchors(first time.Time) []time.Time {
	anchors := []time.Time{first}
	offset := (8 - int(first.Weekday())) % 7
	if offset == 0 {
		offset = 7
	}
	for d := first.AddDate(0, 0, offset); d.Month() == first.Month(); d = d.AddDate(0, 0, 7) {
		anchors = append(anchors, d)
	}
	return anchors
}

// summarize computes Totals for sessions. Only Completed sessions contribute
// durations and categories; breaks of every selected session are counted.
func (a *Aggregator) summarize(ctx context.Context, sessions []*Session) (Totals, error) {
	totals := newTotals()
	totals.TotalSessions = len(sessions)
	if len(sessions) == 0 {
		return totals, nil
	}

	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
		switch {
		case s.Status == StatusCompleted:
			totals.CompletedSessions++
			d := s.DurationSeconds()
			totals.TotalDuration += d
			c := totals.Categories[s.Category]
			c.Count++
			c.Duration += d
			totals.Categories[s.Category] = c
		case s.Status.Open():
			totals.ActiveSessions++
		}
	}

	breaks, err := a.store.FindBreaksForSessions(ctx, ids)
	if err != nil {
		return Totals{}, storageErr("finding breaks", err)
	}
	totals.TotalBreaks = len(breaks)
	for _, b := range breaks {
		if b.EndTime != nil && b.Duration != nil {
			totals.BreakDuration += *b.Duration
		}
	}
	return totals, nil
}

// CompletedDurationOn returns the sum of completed session durations of the
// day containing date.
func (a *Aggregator) CompletedDurationOn(ctx context.Context, userID int64, date time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	from, to := dayWindow(a.dayStart(date))
	sessions, err := a.store.FindSessionsOverlapping(ctx, userID, from, to)
	if err != nil {
		return 0, storageErr("finding sessions for day", err)
	}

	var total int64
	for _, s := range sessions {
		if s.Status == StatusCompleted {
			total += s.DurationSeconds()
		}
	}
	return total, nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
