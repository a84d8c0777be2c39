package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"worktrack/internal/tracker"
)

var startCmd = &cobra.Command{
	Use:   "start CATEGORY",
	Short: "Start a work session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp(cmd, "Start")
		if err != nil {
			return err
		}
		defer a.Close()

		tr, err := a.Start(cmd.Context(), userID(cmd, cfg), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("starting session: %w", err)
		}
		if !tr.OK() {
			fmt.Println(conflictHint(tr))
			return nil
		}
		fmt.Printf("Started %s at %s\n", tr.Session.Category, tr.Session.StartTime.In(a.Aggregator().Location()).Format("15:04:05"))
		return nil
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause [REASON]",
	Short: "Pause the active session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp(cmd, "Pause")
		if err != nil {
			return err
		}
		defer a.Close()

		tr, err := a.Pause(cmd.Context(), userID(cmd, cfg), strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("pausing session: %w", err)
		}
		if !tr.OK() {
			fmt.Println(conflictHint(tr))
			return nil
		}
		fmt.Printf("Paused (%s). Worked %s so far.\n", tr.Break.Reason, tracker.FormatDuration(a.Tracker().Elapsed(tr.Session)))
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the paused session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp(cmd, "Resume")
		if err != nil {
			return err
		}
		defer a.Close()

		tr, err := a.Resume(cmd.Context(), userID(cmd, cfg))
		if err != nil {
			return fmt.Errorf("resuming session: %w", err)
		}
		if !tr.OK() {
			fmt.Println(conflictHint(tr))
			return nil
		}
		fmt.Printf("Resumed %s after a %s break.\n", tr.Session.Category, tracker.FormatDuration(*tr.Break.Duration))
		return nil
	},
}

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "End the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp(cmd, "End")
		if err != nil {
			return err
		}
		defer a.Close()

		tr, err := a.End(cmd.Context(), userID(cmd, cfg))
		if err != nil {
			return fmt.Errorf("ending session: %w", err)
		}
		if !tr.OK() {
			fmt.Println(conflictHint(tr))
			return nil
		}
		fmt.Printf("Ended %s: %s\n", tr.Session.Category, tracker.FormatDuration(tr.Session.DurationSeconds()))
		if tr.Break != nil {
			fmt.Println("The open break was closed.")
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp(cmd, "Status")
		if err != nil {
			return err
		}
		defer a.Close()

		st, err := a.Status(cmd.Context(), userID(cmd, cfg))
		if err != nil {
			return err
		}
		writeStatus(os.Stdout, st, a.Aggregator().Location())
		return nil
	},
}

// note command
var noteCmd = &cobra.Command{
	Use:   "note TEXT",
	Short: "Add a note to the current session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, _ := cmd.Flags().GetString("category")

		a, cfg, err := newApp(cmd, "AddNote")
		if err != nil {
			return err
		}
		defer a.Close()

		note, err := a.AddNote(cmd.Context(), userID(cmd, cfg), strings.Join(args, " "), cat)
		if err != nil {
			return fmt.Errorf("saving note: %w", err)
		}
		where := "no session"
		if note.SessionID != nil {
			where = "session " + *note.SessionID
		}
		fmt.Printf("Note saved (%s, %s)\n", note.Category, where)
		return nil
	},
}

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "List recent notes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, cfg, err := newApp(cmd, "Notes")
		if err != nil {
			return err
		}
		defer a.Close()

		notes, err := a.Tracker().Notes(cmd.Context(), userID(cmd, cfg), limit)
		if err != nil {
			return err
		}
		writeNotes(os.Stdout, notes, a.Aggregator().Location())
		return nil
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show work statistics",
}

var statsDayCmd = &cobra.Command{
	Use:   "day [YYYY-MM-DD]",
	Short: "Statistics for one day",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp(cmd, "DailyStats")
		if err != nil {
			return err
		}
		defer a.Close()

		date, err := parseDate(firstArg(args), a.Now(), a.Aggregator().Location())
		if err != nil {
			return err
		}
		day, err := a.Aggregator().DailyStats(cmd.Context(), userID(cmd, cfg), date)
		if err != nil {
			return err
		}
		writeDay(os.Stdout, day)
		return nil
	},
}

var statsWeekCmd = &cobra.Command{
	Use:   "week [YYYY-MM-DD]",
	Short: "Statistics for the week containing a day",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp(cmd, "WeeklyStats")
		if err != nil {
			return err
		}
		defer a.Close()

		date, err := parseDate(firstArg(args), a.Now(), a.Aggregator().Location())
		if err != nil {
			return err
		}
		week, err := a.Aggregator().WeeklyStats(cmd.Context(), userID(cmd, cfg), date)
		if err != nil {
			return err
		}
		writeWeek(os.Stdout, week)
		return nil
	},
}

var statsMonthCmd = &cobra.Command{
	Use:   "month [YYYY-MM]",
	Short: "Statistics for one month",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp(cmd, "MonthlyStats")
		if err != nil {
			return err
		}
		defer a.Close()

		year, month, err := parseMonth(firstArg(args), a.Now())
		if err != nil {
			return err
		}
		stats, err := a.Aggregator().MonthlyStats(cmd.Context(), userID(cmd, cfg), year, month)
		if err != nil {
			return err
		}
		writeMonth(os.Stdout, stats)
		return nil
	},
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// settings command
var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage reminder settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show reminder settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp(cmd, "Settings")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.Tracker().Settings(cmd.Context(), userID(cmd, cfg))
		if err != nil {
			return err
		}
		writeSettings(os.Stdout, s)
		return nil
	},
}

// reminderFlags maps each reminder kind to its --<name> and --<name>-minutes flags.
var reminderFlags = []string{"work", "break", "long-break", "daily-goal"}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change reminder settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		upd, err := settingsUpdateFromFlags(cmd)
		if err != nil {
			return err
		}

		a, cfg, err := newApp(cmd, "UpdateSettings")
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.UpdateSettings(cmd.Context(), userID(cmd, cfg), upd)
		if err != nil {
			return fmt.Errorf("updating settings: %w", err)
		}
		writeSettings(os.Stdout, s)
		return nil
	},
}

func settingsUpdateFromFlags(cmd *cobra.Command) (tracker.SettingsUpdate, error) {
	var upd tracker.SettingsUpdate
	targets := map[string]struct {
		enabled **bool
		minutes **int
	}{
		"work":       {&upd.WorkEnabled, &upd.WorkMinutes},
		"break":      {&upd.BreakEnabled, &upd.BreakMinutes},
		"long-break": {&upd.LongBreakEnabled, &upd.LongBreakMinutes},
		"daily-goal": {&upd.DailyGoalEnabled, &upd.DailyGoalMinutes},
	}

	changed := false
	for _, name := range reminderFlags {
		t := targets[name]
		if cmd.Flags().Changed(name) {
			v, err := cmd.Flags().GetBool(name)
			if err != nil {
				return upd, err
			}
			*t.enabled = &v
			changed = true
		}
		if cmd.Flags().Changed(name + "-minutes") {
			v, err := cmd.Flags().GetInt(name + "-minutes")
			if err != nil {
				return upd, err
			}
			*t.minutes = &v
			changed = true
		}
	}
	if !changed {
		return upd, fmt.Errorf("nothing to change; use --work, --work-minutes, --break, ...")
	}
	return upd, nil
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "End sessions left open for too long",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge, _ := cmd.Flags().GetDuration("older-than")

		a, _, err := newApp(cmd, "Repair")
		if err != nil {
			return err
		}
		defer a.Close()

		repaired, err := a.Repair(cmd.Context(), maxAge)
		if err != nil {
			return fmt.Errorf("repairing sessions: %w", err)
		}
		if len(repaired) == 0 {
			fmt.Println("No stale sessions.")
			return nil
		}
		for _, s := range repaired {
			fmt.Printf("Closed session %s of user %d (%s, %s)\n", s.ID, s.UserID, s.Category, tracker.FormatDuration(s.DurationSeconds()))
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reminder scheduler and category monitor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, _, err := newApp(cmd, "Serve")
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Fprintln(os.Stderr, "worktrack serving; press Ctrl-C to stop")
		return a.Serve(ctx, os.Stdout)
	},
}

func init() {
	noteCmd.Flags().StringP("category", "c", "", "Note category (default: the session's)")
	notesCmd.Flags().IntP("limit", "n", 10, "Maximum number of notes to show")

	statsCmd.AddCommand(statsDayCmd)
	statsCmd.AddCommand(statsWeekCmd)
	statsCmd.AddCommand(statsMonthCmd)

	for _, name := range reminderFlags {
		settingsSetCmd.Flags().Bool(name, false, "Enable the "+name+" reminder")
		settingsSetCmd.Flags().Int(name+"-minutes", 0, "Interval of the "+name+" reminder in minutes")
	}
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)

	repairCmd.Flags().Duration("older-than", 24*time.Hour, "Close sessions started before this long ago")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(endCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(notesCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(serveCmd)
}
