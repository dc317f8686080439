package root

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourname/sleepcat/internal/service"
	"github.com/yourname/sleepcat/internal/ui"
)

func newHistoryCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the sleep sessions of a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := service.ValidateDayRequest(&service.DayRequest{Date: date}); err != nil {
				return errors.New("--date must be YYYY-MM-DD")
			}

			ctx := context.Background()
			e, cleanup, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			day, err := e.history.Day(ctx, e.userID, date)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Heading(ui.IconClock, "Sleep on "+day.Date))
			if len(day.Sessions) == 0 {
				fmt.Fprintln(out, ui.Muted.Render("no sessions"))
				return nil
			}
			for _, s := range day.Sessions {
				from := s.SleepTime.Local().Format(time.Kitchen)
				if s.IsOpen() {
					fmt.Fprintf(out, "- %s → %s\n", from, ui.Warn.Render("sleeping"))
					continue
				}
				fmt.Fprintf(out, "- %s → %s  %s\n", from, s.WakeTime.Local().Format(time.Kitchen), ui.Muted.Render(ui.Duration(*s.DurationMinutes)))
			}
			fmt.Fprintln(out, ui.LabelValue("Total", ui.Duration(day.TotalMinutes)))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to show as YYYY-MM-DD (default today)")
	return cmd
}

var logTimeLayouts = []string{"2006-01-02 15:04", "2006-01-02T15:04", time.RFC3339}

// parseLogTime reads a wall-clock time in loc, or an RFC 3339 timestamp.
func parseLogTime(v string, loc *time.Location) (time.Time, error) {
	for _, layout := range logTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot read %q, use \"YYYY-MM-DD HH:MM\"", v)
}

func newLogCmd() *cobra.Command {
	var sleepAt, wakeAt string
	cmd := &cobra.Command{
		Use:   "log --sleep <time> --wake <time>",
		Short: "Record a past sleep session (no coins)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if sleepAt == "" || wakeAt == "" {
				return errors.New("--sleep and --wake are required")
			}

			ctx := context.Background()
			e, cleanup, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sleep, err := parseLogTime(sleepAt, e.loc)
			if err != nil {
				return fmt.Errorf("--sleep: %w", err)
			}
			wake, err := parseLogTime(wakeAt, e.loc)
			if err != nil {
				return fmt.Errorf("--wake: %w", err)
			}

			s, err := e.history.Add(ctx, e.userID, sleep, wake)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Heading(ui.IconClock, "Logged sleep on "+s.Date))
			fmt.Fprintln(out, ui.LabelValue("Slept", ui.Duration(*s.DurationMinutes)))
			return nil
		},
	}
	cmd.Flags().StringVar(&sleepAt, "sleep", "", "when you fell asleep, \"YYYY-MM-DD HH:MM\"")
	cmd.Flags().StringVar(&wakeAt, "wake", "", "when you woke up, \"YYYY-MM-DD HH:MM\"")
	return cmd
}
