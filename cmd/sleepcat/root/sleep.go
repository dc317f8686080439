package root

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourname/sleepcat/internal"
	"github.com/yourname/sleepcat/internal/service"
	"github.com/yourname/sleepcat/internal/ui"
)

func newSleepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sleep",
		Short: "Start a sleep session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, cleanup, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := e.lifecycle.Start(ctx, e.userID)
			if errors.Is(err, internal.ErrAlreadySleeping) {
				return errors.New("already sleeping; run `sleepcat wake` first")
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Heading(ui.IconMoon, "Good night"))
			fmt.Fprintln(out, ui.LabelValue("Session", s.ID))
			fmt.Fprintln(out, ui.LabelValue("Since", s.SleepTime.Local().Format(time.Kitchen)))
			return nil
		},
	}
}

func newWakeCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "wake",
		Short: "End the current sleep session and collect coins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, cleanup, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			var res *service.EndResult
			if sessionID != "" {
				res, err = e.lifecycle.EndOwned(ctx, e.userID, sessionID)
			} else {
				res, err = e.lifecycle.EndPending(ctx, e.userID)
			}
			out := cmd.OutOrStdout()
			switch {
			case errors.Is(err, internal.ErrNoPendingSession):
				fmt.Fprintln(out, ui.Warn.Render(ui.IconWarn+" not sleeping, nothing to end"))
				return nil
			case errors.Is(err, internal.ErrInvalidInterval):
				fmt.Fprintln(out, ui.Warn.Render(ui.IconWarn+" wake time was not after sleep time; no coins this time"))
				return nil
			case err != nil:
				return err
			}

			fmt.Fprintln(out, ui.Heading(ui.IconSun, "Good morning"))
			fmt.Fprintln(out, ui.LabelValue("Slept", ui.Duration(res.DurationMinutes)))
			fmt.Fprintln(out, ui.LabelValue("Earned", ui.Coins(res.RewardCoins)))
			fmt.Fprintln(out, ui.LabelValue("Balance", ui.Coins(res.Balance)))
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "end this session instead of the pending one")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a sleep session is in progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			e, cleanup, err := openEnv(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			s, err := e.lifecycle.Pending(ctx, e.userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if s == nil {
				fmt.Fprintln(out, ui.Heading(ui.IconCat, "Awake"))
				return nil
			}
			fmt.Fprintln(out, ui.Heading(ui.IconMoon, "Sleeping"))
			fmt.Fprintln(out, ui.LabelValue("Session", s.ID))
			fmt.Fprintln(out, ui.LabelValue("Since", s.SleepTime.Local().Format(time.Kitchen)))
			fmt.Fprintln(out, ui.LabelValue("So far", ui.Duration(int(time.Since(s.SleepTime).Minutes()))))
			return nil
		},
	}
}
