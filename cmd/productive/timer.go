package main

import (
	"context"
	"fmt"

	"productive-cloud/internal/crm"

	"github.com/spf13/cobra"
)

func (a *app) editTimer(ctx context.Context, fn func(t *crm.Timer) error) error {
	payload, err := a.loadCRM(ctx)
	if err != nil {
		return err
	}
	if err := fn(payload.EnsureTimer()); err != nil {
		return err
	}
	return a.saveCRM(ctx, payload)
}

func timerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Work timer and saved sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the timer, today's total and saved sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := a.loadCRM(cmd.Context())
			if err != nil {
				return err
			}
			t := payload.EnsureTimer()
			at := now()

			state := "stopped"
			if t.Running {
				state = "running"
			} else if t.Paused > 0 {
				state = "paused"
			}
			fmt.Printf("Timer:  %s (%s)\n", crm.FormatDuration(t.Elapsed(at)), state)
			fmt.Printf("Today:  %s\n", crm.FormatDuration(t.TotalOn(at)))

			for _, s := range t.SavedSessions {
				fmt.Printf("  %-24s %s  %s  %s\n", s.Name, crm.FormatDuration(s.Duration), s.Date.Local().Format("2006-01-02 15:04"), s.ID)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "Start or resume the timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editTimer(cmd.Context(), func(t *crm.Timer) error {
				t.Start(now())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "pause",
		Short: "Pause the timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editTimer(cmd.Context(), func(t *crm.Timer) error {
				t.Pause(now())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Stop the timer and add the session to today's total",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editTimer(cmd.Context(), func(t *crm.Timer) error {
				t.Reset(now())
				return nil
			})
		},
	})

	var name string
	save := &cobra.Command{
		Use:   "save",
		Short: "Save the current session and reset the timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editTimer(cmd.Context(), func(t *crm.Timer) error {
				s, err := t.SaveSession(name, now())
				if err != nil {
					return err
				}
				fmt.Printf("Saved %q (%s)\n", s.Name, crm.FormatDuration(s.Duration))
				return nil
			})
		},
	}
	save.Flags().StringVar(&name, "name", "", "session name")
	cmd.AddCommand(save)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a saved session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editTimer(cmd.Context(), func(t *crm.Timer) error {
				return t.DeleteSession(args[0])
			})
		},
	})

	return cmd
}
