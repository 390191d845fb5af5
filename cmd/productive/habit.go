package main

import (
	"fmt"
	"time"

	"productive-cloud/internal/habits"

	"github.com/spf13/cobra"
)

func parseDay(s string) (time.Time, error) {
	if s == "" {
		return now(), nil
	}
	d, err := time.Parse(habits.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}

func habitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habit",
		Short: "Track daily habits",
	}

	var date string

	list := &cobra.Command{
		Use:   "list",
		Short: "List habits and the day's completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, err := parseDay(date)
			if err != nil {
				return err
			}
			p, err := a.loadHabits(cmd.Context())
			if err != nil {
				return err
			}
			if len(p.Habits) == 0 {
				fmt.Println("No habits yet.")
				return nil
			}
			for _, h := range p.Habits {
				mark := " "
				if p.Completed(day, h.ID) {
					mark = "x"
				}
				fmt.Printf("[%s] %-24s %-10s %s\n", mark, h.Name, h.Category, h.ID)
			}
			fmt.Printf("%s: %d%% complete\n", habits.DateKey(day), p.DailyCompletion(day))
			return nil
		},
	}
	list.Flags().StringVar(&date, "date", "", "day to show, YYYY-MM-DD (default today)")
	cmd.AddCommand(list)

	var category, frequency string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a habit (at most 10)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.loadHabits(ctx)
			if err != nil {
				return err
			}
			h, err := p.AddHabit(args[0], category, frequency, now())
			if err != nil {
				return err
			}
			if err := a.saveHabits(ctx, p); err != nil {
				return err
			}
			fmt.Printf("Added habit %s\n", h.ID)
			return nil
		},
	}
	add.Flags().StringVar(&category, "category", "", "habit category")
	add.Flags().StringVar(&frequency, "frequency", "daily", "how often")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a habit and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, err := a.loadHabits(ctx)
			if err != nil {
				return err
			}
			if err := p.RemoveHabit(args[0]); err != nil {
				return err
			}
			return a.saveHabits(ctx, p)
		},
	})

	var toggleDate string
	toggle := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Mark a habit done or not done for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			day, err := parseDay(toggleDate)
			if err != nil {
				return err
			}
			p, err := a.loadHabits(ctx)
			if err != nil {
				return err
			}
			done, err := p.Toggle(day, args[0])
			if err != nil {
				return err
			}
			if err := a.saveHabits(ctx, p); err != nil {
				return err
			}
			fmt.Printf("%s: done=%t, day %d%% complete\n", habits.DateKey(day), done, p.DailyCompletion(day))
			return nil
		},
	}
	toggle.Flags().StringVar(&toggleDate, "date", "", "day, YYYY-MM-DD (default today)")
	cmd.AddCommand(toggle)

	return cmd
}
