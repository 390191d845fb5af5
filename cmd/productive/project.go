package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"productive-cloud/internal/crm"

	"github.com/spf13/cobra"
)

// editProject loads the crm dataset, applies fn to one project and saves.
func (a *app) editProject(ctx context.Context, id string, fn func(p *crm.Project) error) error {
	payload, err := a.loadCRM(ctx)
	if err != nil {
		return err
	}
	p := payload.FindProject(id)
	if p == nil {
		return fmt.Errorf("project %s: %w", id, crm.ErrNotFound)
	}
	if err := fn(p); err != nil {
		return err
	}
	return a.saveCRM(ctx, payload)
}

func printTasks(list []*crm.Task) {
	crm.Walk(list, func(t *crm.Task, depth int) bool {
		mark := " "
		switch t.Status {
		case crm.StatusDone:
			mark = "x"
		case crm.StatusInProgress:
			mark = "~"
		}
		due := ""
		if t.DueDate != "" {
			due = "  due " + t.DueDate
		}
		fmt.Printf("%s[%s] %s  (%s, %s)%s\n", strings.Repeat("  ", depth), mark, t.Name, t.ID, t.Priority, due)
		return true
	})
}

func projectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects with progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := a.loadCRM(cmd.Context())
			if err != nil {
				return err
			}
			if len(payload.Projects) == 0 {
				fmt.Println("No projects yet.")
				return nil
			}
			for _, p := range payload.Projects {
				fmt.Printf("%-32s %-10s %3d%%  %d/%d tasks  $%.2f  %s\n",
					p.Name, p.Status, p.Progress,
					crm.CountCompleted(p.Tasks), crm.CountAll(p.Tasks), p.Cost, p.ID)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a project and its task tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := a.loadCRM(cmd.Context())
			if err != nil {
				return err
			}
			p := payload.FindProject(args[0])
			if p == nil {
				return fmt.Errorf("project %s: %w", args[0], crm.ErrNotFound)
			}
			fmt.Printf("%s  [%s]  %d%%  cost $%.2f\n", p.Name, p.Status, p.Progress, p.Cost)
			if p.Notes != "" {
				fmt.Printf("Notes: %s\n", p.Notes)
			}
			printTasks(p.Tasks)
			return nil
		},
	})

	var in crm.ProjectInput
	var status string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			payload, err := a.loadCRM(ctx)
			if err != nil {
				return err
			}
			in.Name = args[0]
			in.Status = crm.ProjectStatus(status)
			p, err := crm.NewProject(in, now())
			if err != nil {
				return err
			}
			payload.Projects = append(payload.Projects, p)
			if err := a.saveCRM(ctx, payload); err != nil {
				return err
			}
			fmt.Printf("Created project %s\n", p.ID)
			return nil
		},
	}
	add.Flags().StringVar(&status, "status", "planning", "planning, active or completed")
	add.Flags().Float64Var(&in.Cost, "cost", 0, "project cost")
	add.Flags().StringVar(&in.Notes, "notes", "", "free-form notes")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			payload, err := a.loadCRM(ctx)
			if err != nil {
				return err
			}
			if !payload.RemoveProject(args[0]) {
				return fmt.Errorf("project %s: %w", args[0], crm.ErrNotFound)
			}
			return a.saveCRM(ctx, payload)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status <id> <planning|active|completed>",
		Short: "Change a project's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editProject(cmd.Context(), args[0], func(p *crm.Project) error {
				return crm.SetProjectStatus(p, crm.ProjectStatus(args[1]), now())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a project completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editProject(cmd.Context(), args[0], func(p *crm.Project) error {
				crm.CompleteProject(p, now())
				return nil
			})
		},
	})

	var progress int
	setProgress := &cobra.Command{
		Use:   "progress <id>",
		Short: "Set progress by hand on a project without tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editProject(cmd.Context(), args[0], func(p *crm.Project) error {
				return crm.SetProgress(p, progress, now())
			})
		},
	}
	setProgress.Flags().IntVar(&progress, "value", 0, "progress percentage, 0-100")
	cmd.AddCommand(setProgress)

	return cmd
}

func taskCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks and subtasks of a project",
	}

	var in crm.TaskInput
	var priority, parent string
	add := &cobra.Command{
		Use:   "add <project-id> <name>",
		Short: "Add a task, or a subtask with --parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Name = args[1]
			in.Priority = crm.Priority(priority)
			return a.editProject(cmd.Context(), args[0], func(p *crm.Project) error {
				var (
					t   *crm.Task
					err error
				)
				if parent == "" {
					t, err = crm.AddTask(p, in, now())
				} else {
					t, err = crm.AddSubtask(p, parent, in, now())
				}
				if err != nil {
					return err
				}
				fmt.Printf("Added %s (project now %d%%)\n", t.ID, p.Progress)
				return nil
			})
		},
	}
	add.Flags().StringVar(&parent, "parent", "", "id of the task or subtask to nest under")
	add.Flags().StringVar(&priority, "priority", "medium", "low, medium or high")
	add.Flags().StringVar(&in.Description, "description", "", "task description")
	add.Flags().StringVar(&in.DueDate, "due", "", "due date, YYYY-MM-DD")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "status <project-id> <task-id> <todo|in-progress|done>",
		Short: "Change the status of a task or subtask",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editProject(cmd.Context(), args[0], func(p *crm.Project) error {
				if _, err := crm.UpdateTaskStatus(p, args[1], crm.Status(args[2]), now()); err != nil {
					return err
				}
				fmt.Printf("Project progress: %d%%\n", p.Progress)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <project-id> <task-id>",
		Short: "Remove a task or subtask and everything under it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editProject(cmd.Context(), args[0], func(p *crm.Project) error {
				err := crm.RemoveTask(p, args[1], now())
				if errors.Is(err, crm.ErrNotFound) {
					err = crm.RemoveSubtask(p, args[1], now())
				}
				return err
			})
		},
	})

	var moveParent string
	move := &cobra.Command{
		Use:   "move <project-id> <task-id>",
		Short: "Move a task or subtask, with everything under it, to a new parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editProject(cmd.Context(), args[0], func(p *crm.Project) error {
				return crm.MoveTask(p, args[1], moveParent, now())
			})
		},
	}
	move.Flags().StringVar(&moveParent, "parent", "", "new parent id (default: make it a top-level task)")
	cmd.AddCommand(move)

	return cmd
}
