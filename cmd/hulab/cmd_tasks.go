package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/rest"
	"github.com/xiangenhu/polyuhulab-sub001/internal/app"
	"github.com/xiangenhu/polyuhulab-sub001/internal/workspace"
)

var (
	taskTitle       string
	taskDescription string
)

// tasksCmd groups the task commands
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage tasks inside a project",
	Long: `Manage tasks inside a research project.

Subcommands:
  list  - List the tasks of a project
  add   - Add a task to a project
  done  - Mark a task as completed
  rm    - Delete a task`,
}

var tasksListCmd = &cobra.Command{
	Use:   "list PROJECT",
	Short: "List the tasks of a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksList,
}

var tasksAddCmd = &cobra.Command{
	Use:   "add PROJECT",
	Short: "Add a task to a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksAdd,
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done PROJECT TASK",
	Short: "Mark a task as completed",
	Args:  cobra.ExactArgs(2),
	RunE:  runTasksDone,
}

var tasksRemoveCmd = &cobra.Command{
	Use:   "rm PROJECT TASK",
	Short: "Delete a task",
	Args:  cobra.ExactArgs(2),
	RunE:  runTasksRemove,
}

func init() {
	tasksAddCmd.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
	tasksAddCmd.Flags().StringVar(&taskDescription, "description", "", "Task description")
	_ = tasksAddCmd.MarkFlagRequired("title")

	tasksCmd.AddCommand(tasksListCmd, tasksAddCmd, tasksDoneCmd, tasksRemoveCmd)
	rootCmd.AddCommand(tasksCmd)
}

// selectProject loads a project into the workspace cache so the task
// commands see its tasks.
func selectProject(ctx context.Context, client *app.Client, projectID string) (*workspace.Manager, error) {
	space := client.Workspace()
	if _, err := space.Select(ctx, projectID); err != nil {
		return nil, fmt.Errorf("select project: %w", err)
	}
	return space, nil
}

func runTasksList(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *app.Client) error {
		space, err := selectProject(ctx, client, args[0])
		if err != nil {
			return err
		}

		tasks := space.Tasks()
		if jsonOut {
			return printJSON(tasks)
		}
		if len(tasks) == 0 {
			fmt.Println("No tasks found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDONE\tTITLE\tDUE")
		for _, t := range tasks {
			due := "-"
			if t.DueDate != nil {
				due = humanTime(*t.DueDate)
			}
			done := " "
			if t.Completed {
				done = "x"
			}
			fmt.Fprintf(w, "%s\t[%s]\t%s\t%s\n", t.ID, done, t.Title, due)
		}
		return w.Flush()
	})
}

func runTasksAdd(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *app.Client) error {
		space, err := selectProject(ctx, client, args[0])
		if err != nil {
			return err
		}

		task, err := space.AddTask(ctx, rest.TaskRequest{
			Title:       taskTitle,
			Description: taskDescription,
		})
		if err != nil {
			return fmt.Errorf("add task: %w", err)
		}

		if jsonOut {
			return printJSON(task)
		}
		fmt.Printf("Added task %s (%s)\n", task.Title, task.ID)
		return nil
	})
}

func runTasksDone(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *app.Client) error {
		space, err := selectProject(ctx, client, args[0])
		if err != nil {
			return err
		}

		taskID := args[1]
		for _, t := range space.Tasks() {
			if t.ID == taskID && t.Completed {
				fmt.Printf("Task %s is already completed\n", taskID)
				return nil
			}
		}

		task, err := space.ToggleTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("complete task: %w", err)
		}

		if jsonOut {
			return printJSON(task)
		}
		fmt.Printf("Completed task %s (%s)\n", task.Title, task.ID)
		return nil
	})
}

func runTasksRemove(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *app.Client) error {
		space, err := selectProject(ctx, client, args[0])
		if err != nil {
			return err
		}

		if err := space.RemoveTask(ctx, args[1]); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		fmt.Printf("Deleted task %s\n", args[1])
		return nil
	})
}
