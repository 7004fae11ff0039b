package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/xiangenhu/polyuhulab-sub001/internal/adapters/rest"
	"github.com/xiangenhu/polyuhulab-sub001/internal/app"
	"github.com/xiangenhu/polyuhulab-sub001/internal/domain/model"
)

var (
	projectsSearch     string
	projectTitle       string
	projectDescription string
	projectStatus      string
)

// projectsCmd groups the research project commands
var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "Browse and manage research projects",
	Long: `Browse and manage research projects on the portal.

Subcommands:
  list    - List projects, optionally filtered by --search
  show    - Show one project with its tasks and documents
  create  - Create a project
  rm      - Delete a project`,
	RunE: runProjectsList,
}

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List research projects",
	RunE:  runProjectsList,
}

var projectsShowCmd = &cobra.Command{
	Use:   "show PROJECT",
	Short: "Show one project with its tasks and documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsShow,
}

var projectsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a research project",
	RunE:  runProjectsCreate,
}

var projectsRemoveCmd = &cobra.Command{
	Use:   "rm PROJECT",
	Short: "Delete a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectsRemove,
}

func init() {
	projectsListCmd.Flags().StringVar(&projectsSearch, "search", "", "Filter projects with a search query")
	projectsCreateCmd.Flags().StringVar(&projectTitle, "title", "", "Project title (required)")
	projectsCreateCmd.Flags().StringVar(&projectDescription, "description", "", "Project description")
	projectsCreateCmd.Flags().StringVar(&projectStatus, "status", "", "Project status, e.g. active")
	_ = projectsCreateCmd.MarkFlagRequired("title")

	projectsCmd.AddCommand(projectsListCmd, projectsShowCmd, projectsCreateCmd, projectsRemoveCmd)
	rootCmd.AddCommand(projectsCmd)
}

func runProjectsList(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *app.Client) error {
		space := client.Workspace()

		var (
			projects []model.Project
			err      error
		)
		if projectsSearch != "" {
			projects, err = space.Search(ctx, projectsSearch)
		} else {
			projects, err = space.Projects(ctx, true)
		}
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(projects)
		}
		if len(projects) == 0 {
			fmt.Println("No projects found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tUPDATED")
		for _, p := range projects {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Title, orDash(p.Status), humanTime(p.UpdatedAt))
		}
		return w.Flush()
	})
}

func runProjectsShow(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *app.Client) error {
		space := client.Workspace()
		project, err := space.Select(ctx, args[0])
		if err != nil {
			return fmt.Errorf("select project: %w", err)
		}

		tasks := space.Tasks()
		docs := space.Documents()

		if jsonOut {
			return printJSON(struct {
				Project   model.Project    `json:"project"`
				Tasks     []model.Task     `json:"tasks"`
				Documents []model.Document `json:"documents"`
			}{project, tasks, docs})
		}

		fmt.Printf("%s  %s\n", project.ID, project.Title)
		if project.Status != "" {
			fmt.Printf("Status: %s\n", project.Status)
		}
		if !project.UpdatedAt.IsZero() {
			fmt.Printf("Updated: %s\n", humanTime(project.UpdatedAt))
		}
		if project.Description != "" {
			fmt.Printf("\n%s\n", project.Description)
		}

		fmt.Printf("\nTasks (%d):\n", len(tasks))
		for _, t := range tasks {
			mark := " "
			if t.Completed {
				mark = "x"
			}
			fmt.Printf("  [%s] %s  %s\n", mark, t.ID, t.Title)
		}

		fmt.Printf("\nDocuments (%d):\n", len(docs))
		for _, d := range docs {
			fmt.Printf("  %s  %s (%s)\n", d.ID, d.Name, humanSize(d.Size))
		}
		return nil
	})
}

func runProjectsCreate(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *app.Client) error {
		project, err := client.Workspace().CreateProject(ctx, rest.ProjectRequest{
			Title:       projectTitle,
			Description: projectDescription,
			Status:      projectStatus,
		})
		if err != nil {
			return fmt.Errorf("create project: %w", err)
		}

		if jsonOut {
			return printJSON(project)
		}
		fmt.Printf("Created project %s (%s)\n", project.Title, project.ID)
		return nil
	})
}

func runProjectsRemove(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *app.Client) error {
		if err := client.Workspace().DeleteProject(ctx, args[0]); err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		fmt.Printf("Deleted project %s\n", args[0])
		return nil
	})
}

// humanTime renders a timestamp for table output.
func humanTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// humanSize renders a byte count for table output.
func humanSize(n int64) string {
	if n <= 0 {
		return "-"
	}
	return humanize.Bytes(uint64(n))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
