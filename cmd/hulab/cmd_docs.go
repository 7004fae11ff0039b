package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xiangenhu/polyuhulab-sub001/internal/app"
)

// docsCmd groups the document commands
var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List and upload project documents",
	Long: `List and upload documents attached to a research project.

Subcommands:
  list    - List the documents of a project
  upload  - Upload a local file to a project`,
}

var docsListCmd = &cobra.Command{
	Use:   "list PROJECT",
	Short: "List the documents of a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsList,
}

var docsUploadCmd = &cobra.Command{
	Use:   "upload PROJECT FILE",
	Short: "Upload a local file to a project",
	Args:  cobra.ExactArgs(2),
	RunE:  runDocsUpload,
}

func init() {
	docsCmd.AddCommand(docsListCmd, docsUploadCmd)
	rootCmd.AddCommand(docsCmd)
}

func runDocsList(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *app.Client) error {
		space, err := selectProject(ctx, client, args[0])
		if err != nil {
			return err
		}

		docs := space.Documents()
		if jsonOut {
			return printJSON(docs)
		}
		if len(docs) == 0 {
			fmt.Println("No documents found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSIZE\tUPLOADED")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Name, humanSize(d.Size), humanTime(d.UploadedAt))
		}
		return w.Flush()
	})
}

func runDocsUpload(cmd *cobra.Command, args []string) error {
	return withClient(func(ctx context.Context, client *app.Client) error {
		space, err := selectProject(ctx, client, args[0])
		if err != nil {
			return err
		}

		path := args[1]
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()

		doc, err := space.UploadDocument(ctx, filepath.Base(path), f)
		if err != nil {
			return fmt.Errorf("upload document: %w", err)
		}

		if jsonOut {
			return printJSON(doc)
		}
		fmt.Printf("Uploaded %s (%s, %s)\n", doc.Name, doc.ID, humanSize(doc.Size))
		return nil
	})
}
