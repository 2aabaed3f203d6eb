package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hikfetch/internal/api"
)

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Browse the catalog of retrieved files",
	}
	archiveCmd.AddCommand(newArchiveListCommand(ctx))
	return archiveCmd
}

func newArchiveListCommand(ctx *commandContext) *cobra.Command {
	var (
		jobRef     string
		limit      int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived files, newest recording first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				jobID := jobRef
				if jobRef != "" {
					job, err := resolveJob(cmd, client, jobRef)
					if err != nil {
						return err
					}
					jobID = job.ID
				}
				files, err := client.Archive(cmd.Context(), jobID, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					if files == nil {
						files = []api.ArchiveEntry{}
					}
					return writeJSON(cmd, files)
				}
				out := cmd.OutOrStdout()
				if len(files) == 0 {
					fmt.Fprintln(out, "No archived files")
					return nil
				}
				list := newListing(
					column{title: "Start"},
					column{title: "End"},
					column{title: "Channel", numeric: true},
					column{title: "Media"},
					column{title: "Size", numeric: true},
					column{title: "Path"},
				)
				for _, file := range files {
					list.add(file.Start, file.End, file.Channel, file.Media,
						humanize.IBytes(uint64(max(file.SizeBytes, 0))), file.Path)
				}
				list.write(out)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&jobRef, "job", "", "Only files retrieved by this job (id or display code)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of files to list")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}
