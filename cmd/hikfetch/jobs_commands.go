package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hikfetch/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and cancel retrieval jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var stateFilter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs known to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				jobs, err := client.ListJobs(cmd.Context())
				if err != nil {
					return err
				}
				if filter := strings.ToLower(strings.TrimSpace(stateFilter)); filter != "" {
					filtered := jobs[:0]
					for _, job := range jobs {
						if job.State == filter {
							filtered = append(filtered, job)
						}
					}
					jobs = filtered
				}
				if jsonOutput {
					if jobs == nil {
						jobs = []api.Job{}
					}
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprint(out, renderJobs(jobs, isTerminal(out)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	cmd.Flags().StringVar(&stateFilter, "state", "", "Only show jobs in this state")
	return cmd
}

func renderJobs(jobs []api.Job, tty bool) string {
	list := newListing(
		column{title: "Code"},
		column{title: "State"},
		column{title: "Channel", numeric: true},
		column{title: "Media"},
		column{title: "Start"},
		column{title: "End"},
		column{title: "Progress"},
		column{title: "Outcome"},
	)
	for _, job := range jobs {
		list.add(job.DisplayCode, stateLabel(job.State), job.Channel, job.Media,
			job.Start, job.End, formatProgress(job), jobOutcome(job))
	}
	return list.render(tty) + "\n"
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := resolveJob(cmd, client, args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				out := cmd.OutOrStdout()
				colorize := isTerminal(out)
				writeLines(out, renderSectionHeader("Job "+job.DisplayCode, colorize))
				lines := []string{
					renderStatusLine("State", stateKind(job.State), stateLabel(job.State), colorize),
					renderStatusLine("ID", statusInfo, job.ID, colorize),
					renderStatusLine("Range", statusInfo, job.Start+" - "+job.End, colorize),
					renderStatusLine("Channel", statusInfo, fmt.Sprintf("%d (%s)", job.Channel, job.Media), colorize),
					renderStatusLine("Progress", statusInfo, formatProgress(*job), colorize),
				}
				if job.CurrentFile != "" {
					lines = append(lines, renderStatusLine("Current file", statusInfo, job.CurrentFile, colorize))
				}
				if job.Error != "" {
					lines = append(lines, renderStatusLine("Error", stateKind(job.State), job.Error, colorize))
				}
				if job.Result != nil {
					lines = append(lines, renderStatusLine("Files", statusOK, fmt.Sprintf("%d", job.Result.Files), colorize))
				}
				lines = append(lines, renderStatusLine("Created", statusInfo, job.CreatedAt, colorize))
				if job.StartedAt != "" {
					lines = append(lines, renderStatusLine("Started", statusInfo, job.StartedAt, colorize))
				}
				if job.CompletedAt != "" {
					lines = append(lines, renderStatusLine("Finished", statusInfo, job.CompletedAt, colorize))
				}
				if job.CancelRequested {
					lines = append(lines, renderStatusLine("Cancel requested", statusWarn, "yes", colorize))
				}
				writeLines(out, lines)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := resolveJob(cmd, client, args[0])
				if err != nil {
					return err
				}
				resp, err := client.CancelJob(cmd.Context(), job.ID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Job.State == "cancelled" {
					fmt.Fprintf(out, "Cancelled job %s\n", resp.Job.DisplayCode)
					return nil
				}
				fmt.Fprintf(out, "Job %s already finished (%s)\n", resp.Job.DisplayCode, stateLabel(resp.Job.State))
				return nil
			})
		},
	}
}

// resolveJob accepts a full job id or a display code.
func resolveJob(cmd *cobra.Command, client *api.Client, ref string) (*api.Job, error) {
	ref = strings.TrimSpace(ref)
	job, err := client.GetJob(cmd.Context(), ref)
	if err == nil {
		return job, nil
	}
	if !api.IsNotFound(err) {
		return nil, err
	}
	jobs, listErr := client.ListJobs(cmd.Context())
	if listErr != nil {
		return nil, listErr
	}
	for _, candidate := range jobs {
		if strings.EqualFold(candidate.DisplayCode, ref) {
			return &candidate, nil
		}
	}
	return nil, fmt.Errorf("job %q not found", ref)
}
