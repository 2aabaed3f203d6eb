package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"hikfetch/internal/api"
)

const waitPollInterval = time.Second

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		startFlag  string
		endFlag    string
		channel    int
		media      string
		wait       bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue a retrieval of every recording in a time range",
		Example: `  hikfetch submit --start "2024-03-01 10:00" --end "2024-03-01 11:30"
  hikfetch submit --start "2024-03-01 08:00" --end "2024-03-01 09:00" --channel 2 --media photo --wait`,
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, startTime, err := splitDateTime(startFlag)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			endDate, endTime, err := splitDateTime(endFlag)
			if err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			req := api.SubmitRequest{
				StartDate: startDate,
				StartTime: startTime,
				EndDate:   endDate,
				EndTime:   endTime,
				Channel:   channel,
				Media:     media,
			}

			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Submit(cmd.Context(), req)
				if err != nil {
					return err
				}
				job := resp.Job
				if wait {
					final, err := waitForJob(cmd, client, resp.JobID)
					if err != nil {
						return err
					}
					job = *final
				}
				if jsonOutput {
					return writeJSON(cmd, job)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued job %s (%s)\n", job.DisplayCode, job.ID)
				if wait {
					fmt.Fprintf(out, "Finished: %s", stateLabel(job.State))
					if outcome := jobOutcome(job); outcome != "" {
						fmt.Fprintf(out, " - %s", outcome)
					}
					fmt.Fprintln(out)
					if job.State == "failed" {
						return fmt.Errorf("job %s failed: %s", job.DisplayCode, job.Error)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "Range start as device-local \"YYYY-MM-DD HH:MM[:SS]\"")
	cmd.Flags().StringVar(&endFlag, "end", "", "Range end as device-local \"YYYY-MM-DD HH:MM[:SS]\"")
	cmd.Flags().IntVar(&channel, "channel", 0, "Camera channel (defaults to the configured channel)")
	cmd.Flags().StringVar(&media, "media", "video", "Media to retrieve: video or photo")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the job to finish, printing progress")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

// splitDateTime separates "2024-03-01 10:00" (or "2024-03-01T10:00") into
// its date and time parts.
func splitDateTime(value string) (string, string, error) {
	value = strings.TrimSpace(value)
	date, clock, ok := strings.Cut(value, " ")
	if !ok {
		date, clock, ok = strings.Cut(value, "T")
	}
	if !ok || strings.TrimSpace(date) == "" || strings.TrimSpace(clock) == "" {
		return "", "", fmt.Errorf("expected \"YYYY-MM-DD HH:MM[:SS]\", got %q", value)
	}
	return strings.TrimSpace(date), strings.TrimSpace(clock), nil
}

func waitForJob(cmd *cobra.Command, client *api.Client, id string) (*api.Job, error) {
	out := cmd.ErrOrStderr()
	lastProgress := ""
	for {
		job, err := client.GetJob(cmd.Context(), id)
		if err != nil {
			return nil, err
		}
		if progress := formatProgress(*job); progress != lastProgress && job.State == "running" {
			fmt.Fprintf(out, "%s %s %s\n", job.DisplayCode, stateLabel(job.State), progress)
			lastProgress = progress
		}
		if job.Terminal() {
			return job, nil
		}
		if err := sleepContext(cmd.Context(), waitPollInterval); err != nil {
			return nil, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
