package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"hikfetch/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status, job counts, and preflight results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				writeLines(out, renderDaemonStatus(status, isTerminal(out)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func renderDaemonStatus(status *api.DaemonStatus, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	if status.Running {
		lines = append(lines, renderStatusLine("Dispatch", statusOK, fmt.Sprintf("running (pid %d)", status.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Dispatch", statusWarn, "stopped", colorize))
	}
	lines = append(lines,
		renderStatusLine("Device", statusInfo, status.DeviceURL, colorize),
		renderStatusLine("Archive", statusInfo, status.ArchiveDir, colorize),
		renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize),
	)

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Jobs", colorize)...)
	if len(status.JobCounts) == 0 {
		lines = append(lines, renderStatusLine("Jobs", statusInfo, "none", colorize))
	} else {
		states := make([]string, 0, len(status.JobCounts))
		for state := range status.JobCounts {
			states = append(states, state)
		}
		sort.Strings(states)
		for _, state := range states {
			lines = append(lines, renderStatusLine(stateLabel(state), stateKind(state), fmt.Sprintf("%d", status.JobCounts[state]), colorize))
		}
	}

	if status.Catalog != nil {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Catalog", colorize)...)
		if status.Catalog.Error != "" {
			lines = append(lines, renderStatusLine("Catalog", statusError, status.Catalog.Error, colorize))
		} else {
			summary := fmt.Sprintf("%d file(s), %s", status.Catalog.Files, humanize.IBytes(uint64(max(status.Catalog.Bytes, 0))))
			lines = append(lines, renderStatusLine("Catalog", statusOK, summary, colorize))
		}
		lines = append(lines, renderStatusLine("Database", statusInfo, status.Catalog.Path, colorize))
	}

	if len(status.Preflight) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Preflight", colorize)...)
		for _, check := range status.Preflight {
			lines = append(lines, renderStatusLine(check.Name, apiCheckKind(check), check.Detail, colorize))
		}
	}
	return lines
}
