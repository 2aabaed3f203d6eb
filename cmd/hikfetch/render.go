package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"hikfetch/internal/api"
	"hikfetch/internal/preflight"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

var statusStyles = map[statusKind]struct {
	label string
	color text.Colors
}{
	statusInfo:  {"INFO", text.Colors{text.FgBlue}},
	statusOK:    {"OK", text.Colors{text.FgGreen}},
	statusWarn:  {"WARN", text.Colors{text.FgYellow}},
	statusError: {"ERROR", text.Colors{text.FgRed}},
}

var titleCaser = cases.Title(language.Und)

// renderStatusLine formats "  Label:   [KIND] message" with the label column
// padded to a fixed width.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	line := fmt.Sprintf("  %-20s [%s]", label+":", style.label)
	if message != "" {
		line += " " + message
	}
	if colorize {
		return style.color.Sprint(line)
	}
	return line
}

func renderSectionHeader(title string, colorize bool) []string {
	heading := "== " + strings.TrimSpace(title) + " =="
	lines := []string{heading, strings.Repeat("-", len(heading))}
	if colorize {
		for i := range lines {
			lines[i] = text.Colors{text.FgBlue, text.Bold}.Sprint(lines[i])
		}
	}
	return lines
}

// isTerminal reports whether writer is an interactive terminal. Tables and
// colors are only used when it is.
func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// stateLabel renders a job state for humans ("pending" -> "Pending").
func stateLabel(state string) string {
	state = strings.TrimSpace(state)
	if state == "" {
		return "Unknown"
	}
	return titleCaser.String(state)
}

func stateKind(state string) statusKind {
	switch state {
	case "completed":
		return statusOK
	case "failed":
		return statusError
	case "cancelled":
		return statusWarn
	default:
		return statusInfo
	}
}

func checkKind(result preflight.Result) statusKind {
	if result.Passed {
		return statusOK
	}
	return statusError
}

func apiCheckKind(result api.CheckResult) statusKind {
	if result.Passed {
		return statusOK
	}
	return statusError
}

func formatProgress(job api.Job) string {
	if job.Total <= 0 {
		if job.State == "pending" {
			return "-"
		}
		return fmt.Sprintf("%d", job.Progress)
	}
	return fmt.Sprintf("%d/%d (%.0f%%)", job.Progress, job.Total, job.Percent())
}

func jobOutcome(job api.Job) string {
	switch {
	case job.Error != "":
		return job.Error
	case job.Result != nil:
		return fmt.Sprintf("%d file(s)", job.Result.Files)
	case job.CurrentFile != "":
		return job.CurrentFile
	default:
		return ""
	}
}

func writeLines(w io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
