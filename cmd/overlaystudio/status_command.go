package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"overlaystudio/internal/api"
	"overlaystudio/internal/deps"
	"overlaystudio/internal/preflight"
)

type statusReport struct {
	Daemon       *api.DaemonStatus  `json:"daemon,omitempty"`
	DaemonError  string             `json:"daemonError,omitempty"`
	Checks       []preflight.Result `json:"checks"`
	Dependencies []deps.Status      `json:"dependencies"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, directory, provider and dependency health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{
				Checks:       preflight.RunAll(cmd.Context(), cfg),
				Dependencies: preflight.CheckSystemDeps(cfg),
			}
			if status, err := ctx.client().Status(cmd.Context()); err == nil {
				report.Daemon = &status
			} else {
				report.DaemonError = err.Error()
			}

			if jsonOutput {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range statusLines(report, colorize) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func statusLines(report statusReport, colorize bool) []string {
	lines := renderSectionHeader("Daemon", colorize)
	if report.Daemon == nil {
		lines = append(lines, renderStatusLine("Daemon", statusError, "Not running", colorize))
	} else {
		wf := report.Daemon.Workflow
		lines = append(lines,
			renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", report.Daemon.PID), colorize),
			renderStatusLine("Queue", statusInfo, fmt.Sprintf("%d/%d tasks", wf.QueueDepth, wf.QueueCapacity), colorize),
		)
		if wf.LastError != "" {
			lines = append(lines, renderStatusLine("Last error", statusWarn, wf.LastError, colorize))
		}
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Checks", colorize)...)
	for _, check := range report.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
	lines = append(lines, dependencyLines(report.Dependencies, colorize)...)
	return lines
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses)+1)
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	if missing := deps.Missing(statuses); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, dep := range missing {
			names = append(names, dep.Name)
		}
		lines = append(lines, renderStatusLine("Missing dependencies", statusWarn, strings.Join(names, ", "), colorize))
	}
	return lines
}
