package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"overlaystudio/internal/api"
	"overlaystudio/internal/jobs"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var brief string
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "submit <video-file|url>",
		Short: "Upload a local video or submit a remote one for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.TrimSpace(args[0])
			client := ctx.client()
			var job *jobs.Job
			var err error
			if info, statErr := os.Stat(source); statErr == nil && !info.IsDir() {
				job, err = client.Upload(cmd.Context(), source, brief)
			} else {
				job, err = client.Submit(cmd.Context(), source, brief)
			}
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, api.FromJob(job))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s queued (%s)\n", job.ID, api.SourceLabel(job.Input))
			return nil
		},
	}
	cmd.Flags().StringVarP(&brief, "brief", "b", "", "Creative brief guiding the overlay plan")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := listJobs(cmd.Context(), ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, api.JobListResponse{Items: items})
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Stage", "Progress", "Overlays", "Source", "Updated"},
				jobRows(items),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// listJobs asks the daemon and falls back to the SQLite mirror when it is
// not reachable.
func listJobs(cmdCtx context.Context, ctx *commandContext) ([]api.JobSummary, error) {
	items, err := ctx.client().List(cmdCtx)
	if err == nil {
		return items, nil
	}
	if !daemonUnreachable(err) {
		return nil, err
	}
	cfg, cfgErr := ctx.ensureConfig()
	if cfgErr != nil {
		return nil, cfgErr
	}
	if _, statErr := os.Stat(cfg.DatabasePath()); errors.Is(statErr, os.ErrNotExist) {
		return nil, nil
	}
	store, openErr := jobs.Open(cmdCtx, cfg.DatabasePath())
	if openErr != nil {
		return nil, fmt.Errorf("open job store: %w", openErr)
	}
	defer store.Close()
	all := store.List()
	items = make([]api.JobSummary, 0, len(all))
	for _, job := range all {
		items = append(items, api.FromJob(job))
	}
	return items, nil
}

func jobRows(items []api.JobSummary) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Status,
			item.Stage,
			fmt.Sprintf("%d%%", item.Progress),
			strconv.Itoa(item.Overlays),
			item.Source,
			item.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	return rows
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job with its overlay plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().Job(cmd.Context(), args[0])
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			if jsonOutput {
				return writeJSON(cmd, job)
			}
			printJob(cmd, job)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printJob(cmd *cobra.Command, job *jobs.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Job:      %s\n", job.ID)
	fmt.Fprintf(out, "Status:   %s (%s, %d%%)\n", job.Status, job.Stage, job.Progress)
	fmt.Fprintf(out, "Source:   %s\n", api.SourceLabel(job.Input))
	if job.Brief != "" {
		fmt.Fprintf(out, "Brief:    %s\n", job.Brief)
	}
	if job.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", job.Error)
	}
	if job.SceneQuality != nil {
		fmt.Fprintf(out, "Quality:  %.2f across %d scenes\n", job.SceneQuality.AverageScore, len(job.SceneQuality.SceneScores))
	}
	if job.Output != nil && job.Output.DownloadURL != "" {
		fmt.Fprintf(out, "Download: %s\n", job.Output.DownloadURL)
	}
	for _, warning := range job.Warnings {
		fmt.Fprintf(out, "Warning:  %s\n", warning)
	}
	if len(job.OverlayPlan) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, renderTable(
		[]string{"#", "ID", "Start", "Duration", "Template", "Headline", "Review"},
		overlayRows(job),
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignLeft, alignLeft, alignLeft},
	))
}

func overlayRows(job *jobs.Job) [][]string {
	decisions := map[string]string{}
	cursor := -1
	if review := job.ReviewState; review != nil {
		for _, id := range review.ApprovedIDs {
			decisions[id] = "approved"
		}
		for _, id := range review.RejectedIDs {
			decisions[id] = "rejected"
		}
		if !review.Completed {
			cursor = review.CurrentIndex
		}
	}
	rows := make([][]string, 0, len(job.OverlayPlan))
	for i, event := range job.OverlayPlan {
		decision := decisions[event.ID]
		if i == cursor {
			decision = "<- current"
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			event.ID,
			fmt.Sprintf("%.1fs", event.StartSec),
			fmt.Sprintf("%.1fs", event.DurationSec),
			string(event.Template),
			event.Headline(),
			decision,
		})
	}
	return rows
}

func newReviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "review <job-id> [approve|reject|skip]",
		Short: "Record a decision for the overlay under the review cursor",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := ""
			if len(args) > 1 {
				action = args[1]
			}
			if _, err := jobs.ParseReviewAction(action); err != nil {
				return err
			}
			job, err := ctx.client().Advance(cmd.Context(), args[0], action)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			out := cmd.OutOrStdout()
			if review := job.ReviewState; review != nil && review.Completed {
				fmt.Fprintf(out, "Review complete: %d approved, %d rejected\n", len(review.ApprovedIDs), len(review.RejectedIDs))
				return nil
			}
			if review := job.ReviewState; review != nil && review.CurrentIndex < len(job.OverlayPlan) {
				next := job.OverlayPlan[review.CurrentIndex]
				fmt.Fprintf(out, "Next overlay %d/%d: %s %q at %.1fs\n", review.CurrentIndex+1, len(job.OverlayPlan), next.Template, next.Headline(), next.StartSec)
			}
			return nil
		},
	}
}

func newRefineCommand(ctx *commandContext) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "refine <job-id> <instruction...>",
		Short: "Rewrite one overlay from a natural-language instruction",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var target *int
			if cmd.Flags().Changed("index") {
				target = &index
			}
			instruction := strings.Join(args[1:], " ")
			job, err := ctx.client().Refine(cmd.Context(), args[0], instruction, target)
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Refined job %s (%d overlays)\n", job.ID, len(job.OverlayPlan))
			return nil
		},
	}
	cmd.Flags().IntVarP(&index, "index", "i", 0, "Overlay index to refine (defaults to the review cursor)")
	return cmd
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "render <job-id>",
		Short: "Queue the final render",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := ctx.client().Render(cmd.Context(), args[0])
			if err != nil {
				return ctx.wrapAPIError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Render queued for job %s\n", job.ID)
			return nil
		},
	}
}
