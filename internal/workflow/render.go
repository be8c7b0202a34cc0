package workflow

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/overlay"
	"overlaystudio/internal/render"
	"overlaystudio/internal/scene"
)

func (m *Manager) render(ctx context.Context, logger *slog.Logger, id string) error {
	job, err := m.begin(ctx, id, jobs.BeginRender)
	if err != nil {
		return err
	}
	ctx = withStage(ctx, jobs.StageRendering)
	if err := m.runRender(ctx, logger, job); err != nil {
		m.handleTaskFailure(ctx, logger, TaskRender, jobs.StageRendering, id, err)
		return err
	}
	return nil
}

func (m *Manager) runRender(ctx context.Context, logger *slog.Logger, job *jobs.Job) error {
	if !job.Input.Ready() {
		media, err := m.svc.Ingester.Fetch(ctx, job.ID, job.Input)
		if err != nil {
			return err
		}
		updated, err := m.store.Update(ctx, job.ID, func(j *jobs.Job) error {
			j.Input.Path = media.Path
			j.Input.SizeBytes = media.SizeBytes
			j.Input.MimeType = media.MimeType
			return nil
		})
		if err != nil {
			return err
		}
		job = updated
	}
	video := jobs.VideoInfo{}
	if job.Video != nil {
		video = *job.Video
	} else {
		var warnings []string
		video, warnings = m.svc.Prober.Probe(ctx, job.Input.Path)
		if _, err := m.store.Update(ctx, job.ID, func(j *jobs.Job) error {
			j.Video = &video
			j.AddWarnings(warnings...)
			return nil
		}); err != nil {
			return err
		}
	}

	props := render.NewProps(m.videoURL(job.Input), video, m.cfg.Render.FPS)
	events := job.RenderEvents()
	scenes := m.renderScenes(job, events)
	if (m.cfg.Render.UseSceneGraph && len(scenes) > 0) || len(events) == 0 {
		props.Scenes = scenes
	} else {
		props.Events = events
	}

	dest := filepath.Join(m.cfg.Paths.RendersDir, render.OutputName(job.ID))
	logger.Info("render started",
		logging.String(logging.FieldEventType, "render_start"),
		logging.Int("overlays", len(props.Events)),
		logging.Int("scenes", len(props.Scenes)),
		logging.Int("duration_frames", props.DurationInFrames),
		logging.String("output", dest),
	)

	progress := m.renderProgress(ctx, logger, job.ID, job.Progress)
	if err := m.svc.Compositor.Render(ctx, props, dest, progress); err != nil {
		return err
	}

	filename := filepath.Base(dest)
	output := jobs.Output{
		Path:        dest,
		Filename:    filename,
		DownloadURL: m.publicURL("renders", filename),
	}
	if _, err := m.store.Update(ctx, job.ID, func(j *jobs.Job) error {
		return jobs.CompleteRender(j, output)
	}); err != nil {
		return err
	}
	logger.Info("render complete",
		logging.String(logging.FieldEventType, "render_complete"),
		logging.String("download_url", output.DownloadURL),
	)
	return nil
}

// renderScenes returns the scene plan to render. Once the reviewer approved a
// subset or edited the plan, scenes are lowered again from the events that
// will actually be rendered and pass through the same gate as analysis.
func (m *Manager) renderScenes(job *jobs.Job, events []overlay.Event) []scene.Scene {
	edited := len(job.RefinementHistory) > 0 ||
		(job.ReviewState != nil && len(job.ReviewState.ApprovedIDs) > 0 && len(events) < len(job.OverlayPlan))
	if !edited || len(events) == 0 {
		return scene.CloneAll(job.ScenePlan)
	}
	gated := m.gate.Optimize(sceneInput(nil, events, job.Transcript, job.DurationSec()))
	if len(gated.Scenes) == 0 {
		return scene.CloneAll(job.ScenePlan)
	}
	return gated.Scenes
}

// renderProgress returns a compositor callback that raises the job progress.
// Values that would not increase the progress are ignored.
func (m *Manager) renderProgress(ctx context.Context, logger *slog.Logger, id string, start int) func(float64) {
	var (
		mu   sync.Mutex
		last = start
	)
	return func(fraction float64) {
		value, ok := jobs.RenderProgress(fraction)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if value <= last {
			return
		}
		last = value
		if _, err := m.store.Update(ctx, id, func(j *jobs.Job) error {
			if j.Status == jobs.StatusRendering && value > j.Progress {
				j.Progress = value
			}
			return nil
		}); err != nil {
			logger.Warn("failed to record render progress", logging.Error(err))
		}
	}
}

// videoURL is the address the compositor loads the source from. Remote blob
// sources are passed through; everything else is served from /media.
func (m *Manager) videoURL(input jobs.Input) string {
	if input.Kind == jobs.SourceRemote && strings.TrimSpace(input.SourceURL) != "" {
		return input.SourceURL
	}
	return m.publicURL("media", filepath.Base(input.Path))
}

func (m *Manager) publicURL(prefix, filename string) string {
	base := strings.TrimRight(m.cfg.Paths.BaseURL, "/")
	return base + "/" + prefix + "/" + url.PathEscape(filename)
}

func sceneInput(candidate json.RawMessage, events []overlay.Event, transcript *jobs.Transcript, durationSec float64) scene.GateInput {
	return scene.GateInput{
		Candidate:      candidate,
		FallbackEvents: events,
		Words:          transcript.Spans(),
		DurationSec:    durationSec,
	}
}
