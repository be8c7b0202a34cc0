package jobs

import (
	"slices"
	"strings"
	"time"

	"overlaystudio/internal/overlay"
	"overlaystudio/internal/scene"
)

// SourceKind describes where the job's video comes from.
type SourceKind string

const (
	SourceUpload  SourceKind = "upload"
	SourceYouTube SourceKind = "youtube"
	SourceRemote  SourceKind = "remote"
	SourceObject  SourceKind = "object"
)

// Input describes the submitted video. Path is empty until the source has been
// ingested to local disk.
type Input struct {
	Kind         SourceKind `json:"kind"`
	SourceURL    string     `json:"sourceUrl,omitempty"`
	OriginalName string     `json:"originalName,omitempty"`
	Path         string     `json:"path,omitempty"`
	SizeBytes    int64      `json:"sizeBytes,omitempty"`
	MimeType     string     `json:"mimeType,omitempty"`
}

// Ready reports whether the input has a local file.
func (i Input) Ready() bool {
	return strings.TrimSpace(i.Path) != ""
}

// VideoInfo is the probed geometry of the input video.
type VideoInfo struct {
	DurationSec float64 `json:"durationSec"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

// Word is a single timed transcript token.
type Word struct {
	Text     string  `json:"text"`
	StartSec float64 `json:"startSec"`
	EndSec   float64 `json:"endSec"`
}

// Transcript holds the recognised speech and where it came from.
type Transcript struct {
	Text   string `json:"text"`
	Words  []Word `json:"words"`
	Source string `json:"source"`
}

// Spans returns the word timings in the form the scene aligner consumes.
func (t *Transcript) Spans() []scene.Span {
	if t == nil {
		return nil
	}
	spans := make([]scene.Span, 0, len(t.Words))
	for _, w := range t.Words {
		spans = append(spans, scene.Span{StartSec: w.StartSec, EndSec: w.EndSec})
	}
	return spans
}

// Insight is a narratively important moment detected in the transcript.
type Insight struct {
	ID                   string           `json:"id"`
	TimeSec              float64          `json:"timeSec"`
	Topic                string           `json:"topic"`
	NarrativeRole        overlay.Intent   `json:"narrativeRole"`
	TranscriptSnippet    string           `json:"transcriptSnippet"`
	WhyImportant         string           `json:"whyImportant"`
	ExpectedImpact       string           `json:"expectedImpact"`
	AnimationDescription string           `json:"animationDescription"`
	SuggestedTemplate    overlay.Template `json:"suggestedTemplate"`
	Confidence           float64          `json:"confidence"`
}

// Output describes the rendered artifact.
type Output struct {
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"downloadUrl"`
}

// RefinementKind distinguishes history entries.
type RefinementKind string

const (
	RefinementInstruction RefinementKind = "refine"
	RefinementOverrides   RefinementKind = "overrides"
)

// Refinement is one entry of the plan edit audit log.
type Refinement struct {
	At          time.Time      `json:"at"`
	Kind        RefinementKind `json:"kind"`
	Instruction string         `json:"instruction"`
	TargetIndex *int           `json:"targetIndex,omitempty"`
	Overlays    int            `json:"overlays"`
}

// Job is the full record the store persists and the API exposes.
type Job struct {
	ID                string               `json:"id"`
	Status            Status               `json:"status"`
	Stage             Stage                `json:"stage"`
	Progress          int                  `json:"progress"`
	Brief             string               `json:"brief"`
	Input             Input                `json:"input"`
	Video             *VideoInfo           `json:"video"`
	Transcript        *Transcript          `json:"transcript"`
	AnalysisInsights  []Insight            `json:"analysisInsights"`
	OverlayPlan       []overlay.Event      `json:"overlayPlan"`
	ScenePlan         []scene.Scene        `json:"scenePlan"`
	SceneQuality      *scene.QualityReport `json:"sceneQuality"`
	ReviewState       *ReviewState         `json:"reviewState"`
	Output            *Output              `json:"output"`
	Warnings          []string             `json:"warnings"`
	Error             string               `json:"error,omitempty"`
	RefinementHistory []Refinement         `json:"refinementHistory"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         time.Time            `json:"updatedAt"`
}

// Analyzed reports whether the analysis produced everything review needs.
func (j *Job) Analyzed() bool {
	return j != nil && j.Video != nil && j.Transcript != nil && j.OverlayPlan != nil
}

// DurationSec returns the probed duration or zero.
func (j *Job) DurationSec() float64 {
	if j == nil || j.Video == nil {
		return 0
	}
	return j.Video.DurationSec
}

// AddWarnings appends warning codes, skipping blanks and codes already present.
func (j *Job) AddWarnings(codes ...string) {
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" || slices.Contains(j.Warnings, code) {
			continue
		}
		j.Warnings = append(j.Warnings, code)
	}
}

// CurrentOverlay returns the overlay under the review cursor.
func (j *Job) CurrentOverlay() (overlay.Event, bool) {
	if j == nil || len(j.OverlayPlan) == 0 {
		return overlay.Event{}, false
	}
	index := 0
	if j.ReviewState != nil {
		index = j.ReviewState.CurrentIndex
	}
	index = max(0, min(index, len(j.OverlayPlan)-1))
	return j.OverlayPlan[index], true
}

// RenderEvents returns the approved overlays, or the whole plan when nothing
// was approved explicitly.
func (j *Job) RenderEvents() []overlay.Event {
	if j == nil {
		return nil
	}
	if j.ReviewState == nil || len(j.ReviewState.ApprovedIDs) == 0 {
		return overlay.CloneAll(j.OverlayPlan)
	}
	approved := make([]overlay.Event, 0, len(j.ReviewState.ApprovedIDs))
	for _, event := range j.OverlayPlan {
		if slices.Contains(j.ReviewState.ApprovedIDs, event.ID) {
			approved = append(approved, event.Clone())
		}
	}
	if len(approved) == 0 {
		return overlay.CloneAll(j.OverlayPlan)
	}
	return approved
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.Video != nil {
		video := *j.Video
		out.Video = &video
	}
	if j.Transcript != nil {
		transcript := *j.Transcript
		transcript.Words = slices.Clone(j.Transcript.Words)
		out.Transcript = &transcript
	}
	out.AnalysisInsights = slices.Clone(j.AnalysisInsights)
	if j.OverlayPlan != nil {
		out.OverlayPlan = overlay.CloneAll(j.OverlayPlan)
	}
	if j.ScenePlan != nil {
		out.ScenePlan = scene.CloneAll(j.ScenePlan)
	}
	if j.SceneQuality != nil {
		report := *j.SceneQuality
		report.SceneScores = slices.Clone(j.SceneQuality.SceneScores)
		report.Warnings = slices.Clone(j.SceneQuality.Warnings)
		out.SceneQuality = &report
	}
	if j.ReviewState != nil {
		review := j.ReviewState.clone()
		out.ReviewState = &review
	}
	if j.Output != nil {
		output := *j.Output
		out.Output = &output
	}
	out.Warnings = slices.Clone(j.Warnings)
	out.RefinementHistory = make([]Refinement, 0, len(j.RefinementHistory))
	for _, entry := range j.RefinementHistory {
		if entry.TargetIndex != nil {
			index := *entry.TargetIndex
			entry.TargetIndex = &index
		}
		out.RefinementHistory = append(out.RefinementHistory, entry)
	}
	return &out
}
