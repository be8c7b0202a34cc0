package render

import (
	"math"

	"overlaystudio/internal/jobs"
	"overlaystudio/internal/overlay"
	"overlaystudio/internal/scene"
)

// DefaultFPS is used when the configuration leaves the frame rate unset.
const DefaultFPS = 30

// Props is the compositor input. Exactly one of Events or Scenes is set.
type Props struct {
	VideoURL         string          `json:"videoUrl"`
	Events           []overlay.Event `json:"events,omitempty"`
	Scenes           []scene.Scene   `json:"scenes,omitempty"`
	Width            int             `json:"width"`
	Height           int             `json:"height"`
	FPS              int             `json:"fps"`
	DurationInFrames int             `json:"durationInFrames"`
}

// NewProps sizes the composition from the probed video.
func NewProps(videoURL string, video jobs.VideoInfo, fps int) Props {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return Props{
		VideoURL:         videoURL,
		Width:            video.Width,
		Height:           video.Height,
		FPS:              fps,
		DurationInFrames: FrameCount(video.DurationSec, fps),
	}
}

// FrameCount returns ceil(durationSec*fps), at least one frame.
func FrameCount(durationSec float64, fps int) int {
	if math.IsNaN(durationSec) || durationSec <= 0 || fps <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(durationSec*float64(fps))))
}

// OutputName is the rendered file name for a job.
func OutputName(jobID string) string {
	return jobID + "-final.mp4"
}
