package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"overlaystudio/internal/config"
	"overlaystudio/internal/deps"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/services"
)

// Transcript sources and warning codes.
const (
	SourceWhisperX = "whisperx"
	SourceMock     = "mock"

	WarnSynthetic = "transcript-synthetic"
)

// syntheticFallback is spoken over the synthetic timeline when the job has no brief.
const syntheticFallback = "Bienvenidos, hoy veremos resultados comparativos y una llamada a la accion final para suscribirse al canal."

// Config captures runtime settings for transcription.
type Config struct {
	Enabled      bool
	Model        string
	CUDAEnabled  bool
	Language     string
	FFmpegBinary string
	WorkDir      string
}

// FromConfig maps the [transcription] section and the work directory.
func FromConfig(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	return Config{
		Enabled:      cfg.Transcription.Enabled,
		Model:        cfg.Transcription.Model,
		CUDAEnabled:  cfg.Transcription.CUDAEnabled,
		Language:     cfg.Transcription.Language,
		FFmpegBinary: deps.ResolveFFmpeg(cfg.Transcription.FFmpegBinary, cfg.Media.FFprobeBinary),
		WorkDir:      cfg.Paths.WorkDir,
	}
}

// CommandRunner executes an external command.
type CommandRunner func(ctx context.Context, name string, args ...string) error

// Service provides WhisperX transcription with a synthetic fallback.
type Service struct {
	cfg    Config
	logger *slog.Logger
	runner CommandRunner
}

// NewService creates a transcription service.
func NewService(cfg Config, logger *slog.Logger) *Service {
	if strings.TrimSpace(cfg.FFmpegBinary) == "" {
		cfg.FFmpegBinary = FFmpegCommand
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{cfg: cfg, logger: logging.NewComponentLogger(logger, "transcribe")}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner CommandRunner) {
	s.runner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// Transcribe returns the transcript of videoPath. It never fails: when WhisperX
// is disabled or errors out, the synthetic transcript is returned together
// with WarnSynthetic.
func (s *Service) Transcribe(ctx context.Context, videoPath, brief string, durationSec float64) (jobs.Transcript, []string) {
	logger := logging.WithContext(ctx, s.logger)
	if !s.cfg.Enabled {
		logger.Info("transcription disabled, using synthetic transcript",
			logging.Args(logging.Decision("transcript_source", SourceMock, "disabled")...)...)
		return Synthetic(brief, durationSec), []string{WarnSynthetic}
	}

	transcript, err := s.transcribeFile(ctx, videoPath)
	if err != nil {
		attrs := append(logging.Decision("transcript_source", SourceMock, "whisperx_failed"),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ffmpeg and uvx availability with `overlaystudio status`"),
			logging.String(logging.FieldImpact, "overlays are planned from the brief instead of speech"),
		)
		logging.WarnWithContext(logger, "whisperx transcription failed", "transcription_fallback", attrs...)
		return Synthetic(brief, durationSec), []string{WarnSynthetic}
	}
	logger.Info("transcription complete",
		logging.String("model", s.Model()),
		logging.Int("words", len(transcript.Words)),
	)
	return transcript, nil
}

func (s *Service) transcribeFile(ctx context.Context, videoPath string) (jobs.Transcript, error) {
	if strings.TrimSpace(videoPath) == "" {
		return jobs.Transcript{}, services.Wrap(services.ErrValidation, "transcription", "transcribe", "video path required", nil)
	}
	workDir, err := os.MkdirTemp(s.cfg.WorkDir, "transcribe-")
	if err != nil {
		return jobs.Transcript{}, fmt.Errorf("transcribe: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	audioPath := filepath.Join(workDir, "audio.wav")
	if err := s.extractAudio(ctx, videoPath, audioPath); err != nil {
		return jobs.Transcript{}, services.Wrap(services.ErrExternalTool, "transcription", "ffmpeg", "audio extraction failed", err)
	}
	if err := s.run(ctx, UVXCommand, s.whisperxArgs(audioPath, workDir)...); err != nil {
		return jobs.Transcript{}, services.Wrap(services.ErrExternalTool, "transcription", "whisperx", "whisperx failed", err)
	}
	transcript, err := loadTranscript(filepath.Join(workDir, "audio.json"))
	if err != nil {
		return jobs.Transcript{}, services.Wrap(services.ErrExternalTool, "transcription", "whisperx", "read output", err)
	}
	if strings.TrimSpace(transcript.Text) == "" && len(transcript.Words) == 0 {
		return jobs.Transcript{}, services.Wrap(services.ErrExternalTool, "transcription", "whisperx", "empty transcript", errors.New("no speech recognised"))
	}
	return transcript, nil
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.runner != nil {
		return s.runner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Synthetic spreads the words of brief evenly across the video. A blank brief
// uses a stock sentence so downstream planning still has cues to work with.
func Synthetic(brief string, durationSec float64) jobs.Transcript {
	text := strings.TrimSpace(brief)
	if text == "" {
		text = syntheticFallback
	}
	tokens := strings.Fields(text)
	span := max(1, durationSec-0.5)
	words := make([]jobs.Word, 0, len(tokens))
	for i, token := range tokens {
		start := float64(i) / float64(max(1, len(tokens))) * span
		words = append(words, jobs.Word{Text: token, StartSec: start, EndSec: start + 0.3})
	}
	return jobs.Transcript{Text: text, Words: words, Source: SourceMock}
}
