package transcribe

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"overlaystudio/internal/jobs"
)

// WhisperX invocation constants.
const (
	DefaultModel      = "large-v3"
	CUDAIndexURL      = "https://download.pytorch.org/whl/cu128"
	PypiIndexURL      = "https://pypi.org/simple"
	BatchSize         = "4"
	ChunkSize         = "15"
	VADOnset          = "0.08"
	VADOffset         = "0.07"
	BeamSize          = "5"
	Temperature       = "0.0"
	SegmentResolution = "sentence"
	OutputFormat      = "json"
	VADMethod         = "silero"
	CPUDevice         = "cpu"
	CUDADevice        = "cuda"
	CPUComputeType    = "float32"
)

// Command names for external tools.
const (
	UVXCommand    = "uvx"
	FFmpegCommand = "ffmpeg"
)

// whisperxArgs constructs the uvx command line for one WAV file.
func (s *Service) whisperxArgs(source, outputDir string) []string {
	args := make([]string, 0, 36)
	if s.cfg.CUDAEnabled {
		args = append(args, "--index-url", CUDAIndexURL, "--extra-index-url", PypiIndexURL)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}
	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_method", VADMethod,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)
	if lang := languageCode(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}
	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

// languageCode reduces tags such as "es-MX" or "spa" to the two letter code
// WhisperX expects. Unknown shapes are dropped so WhisperX auto-detects.
func languageCode(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" || value == "auto" {
		return ""
	}
	if idx := strings.IndexAny(value, "-_"); idx > 0 {
		value = value[:idx]
	}
	switch value {
	case "spa":
		return "es"
	case "eng":
		return "en"
	}
	if len(value) != 2 {
		return ""
	}
	return value
}

type whisperxWord struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

type whisperxSegment struct {
	Text  string         `json:"text"`
	Start float64        `json:"start"`
	End   float64        `json:"end"`
	Words []whisperxWord `json:"words"`
}

type whisperxPayload struct {
	Segments []whisperxSegment `json:"segments"`
}

// loadTranscript reads a WhisperX JSON file. Words WhisperX could not align
// (digits, symbols) carry no timing and inherit the previous word's end.
func loadTranscript(path string) (jobs.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return jobs.Transcript{}, err
	}
	var payload whisperxPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return jobs.Transcript{}, fmt.Errorf("parse whisperx json: %w", err)
	}

	var (
		parts []string
		words []jobs.Word
	)
	for _, seg := range payload.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
		cursor := seg.Start
		for _, w := range seg.Words {
			token := strings.TrimSpace(w.Word)
			if token == "" {
				continue
			}
			start := cursor
			if w.Start != nil {
				start = *w.Start
			}
			end := start
			if w.End != nil {
				end = *w.End
			}
			if end < start {
				end = start
			}
			words = append(words, jobs.Word{Text: token, StartSec: start, EndSec: end})
			cursor = end
		}
	}
	return jobs.Transcript{
		Text:   strings.Join(parts, " "),
		Words:  words,
		Source: SourceWhisperX,
	}, nil
}
