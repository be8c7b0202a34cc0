package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

type recordedCall struct {
	name string
	args []string
}

func argValue(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func fakeWhisperX(t *testing.T, payload string, calls *[]recordedCall) CommandRunner {
	t.Helper()
	return func(_ context.Context, name string, args ...string) error {
		*calls = append(*calls, recordedCall{name: name, args: args})
		if name != UVXCommand {
			return nil
		}
		outputDir := argValue(args, "--output_dir")
		if outputDir == "" {
			t.Fatalf("whisperx args missing --output_dir: %v", args)
		}
		return os.WriteFile(filepath.Join(outputDir, "audio.json"), []byte(payload), 0o644)
	}
}

func TestTranscribeParsesWhisperXOutput(t *testing.T) {
	payload := `{"segments":[
		{"text":" Hola a todos ","start":0.2,"end":1.4,"words":[
			{"word":"Hola","start":0.2,"end":0.5},
			{"word":"a","start":0.6,"end":0.7},
			{"word":"todos","start":0.8,"end":1.4}]},
		{"text":"son 20 mil","start":2.0,"end":3.0,"words":[
			{"word":"son","start":2.0,"end":2.3},
			{"word":"20"},
			{"word":"mil","start":2.6,"end":3.0}]}]}`
	var calls []recordedCall
	svc := NewService(Config{Enabled: true, Language: "es-MX", WorkDir: t.TempDir()}, nil)
	svc.WithCommandRunner(fakeWhisperX(t, payload, &calls))

	transcript, warnings := svc.Transcribe(context.Background(), "/videos/in.mp4", "brief", 10)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings %v", warnings)
	}
	if transcript.Source != SourceWhisperX {
		t.Fatalf("expected whisperx source, got %q", transcript.Source)
	}
	if transcript.Text != "Hola a todos son 20 mil" {
		t.Fatalf("unexpected text %q", transcript.Text)
	}
	if len(transcript.Words) != 6 {
		t.Fatalf("expected 6 words, got %d", len(transcript.Words))
	}
	if w := transcript.Words[4]; w.Text != "20" || w.StartSec != 2.3 || w.EndSec != 2.3 {
		t.Fatalf("unaligned word should inherit previous end, got %+v", w)
	}

	if len(calls) != 2 || calls[0].name != FFmpegCommand || calls[1].name != UVXCommand {
		t.Fatalf("unexpected command sequence %+v", calls)
	}
	if calls[0].args[len(calls[0].args)-1] != calls[1].args[slices.Index(calls[1].args, "whisperx")+1] {
		t.Fatalf("whisperx should read the extracted wav: %v / %v", calls[0].args, calls[1].args)
	}
	if got := argValue(calls[1].args, "--language"); got != "es" {
		t.Fatalf("expected language es, got %q", got)
	}
	if got := argValue(calls[1].args, "--device"); got != CPUDevice {
		t.Fatalf("expected cpu device, got %q", got)
	}
}

func TestTranscribeFallsBackOnFailure(t *testing.T) {
	svc := NewService(Config{Enabled: true, WorkDir: t.TempDir()}, nil)
	svc.WithCommandRunner(func(context.Context, string, ...string) error {
		return errors.New("uvx: not found")
	})
	transcript, warnings := svc.Transcribe(context.Background(), "/videos/in.mp4", "uno dos tres", 10)
	if !slices.Equal(warnings, []string{WarnSynthetic}) {
		t.Fatalf("expected synthetic warning, got %v", warnings)
	}
	if transcript.Source != SourceMock || len(transcript.Words) != 3 {
		t.Fatalf("unexpected fallback transcript %+v", transcript)
	}
}

func TestTranscribeFallsBackOnEmptyOutput(t *testing.T) {
	var calls []recordedCall
	svc := NewService(Config{Enabled: true, WorkDir: t.TempDir()}, nil)
	svc.WithCommandRunner(fakeWhisperX(t, `{"segments":[]}`, &calls))
	_, warnings := svc.Transcribe(context.Background(), "/videos/in.mp4", "", 10)
	if !slices.Equal(warnings, []string{WarnSynthetic}) {
		t.Fatalf("expected synthetic warning, got %v", warnings)
	}
}

func TestTranscribeDisabledSkipsCommands(t *testing.T) {
	svc := NewService(Config{}, nil)
	svc.WithCommandRunner(func(_ context.Context, name string, _ ...string) error {
		t.Fatalf("unexpected command %s", name)
		return nil
	})
	transcript, warnings := svc.Transcribe(context.Background(), "/videos/in.mp4", "", 30)
	if len(warnings) != 1 || transcript.Text != syntheticFallback {
		t.Fatalf("unexpected disabled result %+v %v", transcript, warnings)
	}
}

func TestSyntheticSpacing(t *testing.T) {
	transcript := Synthetic("  alpha beta gamma delta  ", 8.5)
	if transcript.Text != "alpha beta gamma delta" {
		t.Fatalf("unexpected text %q", transcript.Text)
	}
	wantStarts := []float64{0, 2, 4, 6}
	for i, w := range transcript.Words {
		if w.StartSec != wantStarts[i] || w.EndSec != wantStarts[i]+0.3 {
			t.Fatalf("word %d timing = %v-%v", i, w.StartSec, w.EndSec)
		}
	}

	short := Synthetic("one two", 0)
	if short.Words[1].StartSec != 0.5 {
		t.Fatalf("short videos span at least one second, got %v", short.Words[1].StartSec)
	}
}

func TestLanguageCode(t *testing.T) {
	cases := map[string]string{"": "", "auto": "", "es": "es", "ES-mx": "es", "spa": "es", "eng": "en", "english": ""}
	for input, want := range cases {
		if got := languageCode(input); got != want {
			t.Fatalf("languageCode(%q) = %q want %q", input, got, want)
		}
	}
}

func TestWhisperXArgsCUDA(t *testing.T) {
	svc := NewService(Config{CUDAEnabled: true, Model: "large-v3-turbo"}, nil)
	args := svc.whisperxArgs("/tmp/a.wav", "/tmp")
	if argValue(args, "--index-url") != CUDAIndexURL || argValue(args, "--device") != CUDADevice {
		t.Fatalf("unexpected cuda args %v", args)
	}
	if argValue(args, "--model") != "large-v3-turbo" || slices.Contains(args, "--compute_type") {
		t.Fatalf("unexpected model args %v", args)
	}
}
