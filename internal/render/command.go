package render

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"overlaystudio/internal/config"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/services"
)

// Argument placeholders substituted in configured compositor args.
const (
	PropsPlaceholder  = "{props}"
	OutputPlaceholder = "{output}"
)

// Compositor burns overlays into a video.
type Compositor interface {
	Render(ctx context.Context, props Props, dest string, progress func(float64)) error
}

// Command runs an external compositor such as the Remotion CLI.
type Command struct {
	command string
	args    []string
	workDir string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCommand builds the compositor from the [render] section.
func NewCommand(cfg *config.Config, logger *slog.Logger) *Command {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Command{
		command: strings.TrimSpace(cfg.Render.Command),
		args:    append([]string(nil), cfg.Render.Args...),
		workDir: cfg.Paths.WorkDir,
		timeout: cfg.RenderTimeout(),
		logger:  logging.NewComponentLogger(logger, "render"),
	}
}

// Render writes props to a temporary JSON file and runs the command. The
// configured args may reference {props} and {output}; when neither appears,
// "--props=<file>" and the output path are appended.
func (c *Command) Render(ctx context.Context, props Props, dest string, progress func(float64)) error {
	if c.command == "" {
		return services.Wrap(services.ErrConfiguration, "rendering", "compositor", "render.command is not configured", nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("render: ensure output dir: %w", err)
	}
	propsPath, cleanup, err := c.writeProps(props)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := c.buildArgs(propsPath, dest)
	cmd := exec.CommandContext(ctx, c.command, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("render: stdout pipe: %w", err)
	}
	var stderr tailBuffer
	cmd.Stderr = &stderr

	logger := logging.WithContext(ctx, c.logger)
	logger.Info("compositor started",
		logging.String("command", c.command),
		logging.Int("frames", props.DurationInFrames),
		logging.String("output", dest),
	)
	started := time.Now()
	if err := cmd.Start(); err != nil {
		return services.Wrap(services.ErrExternalTool, "rendering", "compositor", "start "+c.command, err)
	}
	c.followProgress(stdout, progress)
	waitErr := cmd.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "rendering", "compositor", fmt.Sprintf("render exceeded %s", c.timeout), ctx.Err())
	}
	if waitErr != nil {
		return services.Wrap(services.ErrExternalTool, "rendering", "compositor", "compositor failed", fmt.Errorf("%w: %s", waitErr, stderr.String()))
	}
	if info, err := os.Stat(dest); err != nil || info.Size() == 0 {
		return services.Wrap(services.ErrExternalTool, "rendering", "compositor", "compositor produced no output", err)
	}
	logger.Info("compositor finished", logging.Duration("elapsed", time.Since(started)))
	return nil
}

func (c *Command) buildArgs(propsPath, dest string) []string {
	args := make([]string, 0, len(c.args)+2)
	substituted := false
	for _, arg := range c.args {
		next := strings.ReplaceAll(arg, PropsPlaceholder, propsPath)
		next = strings.ReplaceAll(next, OutputPlaceholder, dest)
		if next != arg {
			substituted = true
		}
		args = append(args, next)
	}
	if !substituted {
		args = append(args, "--props="+propsPath, dest)
	}
	return args
}

func (c *Command) writeProps(props Props) (string, func(), error) {
	if c.workDir != "" {
		if err := os.MkdirAll(c.workDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("render: ensure work dir: %w", err)
		}
	}
	file, err := os.CreateTemp(c.workDir, "render-props-*.json")
	if err != nil {
		return "", nil, fmt.Errorf("render: create props file: %w", err)
	}
	cleanup := func() { _ = os.Remove(file.Name()) }
	encoder := json.NewEncoder(file)
	if err := encoder.Encode(props); err != nil {
		_ = file.Close()
		cleanup()
		return "", nil, fmt.Errorf("render: encode props: %w", err)
	}
	if err := file.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("render: close props file: %w", err)
	}
	return file.Name(), cleanup, nil
}

// followProgress reports only increases so out-of-order lines never move the
// job backwards.
func (c *Command) followProgress(r io.Reader, progress func(float64)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLines)
	last := -1.0
	for scanner.Scan() {
		fraction, ok := parseProgress(scanner.Text())
		if !ok || fraction <= last {
			continue
		}
		last = fraction
		if progress != nil {
			progress(fraction)
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

// tailBuffer keeps the last few KiB of stderr for error messages.
type tailBuffer struct {
	buf bytes.Buffer
}

const tailLimit = 4 << 10

func (t *tailBuffer) Write(p []byte) (int, error) {
	n, _ := t.buf.Write(p)
	if extra := t.buf.Len() - tailLimit; extra > 0 {
		t.buf.Next(extra)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(t.buf.String())
}
