package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sys/unix"

	"overlaystudio/internal/config"
	"overlaystudio/internal/deps"
	"overlaystudio/internal/services/llm"
)

// HealthChecker is the LLM client surface CheckLLM needs.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BucketLister is the object storage surface CheckObjectStorage needs.
type BucketLister interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
}

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout.
func CheckLLM(ctx context.Context, name string, client HealthChecker) Result {
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err, "LLM API")}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckObjectStorage verifies the S3-compatible store accepts the configured
// credentials.
func CheckObjectStorage(ctx context.Context, name string, client BucketLister) Result {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	buckets, err := client.ListBuckets(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetworkError(err, "object storage")}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("Reachable (%d buckets)", len(buckets))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries for the given config. Both
// the daemon and the CLI status command use it.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFprobe",
			Command:     cfg.Media.FFprobeBinary,
			Description: "Reads video duration and geometry",
		},
		{
			Name:        "FFmpeg",
			Command:     deps.ResolveFFmpeg(cfg.Transcription.FFmpegBinary, cfg.Media.FFprobeBinary),
			Description: "Extracts audio for transcription",
			Optional:    !cfg.Transcription.Enabled,
		},
		{
			Name:        "yt-dlp",
			Command:     cfg.Ingest.YTDLPBinary,
			Description: "Downloads YouTube sources",
		},
		{
			Name:        "uvx",
			Command:     "uvx",
			Description: "Runs WhisperX transcription",
			Optional:    !cfg.Transcription.Enabled,
		},
		{
			Name:        "Compositor",
			Command:     cfg.Render.Command,
			Description: "Renders the final video with overlays",
		},
	}
	return deps.CheckBinaries(requirements)
}

func summarizeNetworkError(err error, target string) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("health check timed out (%s unresponsive)", target)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("health check timed out (%s unreachable)", target)
	}
	return err.Error()
}

func newStorageClient(cfg config.Storage) (*minio.Client, error) {
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

func newLLMClient(cfg config.LLM) *llm.Client {
	return llm.NewClient(llm.FromConfig(cfg), llm.WithRetryMaxAttempts(1))
}
