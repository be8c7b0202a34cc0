package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFmpeg returns the ffmpeg binary transcription audio extraction
// will run. An explicitly configured path wins. A bare "ffmpeg" prefers the
// binary that sits next to the resolved ffprobe, since static builds ship
// both tools together, and otherwise stays a PATH lookup.
func ResolveFFmpeg(configured, ffprobe string) string {
	configured = strings.TrimSpace(configured)
	if configured == "" {
		configured = "ffmpeg"
	}
	if configured != "ffmpeg" {
		return configured
	}
	probe := strings.TrimSpace(ffprobe)
	if probe == "" {
		return configured
	}
	resolved, err := exec.LookPath(probe)
	if err != nil {
		return configured
	}
	candidate := filepath.Join(filepath.Dir(resolved), executableName("ffmpeg"))
	if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
		return candidate
	}
	return configured
}

func executableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
