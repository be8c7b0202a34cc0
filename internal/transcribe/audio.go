package transcribe

import (
	"context"
	"fmt"
)

// extractAudioArgs builds the ffmpeg command that writes the first audio
// stream as mono 16 kHz PCM.
func extractAudioArgs(source, dest string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

func (s *Service) extractAudio(ctx context.Context, source, dest string) error {
	if err := s.run(ctx, s.cfg.FFmpegBinary, extractAudioArgs(source, dest)...); err != nil {
		return fmt.Errorf("extract audio: %w", err)
	}
	return nil
}
