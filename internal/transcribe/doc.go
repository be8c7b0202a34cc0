// Package transcribe turns the spoken track of a video into a timed
// transcript.
//
// The Service extracts a mono 16 kHz WAV with ffmpeg, runs WhisperX through
// uvx and reads the word timings from its JSON output. When transcription is
// disabled or any step fails, a synthetic transcript is built from the job
// brief with evenly spaced words so planning can still proceed; the caller
// records WarnSynthetic on the job.
package transcribe
