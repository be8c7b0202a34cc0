// Package ffprobe wraps ffprobe JSON output and reduces it to the video
// geometry the planner needs.
//
// Inspect executes ffprobe and decodes streams and container metadata.
// Probe builds on it and never fails: when ffprobe is missing, errors, or
// reports no usable duration, configured defaults are returned together with
// the WarnMetadataDefault warning code.
package ffprobe
