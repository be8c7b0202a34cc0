// Package render drives the external video compositor.
//
// Props carries everything the compositor needs to burn overlays into the
// source video. Command writes the props as JSON, runs the configured
// compositor command and reports progress parsed from its stdout.
package render
