// Package services defines shared utilities consumed by the job pipeline and its
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, task types, stage labels, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures with errors.Is (validation, not found, conflict, external tool).
//
// Use these helpers when wiring new pipeline steps so error handling and
// observability stay uniform.
package services
