// Package workflow runs analyze and render tasks for jobs.
//
// The Manager owns a bounded FIFO of tasks drained by a single worker
// goroutine. Analysis ingests the source, probes it, transcribes speech,
// extracts insights, plans overlays and scenes, and parks the job in review.
// Rendering hands the approved plan to the compositor and records the output.
// Every status move goes through the jobs state machine, so duplicate or stale
// queue entries are skipped rather than re-run.
//
// Review-time edits (refine instructions, visual overrides, review cursor
// moves) run on the caller's goroutine and are guarded by the same state
// machine: they are rejected while a render is queued or running.
package workflow
