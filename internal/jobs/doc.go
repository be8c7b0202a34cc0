// Package jobs owns the job record, its status/stage state machine, the
// sequential review cursor and the Store that holds every job.
//
// The Store keeps the authoritative copy of each job in memory and mirrors the
// full JSON record into SQLite on every patch, so a restarted daemon can reload
// its history. Callers never share a *Job with the Store: Get and List return
// deep copies, and Update hands the mutator a private copy that becomes visible
// only after it has been persisted.
//
// The state machine lives here rather than in the worker so that HTTP handlers,
// the CLI and the worker all apply the same guards. When you add a status or
// stage, update the transition table in status.go and the progress table.
package jobs
