// Package daemon runs the long-lived overlaystudio process.
//
// It wires configuration, the SQLite job store, the workflow manager and the
// HTTP API into a single lifecycle, guarded by a flock-based lock file so two
// daemons never share a database. Start repairs jobs interrupted by the
// previous run before the worker accepts new tasks, and records which external
// binaries are missing so /api/status can report them.
//
// Keep orchestration logic here: pipeline steps belong to the workflow package
// and request handling to the api package.
package daemon
