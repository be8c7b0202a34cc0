// Package preflight provides readiness checks for the directories, binaries
// and external services overlaystudio depends on.
//
// These checks run in two contexts:
//   - The daemon runs CheckSystemDeps at startup and logs missing binaries;
//     the API exposes the same list on /api/status.
//   - The CLI "overlaystudio status" command runs RunAll and renders a table.
//
// Each service check is gated by its config toggle; disabled features report
// "Disabled" and pass.
package preflight
