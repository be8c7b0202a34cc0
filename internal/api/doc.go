// Package api exposes the job surface over HTTP and provides the client the
// CLI uses to talk to a running daemon.
//
// Routes are registered with huma on a chi router under /api. JSON request
// bodies are validated by huma before handlers run; the multipart upload
// endpoint is a plain chi handler because it streams the file to disk.
// Finished renders are served from /renders and source videos from /media so
// the compositor and browsers can fetch them.
//
// # Errors
//
// Every error uses the envelope {"error":{"code","message"}}. Marker errors
// from internal/services map to status codes: validation 400, not found 404,
// conflict 409, a full task queue 503, anything else 500.
package api
