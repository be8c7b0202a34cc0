// Package intel decides where overlays belong. It extracts narrative insights
// from a transcript, proposes overlay events, refines them on request and
// drafts candidate scene graphs.
//
// Two providers exist: Heuristic scores transcript segments with English and
// Spanish keyword rules and never fails; LLM asks a chat-completion model for
// JSON and validates the reply against a JSON Schema. Planner composes them so
// every LLM failure degrades to the heuristic result plus a warning code the
// workflow records on the job.
package intel
