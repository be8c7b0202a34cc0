// Package scene compiles, scores and safeguards per-segment layer graphs.
//
// A Scene is a timed group of text, shape and metric layers. Compile validates
// untrusted scene plans against an embedded JSON Schema and stabilises timing,
// paint order and layer identity. Score rates a compiled scene for clutter and
// intent coverage. Gate ties these together with a deterministic lowering of
// overlay events (FromEvents) so callers always receive a usable plan.
package scene
