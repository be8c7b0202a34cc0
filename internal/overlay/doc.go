// Package overlay models timed overlay events and the rules that keep a plan
// of them renderable.
//
// An Event pairs timing with a template-specific Content value (lower third,
// subscribe card, sticker, stat comparison, text pop, CTA banner) plus shared
// presentation settings drawn from a fixed motion/design catalogue. Normalize
// turns untrusted candidate events into an ordered, bounded, non-overlapping
// plan; ApplyDefaults fills presentation defaults per template; ApplyOverrides
// merges visual editor changes into an existing plan.
package overlay
