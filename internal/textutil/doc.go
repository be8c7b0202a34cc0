// Package textutil provides the text helpers shared by the planning code:
// accent and case folding for keyword matching, clipping overlay copy to a
// display budget, title casing, token fingerprints for near-duplicate
// detection, and filename sanitising for uploads.
package textutil
