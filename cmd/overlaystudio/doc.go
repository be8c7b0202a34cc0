// Command overlaystudio runs the overlay planning daemon and talks to it.
//
// `overlaystudio serve` starts the daemon in the foreground. The remaining
// commands submit videos, walk the review cursor, request refinements and
// renders, and report job or daemon state through the HTTP API. `jobs` falls
// back to reading the SQLite job mirror directly when the daemon is not
// running.
package main
