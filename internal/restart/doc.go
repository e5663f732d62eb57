// Package restart turns a file-change notification into a full restart of
// the harness.
//
// A Controller lives for one process generation and moves from Running to
// Restarting exactly once. The Supervisor runs generations back to back,
// each from scratch, until its context is cancelled or a generation fails.
// Exec replaces the process image instead, for callers that want a fresh
// process per generation.
package restart
