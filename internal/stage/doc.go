// Package stage populates the serving directory with every asset the
// browser test pages need. Assets are either copied verbatim or produced by
// the external material compiler (matc) and cubemap generator (cmgen).
//
// Staging is strictly sequential and stops at the first failure. A tool that
// exits non-zero surfaces as a *ToolError carrying the tool's exit code so
// the caller can terminate with exactly that code.
package stage
