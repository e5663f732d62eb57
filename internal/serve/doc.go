// Package serve exposes the serving directory over HTTP.
//
// Files are served by relative path through a gin engine whose NoRoute
// handler delegates to http.FileServer. Content types from the override
// table win over the default extension lookup, and the listening socket
// is opened with SO_REUSEADDR so a restarted harness can rebind the same
// port immediately.
package serve
