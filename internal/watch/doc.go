// Package watch observes the harness tree for file modifications. It arms
// fsnotify recursively, keeps only write events and hands each one to a
// single handler, optionally debounced.
package watch
