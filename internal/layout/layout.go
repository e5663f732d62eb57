// Package layout resolves the fixed repository layout the harness works in:
// the repository root, the web build tree, the host tools tree, the vendor
// script directory, the harness fixtures and the serving directory.
package layout

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hupe1980/filaserve/internal/config"
)

// Layout holds absolute paths derived from the configuration.
type Layout struct {
	Root       string // repository root
	HarnessDir string // page and script fixtures, also the watched tree
	BuildDir   string // web build output
	ToolsDir   string // host tool binaries
	ServeDir   string // directory exposed over HTTP
	VendorDir  string // vector-math scripts
}

// Resolve derives a Layout from cfg. Relative paths are anchored as
// documented on config.Config; existing paths are symlink-evaluated.
// HarnessDir is both the fixture source and the watched tree, so running
// from outside the tests directory needs an explicit harness-dir.
func Resolve(cfg *config.Config) (Layout, error) {
	harness := cfg.HarnessDir
	if harness == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Layout{}, fmt.Errorf("resolving working directory: %w", err)
		}

		harness = wd
	}

	harness, err := realpath(harness)
	if err != nil {
		return Layout{}, fmt.Errorf("resolving harness directory: %w", err)
	}

	root := cfg.Root
	if root == "" {
		root = filepath.Join(harness, "..", "..", "..")
	}

	root, err = realpath(root)
	if err != nil {
		return Layout{}, fmt.Errorf("resolving root directory: %w", err)
	}

	l := Layout{
		Root:       root,
		HarnessDir: harness,
		BuildDir:   anchor(root, cfg.BuildDir),
		ToolsDir:   anchor(root, cfg.ToolsDir),
		VendorDir:  anchor(root, cfg.VendorDir),
	}
	l.ServeDir = anchor(l.BuildDir, cfg.ServeDir)

	return l, nil
}

// Matc returns the path of the material compiler executable.
func (l Layout) Matc() string {
	return filepath.Join(l.ToolsDir, "matc", "matc")
}

// Cmgen returns the path of the cubemap generator executable.
func (l Layout) Cmgen() string {
	return filepath.Join(l.ToolsDir, "cmgen", "cmgen")
}

// Vars returns the placeholder names usable in plan paths.
func (l Layout) Vars() map[string]string {
	return map[string]string{
		"ROOT":    l.Root,
		"HARNESS": l.HarnessDir,
		"BUILD":   l.BuildDir,
		"TOOLS":   l.ToolsDir,
		"SERVE":   l.ServeDir,
		"VENDOR":  l.VendorDir,
	}
}

// Expand substitutes $ROOT, $HARNESS, $BUILD, $TOOLS, $SERVE and $VENDOR in p,
// falling back to the environment for other names, and anchors the result
// at the repository root when it is still relative.
func (l Layout) Expand(p string) string {
	vars := l.Vars()

	expanded := os.Expand(p, func(name string) string {
		if v, ok := vars[name]; ok {
			return v
		}

		return os.Getenv(name)
	})

	return l.FromRoot(expanded)
}

// FromRoot joins rel onto the repository root.
func (l Layout) FromRoot(rel string) string {
	return anchor(l.Root, rel)
}

// EnsureServeDir creates the serving directory when it is missing and
// checks that it is a writable directory.
func (l Layout) EnsureServeDir() error {
	if err := os.MkdirAll(l.ServeDir, 0o755); err != nil {
		return fmt.Errorf("creating serving directory %s: %w", l.ServeDir, err)
	}

	probe, err := os.CreateTemp(l.ServeDir, ".filaserve-probe-*")
	if err != nil {
		return fmt.Errorf("serving directory %s is not writable: %w", l.ServeDir, err)
	}

	name := probe.Name()
	_ = probe.Close()

	return os.Remove(name)
}

func anchor(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(base, p)
}

// realpath makes p absolute and resolves symlinks when p exists.
func realpath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return abs, nil
		}

		return "", err
	}

	return resolved, nil
}
