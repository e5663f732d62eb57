package stage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/filaserve/internal/layout"
)

// call records one tool invocation.
type call struct {
	Name string
	Args []string
}

// fakeRunner records invocations and simulates matc/cmgen outputs.
type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	fail  map[string]int // tool base name -> exit code
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{Name: name, Args: args})
	f.mu.Unlock()

	base := filepath.Base(name)
	if code, ok := f.fail[base]; ok {
		return &ToolError{Tool: name, Args: args, ExitCode: code}
	}

	switch base {
	case "matc":
		// ... -o <dst> <src>
		dst := args[len(args)-2]
		return os.WriteFile(dst, []byte("filamat"), 0o644)
	case "cmgen":
		// ... -x <dir> <hdr>
		dir, hdr := args[len(args)-2], args[len(args)-1]
		nested := filepath.Join(dir, stem(hdr))
		if err := os.MkdirAll(nested, 0o755); err != nil {
			return err
		}

		ibl, sky := envMapNames(hdr)
		for _, n := range []string{ibl, sky} {
			if err := os.WriteFile(filepath.Join(nested, n), []byte("ktx"), 0o644); err != nil {
				return err
			}
		}
	}

	return nil
}

func (f *fakeRunner) Calls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]call(nil), f.calls...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newFakeRepo lays out every source file the default plan reads.
func newFakeRepo(t *testing.T) layout.Layout {
	t.Helper()

	root := t.TempDir()
	l := layout.Layout{
		Root:       root,
		HarnessDir: filepath.Join(root, "libs", "filamentjs", "tests"),
		BuildDir:   filepath.Join(root, "out", "cmake-webgl-release"),
		ToolsDir:   filepath.Join(root, "out", "cmake-release", "tools"),
		VendorDir:  filepath.Join(root, "third_party", "gl-matrix"),
	}
	l.ServeDir = filepath.Join(l.BuildDir, "libs", "filamentjs")

	public := filepath.Join(l.BuildDir, "samples", "web", "public")
	writeFile(t, filepath.Join(public, "material", "material.filamat"), "m")
	writeFile(t, filepath.Join(public, "monkey", "monkey.filamesh"), "mesh")
	writeFile(t, filepath.Join(public, "pillars_2k", "pillars_2k_ibl.ktx"), "ibl")
	writeFile(t, filepath.Join(l.VendorDir, "gl-matrix.js"), "js")
	writeFile(t, filepath.Join(l.VendorDir, "README.md"), "readme")
	writeFile(t, filepath.Join(l.HarnessDir, "test_redball.html"), "<html>")
	writeFile(t, filepath.Join(l.HarnessDir, "test_parquet.html"), "<html>")
	writeFile(t, filepath.Join(l.HarnessDir, "test_parquet.js"), "js")
	writeFile(t, filepath.Join(l.HarnessDir, "helper.js"), "js")

	src := filepath.Join(root, parquetSrc)
	writeFile(t, filepath.Join(src, "materials", "textured_pbr.mat"), "material {}")
	writeFile(t, filepath.Join(src, "assets", "models", "shader_ball.filamesh"), "mesh")

	tex := filepath.Join(root, textureDir)
	writeFile(t, filepath.Join(tex, "floor_ao_roughness_metallic.png"), "png")
	writeFile(t, filepath.Join(tex, "floor_basecolor.png"), "png")
	writeFile(t, filepath.Join(tex, "floor_normal.png"), "png")

	writeFile(t, filepath.Join(root, "third_party", "environments", "venetian_crossroads_2k.hdr"), "hdr")

	return l
}
