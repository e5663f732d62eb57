package harness

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/filaserve/internal/config"
	"github.com/hupe1980/filaserve/internal/layout"
	"github.com/hupe1980/filaserve/internal/stage"
)

type failingRunner struct{ code int }

func (r failingRunner) Run(_ context.Context, name string, args ...string) error {
	return &stage.ToolError{Tool: name, Args: args, ExitCode: r.code}
}

// syncBuffer guards output written from the serving goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// newFixture lays out a harness directory with one page and a manifest
// that copies it into the serving directory.
func newFixture(t *testing.T, manifest string) (*config.Config, layout.Layout) {
	t.Helper()

	root := t.TempDir()
	l := layout.Layout{
		Root:       root,
		HarnessDir: filepath.Join(root, "tests"),
		BuildDir:   filepath.Join(root, "build"),
		ToolsDir:   filepath.Join(root, "tools"),
		ServeDir:   filepath.Join(root, "build", "serve"),
		VendorDir:  filepath.Join(root, "vendor"),
	}

	writeFile(t, filepath.Join(l.HarnessDir, "test_page.html"), "<html>v1</html>")

	cfg := config.Default()
	cfg.Manifest = filepath.Join(root, "manifest.yaml")
	writeFile(t, cfg.Manifest, manifest)

	return cfg, l
}

const copyManifest = `version: "1.0"
steps:
  - kind: copy-glob
    dir: $HARNESS
    patterns: ["test_*.*"]
`

func TestHarness_Plan(t *testing.T) {
	cfg, l := newFixture(t, copyManifest)

	h, err := New(cfg, l)
	require.NoError(t, err)

	plan, err := h.Plan()
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, stage.KindCopyGlob, plan.Steps[0].Kind)

	cfg.Manifest = ""
	plan, err = h.Plan()
	require.NoError(t, err)
	assert.Equal(t, stage.DefaultPlan(), plan)
}

func TestHarness_Run_ToolFailureStops(t *testing.T) {
	cfg, l := newFixture(t, `version: "1.0"
steps:
  - kind: build-material
    source: materials/lit.mat
    dest: lit.filamat
`)

	h, err := New(cfg, l,
		WithRunner(failingRunner{code: 3}),
		WithLogger(quietLogger()),
		WithOutput(io.Discard),
		WithListenAddr("127.0.0.1:0"),
	)
	require.NoError(t, err)

	err = h.Run(t.Context())
	require.Error(t, err)

	var toolErr *stage.ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, 3, toolErr.ExitCode)
}

func TestHarness_Run_ServesAndRestartsOnChange(t *testing.T) {
	cfg, l := newFixture(t, copyManifest)

	addrs := make(chan net.Addr, 4)
	out := &syncBuffer{}

	h, err := New(cfg, l,
		WithLogger(quietLogger()),
		WithOutput(out),
		WithListenAddr("127.0.0.1:0"),
		WithOnServe(func(a net.Addr) { addrs <- a }),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	first := waitAddr(t, addrs)
	assert.Equal(t, "<html>v1</html>", get(t, first, "/test_page.html"))
	assert.Contains(t, out.String(), "test_redball.html")

	writeFile(t, filepath.Join(l.HarnessDir, "test_page.html"), "<html>v2</html>")

	second := waitAddr(t, addrs)
	assert.Equal(t, "<html>v2</html>", get(t, second, "/test_page.html"))

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("harness did not stop after cancellation")
	}
}

// editingRunner rewrites a harness page during its first invocation and
// records every call. The material output is written on each call.
type editingRunner struct {
	page  string
	calls atomic.Int32
}

func (r *editingRunner) Run(_ context.Context, _ string, args ...string) error {
	if r.calls.Add(1) == 1 {
		if err := os.WriteFile(r.page, []byte("<html>v2</html>"), 0o644); err != nil {
			return err
		}

		// Give the watcher time to deliver the write before staging ends.
		time.Sleep(300 * time.Millisecond)
	}

	// matc ... -o <dst> <src>
	return os.WriteFile(args[len(args)-2], []byte("filamat"), 0o644)
}

func TestHarness_Run_ChangeDuringStagingRestartsBeforeServing(t *testing.T) {
	cfg, l := newFixture(t, `version: "1.0"
steps:
  - kind: copy-glob
    dir: $HARNESS
    patterns: ["test_*.*"]
  - kind: build-material
    source: materials/lit.mat
    dest: lit.filamat
`)

	runner := &editingRunner{page: filepath.Join(l.HarnessDir, "test_page.html")}
	addrs := make(chan net.Addr, 4)

	h, err := New(cfg, l,
		WithRunner(runner),
		WithLogger(quietLogger()),
		WithOutput(io.Discard),
		WithListenAddr("127.0.0.1:0"),
		WithOnServe(func(a net.Addr) { addrs <- a }),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	first := waitAddr(t, addrs)
	assert.Equal(t, int32(2), runner.calls.Load(), "staging must run again after the change")
	assert.Equal(t, "<html>v2</html>", get(t, first, "/test_page.html"))

	// Staging copies into the serving directory only, so nothing restarts again.
	select {
	case a := <-addrs:
		t.Fatalf("unexpected restart, served again on %s", a)
	case <-time.After(500 * time.Millisecond):
	}

	assert.Equal(t, int32(2), runner.calls.Load())

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("harness did not stop after cancellation")
	}
}

func waitAddr(t *testing.T, addrs <-chan net.Addr) net.Addr {
	t.Helper()

	select {
	case a := <-addrs:
		return a
	case <-time.After(10 * time.Second):
		t.Fatal("server did not start")
		return nil
	}
}

func get(t *testing.T, addr net.Addr, path string) string {
	t.Helper()

	var (
		resp *http.Response
		err  error
	)

	// Serve is entered right after the hook fires.
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + addr.String() + path)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return string(body)
}
