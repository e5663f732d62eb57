// Package harness composes the watcher, the asset stager, the static server
// and the restart controller into one process generation, and runs
// generations until the harness is stopped.
package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/hupe1980/filaserve/internal/config"
	"github.com/hupe1980/filaserve/internal/layout"
	"github.com/hupe1980/filaserve/internal/restart"
	"github.com/hupe1980/filaserve/internal/serve"
	"github.com/hupe1980/filaserve/internal/stage"
	"github.com/hupe1980/filaserve/internal/watch"
)

// EntryPages are the test pages announced when serving starts.
var EntryPages = []string{"test_redball.html", "test_parquet.html"}

// Harness runs the watch, stage, serve and restart cycle.
type Harness struct {
	cfg     *config.Config
	layout  layout.Layout
	runner  stage.Runner
	out     io.Writer
	logger  *slog.Logger
	addr    string
	workDir string
	onServe func(net.Addr)
}

// Option configures a Harness.
type Option func(*Harness)

// WithRunner overrides the external tool runner.
func WithRunner(r stage.Runner) Option {
	return func(h *Harness) {
		h.runner = r
	}
}

// WithOutput sets the writer for user-facing status lines.
func WithOutput(w io.Writer) Option {
	return func(h *Harness) {
		h.out = w
	}
}

// WithLogger sets the logger for the Harness.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// WithListenAddr overrides the ":<port>" address derived from the config.
func WithListenAddr(addr string) Option {
	return func(h *Harness) {
		h.addr = addr
	}
}

// WithOnServe registers a hook called each generation once the listener
// is bound and staging has completed.
func WithOnServe(fn func(net.Addr)) Option {
	return func(h *Harness) {
		h.onServe = fn
	}
}

// New creates a Harness for cfg and the resolved layout l.
func New(cfg *config.Config, l layout.Layout, opts ...Option) (*Harness, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}

	h := &Harness{
		cfg:     cfg,
		layout:  l,
		out:     os.Stderr,
		logger:  slog.Default(),
		addr:    net.JoinHostPort("", strconv.Itoa(cfg.Port)),
		workDir: wd,
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.runner == nil {
		h.runner = stage.NewExecRunner(h.out, h.out)
	}

	return h, nil
}

// Plan returns the staging plan: the manifest when configured, otherwise
// the built-in plan. It is re-read every generation.
func (h *Harness) Plan() (stage.Plan, error) {
	if h.cfg.Manifest == "" {
		return stage.DefaultPlan(), nil
	}

	return stage.LoadManifest(h.cfg.Manifest)
}

// Stage runs the staging plan once.
func (h *Harness) Stage(ctx context.Context) error {
	plan, err := h.Plan()
	if err != nil {
		return err
	}

	s := stage.New(h.layout, stage.WithRunner(h.runner), stage.WithLogger(h.logger.With(slog.String("component", "stager"))))

	return s.Run(ctx, plan)
}

// Run executes generations until ctx is cancelled or a generation fails.
func (h *Harness) Run(ctx context.Context) error {
	opts := []restart.ControllerOption{restart.WithWorkDir(h.workDir)}

	if h.cfg.RestartMode == config.RestartModeExec {
		opts = append(opts, restart.WithThen(func() {
			if err := restart.Exec(); err != nil {
				h.logger.Error("exec restart failed, restarting in process", slog.String("error", err.Error()))
			}
		}))
	}

	return restart.NewSupervisor(h.logger, opts...).Run(ctx, h.Generation)
}

// Generation runs one process generation: arm the watcher, stage every
// asset, then serve until ctrl restarts or ctx is cancelled.
func (h *Harness) Generation(ctx context.Context, ctrl *restart.Controller) error {
	w, err := watch.New(watch.Options{
		Root:        h.layout.HarnessDir,
		IgnorePaths: []string{h.layout.ServeDir},
		Ignore:      h.cfg.Ignore,
		Debounce:    h.cfg.Debounce,
		Logger:      h.logger.With(slog.String("component", "watcher")),
	}, func(ev watch.Event) {
		ctrl.Notify(ev.Path)
	})
	if err != nil {
		return err
	}

	if err := w.Start(); err != nil {
		return err
	}
	defer w.Close()

	if err := h.Stage(ctx); err != nil {
		return err
	}

	if ctrl.State() == restart.Restarting {
		// A change landed while staging; start over before serving.
		return restart.ErrRestart
	}

	srv := serve.New(h.layout.ServeDir,
		serve.WithLogger(h.logger.With(slog.String("component", "server"))),
		serve.WithOnServe(h.announce),
	)

	ctrl.Bind(srv)

	if ctrl.State() == restart.Restarting {
		return restart.ErrRestart
	}

	ln, err := serve.Listen(ctx, h.addr)
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		_ = srv.Shutdown(context.Background())
	})
	defer stop()

	if err := srv.Serve(ln); err != nil {
		return err
	}

	if ctrl.State() == restart.Restarting {
		<-ctrl.Restarted()
		return restart.ErrRestart
	}

	return ctx.Err()
}

func (h *Harness) announce(addr net.Addr) {
	port := h.cfg.Port
	if tcp, ok := addr.(*net.TCPAddr); ok {
		port = tcp.Port
	}

	fmt.Fprintf(h.out, "Serving %s...\n", h.layout.ServeDir)

	for _, page := range EntryPages {
		fmt.Fprintf(h.out, "    http://localhost:%d/%s\n", port, page)
	}

	if h.onServe != nil {
		h.onServe(addr)
	}
}
