package restart

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"time"
)

// ErrRestart reports that a generation ended because a file changed.
var ErrRestart = errors.New("restart requested")

// State is the lifecycle state of a generation.
type State int32

// Generation states.
const (
	Running State = iota
	Restarting
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Restarting:
		return "restarting"
	default:
		return "unknown"
	}
}

// Shutdowner stops the server of the current generation and unblocks its
// serving loop.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// ShutdownFunc adapts a function to Shutdowner.
type ShutdownFunc func(ctx context.Context) error

// Shutdown calls f(ctx).
func (f ShutdownFunc) Shutdown(ctx context.Context) error { return f(ctx) }

// DefaultShutdownTimeout bounds how long in-flight requests may delay a restart.
const DefaultShutdownTimeout = 2 * time.Second

// Controller converts the first modification of a generation into a restart.
type Controller struct {
	state     atomic.Int32
	server    atomic.Pointer[Shutdowner]
	workDir   string
	timeout   time.Duration
	logger    *slog.Logger
	restarted chan struct{}
	then      func()
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithWorkDir sets the directory restored before the restart completes.
func WithWorkDir(dir string) ControllerOption {
	return func(c *Controller) {
		c.workDir = dir
	}
}

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithLogger sets the logger for the Controller.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithThen runs fn as the last step of the transition, after the server
// stopped and the working directory was restored. Exec uses this hook.
func WithThen(fn func()) ControllerOption {
	return func(c *Controller) {
		c.then = fn
	}
}

// NewController returns a controller in the Running state.
func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		timeout:   DefaultShutdownTimeout,
		logger:    slog.Default(),
		restarted: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Bind hands the controller the shutdown capability of the generation's
// server. It is called once, before serving starts.
func (c *Controller) Bind(s Shutdowner) {
	c.server.Store(&s)
}

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Restarted is closed once the transition to Restarting has completed.
func (c *Controller) Restarted() <-chan struct{} {
	return c.restarted
}

// Notify handles a modification of path. The first call moves the
// controller to Restarting, stops the bound server and restores the
// working directory; later calls are ignored.
func (c *Controller) Notify(path string) {
	if !c.state.CompareAndSwap(int32(Running), int32(Restarting)) {
		return
	}

	c.logger.Info("file modified, restarting", slog.String("path", path))

	if s := c.server.Load(); s != nil && *s != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		if err := (*s).Shutdown(ctx); err != nil {
			c.logger.Warn("server shutdown", slog.String("error", err.Error()))
		}
		cancel()
	}

	if c.workDir != "" {
		if err := os.Chdir(c.workDir); err != nil {
			c.logger.Warn("restoring working directory",
				slog.String("dir", c.workDir),
				slog.String("error", err.Error()),
			)
		}
	}

	close(c.restarted)

	if c.then != nil {
		c.then()
	}
}
