package restart

import (
	"context"
	"errors"
	"log/slog"
)

// Generation runs one lifetime of the harness. It must return once ctrl
// has restarted or ctx is done. Returning ErrRestart (or nil after a
// restart) starts the next generation.
type Generation func(ctx context.Context, ctrl *Controller) error

// Supervisor runs generations back to back inside one process.
type Supervisor struct {
	logger  *slog.Logger
	options []ControllerOption
}

// NewSupervisor creates a Supervisor. The options apply to the controller
// of every generation.
func NewSupervisor(logger *slog.Logger, opts ...ControllerOption) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Supervisor{logger: logger, options: opts}
}

// Run starts generations until ctx is cancelled (nil error) or a
// generation fails (its error).
func (s *Supervisor) Run(ctx context.Context, gen Generation) error {
	for n := 1; ; n++ {
		if ctx.Err() != nil {
			return nil
		}

		opts := append([]ControllerOption{WithLogger(s.logger.With(slog.Int("generation", n)))}, s.options...)
		ctrl := NewController(opts...)

		s.logger.Debug("starting generation", slog.Int("generation", n))

		err := gen(ctx, ctrl)

		switch {
		case ctrl.State() == Restarting || errors.Is(err, ErrRestart):
			continue
		case ctx.Err() != nil:
			return nil
		case err != nil:
			return err
		default:
			// The generation stopped without a change or a cancellation.
			return nil
		}
	}
}
