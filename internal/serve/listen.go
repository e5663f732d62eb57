package serve

import (
	"context"
	"fmt"
	"net"
)

// Listen opens a TCP listener on addr with SO_REUSEADDR set so that a
// port released by the previous generation can be bound again at once.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: reuseAddr}

	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	return ln, nil
}
