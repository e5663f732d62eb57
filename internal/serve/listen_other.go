//go:build !unix

package serve

import "syscall"

// Non-unix platforms keep the runtime's default socket options.
func reuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}
