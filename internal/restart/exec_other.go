//go:build !unix

package restart

import "errors"

// Exec is not available on this platform; use the in-process supervisor.
func Exec() error {
	return errors.New("restart mode exec is not supported on this platform")
}
