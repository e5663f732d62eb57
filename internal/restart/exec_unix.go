//go:build unix

package restart

import (
	"fmt"
	"os"
	"syscall"
)

// Exec replaces the current process image with a fresh invocation of the
// same executable, arguments and environment. It only returns on failure.
func Exec() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}

	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("re-executing %s: %w", exe, err)
	}

	return nil
}
