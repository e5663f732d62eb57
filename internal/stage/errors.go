package stage

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPatternEscapes is returned when a copy pattern or destination name
// would resolve outside of its base directory.
var ErrPatternEscapes = errors.New("path escapes its base directory")

// ToolError reports an external tool invocation that did not succeed.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Err      error
}

func (e *ToolError) Error() string {
	cmdline := strings.TrimSpace(e.Tool + " " + strings.Join(e.Args, " "))

	if e.Err != nil {
		return fmt.Sprintf("%s failed with exit code %d: %v", cmdline, e.ExitCode, e.Err)
	}

	return fmt.Sprintf("%s failed with exit code %d", cmdline, e.ExitCode)
}

func (e *ToolError) Unwrap() error { return e.Err }
