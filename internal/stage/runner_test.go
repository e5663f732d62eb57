//go:build !windows

package stage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "tool.sh")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755))

	return p
}

func TestExecRunner_Success(t *testing.T) {
	var stdout, stderr bytes.Buffer
	r := NewExecRunner(&stdout, &stderr)

	script := writeScript(t, `echo "compiled $1"; echo warn >&2`)
	require.NoError(t, r.Run(context.Background(), script, "mat"))

	assert.Equal(t, "compiled mat\n", stdout.String())
	assert.Equal(t, "warn\n", stderr.String())
}

func TestExecRunner_ExitCode(t *testing.T) {
	r := NewExecRunner(&bytes.Buffer{}, &bytes.Buffer{})

	script := writeScript(t, "exit 7")
	err := r.Run(context.Background(), script, "-O")

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 7, toolErr.ExitCode)
	assert.Equal(t, []string{"-O"}, toolErr.Args)
	assert.Contains(t, toolErr.Error(), "exit code 7")
}

func TestExecRunner_MissingExecutable(t *testing.T) {
	r := NewExecRunner(&bytes.Buffer{}, &bytes.Buffer{})

	err := r.Run(context.Background(), filepath.Join(t.TempDir(), "matc"))

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, 127, toolErr.ExitCode)
}
