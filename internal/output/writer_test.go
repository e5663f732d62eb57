package output

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamWriter_Write(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewStreamWriter(&buf).Write([]byte("version: \"1.0\"\n")))
	assert.Equal(t, "version: \"1.0\"\n", buf.String())
}

func TestStreamWriter_NilDefault(t *testing.T) {
	assert.NotNil(t, NewStreamWriter(nil))
}

func TestFileWriter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deep", "nested", "assets.yaml")

	w := NewFileWriter(path)
	require.NoError(t, w.Write([]byte("steps: []\n")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "steps: []\n", string(got))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
	assert.Equal(t, path, w.Path())
}

func TestFileWriter_CustomPermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "private.yaml")

	require.NoError(t, NewFileWriter(path, WithPermissions(0o600)).Write([]byte("x")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileWriter_OverwriteWarns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	require.NoError(t, NewFileWriter(path, WithLogger(logger)).Write([]byte("new")))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
	assert.Contains(t, logs.String(), "overwriting existing file")
}

func TestFor(t *testing.T) {
	assert.IsType(t, &StreamWriter{}, For("", io.Discard))
	assert.IsType(t, &FileWriter{}, For("out.yaml", io.Discard))
}
