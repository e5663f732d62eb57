package output

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type sample struct {
	Name  string   `yaml:"name" json:"name"`
	Files []string `yaml:"files" json:"files"`
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("upper", func(v any) ([]byte, error) {
		return []byte(strings.ToUpper(v.(string))), nil
	})

	enc, err := r.Encoder("upper")
	require.NoError(t, err)

	out, err := enc("abc")
	require.NoError(t, err)
	assert.Equal(t, "ABC", string(out))
}

func TestRegistry_UnknownFormat(t *testing.T) {
	_, err := DefaultRegistry().Encoder("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown output format "xml"`)
	assert.Contains(t, err.Error(), "json, yaml")

	_, err = NewRegistry().Encoder("yaml")
	assert.ErrorContains(t, err, "available: none")
}

func TestRegistry_Formats(t *testing.T) {
	assert.Equal(t, []string{"json", "yaml"}, DefaultRegistry().Formats())
}

func TestEncodeYAML(t *testing.T) {
	in := sample{Name: "parquet", Files: []string{"a.png", "b.png"}}

	data, err := EncodeYAML(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), "files:\n  - a.png\n")

	var back sample
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, in, back)
}

func TestEncodeJSON(t *testing.T) {
	in := sample{Name: "redball", Files: []string{"x.js"}}

	data, err := EncodeJSON(in)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "}\n"))

	var back sample
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, in, back)
}
