package stage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// ManifestVersion is the format version written by MarshalManifest.
const ManifestVersion = "1.0"

// ManifestConstraint is the range of manifest format versions this build reads.
const ManifestConstraint = ">= 1.0.0, < 2.0.0"

// Manifest is the on-disk form of a staging plan.
//
//	version: "1.0"
//	steps:
//	  - kind: copy-glob
//	    dir: $HARNESS
//	    patterns: ["test_*.*"]
type Manifest struct {
	Version string `yaml:"version" json:"version"`
	Plan    `yaml:",inline"`
}

// LoadManifest reads a manifest file and returns its plan.
func LoadManifest(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	plan, err := ParseManifest(data)
	if err != nil {
		return Plan{}, fmt.Errorf("manifest %s: %w", path, err)
	}

	return plan, nil
}

// ParseManifest decodes manifest YAML, rejecting unknown fields, unsupported
// versions and invalid steps.
func ParseManifest(data []byte) (Plan, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return Plan{}, fmt.Errorf("empty manifest")
		}

		return Plan{}, fmt.Errorf("parsing manifest: %w", err)
	}

	if err := checkVersion(m.Version); err != nil {
		return Plan{}, err
	}

	if err := m.Plan.Validate(); err != nil {
		return Plan{}, err
	}

	return m.Plan, nil
}

// MarshalManifest encodes plan as a manifest at the current format version.
func MarshalManifest(plan Plan) ([]byte, error) {
	var buf bytes.Buffer

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(Manifest{Version: ManifestVersion, Plan: plan}); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}

	return buf.Bytes(), nil
}

func checkVersion(v string) error {
	if v == "" {
		return fmt.Errorf("manifest version is required")
	}

	c, err := semver.NewConstraint(ManifestConstraint)
	if err != nil {
		return fmt.Errorf("parsing constraint: %w", err)
	}

	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid manifest version %q: %w", v, err)
	}

	if !c.Check(ver) {
		return fmt.Errorf("unsupported manifest version %s (supported: %s)", v, ManifestConstraint)
	}

	return nil
}
