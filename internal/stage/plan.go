package stage

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/filaserve/internal/layout"
)

// StepKind identifies what a plan step does.
type StepKind string

// Supported step kinds.
const (
	KindCopyGlob     StepKind = "copy-glob"
	KindBuildMat     StepKind = "build-material"
	KindBuildEnvMaps StepKind = "build-environment-maps"
	KindCopyFiles    StepKind = "copy-files"
)

// Step is one staging action. Paths may use the layout placeholders
// ($ROOT, $HARNESS, $BUILD, $TOOLS, $SERVE, $VENDOR); relative paths are
// anchored at the repository root.
type Step struct {
	Kind StepKind `yaml:"kind" json:"kind"`

	// Dir and Patterns drive copy-glob steps.
	Dir      string   `yaml:"dir,omitempty" json:"dir,omitempty"`
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`

	// Source is the material description or HDR image of build steps.
	Source string `yaml:"source,omitempty" json:"source,omitempty"`

	// Dest is the material artifact name inside the serving directory.
	Dest string `yaml:"dest,omitempty" json:"dest,omitempty"`

	// Files lists the sources of copy-files steps.
	Files []string `yaml:"files,omitempty" json:"files,omitempty"`
}

// Plan is the ordered list of staging steps.
type Plan struct {
	Steps []Step `yaml:"steps" json:"steps"`
}

const (
	samplePublic = "$BUILD/samples/web/public"
	parquetSrc   = "android/samples/textured-object/app/src/main"
	textureDir   = parquetSrc + "/res/drawable-v24"
)

// DefaultPlan returns the asset set of the filament.js browser tests.
func DefaultPlan() Plan {
	return Plan{Steps: []Step{
		{Kind: KindCopyGlob, Dir: samplePublic + "/material", Patterns: []string{"*"}},
		{Kind: KindCopyGlob, Dir: samplePublic + "/monkey", Patterns: []string{"*"}},
		{Kind: KindCopyGlob, Dir: samplePublic + "/pillars_2k", Patterns: []string{"*"}},
		{Kind: KindCopyGlob, Dir: "$VENDOR", Patterns: []string{"*.js"}},
		{Kind: KindCopyGlob, Dir: "$HARNESS", Patterns: []string{"test_*.*"}},
		{Kind: KindBuildMat, Source: parquetSrc + "/materials/textured_pbr.mat", Dest: "parquet.filamat"},
		{Kind: KindBuildEnvMaps, Source: "third_party/environments/venetian_crossroads_2k.hdr"},
		{Kind: KindCopyFiles, Files: []string{
			parquetSrc + "/assets/models/shader_ball.filamesh",
			textureDir + "/floor_ao_roughness_metallic.png",
			textureDir + "/floor_basecolor.png",
			textureDir + "/floor_normal.png",
		}},
	}}
}

// Validate checks that every step carries the fields its kind needs.
func (p Plan) Validate() error {
	for i, s := range p.Steps {
		if err := s.validate(); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, s.Kind, err)
		}
	}

	return nil
}

func (s Step) validate() error {
	switch s.Kind {
	case KindCopyGlob:
		if s.Dir == "" || len(s.Patterns) == 0 {
			return fmt.Errorf("dir and patterns are required")
		}

		for _, p := range s.Patterns {
			if err := checkRelative(p); err != nil {
				return fmt.Errorf("pattern %q: %w", p, err)
			}
		}
	case KindBuildMat:
		if s.Source == "" || s.Dest == "" {
			return fmt.Errorf("source and dest are required")
		}

		if err := checkRelative(s.Dest); err != nil {
			return fmt.Errorf("dest %q: %w", s.Dest, err)
		}
	case KindBuildEnvMaps:
		if s.Source == "" {
			return fmt.Errorf("source is required")
		}
	case KindCopyFiles:
		if len(s.Files) == 0 {
			return fmt.Errorf("files are required")
		}
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}

	return nil
}

// Resolve returns a copy of the plan with every path expanded against l.
func (p Plan) Resolve(l layout.Layout) Plan {
	out := Plan{Steps: make([]Step, 0, len(p.Steps))}

	for _, s := range p.Steps {
		r := s
		if s.Dir != "" {
			r.Dir = l.Expand(s.Dir)
		}

		if s.Source != "" {
			r.Source = l.Expand(s.Source)
		}

		if len(s.Files) > 0 {
			r.Files = make([]string, len(s.Files))
			for i, f := range s.Files {
				r.Files[i] = l.Expand(f)
			}
		}

		out.Steps = append(out.Steps, r)
	}

	return out
}

// Expected lists the file names a resolved plan places into the serving
// directory, sorted. Globs are evaluated against the current filesystem.
func (p Plan) Expected() ([]string, error) {
	seen := map[string]struct{}{}

	for _, s := range p.Steps {
		switch s.Kind {
		case KindCopyGlob:
			matches, _, err := expandPatterns(s.Dir, s.Patterns)
			if err != nil {
				return nil, err
			}

			for _, m := range matches {
				seen[filepath.Base(m)] = struct{}{}
			}
		case KindBuildMat:
			seen[filepath.Base(s.Dest)] = struct{}{}
		case KindBuildEnvMaps:
			ibl, sky := envMapNames(s.Source)
			seen[ibl] = struct{}{}
			seen[sky] = struct{}{}
		case KindCopyFiles:
			for _, f := range s.Files {
				seen[filepath.Base(f)] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}

	sort.Strings(names)

	return names, nil
}

// EnvMapStems returns the base names of all HDR inputs in the plan.
func (p Plan) EnvMapStems() []string {
	var stems []string

	for _, s := range p.Steps {
		if s.Kind == KindBuildEnvMaps {
			stems = append(stems, stem(s.Source))
		}
	}

	return stems
}

// envMapNames returns the IBL and skybox file names cmgen derives from hdr.
func envMapNames(hdr string) (ibl, skybox string) {
	s := stem(hdr)
	return s + "_ibl.ktx", s + "_skybox.ktx"
}

func stem(p string) string {
	base := filepath.Base(p)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// checkRelative rejects absolute paths and parent-directory elements.
func checkRelative(p string) error {
	if filepath.IsAbs(p) || strings.HasPrefix(p, "/") {
		return ErrPatternEscapes
	}

	for _, elem := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if elem == ".." {
			return ErrPatternEscapes
		}
	}

	return nil
}
