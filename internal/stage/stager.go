package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/hupe1980/filaserve/internal/layout"
)

// Fixed tool flags.
var (
	matcFlags  = []string{"-O", "-a", "opengl", "-p", "mobile"}
	cmgenFlags = []string{"--format=ktx", "--size=256", "--extract-blur=0.1"}
)

// Pattern is a glob evaluated inside Dir.
type Pattern struct {
	Dir  string
	Glob string
}

// Stager copies and builds assets into the serving directory.
type Stager struct {
	layout layout.Layout
	runner Runner
	logger *slog.Logger
}

// Option configures a Stager.
type Option func(*Stager)

// WithRunner overrides the tool runner (default: ExecRunner on the process streams).
func WithRunner(r Runner) Option {
	return func(s *Stager) {
		s.runner = r
	}
}

// WithLogger sets the logger for the Stager.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Stager) {
		s.logger = logger
	}
}

// New creates a Stager writing into l.ServeDir.
func New(l layout.Layout, opts ...Option) *Stager {
	s := &Stager{
		layout: l,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.runner == nil {
		s.runner = NewExecRunner(nil, nil)
	}

	return s
}

// Run executes a plan in order, stopping at the first error. Paths in the
// plan are expanded against the stager's layout.
func (s *Stager) Run(ctx context.Context, plan Plan) error {
	if err := plan.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	if err := s.layout.EnsureServeDir(); err != nil {
		return err
	}

	resolved := plan.Resolve(s.layout)

	s.logger.Info("copying assets", slog.String("serveDir", s.layout.ServeDir))

	for _, step := range resolved.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.apply(ctx, step); err != nil {
			return err
		}
	}

	return nil
}

func (s *Stager) apply(ctx context.Context, step Step) error {
	switch step.Kind {
	case KindCopyGlob:
		patterns := make([]Pattern, 0, len(step.Patterns))
		for _, p := range step.Patterns {
			patterns = append(patterns, Pattern{Dir: step.Dir, Glob: p})
		}

		return s.CopyAssets(ctx, patterns)
	case KindBuildMat:
		return s.BuildMaterial(ctx, step.Source, filepath.Join(s.layout.ServeDir, step.Dest))
	case KindBuildEnvMaps:
		return s.BuildEnvironmentMaps(ctx, step.Source, s.layout.ServeDir)
	case KindCopyFiles:
		return s.CopyNamedTextures(ctx, step.Files)
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// CopyAssets expands every pattern inside its directory and copies each
// matched file into the serving directory, overwriting existing files.
func (s *Stager) CopyAssets(ctx context.Context, patterns []Pattern) error {
	for _, p := range patterns {
		if err := ctx.Err(); err != nil {
			return err
		}

		matches, skipped, err := expandPatterns(p.Dir, []string{p.Glob})
		if err != nil {
			return err
		}

		for _, d := range skipped {
			s.logger.Warn("skipping directory match", slog.String("path", d))
		}

		s.logger.Debug("copying glob",
			slog.String("dir", p.Dir),
			slog.String("pattern", p.Glob),
			slog.Int("matches", len(matches)),
		)

		for _, m := range matches {
			if err := copyInto(m, s.layout.ServeDir); err != nil {
				return err
			}
		}
	}

	return nil
}

// BuildMaterial compiles a material description into dst with matc.
func (s *Stager) BuildMaterial(ctx context.Context, src, dst string) error {
	args := append(append([]string{}, matcFlags...), "-o", dst, src)

	s.logger.Info("invoking matc", slog.String("source", src), slog.String("dest", dst))

	return s.runner.Run(ctx, s.layout.Matc(), args...)
}

// BuildEnvironmentMaps generates the IBL and skybox textures of hdr into
// destDir with cmgen. Invocation is skipped when the IBL texture is already
// present in destDir; the skybox and file contents are not checked.
func (s *Stager) BuildEnvironmentMaps(ctx context.Context, hdr, destDir string) error {
	ibl, sky := envMapNames(hdr)

	if _, err := os.Stat(filepath.Join(destDir, ibl)); err == nil {
		s.logger.Info("skipping cmgen", slog.String("existing", ibl))
		return nil
	}

	args := append(append([]string{}, cmgenFlags...), "-x", destDir, hdr)

	s.logger.Info("invoking cmgen", slog.String("source", hdr))

	if err := s.runner.Run(ctx, s.layout.Cmgen(), args...); err != nil {
		return err
	}

	nested := filepath.Join(destDir, stem(hdr))
	for _, name := range []string{ibl, sky} {
		if err := os.Rename(filepath.Join(nested, name), filepath.Join(destDir, name)); err != nil {
			return fmt.Errorf("relocating %s: %w", name, err)
		}
	}

	if err := os.RemoveAll(nested); err != nil {
		return fmt.Errorf("removing %s: %w", nested, err)
	}

	return nil
}

// CopyNamedTextures copies each listed file into the serving directory.
func (s *Stager) CopyNamedTextures(ctx context.Context, files []string) error {
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := copyInto(f, s.layout.ServeDir); err != nil {
			return err
		}
	}

	return nil
}

// expandPatterns globs each pattern inside dir and returns the regular
// files matched, sorted, and the directories matched. Patterns may not
// leave dir.
func expandPatterns(dir string, patterns []string) (files, dirs []string, err error) {
	for _, p := range patterns {
		if err := checkRelative(p); err != nil {
			return nil, nil, fmt.Errorf("pattern %q: %w", p, err)
		}

		matches, err := filepath.Glob(filepath.Join(dir, p))
		if err != nil {
			return nil, nil, fmt.Errorf("expanding %q: %w", p, err)
		}

		for _, m := range matches {
			info, statErr := os.Stat(m)
			if statErr != nil {
				return nil, nil, fmt.Errorf("inspecting %s: %w", m, statErr)
			}

			if info.IsDir() {
				dirs = append(dirs, m)
				continue
			}

			files = append(files, m)
		}
	}

	sort.Strings(files)

	return files, dirs, nil
}

// copyInto copies src to dir/<base>, truncating any existing file and
// keeping the source permission bits.
func copyInto(src, dir string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", src, err)
	}

	if info.IsDir() {
		return fmt.Errorf("copying %s: %w", src, &fs.PathError{Op: "copy", Path: src, Err: errors.New("is a directory")})
	}

	dst := filepath.Join(dir, filepath.Base(src))

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", dst, err)
	}

	return nil
}
