package toolchain

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"

	"github.com/hephaestus-forge/hephaestus/pkg/sandbox"
)

// Status tracks a stage through its lifecycle.
type Status string

const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusExtracting  Status = "extracting"
	StatusConfiguring Status = "configuring"
	StatusBuilding    Status = "building"
	StatusInstalling  Status = "installing"
	StatusDone        Status = "done"
	StatusFailed      Status = "failed"
)

// Stage is one component's download→configure→build→install lifecycle.
type Stage struct {
	Spec   StageSpec
	status Status
}

// NewStages wraps specs in pipeline stages, preserving order.
func NewStages(specs []StageSpec) []*Stage {
	stages := make([]*Stage, len(specs))
	for i, spec := range specs {
		stages[i] = &Stage{Spec: spec, status: StatusPending}
	}
	return stages
}

// Status returns the stage's current lifecycle state.
func (s *Stage) Status() Status { return s.status }

// Run executes the stage's steps in order. The first failing step marks
// the stage Failed and aborts; nothing is retried.
func (s *Stage) Run(ctx context.Context, bc BuildContext) (err error) {
	defer func() {
		if err != nil {
			s.status = StatusFailed
		}
	}()

	s.status = StatusDownloading
	if err = s.download(ctx, bc); err != nil {
		return fmt.Errorf("download: %w", err)
	}

	s.status = StatusExtracting
	if err = s.extract(ctx, bc); err != nil {
		return fmt.Errorf("extract: %w", err)
	}

	s.status = StatusConfiguring
	if err = s.configure(ctx, bc); err != nil {
		return fmt.Errorf("configure: %w", err)
	}

	s.status = StatusBuilding
	if err = s.build(ctx, bc); err != nil {
		return fmt.Errorf("build: %w", err)
	}

	s.status = StatusInstalling
	if err = s.install(ctx, bc); err != nil {
		return fmt.Errorf("install: %w", err)
	}

	s.status = StatusDone
	return nil
}

func (s *Stage) download(ctx context.Context, bc BuildContext) error {
	return bc.Exec.Exec(ctx, sandbox.Command{
		Program:    "wget",
		Args:       []string{"-nv", "-O", s.archivePath(bc), s.Spec.ArchiveURL()},
		WorkingDir: bc.WorkDir,
		Stdout:     bc.Stdout,
		Stderr:     bc.Stderr,
	})
}

func (s *Stage) extract(ctx context.Context, bc BuildContext) error {
	return bc.Exec.Exec(ctx, sandbox.Command{
		Program:    "tar",
		Args:       []string{"-xf", s.archivePath(bc), "-C", bc.srcDir()},
		WorkingDir: bc.WorkDir,
		Stdout:     bc.Stdout,
		Stderr:     bc.Stderr,
	})
}

// configure runs the component's configure script in a fresh out-of-tree
// build directory. Whatever the outcome, the configuration log ends up at
// <BaseDir>/<stage>-config.log before this step returns.
func (s *Stage) configure(ctx context.Context, bc BuildContext) (err error) {
	hostBuildDir := filepath.Join(bc.BaseDir, s.buildDirName())
	if err := os.RemoveAll(hostBuildDir); err != nil {
		return fmt.Errorf("reset build dir: %w", err)
	}
	if err := os.MkdirAll(hostBuildDir, 0o755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}

	var captured bytes.Buffer
	defer func() {
		if relErr := s.relocateConfigLog(bc, hostBuildDir, captured.Bytes()); relErr != nil && err == nil {
			err = relErr
		}
	}()

	stdout := io.Writer(&captured)
	stderr := io.Writer(&captured)
	if bc.Stdout != nil {
		stdout = io.MultiWriter(&captured, bc.Stdout)
	}
	if bc.Stderr != nil {
		stderr = io.MultiWriter(&captured, bc.Stderr)
	}

	script := path.Join(bc.srcDir(), s.Spec.SourceDirName(), "configure")
	args := append([]string{
		"--target=" + bc.Target,
		"--prefix=" + bc.prefixDir(),
	}, s.Spec.ConfigureFlags...)

	return bc.Exec.Exec(ctx, sandbox.Command{
		Program:    script,
		Args:       args,
		Env:        bc.pathEnv(),
		WorkingDir: path.Join(bc.WorkDir, s.buildDirName()),
		Stdout:     stdout,
		Stderr:     stderr,
	})
}

// relocateConfigLog moves configure's config.log out of the disposable
// build directory to a stable per-stage path. When configure died before
// writing one, the captured output stands in, so the log always exists.
func (s *Stage) relocateConfigLog(bc BuildContext, hostBuildDir string, captured []byte) error {
	dst := filepath.Join(bc.BaseDir, s.Spec.Name+"-config.log")
	src := filepath.Join(hostBuildDir, "config.log")
	if _, err := os.Stat(src); err == nil {
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("relocate config log: %w", err)
		}
		return nil
	}
	if err := os.WriteFile(dst, captured, 0o644); err != nil {
		return fmt.Errorf("write config log: %w", err)
	}
	return nil
}

func (s *Stage) build(ctx context.Context, bc BuildContext) error {
	args := append([]string{"-j", strconv.Itoa(bc.Jobs)}, s.Spec.BuildTargets...)
	return s.make(ctx, bc, args)
}

func (s *Stage) install(ctx context.Context, bc BuildContext) error {
	return s.make(ctx, bc, s.Spec.InstallTargets)
}

func (s *Stage) make(ctx context.Context, bc BuildContext, args []string) error {
	return bc.Exec.Exec(ctx, sandbox.Command{
		Program:    "make",
		Args:       args,
		Env:        bc.pathEnv(),
		WorkingDir: path.Join(bc.WorkDir, s.buildDirName()),
		Stdout:     bc.Stdout,
		Stderr:     bc.Stderr,
	})
}

func (s *Stage) buildDirName() string {
	return "build-" + s.Spec.Name
}

func (s *Stage) archivePath(bc BuildContext) string {
	return path.Join(bc.srcDir(), s.Spec.ArchiveName())
}
