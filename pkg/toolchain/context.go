package toolchain

import (
	"context"
	"io"
	"log/slog"
	"path"

	"github.com/hephaestus-forge/hephaestus/pkg/sandbox"
)

// SourceSubdir is the shared source-staging directory under the
// workspace root, on both sides of the mount.
const SourceSubdir = "src"

// Executor runs a command in the sandbox. *sandbox.Session satisfies it.
type Executor interface {
	Exec(ctx context.Context, cmd sandbox.Command) error
}

// BuildContext carries the run-wide parameters every stage reads. It is
// never written to by stages.
type BuildContext struct {
	// Target is the architecture triple the toolchain will emit code for.
	Target string
	// BaseDir is the host path of the workspace root.
	BaseDir string
	// WorkDir is the same directory as seen inside the sandbox.
	WorkDir string
	// Jobs is the parallelism factor passed to each build step.
	Jobs int
	// Exec is the command bridge into the running sandbox.
	Exec Executor

	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

// srcDir is the sandbox path of the source-staging directory.
func (bc BuildContext) srcDir() string {
	return path.Join(bc.WorkDir, SourceSubdir)
}

// prefixDir is the sandbox path of the architecture-scoped install
// prefix. Later stages find earlier stages' binaries under it.
func (bc BuildContext) prefixDir() string {
	return path.Join(bc.WorkDir, bc.Target)
}

// pathEnv puts the shared prefix's bin directory ahead of the sandbox
// defaults, so GCC's configure sees the binutils installed before it.
func (bc BuildContext) pathEnv() map[string]string {
	return map[string]string{
		"PATH": path.Join(bc.prefixDir(), "bin") + ":/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
	}
}
