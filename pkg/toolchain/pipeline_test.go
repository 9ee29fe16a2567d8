package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hephaestus-forge/hephaestus/pkg/sandbox"
)

// fakeExecutor records every command issued through the bridge. The hook,
// when set, runs per command and can write output or fail it.
type fakeExecutor struct {
	calls []sandbox.Command
	hook  func(cmd sandbox.Command) error
}

func (f *fakeExecutor) Exec(ctx context.Context, cmd sandbox.Command) error {
	f.calls = append(f.calls, cmd)
	if f.hook != nil {
		return f.hook(cmd)
	}
	return nil
}

func (f *fakeExecutor) programs() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Program
	}
	return out
}

func newTestContext(t *testing.T, exec Executor) BuildContext {
	t.Helper()
	return BuildContext{
		Target:  "i686-elf",
		BaseDir: t.TempDir(),
		WorkDir: "/build",
		Jobs:    4,
		Exec:    exec,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func loadTestStages(t *testing.T, versions map[string]string) []*Stage {
	t.Helper()
	specs, err := LoadStages(versions)
	require.NoError(t, err)
	return NewStages(specs)
}

func TestRunOrdering(t *testing.T) {
	exec := &fakeExecutor{}
	bc := newTestContext(t, exec)
	stages := loadTestStages(t, nil)

	require.NoError(t, Run(context.Background(), stages, bc))

	// Five commands per stage: download, extract, configure, build, install.
	require.Len(t, exec.calls, 15)
	wantPerStage := []string{"wget", "tar", "configure", "make", "make"}
	for i, stageName := range []string{"binutils", "gcc", "gdb"} {
		for j, want := range wantPerStage {
			cmd := exec.calls[i*5+j]
			if want == "configure" {
				assert.True(t, strings.HasSuffix(cmd.Program, "/configure"),
					"call %d program = %s", i*5+j, cmd.Program)
				assert.Contains(t, cmd.Program, stageName)
			} else {
				assert.Equal(t, want, cmd.Program, "call %d of stage %s", j, stageName)
			}
		}
	}

	// GCC's first command runs strictly after binutils' install, GDB's
	// after GCC's.
	assert.Equal(t, "install", exec.calls[4].Args[len(exec.calls[4].Args)-1])
	assert.Equal(t, "wget", exec.calls[5].Program)
	assert.Equal(t, "install-target-libgcc", exec.calls[9].Args[len(exec.calls[9].Args)-1])
	assert.Equal(t, "wget", exec.calls[10].Program)

	for _, st := range stages {
		assert.Equal(t, StatusDone, st.Status())
	}
}

func TestRunConfigureInvocation(t *testing.T) {
	exec := &fakeExecutor{}
	bc := newTestContext(t, exec)

	require.NoError(t, Run(context.Background(), loadTestStages(t, nil), bc))

	configure := exec.calls[2] // binutils configure
	assert.Equal(t, "/build/src/binutils-2.42/configure", configure.Program)
	assert.Equal(t, "/build/build-binutils", configure.WorkingDir)
	assert.Contains(t, configure.Args, "--target=i686-elf")
	assert.Contains(t, configure.Args, "--prefix=/build/i686-elf")
	assert.Contains(t, configure.Args, "--with-sysroot")
	// Installed binutils must be reachable from the later stages' PATH.
	assert.True(t, strings.HasPrefix(configure.Env["PATH"], "/build/i686-elf/bin:"))

	build := exec.calls[3]
	assert.Equal(t, []string{"-j", "4", "all"}, build.Args)
	assert.Equal(t, "/build/build-binutils", build.WorkingDir)
}

func TestRunVersionSubstitution(t *testing.T) {
	exec := &fakeExecutor{}
	bc := newTestContext(t, exec)
	stages := loadTestStages(t, map[string]string{"gdb": "16.3"})

	require.NoError(t, Run(context.Background(), stages, bc))

	gdbDownload := exec.calls[10]
	assert.Contains(t, gdbDownload.Args, "https://ftp.gnu.org/gnu/gdb/gdb-16.3.tar.xz")
	gdbConfigure := exec.calls[12]
	assert.Equal(t, "/build/src/gdb-16.3/configure", gdbConfigure.Program)

	// Other stages keep their table defaults.
	assert.Contains(t, exec.calls[0].Args, "https://ftp.gnu.org/gnu/binutils/binutils-2.42.tar.xz")
}

func TestRunFailFast(t *testing.T) {
	exec := &fakeExecutor{}
	exec.hook = func(cmd sandbox.Command) error {
		if strings.Contains(cmd.Program, "gcc") && strings.HasSuffix(cmd.Program, "/configure") {
			return &sandbox.ExitError{Program: cmd.Program, Code: 77}
		}
		return nil
	}
	bc := newTestContext(t, exec)
	stages := loadTestStages(t, nil)

	err := Run(context.Background(), stages, bc)
	require.Error(t, err)

	var exitErr *sandbox.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 77, exitErr.Code)

	// No command of a later stage is ever issued.
	for _, cmd := range exec.calls {
		assert.NotContains(t, cmd.Program, "gdb")
		for _, arg := range cmd.Args {
			assert.NotContains(t, arg, "gdb")
		}
	}
	require.Len(t, exec.calls, 8) // binutils ×5, gcc wget+tar+configure

	assert.Equal(t, StatusDone, stages[0].Status())
	assert.Equal(t, StatusFailed, stages[1].Status())
	assert.Equal(t, StatusPending, stages[2].Status())
}

func TestRunRelocatesConfigLog(t *testing.T) {
	bc := newTestContext(t, nil)
	exec := &fakeExecutor{}
	exec.hook = func(cmd sandbox.Command) error {
		if strings.HasSuffix(cmd.Program, "/configure") {
			// Simulate configure writing config.log into the build dir.
			buildDir := filepath.Join(bc.BaseDir, filepath.Base(cmd.WorkingDir))
			content := fmt.Sprintf("configured %s\n", cmd.Program)
			return os.WriteFile(filepath.Join(buildDir, "config.log"), []byte(content), 0o644)
		}
		return nil
	}
	bc.Exec = exec

	require.NoError(t, Run(context.Background(), loadTestStages(t, nil), bc))

	for _, stage := range []string{"binutils", "gcc", "gdb"} {
		logPath := filepath.Join(bc.BaseDir, stage+"-config.log")
		data, err := os.ReadFile(logPath)
		require.NoError(t, err, "missing %s", logPath)
		assert.Contains(t, string(data), stage)

		// The ephemeral copy was moved, not duplicated.
		_, err = os.Stat(filepath.Join(bc.BaseDir, "build-"+stage, "config.log"))
		assert.True(t, os.IsNotExist(err))
	}
}

func TestRunConfigLogSurvivesFailure(t *testing.T) {
	exec := &fakeExecutor{}
	exec.hook = func(cmd sandbox.Command) error {
		if strings.HasSuffix(cmd.Program, "/configure") {
			// Die before config.log exists; only streamed output remains.
			fmt.Fprintln(cmd.Stderr, "configure: error: C compiler cannot create executables")
			return &sandbox.ExitError{Program: cmd.Program, Code: 1}
		}
		return nil
	}
	bc := newTestContext(t, exec)

	err := Run(context.Background(), loadTestStages(t, nil), bc)
	require.Error(t, err)

	data, err := os.ReadFile(filepath.Join(bc.BaseDir, "binutils-config.log"))
	require.NoError(t, err, "config log must exist even when configure fails")
	assert.Contains(t, string(data), "cannot create executables")
}
