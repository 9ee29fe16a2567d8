package sandbox

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// Command is one program invocation inside the sandbox. Program and Args
// cross the boundary as an argv array, never as a shell string, so the
// sandbox side performs no re-quoting or word splitting.
type Command struct {
	Program    string
	Args       []string
	Env        map[string]string
	WorkingDir string
	Stdout     io.Writer
	Stderr     io.Writer
}

// ExitError reports a sandboxed command that exited non-zero. Every
// caller treats it as fatal.
type ExitError struct {
	Program string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Program, e.Code)
}

// Exec runs cmd inside the sandbox identified by h, blocking until it
// exits. Entries of cmd.Env are exported into the command's environment.
// A non-zero exit status is returned as *ExitError.
func (m *Manager) Exec(ctx context.Context, h *Handle, cmd Command) error {
	m.logger.Debug("exec", "program", cmd.Program, "args", cmd.Args, "workdir", cmd.WorkingDir)

	created, err := m.client.ContainerExecCreate(ctx, h.id, container.ExecOptions{
		Cmd:          append([]string{cmd.Program}, cmd.Args...),
		Env:          envList(cmd.Env),
		WorkingDir:   cmd.WorkingDir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create exec: %w", err)
	}

	resp, err := m.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return fmt.Errorf("failed to attach exec: %w", err)
	}
	defer resp.Close()

	stdout := cmd.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := cmd.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	// The hijacked stream does not observe ctx on its own: an interrupt
	// must not stay blocked behind an in-flight command, or teardown
	// would wait for it. Closing the connection unblocks the copy.
	copied := make(chan error, 1)
	go func() {
		_, copyErr := stdcopy.StdCopy(stdout, stderr, resp.Reader)
		copied <- copyErr
	}()

	select {
	case <-ctx.Done():
		resp.Close()
		<-copied
		return ctx.Err()
	case err := <-copied:
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to stream exec output: %w", err)
		}
	}

	inspect, err := m.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return fmt.Errorf("failed to inspect exec: %w", err)
	}
	if inspect.ExitCode != 0 {
		return &ExitError{Program: cmd.Program, Code: inspect.ExitCode}
	}
	return nil
}

// envList flattens the env map into NAME=value form, sorted so exec
// creation is deterministic.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	list := make([]string, 0, len(env))
	for k, v := range env {
		list = append(list, k+"="+v)
	}
	sort.Strings(list)
	return list
}

// Session is the exec bridge scoped to one running sandbox.
type Session struct {
	m *Manager
	h *Handle
}

// Exec runs cmd in the session's sandbox.
func (s *Session) Exec(ctx context.Context, cmd Command) error {
	return s.m.Exec(ctx, s.h, cmd)
}
