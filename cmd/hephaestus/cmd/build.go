package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hephaestus-forge/hephaestus/pkg/config"
	"github.com/hephaestus-forge/hephaestus/pkg/hostcheck"
	"github.com/hephaestus-forge/hephaestus/pkg/layout"
	"github.com/hephaestus-forge/hephaestus/pkg/sandbox"
	"github.com/hephaestus-forge/hephaestus/pkg/toolchain"
)

const stopTimeout = 30 * time.Second

func runBuild(cmd *cobra.Command, args []string) error {
	// Usage output is for flag mistakes, not runtime failures.
	cmd.SilenceUsage = true

	settings := config.Load()
	logger := newLogger(settings.Debug)

	if err := hostcheck.Verify("docker"); err != nil {
		return err
	}

	base := buildDir
	if base == "" {
		base = settings.BuildDir
	}
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return fmt.Errorf("resolve build dir: %w", err)
	}

	if err := layout.Prepare(
		baseAbs,
		filepath.Join(baseAbs, toolchain.SourceSubdir),
		filepath.Join(baseAbs, target),
	); err != nil {
		return err
	}

	specs, err := toolchain.LoadStages(map[string]string{
		"binutils": binutilsVersion,
		"gcc":      gccVersion,
		"gdb":      gdbVersion,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sbCfg := sandbox.DefaultConfig(baseAbs)
	sbCfg.Output = os.Stderr
	mgr, err := sandbox.NewManager(sbCfg, logger)
	if err != nil {
		return err
	}

	if err := mgr.BuildImage(ctx, rebuildImage); err != nil {
		return err
	}

	handle, err := mgr.Start(ctx)
	if err != nil {
		return err
	}
	defer func() {
		// Teardown runs on every exit path, including an interrupt that
		// already cancelled ctx, so it gets its own context.
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer stopCancel()
		if err := mgr.Stop(stopCtx, handle); err != nil {
			logger.Error("sandbox teardown failed", "error", err)
		}
	}()

	bctx := toolchain.BuildContext{
		Target:  target,
		BaseDir: baseAbs,
		WorkDir: sbCfg.WorkDir,
		Jobs:    settings.Jobs,
		Exec:    mgr.Session(handle),
		Logger:  logger,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	if err := toolchain.Run(ctx, toolchain.NewStages(specs), bctx); err != nil {
		return err
	}

	logger.Info("toolchain ready", "target", target, "prefix", filepath.Join(baseAbs, target))
	return nil
}

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
