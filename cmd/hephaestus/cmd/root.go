package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hephaestus-forge/hephaestus/pkg/hostcheck"
	"github.com/hephaestus-forge/hephaestus/pkg/sandbox"
)

var (
	target          string
	binutilsVersion string
	gccVersion      string
	gdbVersion      string
	rebuildImage    bool
	buildDir        string
)

var rootCmd = &cobra.Command{
	Use:   "hephaestus",
	Short: "Build a GNU cross-toolchain in a disposable Docker sandbox",
	Long: `Hephaestus builds an architecture-targeted GNU toolchain (binutils,
GCC, GDB) inside an isolated Docker sandbox, installing the result into
an architecture-scoped prefix on the host. The sandbox is created for
the run and torn down when it ends, whatever the outcome.`,
	SilenceErrors: true,
	RunE:          runBuild,
}

// Execute runs the CLI and maps failures to exit codes: 2 for a missing
// host dependency, a failed sandboxed command's own status when there is
// one, 1 for everything else.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		if errors.Is(err, hostcheck.ErrMissingDependency) {
			os.Exit(2)
		}
		var exitErr *sandbox.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVar(&target, "target", "i686-elf", "target architecture triple")
	rootCmd.Flags().StringVar(&binutilsVersion, "binutils-version", "", "binutils version (default from the stage table)")
	rootCmd.Flags().StringVar(&gccVersion, "gcc-version", "", "GCC version (default from the stage table)")
	rootCmd.Flags().StringVar(&gdbVersion, "gdb-version", "", "GDB version (default from the stage table)")
	rootCmd.Flags().BoolVar(&rebuildImage, "rebuild-image", false, "rebuild the sandbox image even if it exists")
	rootCmd.Flags().StringVar(&buildDir, "build-dir", "", "host build directory (default $HEPHAESTUS_BUILD_DIR or ./build)")
}
