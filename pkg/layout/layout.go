// Package layout prepares the on-disk workspace shared between the host
// and the sandbox.
package layout

import (
	"fmt"
	"os"
)

// Prepare ensures the base build directory, the shared source-staging
// directory and the architecture-scoped output directory exist, creating
// intermediate components as needed. It is idempotent and never touches
// pre-existing contents.
func Prepare(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}
