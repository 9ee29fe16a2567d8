// Package hostcheck verifies required host tools before any other
// component initializes.
package hostcheck

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrMissingDependency marks a required host executable that could not be
// resolved on PATH. Callers match it with errors.Is to pick the exit code.
var ErrMissingDependency = errors.New("missing host dependency")

// Verify resolves every named executable on the invoking host's PATH and
// reports all that are absent in a single error.
func Verify(tools ...string) error {
	var missing []string
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, ", "))
	}
	return nil
}
