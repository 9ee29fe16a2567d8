package toolchain

import (
	"context"
	"fmt"
	"time"
)

// Run executes the stages strictly in order, one command at a time. A
// stage only starts after the previous stage's install step completed;
// the first failure aborts the whole pipeline.
func Run(ctx context.Context, stages []*Stage, bc BuildContext) error {
	for _, st := range stages {
		start := time.Now()
		bc.Logger.Info("stage started", "stage", st.Spec.Name, "version", st.Spec.Version)

		if err := st.Run(ctx, bc); err != nil {
			bc.Logger.Error("stage failed",
				"stage", st.Spec.Name,
				"status", st.Status(),
				"error", err)
			return fmt.Errorf("stage %s: %w", st.Spec.Name, err)
		}

		bc.Logger.Info("stage finished",
			"stage", st.Spec.Name,
			"elapsed", time.Since(start).Round(time.Second))
	}
	return nil
}
