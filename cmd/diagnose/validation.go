package diagnose

import (
	"fmt"
	"strings"
)

// validateDiagnoseArgs validates the arguments provided to the diagnose command. File existence
// is left to the loaders so that unreadable inputs exit with a read failure.
func validateDiagnoseArgs(o *RunOptionsDiagnose) error {
	if len(o.Artifacts) == 0 {
		return fmt.Errorf("the 'artifact' flag must be specified")
	}
	if len(o.Findings) == 0 {
		return fmt.Errorf("the 'findings' flag must be specified")
	}
	if len(o.Findings) != 1 && len(o.Findings) != len(o.Artifacts) {
		return fmt.Errorf("expected one 'findings' file or one per artifact, got %d for %d artifacts", len(o.Findings), len(o.Artifacts))
	}
	for _, path := range o.Artifacts {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("the 'artifact' flag cannot be empty")
		}
	}
	for _, path := range o.Findings {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("the 'findings' flag cannot be empty")
		}
	}
	if o.Threads < 0 {
		return fmt.Errorf("the 'threads' flag must be a positive integer")
	}
	return nil
}
