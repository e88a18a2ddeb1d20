package shared

import "github.com/spf13/pflag"

// HasFlags reports whether any flag in flags was set on the command line.
func HasFlags(flags *pflag.FlagSet) bool {
	hasFlags := false
	flags.Visit(func(*pflag.Flag) {
		hasFlags = true
	})
	return hasFlags
}
