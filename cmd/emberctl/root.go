package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "emberctl",
		Short:         "Drive the kernel/mm physical memory allocator from user space",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDemoCmd())
	return root
}

// mustPositivePages validates a --pages flag, wrapping pflag's own parse
// error with command context the way a CLI boundary should.
func mustPositivePages(flags *pflag.FlagSet, name string) (int, error) {
	n, err := flags.GetInt(name)
	if err != nil {
		return 0, errors.Wrapf(err, "reading --%s", name)
	}
	if n <= 0 {
		return 0, errors.Errorf("--%s must be positive, got %d", name, n)
	}
	return n, nil
}
