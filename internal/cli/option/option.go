package option

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NoArgs is a wrapper around cobra.NoArgs to additionally print usage string
func NoArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		_, _ = fmt.Fprintf(cmd.OutOrStderr(), "%s\n", cmd.UsageString())
		return err
	}
	return nil
}
