package version

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericiooptions"

	"github.com/craigedmunds/eda-mesh/internal/cli/io"
	"github.com/craigedmunds/eda-mesh/internal/cli/option"
	"github.com/craigedmunds/eda-mesh/internal/cli/templates"
	versionpkg "github.com/craigedmunds/eda-mesh/internal/version"
)

type versionOptions struct {
	genericiooptions.IOStreams

	JSON bool
}

func NewCommand(streams genericiooptions.IOStreams) *cobra.Command {
	cmdOpts := &versionOptions{IOStreams: streams}

	cmd := &cobra.Command{
		Use:   "version [--json]",
		Short: "Show the version information",
		Args:  option.NoArgs,
		Example: templates.Example(`
# Print the version
image-factory version

# Print all build information as JSON
image-factory version --json
`),
		RunE: func(*cobra.Command, []string) error {
			return cmdOpts.run()
		},
	}

	cmd.Flags().BoolVar(&cmdOpts.JSON, "json", false, "Print all build information as JSON.")

	// Set the input/output streams for the command.
	io.SetIOStreams(cmd, cmdOpts.IOStreams)

	return cmd
}

func (o *versionOptions) run() error {
	v := versionpkg.GetVersion()
	if !o.JSON {
		_, _ = fmt.Fprintln(o.Out, "Version:", v.Version)
		return nil
	}
	enc := json.NewEncoder(o.Out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode version: %w", err)
	}
	return nil
}
