package graph

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericiooptions"

	"github.com/craigedmunds/eda-mesh/internal/cli/io"
	"github.com/craigedmunds/eda-mesh/internal/cli/option"
	"github.com/craigedmunds/eda-mesh/internal/cli/templates"
	"github.com/craigedmunds/eda-mesh/internal/graph"
	"github.com/craigedmunds/eda-mesh/internal/state"
)

type graphOptions struct {
	genericiooptions.IOStreams

	FactoryDir string
}

func NewCommand(factoryDir string, streams genericiooptions.IOStreams) *cobra.Command {
	cmdOpts := &graphOptions{
		FactoryDir: factoryDir,
		IOStreams:  streams,
	}

	cmd := &cobra.Command{
		Use:   "graph [--factory-dir=dir]",
		Short: "Print every base image with the images built from it",
		Args:  option.NoArgs,
		Example: templates.Example(`
# Show which images are rebuilt when a base image changes
image-factory graph
`),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdOpts.run(cmd.Context())
		},
	}

	option.FactoryDir(cmd.Flags(), &cmdOpts.FactoryDir, cmdOpts.FactoryDir)

	// Set the input/output streams for the command.
	io.SetIOStreams(cmd, cmdOpts.IOStreams)

	return cmd
}

func (o *graphOptions) run(ctx context.Context) error {
	states, err := state.NewStore(o.FactoryDir).ListImageStates(ctx)
	if err != nil {
		return err
	}
	g := graph.Build(states)
	for _, base := range g.Bases() {
		_, _ = fmt.Fprintln(o.Out, base)
		for _, dep := range g.Dependents(base) {
			_, _ = fmt.Fprintf(o.Out, "  %s\n", dep)
		}
	}
	return nil
}
