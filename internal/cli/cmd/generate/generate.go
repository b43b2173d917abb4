package generate

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericiooptions"

	"github.com/craigedmunds/eda-mesh/internal/cli/io"
	"github.com/craigedmunds/eda-mesh/internal/cli/option"
	"github.com/craigedmunds/eda-mesh/internal/cli/templates"
	"github.com/craigedmunds/eda-mesh/internal/io/fs"
	"github.com/craigedmunds/eda-mesh/internal/logging"
	"github.com/craigedmunds/eda-mesh/internal/manifests"
	"github.com/craigedmunds/eda-mesh/internal/state"
)

type generateOptions struct {
	genericiooptions.IOStreams

	FactoryDir string
	Config     manifests.GeneratorConfig
	Output     string
}

func NewCommand(
	factoryDir string,
	cfg manifests.GeneratorConfig,
	streams genericiooptions.IOStreams,
) *cobra.Command {
	cmdOpts := &generateOptions{
		FactoryDir: factoryDir,
		Config:     cfg,
		IOStreams:  streams,
	}

	cmd := &cobra.Command{
		Use:   "generate [--factory-dir=dir] [--namespace=ns] [--output=file]",
		Short: "Generate the Kargo resources that watch and rebuild factory images",
		Args:  option.NoArgs,
		Example: templates.Example(`
# Print the resources to stdout
image-factory generate

# Write the resources for another project namespace to a file
image-factory generate --namespace=images --output=kargo.yaml
`),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmdOpts.run(cmd.Context())
		},
	}

	// Register the option flags on the command.
	cmdOpts.addFlags(cmd)

	// Set the input/output streams for the command.
	io.SetIOStreams(cmd, cmdOpts.IOStreams)

	return cmd
}

// addFlags adds the flags for the generate options to the provided command.
func (o *generateOptions) addFlags(cmd *cobra.Command) {
	option.FactoryDir(cmd.Flags(), &o.FactoryDir, o.FactoryDir)
	option.Output(cmd.Flags(), &o.Output, "Write the resources to this file instead of stdout.")
	cmd.Flags().StringVar(&o.Config.Namespace, "namespace", o.Config.Namespace,
		"The namespace, and Kargo Project, to generate resources for.")
}

// run generates the resources and writes them to the output.
func (o *generateOptions) run(ctx context.Context) error {
	logger := logging.LoggerFromContext(ctx)
	gen, err := manifests.NewGenerator(o.Config, logger)
	if err != nil {
		return err
	}
	catalog, err := state.NewStore(o.FactoryDir).MergeImages(ctx)
	if err != nil {
		return err
	}
	objs, err := gen.Generate(ctx, catalog)
	if err != nil {
		return err
	}
	if o.Output == "" {
		return manifests.Write(o.Out, objs)
	}
	buf := &bytes.Buffer{}
	if err = manifests.Write(buf, objs); err != nil {
		return err
	}
	if err = fs.WriteFileAtomic(o.Output, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("error writing %s: %w", o.Output, err)
	}
	logger.Info("wrote resources", "path", o.Output, "count", len(objs))
	return nil
}
