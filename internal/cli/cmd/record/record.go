package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericiooptions"

	"github.com/craigedmunds/eda-mesh/internal/cli/io"
	"github.com/craigedmunds/eda-mesh/internal/cli/option"
	"github.com/craigedmunds/eda-mesh/internal/cli/templates"
	"github.com/craigedmunds/eda-mesh/internal/logging"
	"github.com/craigedmunds/eda-mesh/internal/reconcile"
)

type recordOptions struct {
	genericiooptions.IOStreams

	Config reconcile.ReconcilerConfig
	Record reconcile.BuildRecord
}

func NewCommand(cfg reconcile.ReconcilerConfig, streams genericiooptions.IOStreams) *cobra.Command {
	cmdOpts := &recordOptions{
		Config:    cfg,
		IOStreams: streams,
	}

	cmd := &cobra.Command{
		Use:   "record --image=name --digest=digest [--tag=tag]",
		Short: "Record a completed build of a managed image",
		Args:  option.NoArgs,
		Example: templates.Example(`
# Record a build pushed as 1.4.0
image-factory record --image=backstage --tag=1.4.0 \
  --digest=sha256:2b7b1a7ab4a5a3e3e21ea8cdb5a4a1d1c0a5c0e8c1d3f9f4e2f0a1b2c3d4e5f6
`),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cmdOpts.validate(); err != nil {
				return err
			}
			return cmdOpts.run(cmd.Context())
		},
	}

	// Register the option flags on the command.
	cmdOpts.addFlags(cmd)

	// Set the input/output streams for the command.
	io.SetIOStreams(cmd, cmdOpts.IOStreams)

	return cmd
}

// addFlags adds the flags for the record options to the provided command.
func (o *recordOptions) addFlags(cmd *cobra.Command) {
	option.FactoryDir(cmd.Flags(), &o.Config.FactoryDir, o.Config.FactoryDir)
	cmd.Flags().StringVar(&o.Record.Image, "image", "", "The name of the image as declared in images.yaml.")
	cmd.Flags().StringVar(&o.Record.Digest, "digest", "", "The digest of the pushed image.")
	cmd.Flags().StringVar(&o.Record.Tag, "tag", "",
		"The tag the image was pushed with. A semantic version becomes the current version.")
}

// validate performs validation of the options. If the options are invalid, an
// error is returned.
func (o *recordOptions) validate() error {
	var errs []error
	if o.Config.FactoryDir == "" {
		errs = append(errs, errors.New("factory directory is required"))
	}
	if o.Record.Image == "" {
		errs = append(errs, errors.New("image is required"))
	}
	if o.Record.Digest == "" {
		errs = append(errs, errors.New("digest is required"))
	}
	return errors.Join(errs...)
}

// run records the build in the image's state.
func (o *recordOptions) run(ctx context.Context) error {
	r, err := reconcile.NewReconciler(o.Config, logging.LoggerFromContext(ctx))
	if err != nil {
		return err
	}
	st, err := r.RecordBuild(ctx, o.Record)
	if err != nil {
		return fmt.Errorf("record build of %q: %w", o.Record.Image, err)
	}
	_, _ = fmt.Fprintf(o.Out, "Recorded build of %s at %s\n", st.Name, st.CurrentDigest)
	return nil
}
