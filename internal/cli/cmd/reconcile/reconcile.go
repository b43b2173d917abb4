package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericiooptions"

	"github.com/craigedmunds/eda-mesh/internal/cli/io"
	"github.com/craigedmunds/eda-mesh/internal/cli/option"
	"github.com/craigedmunds/eda-mesh/internal/cli/templates"
	"github.com/craigedmunds/eda-mesh/internal/logging"
	"github.com/craigedmunds/eda-mesh/internal/reconcile"
)

type reconcileOptions struct {
	genericiooptions.IOStreams

	Config reconcile.ReconcilerConfig
}

// NewCommand returns the command that runs a reconciliation pass. Flag
// defaults are taken from cfg.
func NewCommand(cfg reconcile.ReconcilerConfig, streams genericiooptions.IOStreams) *cobra.Command {
	cmdOpts := &reconcileOptions{
		Config:    cfg,
		IOStreams: streams,
	}

	cmd := &cobra.Command{
		Use:   "reconcile [--factory-dir=dir] [--prune]",
		Short: "Bring image factory state in line with images.yaml and Dockerfiles",
		Long: templates.LongDesc(`
			Reconcile loads images.yaml, discovers the base images of every managed
			image from its Dockerfile and writes one state file per image and per
			base image. Runtime fields of existing state are never overwritten.
		`),
		Args: option.NoArgs,
		Example: templates.Example(`
# Reconcile the image-factory directory of the current repository
image-factory reconcile

# Read Dockerfiles from the main branch instead of the working tree
image-factory reconcile --source-revision=main

# Also remove state for images that are no longer declared
image-factory reconcile --prune
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

// addFlags adds the flags for the reconcile options to the provided command.
func (o *reconcileOptions) addFlags(cmd *cobra.Command) {
	option.FactoryDir(cmd.Flags(), &o.Config.FactoryDir, o.Config.FactoryDir)
	option.SourceRoot(cmd.Flags(), &o.Config.SourceRoot, o.Config.SourceRoot)
	option.SourceRevision(cmd.Flags(), &o.Config.SourceRevision, o.Config.SourceRevision)
	cmd.Flags().BoolVar(&o.Config.Prune, "prune", o.Config.Prune,
		"Remove state for undeclared images and unreferenced base images.")
	cmd.Flags().BoolVar(&o.Config.StrictBaseImageNames, "strict-base-image-names", o.Config.StrictBaseImageNames,
		"Fail if distinct base image references normalize to the same name.")
}

// validate performs validation of the options. If the options are invalid, an
// error is returned.
func (o *reconcileOptions) validate() error {
	if strings.TrimSpace(o.Config.FactoryDir) == "" {
		return errors.New("factory directory is required")
	}
	return nil
}

// run performs a reconciliation pass and prints a summary of it.
func (o *reconcileOptions) run(ctx context.Context) error {
	r, err := reconcile.NewReconciler(o.Config, logging.LoggerFromContext(ctx))
	if err != nil {
		return err
	}
	res, err := r.Process(ctx)
	if res != nil {
		printResult(o.IOStreams, res)
	}
	return err
}

func printResult(streams genericiooptions.IOStreams, res *reconcile.Result) {
	out := streams.Out
	_, _ = fmt.Fprintf(out, "Reconciled %d image(s) and %d base image(s)\n", len(res.Images), len(res.BaseImages))
	printList(streams, "Missing Dockerfiles", res.MissingDockerfiles)
	printList(streams, "Invalid declarations", res.Invalid)
	printList(streams, "Undeclared images with state", res.Orphans)
	printList(streams, "Pruned images", res.Pruned.Images)
	printList(streams, "Pruned base images", res.Pruned.BaseImages)
	for _, c := range res.Collisions {
		_, _ = fmt.Fprintf(out, "Base image name %q is produced by: %s\n", c.Name, strings.Join(c.References, ", "))
	}
}

func printList(streams genericiooptions.IOStreams, title string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintf(streams.Out, "%s: %s\n", title, strings.Join(items, ", "))
}
