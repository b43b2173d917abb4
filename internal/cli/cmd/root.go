// Package cmd assembles the image-factory command line.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericiooptions"

	"github.com/craigedmunds/eda-mesh/internal/cli/cmd/generate"
	"github.com/craigedmunds/eda-mesh/internal/cli/cmd/graph"
	"github.com/craigedmunds/eda-mesh/internal/cli/cmd/reconcile"
	"github.com/craigedmunds/eda-mesh/internal/cli/cmd/record"
	"github.com/craigedmunds/eda-mesh/internal/cli/cmd/version"
	"github.com/craigedmunds/eda-mesh/internal/cli/io"
	"github.com/craigedmunds/eda-mesh/internal/cli/option"
	"github.com/craigedmunds/eda-mesh/internal/logging"
	"github.com/craigedmunds/eda-mesh/internal/manifests"
	reconcilepkg "github.com/craigedmunds/eda-mesh/internal/reconcile"
)

type rootOptions struct {
	Logging logging.Config
}

// NewRootCommand returns the image-factory command. Defaults for all flags
// are read from the environment.
func NewRootCommand(streams genericiooptions.IOStreams) *cobra.Command {
	cmdOpts := &rootOptions{
		Logging: logging.ConfigFromEnv(),
	}

	cmd := &cobra.Command{
		Use:               "image-factory",
		Short:             "Track container images, their base images and the Kargo resources that rebuild them",
		DisableAutoGenTag: true,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.NewLoggerFromConfig(streams.ErrOut, cmdOpts.Logging)
			if err != nil {
				return err
			}
			cmd.SetContext(logging.ContextWithLogger(cmd.Context(), logger))
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.HelpFunc()(cmd, args)
		},
	}

	option.LogLevel(cmd.PersistentFlags(), &cmdOpts.Logging.Level, cmdOpts.Logging.Level)
	option.LogFormat(cmd.PersistentFlags(), &cmdOpts.Logging.Format, cmdOpts.Logging.Format)

	reconcilerCfg := reconcilepkg.ReconcilerConfigFromEnv()
	cmd.AddCommand(reconcile.NewCommand(reconcilerCfg, streams))
	cmd.AddCommand(record.NewCommand(reconcilerCfg, streams))
	cmd.AddCommand(graph.NewCommand(reconcilerCfg.FactoryDir, streams))
	cmd.AddCommand(generate.NewCommand(reconcilerCfg.FactoryDir, manifests.GeneratorConfigFromEnv(), streams))
	cmd.AddCommand(version.NewCommand(streams))

	io.SetIOStreams(cmd, streams)

	return cmd
}

// Execute runs the image-factory command with the process's arguments and
// standard streams.
func Execute(ctx context.Context) error {
	return executeAndLog(ctx, NewRootCommand(io.StandardStreams()))
}

// executeAndLog runs root and logs any failure with the logger the
// persistent flags configured. Failures that happen before the flags are
// parsed fall back to the logger in ctx.
func executeAndLog(ctx context.Context, root *cobra.Command) error {
	cmd, err := root.ExecuteContextC(ctx)
	if err != nil {
		logger := logging.LoggerFromContext(ctx)
		if cmd != nil && cmd.Context() != nil {
			logger = logging.LoggerFromContext(cmd.Context())
		}
		logger.Error(err, "image-factory failed")
	}
	return err
}
