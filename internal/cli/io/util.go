package io

import (
	"os"

	"github.com/spf13/cobra"
	"k8s.io/cli-runtime/pkg/genericiooptions"
)

// StandardStreams returns the IOStreams of the running process.
func StandardStreams() genericiooptions.IOStreams {
	return genericiooptions.IOStreams{
		In:     os.Stdin,
		Out:    os.Stdout,
		ErrOut: os.Stderr,
	}
}

// SetIOStreams sets the input/output streams on the provided command.
func SetIOStreams(cmd *cobra.Command, streams genericiooptions.IOStreams) {
	cmd.SetIn(streams.In)
	cmd.SetOut(streams.Out)
	cmd.SetErr(streams.ErrOut)
}
