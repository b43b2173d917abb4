package main

import (
	"context"
	"os"

	"github.com/craigedmunds/eda-mesh/internal/cli/cmd"
	ifos "github.com/craigedmunds/eda-mesh/internal/os"
)

func main() {
	ctx, stop := ifos.NotifyOnShutdown(context.Background())
	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
