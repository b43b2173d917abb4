package os

import (
	"context"
	"os/signal"
	"syscall"
)

// NotifyOnShutdown returns a copy of ctx that is canceled when the process
// is asked to stop, or when the returned stop function is called.
func NotifyOnShutdown(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}
