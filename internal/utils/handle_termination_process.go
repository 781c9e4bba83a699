package utils

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// HandleTerminationProcess возвращает контекст, отменяемый по SIGINT/SIGTERM.
// cleanup вызывается после отмены контекста.
func HandleTerminationProcess(parent context.Context, cleanup func()) context.Context {
	ctx, cancel := context.WithCancel(parent)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-c:
		case <-ctx.Done():
		}
		signal.Stop(c)
		cancel()
		if cleanup != nil {
			cleanup()
		}
	}()

	return ctx
}
