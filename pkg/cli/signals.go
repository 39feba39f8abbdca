package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ShutdownSignals end a command gracefully.
var ShutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// SetupSignalHandler creates a context that is canceled on SIGINT or SIGTERM.
// The returned stop function restores default signal handling.
func SetupSignalHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), ShutdownSignals...)
}

// WaitForShutdown returns a channel that receives shutdown signals.
func WaitForShutdown() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, ShutdownSignals...)
	return sigChan
}

// ReloadSignals returns a channel that receives SIGHUP, which the daemon
// treats as a request to reload its configuration. Call stop to release it.
func ReloadSignals() (<-chan os.Signal, func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGHUP)
	return sigChan, func() { signal.Stop(sigChan) }
}
