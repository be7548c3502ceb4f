package lifecycle

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// NotifySignals terminates the manager on SIGINT or SIGTERM until ctx is done
// or the returned stop function is called.
func (m *Manager) NotifySignals(ctx context.Context) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			m.mu.Lock()
			m.signal = sig
			m.mu.Unlock()
			m.logger.Info("Received signal", "signal", sig.String())
			m.Terminate()
		case <-ctx.Done():
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
