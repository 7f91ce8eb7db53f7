package core

import (
	"os"
	"os/signal"
	"syscall"
)

// OnQuitSignal calls quit once on SIGINT, SIGTERM or SIGQUIT. The returned
// stop function unregisters the handler and ends its goroutine.
func OnQuitSignal(quit func()) (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		waitForSignal(sigCh, done, quit)
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
		<-exited
	}
}

func waitForSignal(sigCh <-chan os.Signal, done <-chan struct{}, quit func()) {
	select {
	case <-sigCh:
		quit()
	case <-done:
	}
}
