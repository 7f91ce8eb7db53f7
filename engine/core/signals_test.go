package core

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWaitForSignalQuitsOnce(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	sigCh <- syscall.SIGTERM
	calls := 0
	waitForSignal(sigCh, make(chan struct{}), func() { calls++ })
	assert.Equal(t, 1, calls)
}

func TestOnQuitSignalStopEndsGoroutine(t *testing.T) {
	stop := OnQuitSignal(func() { t.Error("quit without a signal") })

	stopped := make(chan struct{})
	go func() {
		stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not return")
	}
}
