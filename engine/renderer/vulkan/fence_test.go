package vulkan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFenceWaitOnUnsignaledValueReturnsAtOnce(t *testing.T) {
	f := &Fence{completed: 3, signaled: 3}

	ok, err := f.Wait(2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	start := time.Now()
	ok, err = f.Wait(4, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)

	done := make(chan uint64)
	go func() { done <- f.Completed() }()
	select {
	case v := <-done:
		assert.Equal(t, uint64(3), v)
	case <-time.After(time.Second):
		t.Fatal("Completed blocked behind Wait")
	}
}
