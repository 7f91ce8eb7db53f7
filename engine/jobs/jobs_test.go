package jobs_test

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/lumen/engine/jobs"
)

func TestNewRejectsBadSizes(t *testing.T) {
	_, err := jobs.New(0, 1)
	assert.ErrorIs(t, err, jobs.ErrNoWorkers)
	_, err = jobs.New(1, -1)
	assert.ErrorIs(t, err, jobs.ErrNegativeQueueSize)
}

func TestSystemRunsCallbacks(t *testing.T) {
	s, err := jobs.New(4, 0)
	require.NoError(t, err)

	var completed, failed atomic.Int32
	for i := 0; i < 20; i++ {
		i := i
		require.NoError(t, s.Submit(jobs.Task{
			Name: fmt.Sprintf("task %d", i),
			Run: func() error {
				if i%5 == 0 {
					return errors.New("boom")
				}
				return nil
			},
			OnComplete: func() { completed.Add(1) },
			OnFailure:  func(error) { failed.Add(1) },
		}))
	}
	s.Shutdown()
	s.Shutdown()

	assert.Equal(t, int32(16), completed.Load())
	assert.Equal(t, int32(4), failed.Load())
	assert.ErrorIs(t, s.Submit(jobs.Task{Run: func() error { return nil }}), jobs.ErrSystemShutDown)
}

func TestEachReportsLowestFailure(t *testing.T) {
	out := make([]int, 50)
	require.NoError(t, jobs.Each(len(out), 8, func(i int) error {
		out[i] = i * i
		return nil
	}))
	for i, v := range out {
		assert.Equal(t, i*i, v)
	}

	err := jobs.Each(10, 3, func(i int) error {
		if i == 3 || i == 7 {
			return fmt.Errorf("item %d", i)
		}
		return nil
	})
	assert.EqualError(t, err, "item 3")

	assert.NoError(t, jobs.Each(0, 4, func(int) error { return errors.New("never") }))
}
