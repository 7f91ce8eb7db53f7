package jobs

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/lumen/engine/core"
)

var (
	ErrNoWorkers         = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeQueueSize = errors.New("attempting to create worker pool with a negative queue size")
	ErrSystemShutDown    = errors.New("job submitted after shutdown")
)

// Task is one unit of work. OnComplete or OnFailure runs on the worker
// after Run returns.
type Task struct {
	Name       string
	Run        func() error
	OnComplete func()
	OnFailure  func(error)
}

// System runs tasks on a fixed set of worker goroutines.
type System struct {
	numWorkers int
	queue      chan Task
	wg         sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func New(numWorkers, queueSize int) (*System, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if queueSize < 0 {
		return nil, ErrNegativeQueueSize
	}
	s := &System{
		numWorkers: numWorkers,
		queue:      make(chan Task, queueSize),
	}
	s.start()
	return s, nil
}

func (s *System) start() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for task := range s.queue {
				s.run(task)
			}
		}()
	}
}

func (s *System) run(task Task) {
	if err := task.Run(); err != nil {
		core.LogDebug("job %q failed: %v", task.Name, err)
		if task.OnFailure != nil {
			task.OnFailure(err)
		}
		return
	}
	if task.OnComplete != nil {
		task.OnComplete()
	}
}

// Submit queues task, blocking while the queue is full.
func (s *System) Submit(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSystemShutDown
	}
	s.queue <- task
	return nil
}

// Shutdown waits for every queued task to finish. It is safe to call more
// than once.
func (s *System) Shutdown() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Each runs fn for every index in [0, n) on up to workers goroutines and
// returns the error of the lowest failing index.
func Each(n, workers int, fn func(i int) error) error {
	if n == 0 {
		return nil
	}
	workers = min(workers, n)
	s, err := New(workers, n)
	if err != nil {
		return err
	}
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		if err := s.Submit(Task{
			Run:       func() error { return fn(i) },
			OnFailure: func(err error) { errs[i] = err },
		}); err != nil {
			s.Shutdown()
			return err
		}
	}
	s.Shutdown()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
