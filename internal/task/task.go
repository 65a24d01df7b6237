package task

import (
	"context"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// Handle is a running task started by Manager.Go.
type Handle struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (h *Handle) Name() string {
	return h.name
}

// Cancel requests the task to stop.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed when the task has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the error of the task once Done is closed.
func (h *Handle) Err() error {
	<-h.done
	return h.err
}

// Manager owns the long running goroutines of the engine.
// A failing task is logged and does not stop its siblings.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	tasks map[*Handle]struct{}
}

func NewManager(ctx context.Context) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[*Handle]struct{}),
	}
}

// Context is canceled when the manager is canceled.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Go starts fn on its own goroutine with a context derived from the manager.
func (m *Manager) Go(name string, fn func(ctx context.Context) error) *Handle {
	ctx, cancel := context.WithCancel(m.ctx)
	h := &Handle{
		name:   name,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.tasks[h] = struct{}{}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(h.done)
		defer cancel()
		defer func() {
			m.mu.Lock()
			delete(m.tasks, h)
			m.mu.Unlock()
		}()
		defer func() {
			if r := recover(); r != nil {
				h.err = errors.Errorf("task %s panic: %+v", name, r)
				logs.Errorf("%+v", h.err)
			}
		}()

		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			h.err = err
			logs.Errorf("task %s exit, err: %+v", name, err)
		}
	}()

	return h
}

// Running returns the number of tasks that have not returned yet.
func (m *Manager) Running() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Cancel cancels every task.
func (m *Manager) Cancel() {
	m.cancel()
}

// Wait blocks until every task has returned or ctx is done.
func (m *Manager) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "wait tasks")
	}
}
