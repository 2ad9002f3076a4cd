// Package serial runs submitted functions asynchronously while
// preserving submission order per key. Work for different keys runs
// concurrently; work for the same key runs one at a time, FIFO.
package serial

import "sync"

// Executor schedules functions by key. The zero value is not usable,
// call New.
type Executor struct {
	mu     sync.Mutex
	queues map[string][]func()
	wg     sync.WaitGroup
	closed bool
}

func New() *Executor {
	return &Executor{queues: make(map[string][]func())}
}

// Submit schedules fn after all previously submitted work for the same
// key. Returns false if the executor has been closed.
func (e *Executor) Submit(key string, fn func()) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	queue, active := e.queues[key]
	e.queues[key] = append(queue, fn)
	if !active {
		// First entry for this key, start its drain goroutine.
		e.wg.Add(1)
		go e.drain(key)
	}
	return true
}

func (e *Executor) drain(key string) {
	defer e.wg.Done()
	for {
		e.mu.Lock()
		queue := e.queues[key]
		if len(queue) == 0 {
			delete(e.queues, key)
			e.mu.Unlock()
			return
		}
		fn := queue[0]
		e.queues[key] = queue[1:]
		e.mu.Unlock()

		fn()
	}
}

// Close rejects further submissions and waits for queued work to
// finish.
func (e *Executor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
}
