// File: thread/scheduler.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Heap-ordered timer scheduler owned by one worker thread. Schedule and
// Cancel are safe from any goroutine; tasks fire on the loop goroutine
// when it calls fireDue.

package thread

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/momentics/hioload-transport/api"
)

type schedTask struct {
	when     time.Time
	fn       func()
	index    int
	canceled atomic.Bool
}

// Cancel prevents the task from firing. Canceling a fired task is a
// no-op; the heap entry is skipped at pop time.
func (t *schedTask) Cancel() { t.canceled.Store(true) }

type taskHeap []*schedTask

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *taskHeap) Push(x any) {
	t := x.(*schedTask)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

type scheduler struct {
	clk  clock.Clock
	wake func()

	mu    sync.Mutex
	tasks taskHeap
}

var _ api.Scheduler = (*scheduler)(nil)

func newScheduler(clk clock.Clock, wake func()) *scheduler {
	return &scheduler{clk: clk, wake: wake}
}

// Schedule arranges for fn to run on the loop after delay.
func (s *scheduler) Schedule(delay time.Duration, fn func()) (api.Cancelable, error) {
	if fn == nil {
		return nil, errors.New("scheduler: nil callback")
	}
	task := &schedTask{when: s.clk.Now().Add(delay), fn: fn}
	s.mu.Lock()
	heap.Push(&s.tasks, task)
	s.mu.Unlock()
	s.wake()
	return task, nil
}

// Now returns the scheduler's current time.
func (s *scheduler) Now() time.Time { return s.clk.Now() }

// untilNext returns the wait until the earliest pending task, capped by
// max. Zero means a task is already due.
func (s *scheduler) untilNext(max time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) == 0 {
		return max
	}
	d := s.tasks[0].when.Sub(s.clk.Now())
	if d <= 0 {
		return 0
	}
	if d > max {
		return max
	}
	return d
}

// fireDue pops and runs every task whose deadline has passed. Runs on
// the loop goroutine; callbacks execute without the lock held.
func (s *scheduler) fireDue() {
	now := s.clk.Now()
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 || s.tasks[0].when.After(now) {
			s.mu.Unlock()
			return
		}
		task := heap.Pop(&s.tasks).(*schedTask)
		s.mu.Unlock()
		if !task.canceled.Load() {
			task.fn()
		}
	}
}

// drain discards every pending task. Called during thread cleanup.
func (s *scheduler) drain() {
	s.mu.Lock()
	s.tasks = nil
	s.mu.Unlock()
}
