// Package ratelimiter implements a sliding-window admission gate with a
// bounded FIFO wait queue.
package ratelimiter

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueFull is returned when the wait queue is at capacity.
var ErrQueueFull = errors.New("rate limiter queue full")

// slotBuffer is added to every computed delay so a woken waiter lands just
// after the oldest request has left the window.
const slotBuffer = 10 * time.Millisecond

type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Status is a point-in-time view of the limiter.
type Status struct {
	RequestsInWindow int           `json:"requests_in_window"`
	MaxRequests      int           `json:"max_requests"`
	QueueSize        int           `json:"queue_size"`
	NextAvailableIn  time.Duration `json:"next_available_in"`
}

type waiter struct {
	ready    chan struct{}
	admitted bool
}

// SlidingWindow admits at most maxRequests calls within any rolling window.
// Callers that cannot be admitted wait in arrival order; the head of the
// queue keeps its place until a slot frees up.
type SlidingWindow struct {
	maxRequests int
	window      time.Duration
	maxQueue    int

	mu         sync.Mutex
	timestamps []time.Time
	queue      *list.List
	timer      *time.Timer
	now        func() time.Time
}

// NewSlidingWindow creates a limiter allowing maxRequests per window with at
// most maxQueue pending callers.
func NewSlidingWindow(maxRequests int, window time.Duration, maxQueue int) *SlidingWindow {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	if maxQueue < 0 {
		maxQueue = 0
	}

	return &SlidingWindow{
		maxRequests: maxRequests,
		window:      window,
		maxQueue:    maxQueue,
		queue:       list.New(),
		now:         time.Now,
	}
}

// Wait blocks until the caller is admitted, ctx is done, or the queue is full.
func (s *SlidingWindow) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	now := s.now()
	s.pruneLocked(now)

	if s.queue.Len() == 0 && len(s.timestamps) < s.maxRequests {
		s.timestamps = append(s.timestamps, now)
		s.mu.Unlock()
		return nil
	}

	if s.queue.Len() >= s.maxQueue {
		s.mu.Unlock()
		return ErrQueueFull
	}

	w := &waiter{ready: make(chan struct{})}
	elem := s.queue.PushBack(w)
	s.scheduleLocked(now)
	s.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		defer s.mu.Unlock()
		if w.admitted {
			return nil
		}
		s.queue.Remove(elem)
		return ctx.Err()
	}
}

// Execute waits for admission and then runs fn.
func (s *SlidingWindow) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := s.Wait(ctx); err != nil {
		return err
	}
	return fn(ctx)
}

// Status reports the current window usage and queue depth.
func (s *SlidingWindow) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.pruneLocked(now)
	return Status{
		RequestsInWindow: len(s.timestamps),
		MaxRequests:      s.maxRequests,
		QueueSize:        s.queue.Len(),
		NextAvailableIn:  s.delayLocked(now),
	}
}

func (s *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.timestamps) && !s.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.timestamps = append(s.timestamps[:0], s.timestamps[i:]...)
	}
}

// delayLocked returns how long until the oldest request leaves the window.
func (s *SlidingWindow) delayLocked(now time.Time) time.Duration {
	if len(s.timestamps) < s.maxRequests {
		return 0
	}
	delay := s.window - now.Sub(s.timestamps[0]) + slotBuffer
	if delay < 0 {
		return 0
	}
	return delay
}

func (s *SlidingWindow) scheduleLocked(now time.Time) {
	if s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.delayLocked(now), s.drain)
}

// drain admits queued waiters from the front while slots are free and
// reschedules itself when some remain.
func (s *SlidingWindow) drain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timer = nil
	now := s.now()
	s.pruneLocked(now)

	for s.queue.Len() > 0 && len(s.timestamps) < s.maxRequests {
		front := s.queue.Front()
		w := s.queue.Remove(front).(*waiter)
		w.admitted = true
		s.timestamps = append(s.timestamps, now)
		close(w.ready)
	}

	if s.queue.Len() > 0 {
		s.scheduleLocked(now)
	}
}
