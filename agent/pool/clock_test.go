package pool

import (
	"sync"
	"time"
)

// fakeClock is manually advanced. After registers a waiter that fires
// once Advance moves the clock past its deadline, never before.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if d <= 0 {
		ch <- f.now
		return ch
	}
	f.waiters = append(f.waiters, fakeWaiter{at: f.now.Add(d), ch: ch})
	return ch
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now
	var due []fakeWaiter
	remaining := f.waiters[:0]
	for _, w := range f.waiters {
		if w.at.After(now) {
			remaining = append(remaining, w)
			continue
		}
		due = append(due, w)
	}
	f.waiters = remaining
	f.mu.Unlock()

	for _, w := range due {
		w.ch <- now
	}
}

// autoClock advances itself by the requested duration on every After
// call and fires immediately, so poll loops run synchronously while the
// observed time still adds up as if the sleeps had happened.
type autoClock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

func newAutoClock(start time.Time) *autoClock {
	return &autoClock{now: start}
}

func (a *autoClock) Now() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now
}

func (a *autoClock) After(d time.Duration) <-chan time.Time {
	a.mu.Lock()
	a.slept = append(a.slept, d)
	a.now = a.now.Add(d)
	now := a.now
	a.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (a *autoClock) sleeps() []time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]time.Duration(nil), a.slept...)
}
