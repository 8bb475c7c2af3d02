package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shksin/multi-agent-chatbot/pkg/agentsvc"
)

var (
	// ErrRunTimeout reports a run that did not reach a terminal status
	// within the polling budget.
	ErrRunTimeout = errors.New("run polling budget exceeded")

	// ErrRunFailed reports a terminal status other than completed.
	ErrRunFailed = errors.New("run failed")
)

// RunStatusFunc fetches the current state of one run.
type RunStatusFunc func(ctx context.Context, threadID, runID string) (agentsvc.Run, error)

// Poller drives an asynchronous run to completion: sleep, poll, repeat.
// The sleep starts at Interval and doubles after every in_progress
// observation up to MaxInterval; the whole wait is bounded by Budget
// measured from the first call. Stateless, shared by all queries.
type Poller struct {
	interval    time.Duration
	maxInterval time.Duration
	budget      time.Duration
	clock       Clock
}

func NewPoller(interval, maxInterval, budget time.Duration, clock Clock) *Poller {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	if maxInterval < interval {
		maxInterval = time.Second
	}
	if budget <= 0 {
		budget = 25 * time.Second
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Poller{
		interval:    interval,
		maxInterval: maxInterval,
		budget:      budget,
		clock:       clock,
	}
}

// Await polls the run until it completes and returns its final state.
// A terminal status other than completed yields ErrRunFailed carrying
// the remote error detail; exhausting the budget yields ErrRunTimeout
// regardless of the remote status; ctx cancellation aborts the next
// sleep promptly and returns ctx's error.
func (p *Poller) Await(ctx context.Context, run agentsvc.Run, status RunStatusFunc) (agentsvc.Run, error) {
	started := p.clock.Now()
	interval := p.interval

	for {
		switch {
		case run.Status == agentsvc.RunCompleted:
			return run, nil
		case run.Status.Terminal():
			return run, fmt.Errorf("%w: status=%s%s", ErrRunFailed, run.Status, runErrorDetail(run))
		}

		if p.clock.Now().Sub(started) >= p.budget {
			return run, fmt.Errorf("%w: status=%s after %s", ErrRunTimeout, run.Status, p.budget)
		}

		select {
		case <-ctx.Done():
			return run, ctx.Err()
		case <-p.clock.After(interval):
		}

		next, err := status(ctx, run.ThreadID, run.ID)
		if err != nil {
			return run, fmt.Errorf("poll run status: %w", err)
		}
		if next.Status == agentsvc.RunInProgress {
			interval = min(interval*2, p.maxInterval)
		}
		run = next
	}
}

func runErrorDetail(run agentsvc.Run) string {
	if run.LastError == nil {
		return ""
	}
	return fmt.Sprintf(" code=%s message=%s", run.LastError.Code, run.LastError.Message)
}
