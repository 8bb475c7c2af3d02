package pool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shksin/multi-agent-chatbot/pkg/agentsvc"
)

func scriptedStatuses(t *testing.T, runs ...agentsvc.Run) (RunStatusFunc, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	fn := func(ctx context.Context, threadID, runID string) (agentsvc.Run, error) {
		i := int(calls.Add(1)) - 1
		require.Less(t, i, len(runs), "status polled more often than scripted")
		return runs[i], nil
	}
	return fn, &calls
}

func inProgress() agentsvc.Run {
	return agentsvc.Run{ID: "run-1", ThreadID: "thread-1", Status: agentsvc.RunInProgress}
}

func TestPollerBackoffDoublesAndCaps(t *testing.T) {
	t.Parallel()

	clock := newAutoClock(time.Unix(1700000000, 0))
	poller := NewPoller(200*time.Millisecond, time.Second, 25*time.Second, clock)

	status, calls := scriptedStatuses(t,
		inProgress(),
		inProgress(),
		inProgress(),
		inProgress(),
		agentsvc.Run{ID: "run-1", ThreadID: "thread-1", Status: agentsvc.RunCompleted},
	)

	initial := agentsvc.Run{ID: "run-1", ThreadID: "thread-1", Status: agentsvc.RunQueued}
	final, err := poller.Await(context.Background(), initial, status)
	require.NoError(t, err)
	assert.Equal(t, agentsvc.RunCompleted, final.Status)
	assert.Equal(t, int32(5), calls.Load())
	assert.Equal(t, []time.Duration{
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}, clock.sleeps())
}

func TestPollerQueuedDoesNotDouble(t *testing.T) {
	t.Parallel()

	clock := newAutoClock(time.Unix(1700000000, 0))
	poller := NewPoller(200*time.Millisecond, time.Second, 25*time.Second, clock)

	queued := agentsvc.Run{ID: "run-1", ThreadID: "thread-1", Status: agentsvc.RunQueued}
	status, _ := scriptedStatuses(t,
		queued,
		queued,
		agentsvc.Run{ID: "run-1", ThreadID: "thread-1", Status: agentsvc.RunCompleted},
	)

	_, err := poller.Await(context.Background(), queued, status)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{
		200 * time.Millisecond,
		200 * time.Millisecond,
		200 * time.Millisecond,
	}, clock.sleeps())
}

func TestPollerTimeoutWhenNeverCompleting(t *testing.T) {
	t.Parallel()

	clock := newAutoClock(time.Unix(1700000000, 0))
	poller := NewPoller(200*time.Millisecond, time.Second, 5*time.Second, clock)

	status := RunStatusFunc(func(ctx context.Context, threadID, runID string) (agentsvc.Run, error) {
		return inProgress(), nil
	})

	_, err := poller.Await(context.Background(), inProgress(), status)
	require.ErrorIs(t, err, ErrRunTimeout)

	var total time.Duration
	for _, d := range clock.sleeps() {
		total += d
	}
	assert.GreaterOrEqual(t, total, 5*time.Second, "budget must be exhausted before timing out")
}

func TestPollerTerminalFailureCarriesDetail(t *testing.T) {
	t.Parallel()

	clock := newAutoClock(time.Unix(1700000000, 0))
	poller := NewPoller(200*time.Millisecond, time.Second, 25*time.Second, clock)

	status, _ := scriptedStatuses(t, agentsvc.Run{
		ID:       "run-1",
		ThreadID: "thread-1",
		Status:   agentsvc.RunFailed,
		LastError: &agentsvc.RunError{
			Code:    "rate_limit_exceeded",
			Message: "too many requests",
		},
	})

	initial := agentsvc.Run{ID: "run-1", ThreadID: "thread-1", Status: agentsvc.RunQueued}
	_, err := poller.Await(context.Background(), initial, status)
	require.ErrorIs(t, err, ErrRunFailed)
	assert.Contains(t, err.Error(), "rate_limit_exceeded")
	assert.Contains(t, err.Error(), "too many requests")
}

func TestPollerImmediateCompletionSkipsPolling(t *testing.T) {
	t.Parallel()

	clock := newAutoClock(time.Unix(1700000000, 0))
	poller := NewPoller(200*time.Millisecond, time.Second, 25*time.Second, clock)

	var calls atomic.Int32
	status := RunStatusFunc(func(ctx context.Context, threadID, runID string) (agentsvc.Run, error) {
		calls.Add(1)
		return agentsvc.Run{}, nil
	})

	done := agentsvc.Run{ID: "run-1", ThreadID: "thread-1", Status: agentsvc.RunCompleted}
	final, err := poller.Await(context.Background(), done, status)
	require.NoError(t, err)
	assert.Equal(t, agentsvc.RunCompleted, final.Status)
	assert.Zero(t, calls.Load())
	assert.Empty(t, clock.sleeps())
}

func TestPollerHonorsCancellationDuringSleep(t *testing.T) {
	t.Parallel()

	clock := newFakeClock(time.Unix(1700000000, 0)) // never advanced: the sleep never fires
	poller := NewPoller(200*time.Millisecond, time.Second, 25*time.Second, clock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status := RunStatusFunc(func(ctx context.Context, threadID, runID string) (agentsvc.Run, error) {
		t.Error("status must not be polled after cancellation")
		return agentsvc.Run{}, nil
	})

	_, err := poller.Await(ctx, inProgress(), status)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPollerStatusErrorAborts(t *testing.T) {
	t.Parallel()

	clock := newAutoClock(time.Unix(1700000000, 0))
	poller := NewPoller(200*time.Millisecond, time.Second, 25*time.Second, clock)

	status := RunStatusFunc(func(ctx context.Context, threadID, runID string) (agentsvc.Run, error) {
		return agentsvc.Run{}, agentsvc.ErrRemote
	})

	_, err := poller.Await(context.Background(), inProgress(), status)
	require.ErrorIs(t, err, agentsvc.ErrRemote)
}
