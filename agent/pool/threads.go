package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	logx "github.com/shksin/multi-agent-chatbot/pkg/logger"
)

// DeleteThreadFunc removes an evicted thread remotely. Best-effort:
// failures are logged and never surfaced.
type DeleteThreadFunc func(ctx context.Context, endpoint, threadID string) error

type idleThread struct {
	id       string
	lastUsed time.Time
}

// Threads bounds how many remote conversations are in flight at once
// and recycles thread identifiers between calls. The semaphore is the
// sole admission-control point: acquiring blocks until a permit frees
// up, and the permit is returned on every exit path of the call that
// held it. Evicting an idle identifier prunes memory only; it never
// shrinks capacity.
type Threads struct {
	sem          *semaphore.Weighted
	maxIdle      time.Duration
	clock        Clock
	logger       zerolog.Logger
	deleteRemote DeleteThreadFunc
	wg           sync.WaitGroup

	mu   sync.Mutex
	idle map[string][]idleThread // per endpoint, most recently released last
}

// ThreadsOption customizes a Threads pool.
type ThreadsOption func(*Threads)

// WithRemoteDelete makes idle eviction also delete the thread remotely.
func WithRemoteDelete(fn DeleteThreadFunc) ThreadsOption {
	return func(t *Threads) {
		t.deleteRemote = fn
	}
}

func NewThreads(size int64, maxIdle time.Duration, clock Clock, opts ...ThreadsOption) *Threads {
	if size <= 0 {
		size = 3
	}
	if maxIdle <= 0 {
		maxIdle = 10 * time.Minute
	}
	if clock == nil {
		clock = SystemClock{}
	}
	t := &Threads{
		sem:     semaphore.NewWeighted(size),
		maxIdle: maxIdle,
		clock:   clock,
		logger:  logx.Component("thread-pool"),
		idle:    make(map[string][]idleThread),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

// Lease is one checked-out permit of the pool. ThreadID is the reusable
// identifier handed out, or empty when the caller must create a fresh
// remote thread and register it on Release. Exactly one of Release or
// Discard takes effect; later calls are no-ops, so callers can defer
// Discard and still Release explicitly on success.
type Lease struct {
	Endpoint string
	ThreadID string

	pool *Threads
	once sync.Once
}

// Acquire blocks until a permit is available or ctx is done. It prunes
// idle identifiers that sat unused past the idle limit, then hands out
// the most recently used surviving one, if any.
func (t *Threads) Acquire(ctx context.Context, endpoint string) (*Lease, error) {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire thread permit: %w", err)
	}
	return &Lease{
		Endpoint: endpoint,
		ThreadID: t.popIdle(endpoint),
		pool:     t,
	}, nil
}

// Release registers threadID as idle with a refreshed last-used stamp
// and frees the permit. Pass the identifier actually used by the call,
// which may differ from the one acquired when a fresh thread had to be
// created mid-call.
func (l *Lease) Release(threadID string) {
	if l == nil {
		return
	}
	l.once.Do(func() {
		if threadID != "" {
			l.pool.pushIdle(l.Endpoint, threadID)
		}
		l.pool.sem.Release(1)
	})
}

// Discard frees the permit without remembering any identifier. Use it
// when the call failed or the thread identifier went bad.
func (l *Lease) Discard() {
	if l == nil {
		return
	}
	l.once.Do(func() {
		l.pool.sem.Release(1)
	})
}

func (t *Threads) popIdle(endpoint string) string {
	now := t.clock.Now()

	t.mu.Lock()
	threads := t.idle[endpoint]
	kept := threads[:0]
	var evicted []string
	for _, th := range threads {
		if now.Sub(th.lastUsed) > t.maxIdle {
			evicted = append(evicted, th.id)
			continue
		}
		kept = append(kept, th)
	}

	var id string
	if n := len(kept); n > 0 {
		id = kept[n-1].id
		kept = kept[:n-1]
	}
	if len(kept) == 0 {
		delete(t.idle, endpoint)
	} else {
		t.idle[endpoint] = kept
	}
	t.mu.Unlock()

	if len(evicted) > 0 {
		t.logger.Debug().Str("endpoint", endpoint).Int("evicted", len(evicted)).Msg("idle threads evicted")
		t.evictRemote(endpoint, evicted)
	}
	return id
}

func (t *Threads) pushIdle(endpoint, threadID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.idle[endpoint] = append(t.idle[endpoint], idleThread{id: threadID, lastUsed: t.clock.Now()})
}

// evictRemote deletes evicted identifiers in the background so Acquire
// never waits on network cleanup.
func (t *Threads) evictRemote(endpoint string, ids []string) {
	if t.deleteRemote == nil {
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, id := range ids {
			if err := t.deleteRemote(ctx, endpoint, id); err != nil {
				t.logger.Debug().Err(err).Str("thread_id", id).Msg("remote delete of evicted thread failed")
			}
		}
	}()
}

// drain waits for background eviction deletes to finish.
func (t *Threads) drain() {
	t.wg.Wait()
}

func (t *Threads) idleCount(endpoint string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.idle[endpoint])
}
