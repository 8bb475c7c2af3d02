package pool

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shksin/multi-agent-chatbot/pkg/agentsvc"
	logx "github.com/shksin/multi-agent-chatbot/pkg/logger"
)

// Config carries every pooling and caching knob. Defaults match the
// documented behavior: three concurrent remote calls, 30m descriptor
// TTL swept every 15m, 10m idle-thread limit, 200ms→1s poll backoff
// under a 25s budget, 15m response cache.
type Config struct {
	PoolSize             int64         `split_words:"true" default:"3"`
	DescriptorTTL        time.Duration `envconfig:"DESCRIPTOR_TTL" default:"30m"`
	DescriptorSweepEvery time.Duration `split_words:"true" default:"15m"`
	MaxIdle              time.Duration `split_words:"true" default:"10m"`
	DeleteEvictedThreads bool          `split_words:"true" default:"true"`
	PollInterval         time.Duration `split_words:"true" default:"200ms"`
	PollMaxInterval      time.Duration `split_words:"true" default:"1s"`
	PollBudget           time.Duration `split_words:"true" default:"25s"`
	CacheEnabled         bool          `split_words:"true" default:"true"`
	CacheTTL             time.Duration `envconfig:"CACHE_TTL" default:"15m"`
}

// Service owns the shared pooling state for the whole process: handle
// pool, descriptor cache, thread pool, run poller and response cache,
// plus the background descriptor sweep. Construct one at startup,
// inject it where needed, Close it at shutdown.
type Service struct {
	Handles     *Handles
	Descriptors *Descriptors
	Threads     *Threads
	Poller      *Poller
	Cache       *ResponseCache

	clock  Clock
	logger zerolog.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// ServiceOption customizes a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock Clock
}

// WithClock substitutes the wall clock, for tests.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func NewService(cfg Config, construct HandleConstructor, opts ...ServiceOption) (*Service, error) {
	options := serviceOptions{clock: SystemClock{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	handles, err := NewHandles(construct)
	if err != nil {
		return nil, err
	}

	s := &Service{
		Handles: handles,
		clock:   options.clock,
		logger:  logx.Component("pool"),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	s.Descriptors = NewDescriptors(handles, cfg.DescriptorTTL, s.clock)
	s.Poller = NewPoller(cfg.PollInterval, cfg.PollMaxInterval, cfg.PollBudget, s.clock)
	s.Cache = NewResponseCache(cfg.CacheEnabled, cfg.CacheTTL, s.clock)

	var threadOpts []ThreadsOption
	if cfg.DeleteEvictedThreads {
		threadOpts = append(threadOpts, WithRemoteDelete(func(ctx context.Context, endpoint, threadID string) error {
			client, err := handles.Get(endpoint)
			if err != nil {
				return err
			}
			return client.DeleteThread(ctx, threadID)
		}))
	}
	s.Threads = NewThreads(cfg.PoolSize, cfg.MaxIdle, s.clock, threadOpts...)

	sweepEvery := cfg.DescriptorSweepEvery
	if sweepEvery <= 0 {
		sweepEvery = 15 * time.Minute
	}
	go s.janitor(sweepEvery)

	return s, nil
}

// StatusFunc returns the poller callback bound to the endpoint's
// handle, so callers do not re-resolve the client on every poll.
func (s *Service) StatusFunc(endpoint string) RunStatusFunc {
	return func(ctx context.Context, threadID, runID string) (agentsvc.Run, error) {
		client, err := s.Handles.Get(endpoint)
		if err != nil {
			return agentsvc.Run{}, err
		}
		return client.GetRun(ctx, threadID, runID)
	}
}

// janitor removes expired descriptors on a fixed cadence until Close.
func (s *Service) janitor(every time.Duration) {
	defer close(s.done)
	for {
		select {
		case <-s.stop:
			return
		case <-s.clock.After(every):
			if removed := s.Descriptors.Sweep(s.clock.Now()); removed > 0 {
				s.logger.Debug().Int("removed", removed).Msg("descriptor sweep")
			}
		}
	}
}

// Close stops the background sweep and waits for in-flight best-effort
// thread deletions to finish. Idempotent.
func (s *Service) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
	s.Threads.drain()
}
