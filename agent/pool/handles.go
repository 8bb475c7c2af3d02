// Package pool holds the shared, process-lifetime resource layer in
// front of the remote agent-execution service: the client handle pool,
// the agent descriptor cache, the bounded conversation-thread pool, the
// run poller and the response cache. Everything here is mutated by many
// concurrent queries; each structure keeps get-or-create atomic per key
// while staying concurrent across keys.
package pool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"github.com/shksin/multi-agent-chatbot/pkg/agentsvc"
)

// HandleConstructor builds the client for one endpoint. Construction is
// expected to be expensive (credential setup), so the pool guarantees it
// runs once per endpoint per in-flight miss.
type HandleConstructor func(endpoint string) (*agentsvc.Client, error)

// Handles is the client handle pool: one shared agentsvc.Client per
// endpoint, built lazily on first use, never evicted.
type Handles struct {
	construct HandleConstructor
	clients   *xsync.MapOf[string, *agentsvc.Client]
	group     singleflight.Group
}

func NewHandles(construct HandleConstructor) (*Handles, error) {
	if construct == nil {
		return nil, errors.New("handle constructor is required")
	}
	return &Handles{
		construct: construct,
		clients:   xsync.NewMapOf[string, *agentsvc.Client](),
	}, nil
}

// Get returns the shared handle for the endpoint, constructing it on
// first use. Concurrent first callers share a single construction and
// all receive the same instance. A construction failure propagates to
// every waiter and is not cached, so the next call retries.
func (h *Handles) Get(endpoint string) (*agentsvc.Client, error) {
	key := strings.TrimSpace(endpoint)
	if key == "" {
		return nil, errors.New("endpoint is required")
	}

	if client, ok := h.clients.Load(key); ok {
		return client, nil
	}

	v, err, _ := h.group.Do(key, func() (any, error) {
		if client, ok := h.clients.Load(key); ok {
			return client, nil
		}
		client, err := h.construct(key)
		if err != nil {
			return nil, fmt.Errorf("construct handle for %s: %w", key, err)
		}
		h.clients.Store(key, client)
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*agentsvc.Client), nil
}

// Size reports how many endpoints currently hold a handle.
func (h *Handles) Size() int {
	return h.clients.Size()
}
