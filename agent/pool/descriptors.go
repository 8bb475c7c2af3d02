package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/shksin/multi-agent-chatbot/pkg/agentsvc"
)

// Descriptor is a cached remote agent identity with its fetch time.
type Descriptor struct {
	Endpoint  string
	Agent     agentsvc.AgentInfo
	FetchedAt time.Time
}

type descriptorKey struct {
	endpoint string
	agentID  string
}

// Descriptors caches agent metadata per (endpoint, agentID) under a
// TTL. An entry older than the TTL is never returned; it is refetched
// through the endpoint's handle. Concurrent refreshes of one key may
// race; the last writer wins and staleness stays bounded by the TTL,
// which is acceptable because descriptors change rarely.
type Descriptors struct {
	handles *Handles
	ttl     time.Duration
	clock   Clock
	entries *xsync.MapOf[descriptorKey, Descriptor]
}

func NewDescriptors(handles *Handles, ttl time.Duration, clock Clock) *Descriptors {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Descriptors{
		handles: handles,
		ttl:     ttl,
		clock:   clock,
		entries: xsync.NewMapOf[descriptorKey, Descriptor](),
	}
}

// Get returns the cached descriptor while it is fresh, otherwise
// fetches the agent through the handle pool and caches the result.
func (d *Descriptors) Get(ctx context.Context, endpoint, agentID string) (Descriptor, error) {
	key := descriptorKey{endpoint: endpoint, agentID: agentID}
	if entry, ok := d.entries.Load(key); ok && d.clock.Now().Sub(entry.FetchedAt) < d.ttl {
		return entry, nil
	}

	client, err := d.handles.Get(endpoint)
	if err != nil {
		return Descriptor{}, err
	}
	info, err := client.GetAgent(ctx, agentID)
	if err != nil {
		return Descriptor{}, fmt.Errorf("fetch agent descriptor: %w", err)
	}

	entry := Descriptor{Endpoint: endpoint, Agent: info, FetchedAt: d.clock.Now()}
	d.entries.Store(key, entry)
	return entry, nil
}

// Sweep drops every entry whose age reached the TTL and reports how
// many were removed. The owning service runs it periodically so stale
// descriptors do not pile up between reads.
func (d *Descriptors) Sweep(now time.Time) int {
	removed := 0
	d.entries.Range(func(key descriptorKey, entry Descriptor) bool {
		if now.Sub(entry.FetchedAt) >= d.ttl {
			d.entries.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Size reports cached descriptors, stale entries included.
func (d *Descriptors) Size() int {
	return d.entries.Size()
}
