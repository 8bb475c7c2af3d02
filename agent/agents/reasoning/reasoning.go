// Package reasoning is the remote-reasoning backend: it runs one user
// turn as an asynchronous job on the agent-execution service, going
// through the shared resource layer — response cache first, then the
// endpoint handle, the descriptor cache, a pooled conversation thread
// and the run poller.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shksin/multi-agent-chatbot/agent/contract"
	"github.com/shksin/multi-agent-chatbot/agent/pool"
	"github.com/shksin/multi-agent-chatbot/pkg/agentsvc"
	logx "github.com/shksin/multi-agent-chatbot/pkg/logger"
)

// ErrNoAnswer reports a completed run whose thread holds no assistant
// reply — the service accepted the turn but produced nothing usable.
var ErrNoAnswer = errors.New("reasoning agent: run produced no assistant reply")

// messageFetchLimit bounds how many newest messages are scanned for the
// assistant reply after a completed run.
const messageFetchLimit = 10

type Config struct {
	Endpoint string `split_words:"true"`
	AgentID  string `envconfig:"AGENT_ID" required:"true"`
}

type Agent struct {
	endpoint string
	agentID  string
	pools    *pool.Service
	logger   zerolog.Logger
}

var _ contract.DefaultAgent = (*Agent)(nil)

func New(cfg Config, pools *pool.Service) (*Agent, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("reasoning agent endpoint is required")
	}
	agentID := strings.TrimSpace(cfg.AgentID)
	if agentID == "" {
		return nil, errors.New("reasoning agent id is required")
	}
	if pools == nil {
		return nil, errors.New("pool service is required")
	}
	return &Agent{
		endpoint: endpoint,
		agentID:  agentID,
		pools:    pools,
		logger:   logx.Component("reasoning-agent"),
	}, nil
}

func (a *Agent) Name() contract.AgentName {
	return contract.AgentNameReasoning
}

// Query answers text through the remote agent. Identical queries inside
// the cache TTL are served without touching the service; otherwise one
// pooled thread is leased for the duration of the turn and its permit
// is returned on every exit path.
func (a *Agent) Query(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: query text is required", contract.ErrValidation)
	}

	logger := a.logger.With().Str("call_id", uuid.NewString()).Logger()

	if answer, ok := a.pools.Cache.Get(text); ok {
		logger.Debug().Msg("response cache hit")
		return answer, nil
	}

	client, err := a.pools.Handles.Get(a.endpoint)
	if err != nil {
		return "", fmt.Errorf("resolve agent service handle: %w", err)
	}
	descriptor, err := a.pools.Descriptors.Get(ctx, a.endpoint, a.agentID)
	if err != nil {
		return "", fmt.Errorf("resolve agent descriptor: %w", err)
	}

	lease, err := a.pools.Threads.Acquire(ctx, a.endpoint)
	if err != nil {
		return "", err
	}
	defer lease.Discard()

	threadID, err := a.postUserMessage(ctx, client, lease.ThreadID, text, logger)
	if err != nil {
		return "", err
	}

	run, err := client.CreateRun(ctx, threadID, descriptor.Agent.ID)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	logger.Debug().Str("thread_id", threadID).Str("run_id", run.ID).Msg("run submitted")

	final, err := a.pools.Poller.Await(ctx, run, a.pools.StatusFunc(a.endpoint))
	if err != nil {
		return "", err
	}

	messages, err := client.ListMessages(ctx, threadID, messageFetchLimit)
	if err != nil {
		return "", fmt.Errorf("list thread messages: %w", err)
	}
	answer, err := newestAssistantReply(messages)
	if err != nil {
		return "", fmt.Errorf("%w: run=%s", err, final.ID)
	}

	lease.Release(threadID)
	a.pools.Cache.Put(text, answer)
	return answer, nil
}

// postUserMessage appends the user turn, reusing threadID when the pool
// handed one out. A reused identifier the service no longer knows is
// replaced by a fresh thread and the message is retried exactly once;
// every other failure propagates as-is.
func (a *Agent) postUserMessage(ctx context.Context, client *agentsvc.Client, threadID, text string, logger zerolog.Logger) (string, error) {
	reused := threadID != ""
	if !reused {
		thread, err := client.CreateThread(ctx)
		if err != nil {
			return "", fmt.Errorf("create conversation thread: %w", err)
		}
		threadID = thread.ID
	}

	_, err := client.CreateMessage(ctx, threadID, agentsvc.RoleUser, text)
	if err == nil {
		logger.Debug().Str("thread_id", threadID).Bool("reused", reused).Msg("user message posted")
		return threadID, nil
	}
	if !reused || !errors.Is(err, agentsvc.ErrNotFound) {
		return "", fmt.Errorf("post user message: %w", err)
	}

	// The cached identifier went stale remotely; start over on a fresh
	// thread for this same call.
	logger.Debug().Str("thread_id", threadID).Msg("pooled thread is gone remotely, creating a fresh one")
	thread, err := client.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create replacement thread: %w", err)
	}
	if _, err := client.CreateMessage(ctx, thread.ID, agentsvc.RoleUser, text); err != nil {
		return "", fmt.Errorf("post user message on replacement thread: %w", err)
	}
	return thread.ID, nil
}

// newestAssistantReply picks the most recent assistant message from a
// newest-first listing and renders its citations.
func newestAssistantReply(messages []agentsvc.Message) (string, error) {
	for _, msg := range messages {
		if msg.Role != agentsvc.RoleAssistant {
			continue
		}
		if text := renderMessage(msg); strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", ErrNoAnswer
}

// renderMessage joins the text parts, substituting every recognized
// citation marker with a readable form: [title](url) for web sources,
// [fileID] for indexed files. Unrecognized annotations are left alone.
func renderMessage(msg agentsvc.Message) string {
	var b strings.Builder
	for _, part := range msg.Content {
		if part.Text == nil {
			continue
		}
		text := part.Text.Value
		for _, ann := range part.Text.Annotations {
			marker := ann.Text
			if marker == "" {
				continue
			}
			switch {
			case ann.URLCitation != nil:
				title := strings.TrimSpace(ann.URLCitation.Title)
				if title == "" {
					title = ann.URLCitation.URL
				}
				text = strings.ReplaceAll(text, marker, fmt.Sprintf(" [%s](%s)", title, ann.URLCitation.URL))
			case ann.FileCitation != nil:
				text = strings.ReplaceAll(text, marker, fmt.Sprintf(" [%s]", ann.FileCitation.FileID))
			}
		}
		b.WriteString(text)
	}
	return b.String()
}
