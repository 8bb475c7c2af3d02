// Package orchestrator runs the per-query state machine: route the
// query through the backend fallback chain, pick one raw answer,
// optionally rewrite it, and assemble the aggregate result. One
// orchestrator serves many concurrent queries.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/shksin/multi-agent-chatbot/agent/contract"
	nodex "github.com/shksin/multi-agent-chatbot/agent/nodes"
	logx "github.com/shksin/multi-agent-chatbot/pkg/logger"
)

// ErrInvalidQuery mirrors the validation node's sentinel for callers
// that want to tell bad input apart from backend trouble.
var ErrInvalidQuery = nodex.ErrInvalidQuery

type Config struct {
	SummaryEnabled bool          `split_words:"true" default:"true"`
	SummaryTimeout time.Duration `split_words:"true" default:"10s"`
}

type Orchestrator struct {
	backends   contract.Registry
	summarizer contract.Summarizer

	graphRunner compose.Runnable[nodex.GraphInput, nodex.GraphOutput]

	summaryTimeout time.Duration
	logger         zerolog.Logger

	now   func() time.Time
	newID func() string
}

func New(backends contract.Registry, summarizer contract.Summarizer, cfg Config) (*Orchestrator, error) {
	if backends == nil {
		return nil, errors.New("backend registry is required")
	}
	if cfg.SummaryEnabled && summarizer == nil {
		return nil, errors.New("summarization is enabled but no summarizer was provided")
	}
	if !cfg.SummaryEnabled {
		summarizer = nil
	}

	summaryTimeout := cfg.SummaryTimeout
	if summaryTimeout <= 0 {
		summaryTimeout = 10 * time.Second
	}

	o := &Orchestrator{
		backends:       backends,
		summarizer:     summarizer,
		summaryTimeout: summaryTimeout,
		logger:         logx.Component("orchestrator"),
		now:            time.Now,
		newID:          uuid.NewString,
	}

	graphRunner, err := o.compileQueryGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// Query answers one request. It never returns an error: whatever goes
// wrong inside the state machine itself is converted into a polite
// failure result with Success=false, so the caller always gets text.
func (o *Orchestrator) Query(ctx context.Context, query contract.Query) (result contract.OrchestrationResult) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Interface("panic", r).Msg("orchestration panicked")
			result = o.failureResult(query, fmt.Sprintf("panic: %v", r))
		}
	}()

	out, err := o.graphRunner.Invoke(ctx, nodex.GraphInput{Query: query})
	if err != nil {
		o.logger.Warn().Err(err).Msg("orchestration failed")
		return o.failureResult(query, err.Error())
	}

	result = out.Result
	o.logger.Debug().
		Str("request_id", result.ID).
		Interface("agents_called", result.AgentsCalled).
		Int("backend_errors", len(result.Errors)).
		Msg("orchestration finished")
	return result
}

// politeFailureText is all a caller sees when the state machine itself
// fails; the detail stays in the error list and the logs.
const politeFailureText = "Something went wrong while answering your question. Please try again."

func (o *Orchestrator) failureResult(query contract.Query, detail string) contract.OrchestrationResult {
	return contract.OrchestrationResult{
		ID:        o.newID(),
		Query:     query.Text,
		Timestamp: o.now().UTC(),
		Errors:    []contract.BackendError{{Agent: contract.AgentNameOrchestrator, Detail: detail}},
		FinalText: politeFailureText,
		Success:   false,
	}
}
