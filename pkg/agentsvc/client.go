// Package agentsvc is a REST client for the remote agent-execution
// service: agents answer on conversation threads, one asynchronous run
// per turn. A Client is bound to a single endpoint, is immutable after
// construction and is safe for concurrent use.
package agentsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFound marks a remote identifier (agent, thread, run) the
	// service no longer knows. Callers use it to tell a stale cached
	// identifier apart from a genuine failure.
	ErrNotFound = errors.New("agent service: not found")

	// ErrRemote wraps every other non-2xx response.
	ErrRemote = errors.New("agent service: request failed")
)

const maxResponseSizeBytes = 2 << 20

type Config struct {
	Endpoint   string        `split_words:"true" required:"true"`
	APIKey     string        `envconfig:"API_KEY" required:"true"`
	APIVersion string        `envconfig:"API_VERSION" default:"2024-07-01-preview"`
	Timeout    time.Duration `split_words:"true" default:"30s"`
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

type Client struct {
	endpoint   string
	apiKey     string
	apiVersion string
	httpClient *http.Client
}

func NewClient(cfg Config, opts ...Option) (*Client, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("agent service endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid agent service endpoint: %w", err)
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("agent service api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		apiVersion: strings.TrimSpace(cfg.APIVersion),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Endpoint returns the endpoint this client is bound to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// GetAgent fetches the descriptor of one remote agent.
func (c *Client) GetAgent(ctx context.Context, agentID string) (AgentInfo, error) {
	var info AgentInfo
	if strings.TrimSpace(agentID) == "" {
		return info, errors.New("agent id is required")
	}
	err := c.do(ctx, http.MethodGet, "/assistants/"+url.PathEscape(agentID), nil, nil, &info)
	return info, err
}

// CreateThread opens a fresh conversation thread.
func (c *Client) CreateThread(ctx context.Context) (Thread, error) {
	var thread Thread
	err := c.do(ctx, http.MethodPost, "/threads", nil, struct{}{}, &thread)
	return thread, err
}

// DeleteThread removes a thread remotely. Deleting an unknown thread
// returns ErrNotFound.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	if strings.TrimSpace(threadID) == "" {
		return errors.New("thread id is required")
	}
	return c.do(ctx, http.MethodDelete, "/threads/"+url.PathEscape(threadID), nil, nil, nil)
}

// CreateMessage appends one turn to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, role, text string) (Message, error) {
	var msg Message
	if strings.TrimSpace(threadID) == "" {
		return msg, errors.New("thread id is required")
	}
	payload := struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{Role: role, Content: text}
	err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/messages", nil, payload, &msg)
	return msg, err
}

// CreateRun submits an asynchronous run of the given agent on a thread.
// The returned run starts queued; poll it with GetRun.
func (c *Client) CreateRun(ctx context.Context, threadID, agentID string) (Run, error) {
	var run Run
	if strings.TrimSpace(threadID) == "" {
		return run, errors.New("thread id is required")
	}
	if strings.TrimSpace(agentID) == "" {
		return run, errors.New("agent id is required")
	}
	payload := struct {
		AgentID string `json:"assistant_id"`
	}{AgentID: agentID}
	err := c.do(ctx, http.MethodPost, "/threads/"+url.PathEscape(threadID)+"/runs", nil, payload, &run)
	return run, err
}

// GetRun reports the current status of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	var run Run
	if strings.TrimSpace(threadID) == "" {
		return run, errors.New("thread id is required")
	}
	if strings.TrimSpace(runID) == "" {
		return run, errors.New("run id is required")
	}
	err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(threadID)+"/runs/"+url.PathEscape(runID), nil, nil, &run)
	return run, err
}

// ListMessages returns up to limit messages on a thread, newest first.
func (c *Client) ListMessages(ctx context.Context, threadID string, limit int) ([]Message, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, errors.New("thread id is required")
	}

	query := url.Values{"order": {"desc"}}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var list struct {
		Data []Message `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(threadID)+"/messages", query, nil, &list); err != nil {
		return nil, err
	}
	return list.Data, nil
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if c == nil {
		return errors.New("nil agent service client")
	}

	if query == nil {
		query = url.Values{}
	}
	if c.apiVersion != "" {
		query.Set("api-version", c.apiVersion)
	}
	target := c.endpoint + path
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", ErrNotFound, method, path)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var parsed apiError
		if unmarshalErr := json.Unmarshal(raw, &parsed); unmarshalErr == nil && parsed.Error.Message != "" {
			return fmt.Errorf("%w: status=%d code=%s: %s", ErrRemote, resp.StatusCode, parsed.Error.Code, parsed.Error.Message)
		}
		return fmt.Errorf("%w: status=%d body=%s", ErrRemote, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
