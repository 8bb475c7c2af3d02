package agentsvc

import "strings"

// Message author roles used by the remote service.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// RunStatus enumerates the lifecycle of an asynchronous run.
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCompleted      RunStatus = "completed"
	RunFailed         RunStatus = "failed"
	RunCancelled      RunStatus = "cancelled"
	RunExpired        RunStatus = "expired"
)

// Terminal reports whether the remote service will never advance the run
// past this status.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired:
		return true
	}
	return false
}

// AgentInfo describes one remote agent identity.
type AgentInfo struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
}

// Thread is a remote conversation grouping a sequence of turns.
type Thread struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

// RunError is the remote failure detail attached to a terminal run.
type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Run is one asynchronous unit of work submitted against a thread.
type Run struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	AgentID   string    `json:"assistant_id"`
	Status    RunStatus `json:"status"`
	LastError *RunError `json:"last_error,omitempty"`
}

// URLCitation points a citation marker at a web source.
type URLCitation struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// FileCitation points a citation marker at an indexed file.
type FileCitation struct {
	FileID string `json:"file_id"`
}

// Annotation decorates a span of message text. Text holds the inline
// marker exactly as it appears in the message body.
type Annotation struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	URLCitation  *URLCitation  `json:"url_citation,omitempty"`
	FileCitation *FileCitation `json:"file_citation,omitempty"`
}

// MessageText is the textual payload of a content part.
type MessageText struct {
	Value       string       `json:"value"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

// ContentPart is one element of a message body. Only text parts are
// produced by the agents this client talks to.
type ContentPart struct {
	Type string       `json:"type"`
	Text *MessageText `json:"text,omitempty"`
}

// Message is one turn on a thread, newest-first when listed.
type Message struct {
	ID        string        `json:"id"`
	ThreadID  string        `json:"thread_id"`
	Role      string        `json:"role"`
	Content   []ContentPart `json:"content"`
	CreatedAt int64         `json:"created_at"`
}

// PlainText joins the message's text parts without touching annotations.
func (m Message) PlainText() string {
	var b strings.Builder
	for _, part := range m.Content {
		if part.Text == nil {
			continue
		}
		b.WriteString(part.Text.Value)
	}
	return b.String()
}
