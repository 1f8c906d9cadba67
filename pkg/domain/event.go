package domain

import (
	"encoding"
	"time"
)

type State string

const (
	StateWorking   State = "working"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Terminal reports whether the state ends a stream session.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

var _ encoding.TextMarshaler = State("")

func (s State) MarshalText() ([]byte, error) { return []byte(string(s)), nil }

type PartKind string

const (
	PartText PartKind = "text"
)

// Part is one piece of artifact content. Result files are opaque to the
// adapter, so everything is delivered as text.
type Part struct {
	Kind PartKind `json:"kind"`
	Text string   `json:"text"`
}

// Artifact is the packaged result file delivered on completion.
type Artifact struct {
	Name  string `json:"name"`
	Parts []Part `json:"parts"`
}

func NewTextArtifact(name string, content []byte) Artifact {
	return Artifact{
		Name:  name,
		Parts: []Part{{Kind: PartText, Text: string(content)}},
	}
}

type Status struct {
	State State `json:"state"`
	// Message carries a human-readable reason on failed terminals.
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type Result struct {
	Kind      string     `json:"kind"`
	TaskID    string     `json:"taskId"`
	ContextID string     `json:"contextId,omitempty"`
	Final     bool       `json:"final"`
	Status    Status     `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Event is one streamed envelope. ID echoes the inbound request id so the
// arbiter can correlate events with its call.
type Event struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  Result `json:"result"`
}

const statusUpdateKind = "status-update"

func WorkingEvent(reqID any, taskID string, at time.Time) Event {
	return Event{
		JSONRPC: "2.0",
		ID:      reqID,
		Result: Result{
			Kind:   statusUpdateKind,
			TaskID: taskID,
			Final:  false,
			Status: Status{State: StateWorking, Timestamp: at.UTC().Format(time.RFC3339)},
		},
	}
}

func CompletedEvent(reqID any, taskID string, at time.Time, artifacts ...Artifact) Event {
	return Event{
		JSONRPC: "2.0",
		ID:      reqID,
		Result: Result{
			Kind:      statusUpdateKind,
			TaskID:    taskID,
			Final:     true,
			Status:    Status{State: StateCompleted, Timestamp: at.UTC().Format(time.RFC3339)},
			Artifacts: artifacts,
		},
	}
}

func FailedEvent(reqID any, taskID string, at time.Time, message string) Event {
	return Event{
		JSONRPC: "2.0",
		ID:      reqID,
		Result: Result{
			Kind:   statusUpdateKind,
			TaskID: taskID,
			Final:  true,
			Status: Status{State: StateFailed, Message: message, Timestamp: at.UTC().Format(time.RFC3339)},
		},
	}
}
