// Package ai holds the provider-neutral conversation model shared by the
// orchestrator, the capability tools and the LLM backends.
package ai

import (
	"context"
	"errors"
)

// ErrBackendUnavailable marks failures to reach or use the LLM backend.
var ErrBackendUnavailable = errors.New("llm backend unavailable")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the context sent to the model. Assistant messages
// may carry a tool call instead of text; tool messages carry its result.
type Message struct {
	Role    Role
	Content string
	Call    *ToolCallRequest
	Result  *ToolResult
}

// ToolResult is what a tool produced for a call, fed back to the model.
type ToolResult struct {
	CallID string
	Name   string
	Output map[string]any
}

// Reply is what the model answered: either TextReply or ToolCallRequest.
type Reply interface {
	isReply()
}

type TextReply struct {
	Text string
}

type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments map[string]any
}

func (TextReply) isReply()       {}
func (ToolCallRequest) isReply() {}

type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
)

type Param struct {
	Type        ParamType
	Description string
	Enum        []string
	Minimum     *float64
	Maximum     *float64
}

// ToolDeclaration is the schema of a capability tool as the model sees it.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  map[string]Param
	Required    []string
}

type CompletionRequest struct {
	Model    string
	System   string
	Messages []Message
	Tools    []ToolDeclaration
}

// Backend is an LLM provider able to run tool-calling completions and plain
// prompt generations.
type Backend interface {
	Provider() string
	Complete(ctx context.Context, req CompletionRequest) (Reply, error)
	Generate(ctx context.Context, model, system, prompt string) (string, error)
}
