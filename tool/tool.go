// Package tool implements the tool layer: capabilities the agent invokes
// with schema-validated arguments, consistent error codes and a uniform
// reply contract. ProductSearch is the catalog search tool.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/shopmesh/internal/util"
)

// Tool defines the interface for capabilities the agent can call.
//
// Implementations should:
//   - Provide a snake_case name and a short description
//   - Define a JSON schema for parameters
//   - Return *ToolError for expected failures
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with structured arguments validated against Parameters.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeExecution   = "EXECUTION_ERROR"
	CodeUnavailable = "RETRIEVAL_UNAVAILABLE"
	CodeNotFound    = "TOOL_NOT_FOUND"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is sees through ToolError.
func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Registry looks tools up by name.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry registers the given tools; later duplicates replace earlier ones.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: map[string]Tool{}}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names lists registered tool names in registration order.
func (r *Registry) Names() []string { return append([]string(nil), r.order...) }

// Call validates args against the tool schema and invokes it.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, NewToolError(name, "unknown tool", CodeNotFound)
	}
	if err := util.ValidateParameters(args, t.Parameters()); err != nil {
		return nil, &ToolError{Tool: name, Message: err.Error(), Code: CodeValidation, Err: err}
	}
	return t.Call(ctx, args)
}
