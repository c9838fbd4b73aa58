// Package tools implements the typed tool registry and executors
// (component C5): the fixed set of analyze and live tools the agent
// driver dispatches to, each declared with the teacher's mcp-go
// tool-builder pattern and converted to Anthropic tool-use parameters at
// the agent boundary.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/scoutflo/platform-observability-agent/pkg/llm"
)

// Executor runs one tool call against its raw JSON input and returns the
// tool's string result. It must never panic or return a bare error out
// of Dispatch — see Dispatch's error-as-string contract.
type Executor func(ctx context.Context, input json.RawMessage) (string, error)

// Tool pairs a declared JSON-Schema contract with its executor.
type Tool struct {
	Def  mcp.Tool
	Exec Executor
}

// ToAnthropicTool converts an mcp-go tool declaration into the
// llm.ToolDefinition the Anthropic Messages API expects. The mcp.Tool's
// InputSchema already carries the draft JSON-Schema shape (type,
// properties, required) the wire protocol serializes, so it is
// marshaled as-is rather than rebuilt.
func ToAnthropicTool(t mcp.Tool) (llm.ToolDefinition, error) {
	schema, err := json.Marshal(t.InputSchema)
	if err != nil {
		return llm.ToolDefinition{}, fmt.Errorf("tools: marshaling schema for %q: %w", t.Name, err)
	}
	return llm.ToolDefinition{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}, nil
}

// Registry holds the two tool groups the agent driver selects between
// by mode, keyed by name for O(1) dispatch.
type Registry struct {
	analyze map[string]Tool
	live    map[string]Tool
}

// NewRegistry builds the fixed analyze and live tool sets.
func NewRegistry(analyzeTools, liveTools []Tool) *Registry {
	r := &Registry{
		analyze: make(map[string]Tool, len(analyzeTools)),
		live:    make(map[string]Tool, len(liveTools)),
	}
	for _, t := range analyzeTools {
		r.analyze[t.Def.Name] = t
	}
	for _, t := range liveTools {
		r.live[t.Def.Name] = t
	}
	return r
}

// AnthropicTools returns the JSON-Schema tool contracts for one mode, in
// registration order is not guaranteed (map iteration) but callers treat
// tool order as insignificant to the LLM.
func (r *Registry) AnthropicTools(mode Mode) ([]llm.ToolDefinition, error) {
	var set map[string]Tool
	switch mode {
	case ModeAnalyze:
		set = r.analyze
	case ModeValidate:
		set = r.live
	default:
		return nil, fmt.Errorf("tools: unknown mode %q", mode)
	}
	out := make([]llm.ToolDefinition, 0, len(set))
	for _, t := range set {
		def, err := ToAnthropicTool(t.Def)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

// Mode selects which tool group a run dispatches against.
type Mode string

const (
	ModeAnalyze  Mode = "analyze"
	ModeValidate Mode = "validate"
)

// Dispatch routes a tool_use block to its executor by name: live tool
// names are a fixed set, anything else is looked up in the analyze set,
// and an unknown name is an error string rather than a panic, per
// spec.md §4.5's execution contract.
func (r *Registry) Dispatch(ctx context.Context, name string, input json.RawMessage) string {
	var (
		t  Tool
		ok bool
	)
	if t, ok = r.live[name]; !ok {
		t, ok = r.analyze[name]
	}
	if !ok {
		return fmt.Sprintf("Tool '%s' error: unknown tool", name)
	}

	result, err := t.Exec(ctx, input)
	if err != nil {
		return fmt.Sprintf("Tool '%s' error: %s", name, err.Error())
	}
	return result
}

// TerminalToolNames are the two terminal tools that end an agent run.
var TerminalToolNames = map[string]bool{
	"generate_observability_plan": true,
	"generate_validation_report":  true,
}

// IsTerminal reports whether name is a terminal tool.
func IsTerminal(name string) bool {
	return TerminalToolNames[name]
}
