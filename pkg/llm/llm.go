// Package llm wraps the Anthropic Messages API (the "messages with
// tools" contract in spec.md §6) behind the small Config/Client surface
// the agent driver needs: one CreateMessage call in, one Response out,
// with this package owning all translation to and from the SDK's
// content-block union types.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Config configures a Client.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
}

// Client is a thin wrapper over the Anthropic Messages API.
type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int64
}

// NewClient builds a Client from an explicit Config.
func NewClient(cfg Config) *Client {
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	return &Client{
		api:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

// NewDefaultClient builds a Client from the ANTHROPIC_API_KEY
// environment variable, mirroring the teacher's env-driven
// NewDefaultClient constructor.
func NewDefaultClient(model string, maxTokens int) (*Client, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errors.New("llm: ANTHROPIC_API_KEY is not set")
	}
	return NewClient(Config{APIKey: apiKey, Model: model, MaxTokens: maxTokens}), nil
}

// Role is a conversation message role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType is the closed set of content block shapes this wrapper
// round-trips.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one block within a Message. Only the fields relevant
// to its Type are meaningful.
type ContentBlock struct {
	Type BlockType

	// BlockText
	Text string

	// BlockToolUse
	ToolUseID string
	ToolName  string
	ToolInput json.RawMessage

	// BlockToolResult
	ToolResultForID string
	ToolResultText  string
	ToolResultError bool
}

// Message is one turn of conversation, either from the operator/tool
// layer (RoleUser) or the model (RoleAssistant).
type Message struct {
	Role   Role
	Blocks []ContentBlock
}

// ToolDefinition is one tool's JSON-Schema contract, as produced by
// pkg/tools.ToAnthropicTool.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// StopReason mirrors anthropic.StopReason's values this package cares
// about.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
)

// Response is the decoded result of one CreateMessage call.
type Response struct {
	Blocks     []ContentBlock
	StopReason StopReason
}

// ToolUseBlocks filters Blocks down to tool_use blocks, the shape the
// agent driver dispatches against the tool executors.
func (r *Response) ToolUseBlocks() []ContentBlock {
	var out []ContentBlock
	for _, b := range r.Blocks {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// TextBlocks filters Blocks down to text blocks, surfaced to the
// operator.
func (r *Response) TextBlocks() []ContentBlock {
	var out []ContentBlock
	for _, b := range r.Blocks {
		if b.Type == BlockText {
			out = append(out, b)
		}
	}
	return out
}

// CreateMessage issues one Messages API call and decodes the result
// into this package's own types. It performs no retries; backoff and
// retry policy live in pkg/agent, which treats a single CreateMessage
// call as one attempt.
func (c *Client) CreateMessage(ctx context.Context, system string, messages []Message, tools []ToolDefinition) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	params.Messages = make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		blocks := make([]anthropic.ContentBlockParamUnion, 0, len(m.Blocks))
		for _, b := range m.Blocks {
			switch b.Type {
			case BlockText:
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case BlockToolUse:
				blocks = append(blocks, anthropic.NewToolUseBlock(b.ToolUseID, json.RawMessage(b.ToolInput), b.ToolName))
			case BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolResultForID, b.ToolResultText, b.ToolResultError))
			}
		}
		switch m.Role {
		case RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
		case RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
		}
	}

	if len(tools) > 0 {
		params.Tools = make([]anthropic.ToolUnionParam, 0, len(tools))
		for _, t := range tools {
			var schema anthropic.ToolInputSchemaParam
			if err := json.Unmarshal(t.InputSchema, &schema); err != nil {
				return nil, fmt.Errorf("llm: decoding input schema for tool %q: %w", t.Name, err)
			}
			params.Tools = append(params.Tools, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        t.Name,
					Description: anthropic.String(t.Description),
					InputSchema: schema,
				},
			})
		}
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("llm: create message: %w", err)
	}

	resp := &Response{StopReason: StopReason(msg.StopReason)}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Blocks = append(resp.Blocks, ContentBlock{Type: BlockText, Text: variant.Text})
		case anthropic.ToolUseBlock:
			input, _ := json.Marshal(variant.Input)
			resp.Blocks = append(resp.Blocks, ContentBlock{
				Type:      BlockToolUse,
				ToolUseID: variant.ID,
				ToolName:  variant.Name,
				ToolInput: input,
			})
		}
	}
	return resp, nil
}

// IsRetryable classifies a CreateMessage error per spec.md §4.6: rate
// limits (429) and server errors (5xx) are transient, as are plain
// network errors; everything else (bad API key, malformed request) is
// permanent. Callers (pkg/agent's attemptWithBackoff) use this instead
// of inspecting *anthropic.Error directly, keeping SDK error shapes out
// of the driver.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
