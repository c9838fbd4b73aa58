// Package agent implements the bounded tool-driven agent loop
// (component C6): INIT -> TURN <-> LLM_CALL -> PARSE_BLOCKS -> ...,
// alternating LLM turns with typed tool dispatch until the LLM emits a
// terminal tool and ends its turn, the turn budget is exhausted, or the
// LLM ends the run with no structured result.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scoutflo/platform-observability-agent/pkg/history"
	"github.com/scoutflo/platform-observability-agent/pkg/llm"
	"github.com/scoutflo/platform-observability-agent/pkg/plan"
	"github.com/scoutflo/platform-observability-agent/pkg/tools"
)

// DefaultMaxTurnsAnalyze and DefaultMaxTurnsValidate are the spec's
// per-mode turn budgets.
const (
	DefaultMaxTurnsAnalyze  = 30
	DefaultMaxTurnsValidate = 40

	maxLLMAttempts = 3
)

// LLMClient is the subset of *llm.Client the driver depends on, so tests
// can substitute a scripted transcript instead of a real API call.
type LLMClient interface {
	CreateMessage(ctx context.Context, system string, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Response, error)
}

// Driver runs one bounded agent loop against a Registry and an
// LLMClient, per spec.md §4.6.
type Driver struct {
	LLM      LLMClient
	Registry *tools.Registry
	History  *history.Store // nil for analyze/scan mode

	// sleep is overridable in tests so backoff doesn't actually block.
	sleep func(time.Duration)
	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// New builds a Driver. history may be nil for analyze/scan mode.
func New(llmClient LLMClient, registry *tools.Registry, historyStore *history.Store) *Driver {
	return &Driver{
		LLM:      llmClient,
		Registry: registry,
		History:  historyStore,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// Outcome is the result of one driver run: exactly one of Plan/Report is
// populated depending on mode, Text carries any trailing operator-facing
// prose, and TurnsUsed/TimedOut report how the loop ended.
type Outcome struct {
	Plan      *plan.ObservabilityPlan
	Report    *plan.ValidationReport
	Text      []string
	TurnsUsed int
	TimedOut  bool
}

// RunAnalyze drives analyze/scan mode to a parsed ObservabilityPlan.
func (d *Driver) RunAnalyze(ctx context.Context, systemPrompt, initialUserMessage, repoPath string, maxTurns int) (*Outcome, error) {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurnsAnalyze
	}
	out, terminal, err := d.run(ctx, tools.ModeAnalyze, systemPrompt, initialUserMessage, maxTurns, "generate_observability_plan")
	if err != nil {
		return nil, err
	}
	if out.TimedOut {
		fallback := plan.UnstructuredFallback(d.now().UTC().Format(time.RFC3339), repoPath)
		out.Plan = &fallback
		return out, nil
	}
	if terminal == nil {
		fallback := plan.UnstructuredFallback(d.now().UTC().Format(time.RFC3339), repoPath)
		out.Plan = &fallback
		return out, nil
	}
	var p plan.ObservabilityPlan
	if err := json.Unmarshal(terminal, &p); err != nil {
		return nil, fmt.Errorf("agent: parsing observability plan: %w", err)
	}
	out.Plan = &p
	return out, nil
}

// RunValidate drives validate mode to a parsed ValidationReport,
// prepending a history digest to the initial message and persisting the
// resulting report at run end, per spec.md §4.6's history integration.
func (d *Driver) RunValidate(ctx context.Context, systemPrompt, initialUserMessage, clusterContext string, maxTurns int) (*Outcome, error) {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurnsValidate
	}

	message := initialUserMessage
	if d.History != nil {
		rec, found, err := d.History.Latest(clusterContext)
		if err != nil {
			return nil, fmt.Errorf("agent: loading history for %s: %w", clusterContext, err)
		}
		if digest, ok := history.Digest(clusterContext, rec, found); ok {
			message = digest + "\n" + initialUserMessage
		}
	}

	out, terminal, err := d.run(ctx, tools.ModeValidate, systemPrompt, message, maxTurns, "generate_validation_report")
	if err != nil {
		return nil, err
	}

	generatedAt := d.now().UTC().Format(time.RFC3339)
	var report plan.ValidationReport
	switch {
	case out.TimedOut || terminal == nil:
		report = plan.UnstructuredValidationFallback(generatedAt, clusterContext)
	default:
		if err := json.Unmarshal(terminal, &report); err != nil {
			return nil, fmt.Errorf("agent: parsing validation report: %w", err)
		}
	}
	out.Report = &report

	if d.History != nil {
		if err := d.saveReport(clusterContext, generatedAt, report); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// saveReport serializes a ValidationReport into a history.Record and
// persists it, pruning old runs beyond the retention bound internally
// (history.Store.Save's responsibility).
func (d *Driver) saveReport(clusterContext, generatedAt string, report plan.ValidationReport) error {
	checksJSON, err := json.Marshal(report.Checks)
	if err != nil {
		return fmt.Errorf("agent: marshaling checks for history: %w", err)
	}
	recsJSON, err := json.Marshal(report.Recommendations)
	if err != nil {
		return fmt.Errorf("agent: marshaling recommendations for history: %w", err)
	}
	remediationJSON, err := json.Marshal(report.RemediationSteps)
	if err != nil {
		return fmt.Errorf("agent: marshaling remediation for history: %w", err)
	}
	dashboardsToImportJSON, err := json.Marshal(report.DashboardsToImport)
	if err != nil {
		return fmt.Errorf("agent: marshaling dashboards-to-import for history: %w", err)
	}
	planHash, err := history.ComputeHash(report)
	if err != nil {
		return fmt.Errorf("agent: hashing report for history: %w", err)
	}

	return d.History.Save(history.Record{
		ClusterContext:         clusterContext,
		RunAt:                  generatedAt,
		ClusterSummary:         report.ClusterSummary,
		ChecksJSON:             string(checksJSON),
		DashboardsJSON:         "[]",
		RecommendationsJSON:    string(recsJSON),
		RemediationJSON:        string(remediationJSON),
		DashboardsToImportJSON: string(dashboardsToImportJSON),
		PlanHash:               planHash,
	})
}

// run is the mode-agnostic core of the state machine: INIT -> TURN <->
// LLM_CALL -> PARSE_BLOCKS -> (tool calls? execute and loop : done).
// It returns the terminal tool's raw JSON input, or nil if the run ended
// without one (timeout or unstructured end_turn).
func (d *Driver) run(ctx context.Context, mode tools.Mode, systemPrompt, initialUserMessage string, maxTurns int, terminalToolName string) (*Outcome, json.RawMessage, error) {
	toolDefs, err := d.Registry.AnthropicTools(mode)
	if err != nil {
		return nil, nil, fmt.Errorf("agent: building tool definitions: %w", err)
	}

	messages := []llm.Message{
		{Role: llm.RoleUser, Blocks: []llm.ContentBlock{{Type: llm.BlockText, Text: initialUserMessage}}},
	}

	out := &Outcome{}
	var terminalInput json.RawMessage

	for turn := 0; turn < maxTurns; turn++ {
		out.TurnsUsed = turn + 1

		resp, err := d.attemptWithBackoff(ctx, systemPrompt, messages, toolDefs)
		if err != nil {
			return nil, nil, fmt.Errorf("agent: llm call on turn %d: %w", turn+1, err)
		}

		for _, b := range resp.TextBlocks() {
			out.Text = append(out.Text, b.Text)
		}

		toolUses := resp.ToolUseBlocks()
		sawTerminal := terminalInput != nil
		var newSawTerminal bool

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Blocks: resp.Blocks})

		if len(toolUses) > 0 {
			resultBlocks := make([]llm.ContentBlock, 0, len(toolUses))
			for _, tu := range toolUses {
				if tu.ToolName == terminalToolName {
					terminalInput = tu.ToolInput
					newSawTerminal = true
				}
				result := d.Registry.Dispatch(ctx, tu.ToolName, tu.ToolInput)
				resultBlocks = append(resultBlocks, llm.ContentBlock{
					Type:            llm.BlockToolResult,
					ToolResultForID: tu.ToolUseID,
					ToolResultText:  result,
				})
			}
			messages = append(messages, llm.Message{Role: llm.RoleUser, Blocks: resultBlocks})
		}

		if resp.StopReason != llm.StopEndTurn {
			continue
		}

		// end_turn: terminate now that the model has had its final say.
		if sawTerminal || newSawTerminal {
			return out, terminalInput, nil
		}
		return out, nil, nil
	}

	out.TimedOut = true
	return out, nil, nil
}

// attemptWithBackoff is the pure retry policy for one LLM_CALL step: up
// to maxLLMAttempts attempts, waiting 2^attempt seconds between
// retryable failures, per spec.md §4.6 step 1. A non-retryable error
// (bad API key, malformed request) terminates immediately without
// consuming remaining attempts.
func (d *Driver) attemptWithBackoff(ctx context.Context, system string, messages []llm.Message, toolDefs []llm.ToolDefinition) (*llm.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= maxLLMAttempts; attempt++ {
		resp, err := d.LLM.CreateMessage(ctx, system, messages, toolDefs)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !llm.IsRetryable(err) || attempt == maxLLMAttempts {
			break
		}

		wait := time.Duration(1<<uint(attempt)) * time.Second
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		d.sleep(wait)
	}
	return nil, lastErr
}
