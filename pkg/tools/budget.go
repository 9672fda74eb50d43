// Package tools implements the orchestrator and sub-agent tool catalogs:
// input/result types tagged by tool name, per-agent call budgets, and the
// dispatch functions the orchestrator and sub-agent loops call for each
// tool_use block the model produces.
package tools

import (
	"sync"

	"github.com/tarsy-labs/deepresearch/pkg/toolerrors"
)

// Budget enforces the per-tool call limits and consecutive-failure cutoff
// described in SPEC_FULL.md section 4.3: each sub-agent gets its own
// Budget instance.
type Budget struct {
	mu sync.Mutex

	limits              map[string]int
	maxConsecutiveFails int

	calls            map[string]int
	consecutiveFails map[string]int
}

// NewBudget builds a Budget from a toolName -> limit map and the shared
// consecutive-failure cutoff.
func NewBudget(limits map[string]int, maxConsecutiveFails int) *Budget {
	return &Budget{
		limits:              limits,
		maxConsecutiveFails: maxConsecutiveFails,
		calls:               make(map[string]int),
		consecutiveFails:    make(map[string]int),
	}
}

// Check reports whether toolName may be called again. It does not itself
// record the call; the caller records the outcome via RecordSuccess /
// RecordFailure once the call completes.
func (b *Budget) Check(toolName string) *toolerrors.ToolError {
	b.mu.Lock()
	defer b.mu.Unlock()

	if limit, ok := b.limits[toolName]; ok && b.calls[toolName] >= limit {
		return toolerrors.New(
			toolerrors.ToolCallLimitReached,
			"call limit reached for "+toolName,
			"wrap up with the information already gathered instead of calling this tool again",
			false,
		)
	}
	if b.consecutiveFails[toolName] >= b.maxConsecutiveFails && b.maxConsecutiveFails > 0 {
		return toolerrors.New(
			toolerrors.ToolCallLimitReached,
			toolName+" has failed too many times in a row",
			"try a different approach or wrap up with the information already gathered",
			false,
		)
	}
	return nil
}

// RecordCall increments the call counter for toolName. Callers should call
// this once Check has passed and the tool call has actually been dispatched.
func (b *Budget) RecordCall(toolName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[toolName]++
}

// RecordSuccess resets the consecutive-failure counter for toolName.
func (b *Budget) RecordSuccess(toolName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails[toolName] = 0
}

// RecordFailure increments the consecutive-failure counter for toolName.
func (b *Budget) RecordFailure(toolName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails[toolName]++
}

// DefaultSubAgentLimits returns the per-tool call budgets named in
// SPEC_FULL.md section 4.3.
func DefaultSubAgentLimits(webSearch, file, codeInterpreter, viewImage int) map[string]int {
	return map[string]int{
		ToolWebSearch:       webSearch,
		ToolFile:            file,
		ToolCodeInterpreter: codeInterpreter,
		ToolViewImage:       viewImage,
	}
}
