package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tarsy-labs/deepresearch/pkg/model"
	"github.com/tarsy-labs/deepresearch/pkg/providers"
	"github.com/tarsy-labs/deepresearch/pkg/tools"
)

const planPrompt = `You are a research planner. Given a user's research query, produce a
strategic perspective (a short paragraph framing how to approach the
question), the reasoning behind it, and an initial plan broken into steps,
each step naming the sub-agent tasks it covers. Respond with JSON only,
matching this shape:
{"perspective": "...", "reasoning": "...", "steps": [{"description": "...", "agent_ids": []}]}`

const reportPrompt = `You are a research report writer. Given the original query, a guide to
every chart image produced during research, the charts themselves, and the
collected results.md from every sub-agent that researched it, write a
complete, well-organized markdown report that directly answers the query,
citing sub-agent findings and referencing chart images by the exact paths
given in the chart guide. Respond with the report body only, no preamble.`

const reportFinalInstruction = `Using the chart guide, the chart images, and every sub-agent's results above,
write the final report now.`

const summarizePrompt = `Summarize the following web search results into a concise digest relevant
to the query below. Preserve specific facts, figures and dates; drop
boilerplate and navigation text. Respond with the digest only.`

// planner builds the Planner closure generate_plan dispatches through,
// backed by the configured planner model.
func (e *Engine) planner() tools.Planner {
	return func(ctx context.Context, query, clarification string, focusAreas []string) (tools.PlanResult, error) {
		userText := "Query: " + query
		if clarification != "" {
			userText += "\nClarification: " + clarification
		}
		if len(focusAreas) > 0 {
			userText += "\nFocus areas: " + strings.Join(focusAreas, ", ")
		}

		req := providers.ChatRequest{
			Model:  e.cfg.Models.Planner,
			System: planPrompt,
			Messages: []providers.Message{
				{Role: providers.RoleUser, Content: []providers.ContentPart{{Text: userText}}},
			},
			MaxTokens: 2048,
		}

		turn, err := providers.RunTurn(ctx, e.providers.LLM, req)
		if err != nil {
			return tools.PlanResult{}, err
		}

		var parsed struct {
			Perspective string                  `json:"perspective"`
			Reasoning   string                  `json:"reasoning"`
			Steps       []model.PlanStepInput `json:"steps"`
		}
		if err := json.Unmarshal([]byte(extractJSON(turn.Text)), &parsed); err != nil {
			return tools.PlanResult{}, fmt.Errorf("engine: parse plan: %w", err)
		}
		return tools.PlanResult{Perspective: parsed.Perspective, Reasoning: parsed.Reasoning, Steps: parsed.Steps}, nil
	}
}

// reportWriter builds the ReportWriter closure write_report dispatches
// through, backed by the configured report-writer model. It reads each
// referenced agent's results.md and chart images directly from the
// workspace rather than relying on the orchestrator to have passed them
// through the tool call, since results.md and chart images can be large.
// The model is given a multimodal message: a chart-reference guide listing
// every chart's exact path, the chart images themselves, the concatenated
// agent results, and a final instruction to write the report.
func (e *Engine) reportWriter(sessionID string) tools.ReportWriter {
	return func(ctx context.Context, query, clarification string, agents []tools.AgentResultRef) (string, error) {
		var guide strings.Builder
		var images []providers.ContentPart
		var results strings.Builder

		results.WriteString("Query: " + query + "\n")
		if clarification != "" {
			results.WriteString("Clarification: " + clarification + "\n")
		}
		results.WriteString("\n")

		for _, a := range agents {
			agentDir := e.workspace.AgentDir(sessionID, a.AgentID)

			results.WriteString("## Sub-agent " + a.AgentID + " (" + a.Task + ")\n\n")
			if data, err := os.ReadFile(filepath.Join(agentDir, "results.md")); err == nil {
				results.Write(data)
				results.WriteString("\n\n")
			} else {
				results.WriteString("(no results available)\n\n")
			}

			chartsDir := filepath.Join(agentDir, "charts")
			entries, _ := os.ReadDir(chartsDir)
			for _, entry := range entries {
				if entry.IsDir() {
					continue
				}
				chartPath := filepath.Join("agents", a.AgentID, "charts", entry.Name())
				part, ok := loadImagePart(filepath.Join(chartsDir, entry.Name()))
				if !ok {
					continue
				}
				fmt.Fprintf(&guide, "- %s (from sub-agent %s)\n", chartPath, a.AgentID)
				images = append(images, part)
			}
		}

		if guide.Len() == 0 {
			guide.WriteString("No chart images were produced.\n")
		}

		content := []providers.ContentPart{{Text: "Chart reference guide:\n" + guide.String()}}
		content = append(content, images...)
		content = append(content, providers.ContentPart{Text: results.String()})
		content = append(content, providers.ContentPart{Text: reportFinalInstruction})

		req := providers.ChatRequest{
			Model:     e.cfg.Models.ReportWriter,
			System:    reportPrompt,
			Messages:  []providers.Message{{Role: providers.RoleUser, Content: content}},
			MaxTokens: 8192,
		}

		turn, err := providers.RunTurn(ctx, e.providers.LLM, req)
		if err != nil {
			return "", err
		}
		return turn.Text, nil
	}
}

// loadImagePart reads path and wraps it as an inline ContentPart image, or
// reports false if it cannot be read.
func loadImagePart(path string) (providers.ContentPart, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return providers.ContentPart{}, false
	}
	mime := "image/png"
	if strings.HasSuffix(path, ".jpg") || strings.HasSuffix(path, ".jpeg") {
		mime = "image/jpeg"
	}
	return providers.ContentPart{ImageDataURL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)}, true
}

// summarize builds the Summarizer closure web_search dispatches through,
// backed by the configured summarizer model.
func (e *Engine) summarize() func(ctx context.Context, query string, results []providers.SearchResult) (string, error) {
	return func(ctx context.Context, query string, results []providers.SearchResult) (string, error) {
		if len(results) == 0 {
			return "No results found.", nil
		}

		var b strings.Builder
		b.WriteString("Query: " + query + "\n\n")
		for i, r := range results {
			fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, r.Title, r.URL, r.Text)
		}

		req := providers.ChatRequest{
			Model:  e.cfg.Models.Summarizer,
			System: summarizePrompt,
			Messages: []providers.Message{
				{Role: providers.RoleUser, Content: []providers.ContentPart{{Text: b.String()}}},
			},
			MaxTokens: 1024,
		}

		turn, err := providers.RunTurn(ctx, e.providers.LLM, req)
		if err != nil {
			return "", err
		}
		return turn.Text, nil
	}
}

// extractJSON strips a leading/trailing markdown code fence from a model
// response that was asked to reply with JSON only but wrapped it anyway.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
