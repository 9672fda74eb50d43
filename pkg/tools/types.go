package tools

import "github.com/tarsy-labs/deepresearch/pkg/model"

// Input/result types for every tool. Each pair is tagged by the tool name
// constants in names.go: Dispatch decodes a call's raw input into the Input
// type and returns the Result type. A successful ToolCall's Result field
// holds one of these Result values; its Input field holds the generically
// decoded JSON input (see model.ToolCall).

type WebSearchInput struct {
	Query              string `json:"query"`
	NumResults         int    `json:"num_results,omitempty"`
	SearchType         string `json:"search_type,omitempty"`
	UseAutoprompt      bool   `json:"use_autoprompt,omitempty"`
	StartPublishedDate string `json:"start_published_date,omitempty"`
	Description        string `json:"description,omitempty"`
}

type WebSearchSource struct {
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Author        string  `json:"author,omitempty"`
	PublishedDate string  `json:"publishedDate,omitempty"`
	Score         float64 `json:"score"`
}

// WebSearchResult carries a summarized digest, never the raw extracted page
// text: SPEC_FULL.md section 4.4.1 requires every web_search call pass its
// results through the summarizer model before returning to the sub-agent,
// so a handful of searches don't blow the agent's context budget.
type WebSearchResult struct {
	Summary string            `json:"summary"`
	Sources []WebSearchSource `json:"sources"`
}

type FileInput struct {
	Operation   string `json:"operation"`
	Path        string `json:"path"`
	Content     string `json:"content,omitempty"`
	Description string `json:"description,omitempty"`
}

type FileResult struct {
	Content      string `json:"content,omitempty"`
	BytesWritten int    `json:"bytesWritten,omitempty"`
}

type CodeInterpreterInput struct {
	Code        string `json:"code"`
	Purpose     string `json:"purpose,omitempty"`
	OutputFile  string `json:"outputFile,omitempty"`
	Description string `json:"description,omitempty"`
}

type CodeInterpreterResult struct {
	Stdout     string   `json:"stdout,omitempty"`
	Stderr     string   `json:"stderr,omitempty"`
	ChartPaths []string `json:"chartPaths,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type ViewImageInput struct {
	ImagePath   string `json:"imagePath"`
	Question    string `json:"question,omitempty"`
	Description string `json:"description,omitempty"`
}

type ViewImageResult struct {
	Answer string `json:"answer"`
}

type GeneratePlanInput struct {
	FocusAreas []string `json:"focus_areas,omitempty"`
}

type GeneratePlanResult struct {
	Perspective string                 `json:"perspective"`
	Steps       []model.PlanStepInput `json:"steps"`
}

type SpawnAgentInput struct {
	Task        string `json:"task"`
	Description string `json:"description,omitempty"`
}

type SpawnAgentResult struct {
	AgentID string `json:"agentId"`
}

type WaitForAgentsInput struct {
	AgentIDs       []string `json:"agent_ids"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
}

type WaitForAgentsResult struct {
	Statuses map[string]string `json:"statuses"`
	TimedOut bool              `json:"timedOut"`
}

type GetAgentResultInput struct {
	AgentID string `json:"agent_id"`
}

type GetAgentResultResult struct {
	Status          string   `json:"status"`
	ResultsMarkdown string   `json:"resultsMarkdown"`
	ChartPaths      []string `json:"chartPaths,omitempty"`
}

type UpdatePlanInput struct {
	Mode  string                 `json:"mode"`
	Steps []model.PlanStepInput `json:"steps"`
}

type UpdatePlanResult struct {
	TotalSteps int `json:"totalSteps"`
}

type AgentResultRef struct {
	AgentID string `json:"agent_id"`
	Task    string `json:"task"`
}

type WriteReportInput struct {
	Query         string            `json:"query"`
	Clarification string            `json:"clarification,omitempty"`
	AgentResults  []AgentResultRef `json:"agent_results"`
}

type WriteReportResult struct {
	Path string `json:"path"`
}
