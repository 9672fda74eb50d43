package tools

// Tool names. Orchestrator and sub-agent catalogs are disjoint except for
// "file", which both expose with different path restrictions (session-root
// scoped for the orchestrator, {worklog.md,results.md}-only for sub-agents).
const (
	ToolGeneratePlan    = "generate_plan"
	ToolSpawnAgent      = "spawn_agent"
	ToolWaitForAgents   = "wait_for_agents"
	ToolGetAgentResult  = "get_agent_result"
	ToolUpdatePlan     = "update_plan"
	ToolWriteReport    = "write_report"
	ToolFile           = "file"

	ToolWebSearch       = "web_search"
	ToolCodeInterpreter = "code_interpreter"
	ToolViewImage       = "view_image"
)

// OrchestratorToolDefs returns the JSON-Schema tool definitions for the
// orchestrator's catalog, in the providers.Tool shape ready to attach to a
// ChatRequest.
func OrchestratorToolDefs() []ToolDef {
	return []ToolDef{
		{
			Name:        ToolGeneratePlan,
			Description: "Produce a strategic research plan for the query using the planning model. Call this first, before spawning any agents.",
			Schema: schema(props{
				"focus_areas": arrayOf("string", "optional list of areas the plan should emphasize"),
			}, nil),
		},
		{
			Name:        ToolSpawnAgent,
			Description: "Spawn a sub-agent to research one focused task. Returns immediately with the new agent's id; use wait_for_agents to learn when it finishes.",
			Schema: schema(props{
				"task":        str("the specific research task this agent should carry out"),
				"description": str("a short human-readable label for this agent"),
			}, []string{"task"}),
		},
		{
			Name:        ToolWaitForAgents,
			Description: "Block until the named agents reach a terminal status or the timeout elapses.",
			Schema: schema(props{
				"agent_ids":       arrayOf("string", "ids of the agents to wait for"),
				"timeout_seconds": num("maximum seconds to wait before returning, default 180"),
			}, []string{"agent_ids"}),
		},
		{
			Name:        ToolGetAgentResult,
			Description: "Retrieve a terminal agent's results.md and any chart artifacts it produced.",
			Schema: schema(props{
				"agent_id": str("the agent whose result to fetch"),
			}, []string{"agent_id"}),
		},
		{
			Name:        ToolUpdatePlan,
			Description: "Replace or append to the working plan.",
			Schema: schema(props{
				"mode": enumStr("replace or append", "replace", "append"),
				"steps": object("array", map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"description": map[string]any{"type": "string"},
							"agent_ids":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
						},
						"required": []string{"description"},
					},
				}),
			}, []string{"steps", "mode"}),
		},
		{
			Name:        ToolWriteReport,
			Description: "Assemble the final markdown report from every agent's results and charts, using the report-writing model, and write final_report.md. Returns a short confirmation, not the report body.",
			Schema: schema(props{
				"query":         str("the original research query"),
				"clarification": str("optional clarification context"),
				"agent_results": object("array", map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"agent_id": map[string]any{"type": "string"},
							"task":     map[string]any{"type": "string"},
						},
						"required": []string{"agent_id", "task"},
					},
				}),
			}, []string{"query", "agent_results"}),
		},
		{
			Name:        ToolFile,
			Description: "Read, write, or append a file under the session workspace.",
			Schema: schema(props{
				"operation": enumStr("the operation to perform", "read", "write", "append"),
				"path":      str("path relative to the session workspace"),
				"content":   str("content to write or append; ignored for read"),
			}, []string{"operation", "path"}),
		},
	}
}

// SubAgentToolDefs returns the JSON-Schema tool definitions for a
// sub-agent's catalog.
func SubAgentToolDefs() []ToolDef {
	return []ToolDef{
		{
			Name:        ToolWebSearch,
			Description: "Search the web and receive a summarized digest of the top results, with source metadata.",
			Schema: schema(props{
				"query":                str("the search query"),
				"num_results":          num("number of results to request, default 10"),
				"search_type":          enumStr("neural or keyword ranking", "neural", "keyword"),
				"use_autoprompt":       boolean("let the backend rewrite the query for better recall"),
				"start_published_date": str("YYYY-MM-DD lower bound on publish date"),
				"description":          str("short label for this call, shown in the UI"),
			}, []string{"query"}),
		},
		{
			Name:        ToolFile,
			Description: "Read, write, or append worklog.md or results.md in your agent workspace. No other filenames are permitted.",
			Schema: schema(props{
				"operation":   enumStr("the operation to perform", "read", "write", "append"),
				"path":        enumStr("which file", "worklog.md", "results.md"),
				"content":     str("content to write or append; ignored for read"),
				"description": str("short label for this call, shown in the UI"),
			}, []string{"operation", "path"}),
		},
		{
			Name:        ToolCodeInterpreter,
			Description: "Run Python code in a sandbox. Any matplotlib figures are captured automatically; call plt without show().",
			Schema: schema(props{
				"code":        str("Python source to execute"),
				"purpose":     str("short description of what this code does"),
				"outputFile":  str("optional filename for the captured chart, under charts/"),
				"description": str("short label for this call, shown in the UI"),
			}, []string{"code"}),
		},
		{
			Name:        ToolViewImage,
			Description: "View an image you previously produced (e.g. a chart) and ask a question about it.",
			Schema: schema(props{
				"imagePath":   str("path to the image, relative to your agent workspace"),
				"question":    str("what to look for in the image"),
				"description": str("short label for this call, shown in the UI"),
			}, []string{"imagePath"}),
		},
	}
}

// ToolDef is a name/description/schema triple; providers.Tool is built from
// this in the orchestrator/subagent packages, which also own model
// selection and don't need to import this package's schema helpers.
type ToolDef struct {
	Name        string
	Description string
	Schema      any
}
