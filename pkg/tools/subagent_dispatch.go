package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tarsy-labs/deepresearch/pkg/providers"
	"github.com/tarsy-labs/deepresearch/pkg/ratelimit"
	"github.com/tarsy-labs/deepresearch/pkg/toolerrors"
	"github.com/tarsy-labs/deepresearch/pkg/workspace"
)

// Summarizer condenses raw search results down to a digest short enough for
// a sub-agent's context window; the engine supplies an
// implementation backed by the summarizer model (SPEC_FULL.md section
// 4.4.1), tests supply a passthrough.
type Summarizer func(ctx context.Context, query string, results []providers.SearchResult) (string, error)

// SubAgentDeps bundles everything a sub-agent's tool dispatch needs beyond
// the decoded input: the providers it may call, the workspace directory its
// file/code_interpreter/view_image calls are scoped to, and the
// summarization step web_search must go through before returning.
type SubAgentDeps struct {
	Search     providers.SearchProvider
	Sandbox    providers.SandboxProvider
	Vision     providers.LLMProvider // used only for view_image's multimodal question
	VisionModel string
	Summarize  Summarizer
	Workspace  *workspace.Manager
	SessionID  string
	AgentID    string
}

// Dispatch runs one sub-agent tool call: decode, budget check, execute,
// budget record. The returned result is always one of this package's typed
// Result structs, or err is a *toolerrors.ToolError describing why the call
// failed (never a bare Go error, so the caller can hand it straight back to
// the model as the tool_result payload).
func (d *SubAgentDeps) Dispatch(ctx context.Context, budget *Budget, toolName string, rawInput []byte) (any, *toolerrors.ToolError) {
	if tErr := budget.Check(toolName); tErr != nil {
		return nil, tErr
	}
	budget.RecordCall(toolName)

	result, tErr := d.dispatch(ctx, toolName, rawInput)
	if tErr != nil {
		budget.RecordFailure(toolName)
		return nil, tErr
	}
	budget.RecordSuccess(toolName)
	return result, nil
}

func (d *SubAgentDeps) dispatch(ctx context.Context, toolName string, rawInput []byte) (any, *toolerrors.ToolError) {
	switch toolName {
	case ToolWebSearch:
		return d.webSearch(ctx, rawInput)
	case ToolFile:
		return d.file(rawInput)
	case ToolCodeInterpreter:
		return d.codeInterpreter(ctx, rawInput)
	case ToolViewImage:
		return d.viewImage(ctx, rawInput)
	default:
		return nil, toolerrors.New(toolerrors.UnknownError, "unknown tool: "+toolName, "", false)
	}
}

func decode[T any](rawInput []byte) (T, *toolerrors.ToolError) {
	var v T
	if err := json.Unmarshal(rawInput, &v); err != nil {
		return v, toolerrors.New(toolerrors.ValidationFailed, "invalid tool input: "+err.Error(), "check the input shape against the tool schema", false)
	}
	return v, nil
}

func (d *SubAgentDeps) webSearch(ctx context.Context, rawInput []byte) (any, *toolerrors.ToolError) {
	in, tErr := decode[WebSearchInput](rawInput)
	if tErr != nil {
		return nil, tErr
	}
	opts := providers.SearchOptions{
		NumResults:         in.NumResults,
		Type:               providers.SearchType(in.SearchType),
		UseAutoprompt:      in.UseAutoprompt,
		StartPublishedDate: in.StartPublishedDate,
	}
	resp, err := d.Search.SearchWithContents(ctx, in.Query, opts)
	if err != nil {
		return nil, classifySearchErr(err)
	}

	summary, err := d.Summarize(ctx, in.Query, resp.Results)
	if err != nil {
		// Summarization is a nicety, not a requirement: degrade to raw
		// truncated snippets rather than failing the whole search.
		summary = snippetFallback(resp.Results)
	}

	out := WebSearchResult{Summary: summary}
	for _, r := range resp.Results {
		out.Sources = append(out.Sources, WebSearchSource{Title: r.Title, URL: r.URL, Author: r.Author, PublishedDate: r.PublishedDate, Score: r.Score})
	}
	return out, nil
}

const snippetMaxChars = 300

// snippetFallback builds a summary out of each result's text truncated to
// snippetMaxChars, used when the summarizer model call itself fails.
func snippetFallback(results []providers.SearchResult) string {
	if len(results) == 0 {
		return "No results found."
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n\n", i+1, r.Title, r.URL, truncateSnippet(r.Text, snippetMaxChars))
	}
	return strings.TrimSpace(b.String())
}

func truncateSnippet(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "..."
}

func classifySearchErr(err error) *toolerrors.ToolError {
	var retryable *ratelimit.RetryableError
	if errors.As(err, &retryable) {
		if retryable.RateLimited {
			return toolerrors.NewRetryAfter(toolerrors.SearchRateLimited, err.Error(), "wait before searching again", int(retryable.RetryAfter.Milliseconds()))
		}
		return toolerrors.New(toolerrors.SearchFailed, err.Error(), "try again shortly", true)
	}
	return toolerrors.New(toolerrors.SearchFailed, err.Error(), "try a different query", false)
}

// agentFileNames restricts a sub-agent's file tool to exactly these two
// names, per SPEC_FULL.md section 4.3.
var agentFileNames = map[string]bool{"worklog.md": true, "results.md": true}

func (d *SubAgentDeps) file(rawInput []byte) (any, *toolerrors.ToolError) {
	in, tErr := decode[FileInput](rawInput)
	if tErr != nil {
		return nil, tErr
	}
	if !agentFileNames[in.Path] {
		return nil, toolerrors.New(toolerrors.FileAccessDenied, "agents may only read/write worklog.md or results.md", "use one of those two filenames", false)
	}

	dir := d.Workspace.AgentDir(d.SessionID, d.AgentID)
	path, err := workspace.ResolveUnder(dir, in.Path)
	if err != nil {
		if te, ok := err.(*toolerrors.ToolError); ok {
			return nil, te
		}
		return nil, toolerrors.New(toolerrors.FileAccessDenied, err.Error(), "", false)
	}

	return doFileOp(in.Operation, path, in.Content)
}

// normalizeEscapes converts literal "\n"/"\t" escape sequences the model
// wrote into the JSON string back into real newline/tab characters, since
// models routinely escape them even when asked for literal markdown.
func normalizeEscapes(content string) string {
	content = strings.ReplaceAll(content, `\n`, "\n")
	content = strings.ReplaceAll(content, `\t`, "\t")
	return content
}

func doFileOp(operation, path, content string) (any, *toolerrors.ToolError) {
	switch operation {
	case "read":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, toolerrors.New(toolerrors.FileNotFound, "could not read file: "+err.Error(), "check the path", false)
		}
		return FileResult{Content: string(data)}, nil
	case "write":
		content := normalizeEscapes(content)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, toolerrors.New(toolerrors.FileAccessDenied, "could not write file: "+err.Error(), "", false)
		}
		return FileResult{BytesWritten: len(content)}, nil
	case "append":
		content := normalizeEscapes(content)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, toolerrors.New(toolerrors.FileAccessDenied, "could not open file: "+err.Error(), "", false)
		}
		defer f.Close()
		n, err := f.WriteString(content)
		if err != nil {
			return nil, toolerrors.New(toolerrors.FileAccessDenied, "could not append to file: "+err.Error(), "", false)
		}
		return FileResult{BytesWritten: n}, nil
	default:
		return nil, toolerrors.New(toolerrors.ValidationFailed, "unknown file operation: "+operation, "use read, write, or append", false)
	}
}

func (d *SubAgentDeps) codeInterpreter(ctx context.Context, rawInput []byte) (any, *toolerrors.ToolError) {
	in, tErr := decode[CodeInterpreterInput](rawInput)
	if tErr != nil {
		return nil, tErr
	}

	result, err := d.Sandbox.RunPython(ctx, in.Code, 30_000)
	if err != nil {
		if strings.Contains(err.Error(), "timed out") {
			return nil, toolerrors.New(toolerrors.CodeExecutionTimeout, err.Error(), "simplify the code or reduce its runtime", true)
		}
		return nil, toolerrors.New(toolerrors.CodeSandboxError, err.Error(), "try again", true)
	}

	out := CodeInterpreterResult{Stdout: strings.Join(result.Logs.Stdout, "\n"), Stderr: strings.Join(result.Logs.Stderr, "\n")}
	if result.Error != nil {
		out.Error = fmt.Sprintf("%s: %s", result.Error.Name, result.Error.Value)
	}

	chartsDir := filepath.Join(d.Workspace.AgentDir(d.SessionID, d.AgentID), "charts")
	for i, r := range result.Results {
		var data []byte
		ext := ".png"
		switch {
		case len(r.PNG) > 0:
			data = r.PNG
		case len(r.JPEG) > 0:
			data, ext = r.JPEG, ".jpg"
		default:
			continue
		}
		name := in.OutputFile
		if name == "" || len(result.Results) > 1 {
			name = fmt.Sprintf("chart_%d%s", i, ext)
		}
		if err := os.WriteFile(filepath.Join(chartsDir, name), data, 0o644); err != nil {
			return nil, toolerrors.New(toolerrors.CodeSandboxError, "could not save chart: "+err.Error(), "", false)
		}
		out.ChartPaths = append(out.ChartPaths, filepath.Join("charts", name))
	}

	if out.Error != "" {
		return out, toolerrors.New(toolerrors.CodeExecutionFailed, out.Error, "fix the error and try again", true)
	}
	return out, nil
}

func (d *SubAgentDeps) viewImage(ctx context.Context, rawInput []byte) (any, *toolerrors.ToolError) {
	in, tErr := decode[ViewImageInput](rawInput)
	if tErr != nil {
		return nil, tErr
	}

	dir := d.Workspace.AgentDir(d.SessionID, d.AgentID)
	path, err := workspace.ResolveUnder(dir, in.ImagePath)
	if err != nil {
		return nil, toolerrors.New(toolerrors.ImageNotFound, err.Error(), "", false)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, toolerrors.New(toolerrors.ImageNotFound, "could not read image: "+err.Error(), "check the path", false)
	}

	mime := "image/png"
	if strings.HasSuffix(path, ".jpg") || strings.HasSuffix(path, ".jpeg") {
		mime = "image/jpeg"
	}
	question := in.Question
	if question == "" {
		question = "Describe what this chart shows."
	}

	var answer strings.Builder
	req := providers.ChatRequest{
		Model: d.VisionModel,
		Messages: []providers.Message{{
			Role: providers.RoleUser,
			Content: []providers.ContentPart{
				{Text: question},
				{ImageDataURL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)},
			},
		}},
		MaxTokens: 1024,
	}
	err = d.Vision.Chat(ctx, req, func(ev providers.StreamEvent) {
		if ev.Type == providers.ChatEventTextDelta {
			answer.WriteString(ev.TextDelta)
		}
	})
	if err != nil {
		return nil, toolerrors.New(toolerrors.APIError, "failed to analyze image: "+err.Error(), "try again", true)
	}
	return ViewImageResult{Answer: answer.String()}, nil
}
