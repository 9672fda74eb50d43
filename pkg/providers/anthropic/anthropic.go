// Package anthropic adapts github.com/anthropics/anthropic-sdk-go to the
// providers.LLMProvider interface. The retry loop and streaming event
// accumulation are grounded on the reference codebase's
// internal/agent/providers/anthropic.go (AnthropicProvider.Complete /
// createStream / processStream), trimmed to the non-beta, non-computer-use
// path this codebase needs.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/tarsy-labs/deepresearch/pkg/providers"
)

// Provider adapts an anthropic.Client to providers.LLMProvider.
type Provider struct {
	client     anthropic.Client
	maxRetries int
	retryDelay time.Duration
	maxTokens  int64
}

// New builds a Provider using apiKey for authentication.
func New(apiKey string) *Provider {
	return &Provider{
		client:     anthropic.NewClient(option.WithAPIKey(apiKey)),
		maxRetries: 3,
		retryDelay: time.Second,
		maxTokens:  8192,
	}
}

func (p *Provider) Chat(ctx context.Context, req providers.ChatRequest, emit func(providers.StreamEvent)) error {
	params, err := p.buildParams(req)
	if err != nil {
		return fmt.Errorf("anthropic: failed to build request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		s := p.client.Messages.NewStreaming(ctx, params)
		lastErr = processStream(s, emit)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt < p.maxRetries {
			delay := p.retryDelay * time.Duration(math.Pow(2, float64(attempt)))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("anthropic: max retries exceeded: %w", lastErr)
}

func (p *Provider) buildParams(req providers.ChatRequest) (anthropic.MessageNewParams, error) {
	messages, err := convertMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}

	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}

	if len(req.Tools) > 0 {
		tools, err := convertTools(req.Tools)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}

	return params, nil
}

func convertMessages(msgs []providers.Message) ([]anthropic.MessageParam, error) {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.ToolCallID != "":
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, contentText(m.Content), false),
			))
		case m.Role == providers.RoleUser:
			out = append(out, anthropic.NewUserMessage(contentBlocks(m.Content)...))
		case m.Role == providers.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(contentBlocks(m.Content)...))
		default:
			return nil, fmt.Errorf("anthropic: unsupported message role %q outside system prompt", m.Role)
		}
	}
	return out, nil
}

func contentBlocks(parts []providers.ContentPart) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, part := range parts {
		if part.ImageDataURL != "" {
			blocks = append(blocks, imageBlock(part.ImageDataURL))
			continue
		}
		blocks = append(blocks, anthropic.NewTextBlock(part.Text))
	}
	return blocks
}

func contentText(parts []providers.ContentPart) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func imageBlock(dataURL string) anthropic.ContentBlockParamUnion {
	mediaType, data := splitDataURL(dataURL)
	return anthropic.NewImageBlockBase64(mediaType, data)
}

func splitDataURL(dataURL string) (mediaType, data string) {
	const prefix = "data:"
	if !strings.HasPrefix(dataURL, prefix) {
		return "image/png", dataURL
	}
	rest := dataURL[len(prefix):]
	parts := strings.SplitN(rest, ",", 2)
	if len(parts) != 2 {
		return "image/png", dataURL
	}
	meta := strings.TrimSuffix(parts[0], ";base64")
	return meta, parts[1]
}

func convertTools(tools []providers.Tool) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schemaBytes, err := json.Marshal(t.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("anthropic: marshal schema for %s: %w", t.Name, err)
		}
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(schemaBytes, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: convert schema for %s: %w", t.Name, err)
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: schema,
			},
		})
	}
	return out, nil
}

// maxEmptyStreamEvents bounds consecutive content-free SSE events before the
// stream is treated as malformed, matching the protection the reference
// codebase applies against streams that flood with empty events.
const maxEmptyStreamEvents = 300

func processStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], emit func(providers.StreamEvent)) error {
	var currentToolID, currentToolName string
	var currentToolInput strings.Builder
	inToolBlock := false
	empty := 0

	var usage providers.TokenUsage
	stopReason := "end_turn"

	for stream.Next() {
		event := stream.Current()
		processed := false

		switch event.Type {
		case "message_start":
			ms := event.AsMessageStart()
			usage.InputTokens = int(ms.Message.Usage.InputTokens)
			processed = true

		case "content_block_start":
			cbs := event.AsContentBlockStart()
			if cbs.ContentBlock.Type == "tool_use" {
				tu := cbs.ContentBlock.AsToolUse()
				currentToolID = tu.ID
				currentToolName = tu.Name
				currentToolInput.Reset()
				inToolBlock = true
				emit(providers.StreamEvent{Type: providers.ChatEventToolInputStart, ToolCallID: currentToolID, ToolName: currentToolName})
				processed = true
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta().Delta
			switch delta.Type {
			case "text_delta":
				if delta.Text != "" {
					emit(providers.StreamEvent{Type: providers.ChatEventTextDelta, TextDelta: delta.Text})
					processed = true
				}
			case "input_json_delta":
				if delta.PartialJSON != "" {
					currentToolInput.WriteString(delta.PartialJSON)
					processed = true
				}
			}

		case "content_block_stop":
			if inToolBlock {
				emit(providers.StreamEvent{
					Type:       providers.ChatEventToolCall,
					ToolCallID: currentToolID,
					ToolName:   currentToolName,
					ToolInput:  []byte(currentToolInput.String()),
				})
				inToolBlock = false
				processed = true
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				usage.OutputTokens = int(md.Usage.OutputTokens)
			}
			if sr := string(md.Delta.StopReason); sr != "" {
				stopReason = sr
			}
			processed = true

		case "message_stop":
			emit(providers.StreamEvent{Type: providers.ChatEventDone, Usage: usage, StopReason: stopReason})
			return nil

		case "error":
			return errors.New("anthropic: stream error event")
		}

		if processed {
			empty = 0
		} else {
			empty++
			if empty >= maxEmptyStreamEvents {
				return fmt.Errorf("anthropic: stream appears malformed after %d empty events", empty)
			}
		}
	}

	if err := stream.Err(); err != nil {
		return err
	}
	emit(providers.StreamEvent{Type: providers.ChatEventDone, Usage: usage, StopReason: stopReason})
	return nil
}

// isRetryable classifies rate-limit (429) and server (5xx) API errors, and a
// context deadline expiry, as transient; any other error is not retried. This
// matches the reference codebase's wrapError/isRetryableError
// split between a user-facing message and a retry decision.
func isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return errors.Is(err, context.DeadlineExceeded)
}
