package orchestrator

import (
	"encoding/json"

	"github.com/tarsy-labs/deepresearch/pkg/providers"
)

func decodeInputForDisplay(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

func descriptionOf(input any) string {
	m, ok := input.(map[string]any)
	if !ok {
		return ""
	}
	d, _ := m["description"].(string)
	return d
}

func resultMessage(tc providers.ToolCallRequest, result any, toolErr error) providers.Message {
	return providers.Message{
		Role:       providers.RoleUser,
		ToolCallID: tc.ID,
		ToolName:   tc.Name,
		Content:    []providers.ContentPart{{Text: marshalForModel(result, toolErr)}},
	}
}

func marshalForModel(result any, toolErr error) string {
	if toolErr != nil {
		return `{"error": ` + jsonString(toolErr.Error()) + `}`
	}
	data, err := json.Marshal(result)
	if err != nil {
		return jsonString(err.Error())
	}
	return string(data)
}

func jsonString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
