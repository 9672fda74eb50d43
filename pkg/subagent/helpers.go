package subagent

import (
	"encoding/json"
)

// decodeInputForDisplay parses a tool call's raw JSON input into a Go value
// suitable for model.ToolCall.Input (stored/serialized generically, not
// decoded against the tool-specific struct, since the store/event layer
// doesn't know about individual tool shapes).
func decodeInputForDisplay(raw []byte) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}

// descriptionOf pulls the optional "description" field every tool schema
// carries for UI display, if present.
func descriptionOf(input any) string {
	m, ok := input.(map[string]any)
	if !ok {
		return ""
	}
	d, _ := m["description"].(string)
	return d
}

// marshalForModel renders a tool's result (or its failure) as the text
// content of a tool_result message.
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
