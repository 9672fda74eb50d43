package tools

// Minimal JSON-Schema builders used by the tool catalogs in names.go. Each
// tool's Schema is handed to providers.Tool as an any and marshaled
// verbatim by the Anthropic adapter, so these helpers only need to produce
// maps matching the subset of JSON-Schema Anthropic accepts for tool_use
// input schemas.

type props map[string]any

func schema(properties props, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func num(description string) map[string]any {
	return map[string]any{"type": "integer", "description": description}
}

func boolean(description string) map[string]any {
	return map[string]any{"type": "boolean", "description": description}
}

func enumStr(description string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}

func arrayOf(itemType, description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description,
		"items":       map[string]any{"type": itemType},
	}
}

// object builds a schema property whose value is itself given verbatim
// (used for nested array-of-object properties where the item shape is
// more than a one-liner).
func object(_ string, value map[string]any) map[string]any {
	return value
}
