package mcp

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	llmadapter "github.com/opsrelay/opsrelay/engine/llm/adapter"
)

// DefaultInputSchema is the permissive schema substituted when a tool
// descriptor carries no input schema: any object is accepted.
func DefaultInputSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           map[string]any{},
		"additionalProperties": true,
	}
}

// CatalogToToolDefs translates a tool-server catalog snapshot into the
// completion service's tool-offer list. Pure; no failure modes.
func CatalogToToolDefs(tools []mcp.Tool) []llmadapter.ToolDefinition {
	defs := make([]llmadapter.ToolDefinition, 0, len(tools))
	for i := range tools {
		defs = append(defs, llmadapter.ToolDefinition{
			Name:        tools[i].Name,
			Description: tools[i].Description,
			Parameters:  schemaMap(&tools[i]),
		})
	}
	return defs
}

func schemaMap(tool *mcp.Tool) map[string]any {
	raw := tool.RawInputSchema
	if len(raw) == 0 {
		b, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return DefaultInputSchema()
		}
		raw = b
	}
	var schema map[string]any
	if err := json.Unmarshal(raw, &schema); err != nil || len(schema) == 0 {
		return DefaultInputSchema()
	}
	if t, _ := schema["type"].(string); t == "" {
		return DefaultInputSchema()
	}
	return schema
}
