package cognitive

// buildToolInput constructs the tool_input map for a recommended tool,
// using each tool's expected input shape.
func buildToolInput(toolName, query string) map[string]any {
	switch toolName {
	case "web_search":
		return map[string]any{"query": query}
	case "idea_verification":
		return map[string]any{"idea_text": query}
	case "knowledge_query":
		return map[string]any{"query": query}
	default:
		return map[string]any{"query": query}
	}
}
