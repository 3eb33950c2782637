package toolcall

import (
	"fmt"
	"sort"
	"strings"

	"github.com/geomind/agentcore/pkg/models"
)

// ToolPrompt appends the tool catalogue and the marker protocol to base.
func ToolPrompt(base string, defs []models.ToolDefinition) string {
	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString("\n\n")
	}
	b.WriteString(`## TOOL CALL FORMAT

When you need a tool, answer with exactly this format:

<tool_call>
{"name": "tool_name", "input": {"param1": "value1"}}
</tool_call>

You may call several tools in one answer. Results come back between
<tool_result>...</tool_result> markers; analyze them, then answer or call
another tool.

## AVAILABLE TOOLS
`)
	for _, d := range defs {
		fmt.Fprintf(&b, "\n### %s\n%s\nParameters:\n%s\n", d.Name, d.Description, describeParams(d.InputSchema))
	}
	b.WriteString(`
## RULES
- Always use <tool_call>...</tool_call> to call a tool.
- Never invent data; use the tools to obtain it.
- A denied call returns its reason; adjust the request instead of repeating it.`)
	return b.String()
}

func describeParams(schema map[string]any) string {
	props, _ := schema["properties"].(map[string]any)
	if len(props) == 0 {
		return "    none"
	}
	required := map[string]bool{}
	switch req := schema["required"].(type) {
	case []string:
		for _, r := range req {
			required[r] = true
		}
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		desc := ""
		if p, ok := props[name].(map[string]any); ok {
			desc, _ = p["description"].(string)
		}
		flag := "optional"
		if required[name] {
			flag = "required"
		}
		lines = append(lines, fmt.Sprintf("    - %s: %s (%s)", name, desc, flag))
	}
	return strings.Join(lines, "\n")
}
