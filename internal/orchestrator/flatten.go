package orchestrator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/loomctx/loom/pkg/types"
)

// PlaceholderToken is the token a prompt template must contain exactly once.
// The flattened context block is substituted in its place.
const PlaceholderToken = "{{CONTEXT_BLOCK}}"

// noMemoriesMarker renders in place of an empty retrieval list so the prompt
// keeps the same shape whether or not anything was retrieved.
const noMemoriesMarker = "(no relevant memories)"

// DefaultPromptTemplate wraps the context block in a minimal instruction
// frame. Deployments usually provide their own template file.
const DefaultPromptTemplate = `You are an assistant operating under the context below. Follow the active domain's instructions and ground your answer in the provided knowledge.

` + PlaceholderToken + `

Answer the user's message now.`

// PromptTemplate is a validated prompt template. A template missing the
// placeholder (or containing it more than once) is a configuration error
// caught at construction, never per turn.
type PromptTemplate struct {
	text string
}

// NewPromptTemplate validates and wraps template text.
func NewPromptTemplate(text string) (*PromptTemplate, error) {
	if n := strings.Count(text, PlaceholderToken); n != 1 {
		return nil, fmt.Errorf("%w: found %d occurrences of %s", ErrMissingPlaceholder, n, PlaceholderToken)
	}
	return &PromptTemplate{text: text}, nil
}

// Render substitutes the context block into the template.
func (t *PromptTemplate) Render(contextBlock string) string {
	return strings.Replace(t.text, PlaceholderToken, contextBlock, 1)
}

// FlattenContext renders a context object and the current user input into a
// single deterministic text block. The rendering is a one-way projection:
// nothing parses it back, but a human reading it can tell exactly which
// domain, knowledge, and history went into the turn.
func FlattenContext(obj *types.ContextObject, userInput string) string {
	var b strings.Builder

	b.WriteString("=== ACTIVE DOMAIN ===\n")
	fmt.Fprintf(&b, "domain: %s\n", obj.CurrentFocus)
	if obj.Persona != nil {
		fmt.Fprintf(&b, "persona: %s\n", obj.Persona.Name)
		writeSortedMap(&b, obj.Persona.Config)
	}

	b.WriteString("\n=== DOMAIN KNOWLEDGE ===\n")
	if len(obj.SemanticMemories) == 0 {
		b.WriteString(noMemoriesMarker + "\n")
	} else {
		for _, m := range obj.SemanticMemories {
			fmt.Fprintf(&b, "- [%s] %s\n", m.Type, m.TextContent)
		}
	}

	b.WriteString("\n=== RECENT INTERACTIONS ===\n")
	if len(obj.EpisodicMemories) == 0 {
		b.WriteString(noMemoriesMarker + "\n")
	} else {
		for _, m := range obj.EpisodicMemories {
			fmt.Fprintf(&b, "- [%s] user: %s | assistant: %s\n",
				m.Timestamp.UTC().Format(time.RFC3339), m.UserInput, m.AssistantOutput)
		}
	}

	b.WriteString("\n=== SESSION ===\n")
	fmt.Fprintf(&b, "current_focus: %s\n", obj.CurrentFocus)
	if obj.Workspace != nil {
		writeSortedMap(&b, obj.Workspace.Fields)
	}

	b.WriteString("\n=== USER MESSAGE ===\n")
	b.WriteString(userInput)
	b.WriteString("\n")

	return b.String()
}

// writeSortedMap renders a free-form map as "key: value" lines in key order.
// Non-string values are rendered as compact JSON, which is itself
// deterministic (encoding/json sorts map keys).
func writeSortedMap(b *strings.Builder, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := m[k].(type) {
		case string:
			fmt.Fprintf(b, "%s: %s\n", k, v)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				fmt.Fprintf(b, "%s: %v\n", k, v)
				continue
			}
			fmt.Fprintf(b, "%s: %s\n", k, encoded)
		}
	}
}
