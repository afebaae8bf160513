// Package tools provides the built-in tools the assistant can call during
// response generation: dashboard data lookups, FAQ search, and account
// queries.
package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/tool"
)

// ToolID identifies a built-in tool
type ToolID string

// ToolCategory represents the category of a tool
type ToolCategory string

// Tool categories
const (
	CategoryInsight ToolCategory = "insight"
	CategoryFAQ     ToolCategory = "faq"
	CategoryAccount ToolCategory = "account"
)

// ToolScope defines which conversation modes a tool is offered in
type ToolScope string

const (
	// ScopeGlobal - tool is only offered in global conversations
	ScopeGlobal ToolScope = "global"
	// ScopePage - tool requires a pinned page resource
	ScopePage ToolScope = "page"
	// ScopeBoth - tool is offered in both modes
	ScopeBoth ToolScope = "both"
)

// ToolDefinition describes a built-in tool
type ToolDefinition struct {
	ID          ToolID       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Category    ToolCategory `json:"category"`
	Scope       ToolScope    `json:"scope"`
}

// ToolFactory is a function that creates a tool instance bound to the
// requesting user
type ToolFactory func(ctx *ToolContext) tool.InvokableTool

// Registry manages built-in tools
type Registry struct {
	definitions map[ToolID]ToolDefinition
	factories   map[ToolID]ToolFactory
	mu          sync.RWMutex
}

// Global registry instance
var globalRegistry = &Registry{
	definitions: make(map[ToolID]ToolDefinition),
	factories:   make(map[ToolID]ToolFactory),
}

// Register registers a tool with its definition and factory
func Register(def ToolDefinition, factory ToolFactory) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if def.Scope == "" {
		def.Scope = ScopeBoth
	}

	globalRegistry.definitions[def.ID] = def
	globalRegistry.factories[def.ID] = factory
}

// GetTool returns an invokable tool by ID
func GetTool(id ToolID, ctx *ToolContext) (tool.InvokableTool, error) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	factory, exists := globalRegistry.factories[id]
	if !exists {
		return nil, fmt.Errorf("unknown tool: %s", id)
	}
	return factory(ctx), nil
}

// ListToolDefinitions returns all registered definitions sorted by category
// and name
func ListToolDefinitions() []ToolDefinition {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	result := make([]ToolDefinition, 0, len(globalRegistry.definitions))
	for _, def := range globalRegistry.definitions {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Category != result[j].Category {
			return result[i].Category < result[j].Category
		}
		return result[i].Name < result[j].Name
	})

	return result
}

// ToolsForMode instantiates every tool whose scope admits the given
// conversation mode, bound to the caller's context. Page tools are skipped
// when the context has no pinned resource.
func ToolsForMode(mode string, ctx *ToolContext) []tool.BaseTool {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	var ids []ToolID
	for id, def := range globalRegistry.definitions {
		switch def.Scope {
		case ScopeBoth:
		case ToolScope(mode):
		default:
			continue
		}
		if def.Scope == ScopePage && ctx.PageContext == nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]tool.BaseTool, 0, len(ids))
	for _, id := range ids {
		result = append(result, globalRegistry.factories[id](ctx))
	}
	return result
}
