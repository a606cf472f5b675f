package tools

import (
	"fmt"

	"github.com/user/infercore/internal/llmtypes"
)

// Registry holds the tool set for one inference call, keyed by name
type Registry struct {
	byName map[string]Tool
	order  []string
}

// NewRegistry creates a registry from a tool list. Names must be unique.
func NewRegistry(toolList []Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]Tool, len(toolList))}
	for _, t := range toolList {
		if _, exists := r.byName[t.Name()]; exists {
			return nil, fmt.Errorf("duplicate tool name: %s", t.Name())
		}
		r.byName[t.Name()] = t
		r.order = append(r.order, t.Name())
	}
	return r, nil
}

// Get returns the tool with the given name, or nil
func (r *Registry) Get(name string) Tool {
	return r.byName[name]
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	return len(r.byName)
}

// Definitions converts the registered tools into provider wire shape,
// preserving registration order.
func (r *Registry) Definitions() []llmtypes.ToolDefinition {
	defs := make([]llmtypes.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.byName[name]
		defs = append(defs, llmtypes.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
