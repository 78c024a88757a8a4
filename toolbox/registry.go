package toolbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rickchristie/regent/react"
)

// ErrToolNotFound is returned when an Action names an unknown tool.
var ErrToolNotFound = errors.New("tool not found")

// NotFoundError names the missing tool.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Tool %s not found", e.Name)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrToolNotFound
}

// Registry resolves tool names. Tools keep their registration order, which
// is also their order in the system prompt.
type Registry struct {
	tools []Tool
	index map[string]Tool
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{index: make(map[string]Tool)}
	if err := r.Register(tools...); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds tools. Names must be non-empty, free of whitespace and
// the "|" separator, and unique.
func (r *Registry) Register(tools ...Tool) error {
	for _, t := range tools {
		if t == nil {
			return errors.New("nil tool")
		}
		name := t.Name()
		if name == "" || strings.ContainsAny(name, " \t\n|") {
			return fmt.Errorf("invalid tool name %q", name)
		}
		if _, ok := r.index[name]; ok {
			return fmt.Errorf("tool %s registered twice", name)
		}
		r.index[name] = t
		r.tools = append(r.tools, t)
	}
	return nil
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (Tool, bool) {
	t, ok := r.index[name]
	return t, ok
}

// Call dispatches arg to the named tool.
func (r *Registry) Call(ctx context.Context, name, arg string) (string, error) {
	t, ok := r.Resolve(name)
	if !ok {
		return "", &NotFoundError{Name: name}
	}
	return t.Call(ctx, arg)
}

// Tools returns the registered tools in order.
func (r *Registry) Tools() []Tool {
	return append([]Tool(nil), r.tools...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.tools)
}

// Describe returns the tool list for the system prompt, one
// react.ToolLine per tool.
func (r *Registry) Describe() string {
	lines := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		lines = append(lines, react.ToolLine(t.Name(), t.Description()))
	}
	return strings.Join(lines, "\n")
}
