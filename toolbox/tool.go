// Package toolbox defines the tools an agent can call and the registry
// that dispatches Actions to them.
package toolbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rickchristie/regent/schema"
)

// Tool is something the model can call with a single text argument.
type Tool interface {
	// Name is what the model writes after "Action:".
	Name() string

	// Description is shown verbatim in the system prompt.
	Description() string

	// Call runs the tool with the raw argument text.
	Call(ctx context.Context, arg string) (string, error)
}

type funcTool struct {
	name        string
	description string
	fn          func(ctx context.Context, arg string) (string, error)
}

func (t *funcTool) Name() string        { return t.name }
func (t *funcTool) Description() string { return t.description }

func (t *funcTool) Call(ctx context.Context, arg string) (string, error) {
	return t.fn(ctx, arg)
}

// New creates a Tool from a function.
func New(name, description string, fn func(ctx context.Context, arg string) (string, error)) Tool {
	return &funcTool{name: name, description: description, fn: fn}
}

// Static creates a Tool that always returns result.
func Static(name, description, result string) Tool {
	return New(name, description, func(context.Context, string) (string, error) {
		return result, nil
	})
}

// ArgumentError reports an argument the tool could not accept. The agent
// feeds it back to the model as an observation instead of failing the run.
type ArgumentError struct {
	Tool string
	Err  error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument for tool %s: %v", e.Tool, e.Err)
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

type schemaTool struct {
	name        string
	description string
	schema      *schema.Schema
	fn          func(ctx context.Context, args map[string]any) (string, error)
}

func (t *schemaTool) Name() string { return t.name }

func (t *schemaTool) Description() string {
	if t.schema == nil {
		return t.description
	}
	return t.description + " Input: " + t.schema.String()
}

func (t *schemaTool) Call(ctx context.Context, arg string) (string, error) {
	args, err := t.schema.ParseArgument(arg)
	if err != nil {
		return "", &ArgumentError{Tool: t.name, Err: err}
	}
	return t.fn(ctx, args)
}

// NewStructured creates a Tool whose argument is a JSON object validated
// against s. The schema is appended to the description.
func NewStructured(
	name, description string,
	s *schema.Schema,
	fn func(ctx context.Context, args map[string]any) (string, error),
) Tool {
	return &schemaTool{name: name, description: description, schema: s, fn: fn}
}

// Typed creates a structured Tool that decodes its validated argument into I.
func Typed[I any](
	name, description string,
	s *schema.Schema,
	fn func(ctx context.Context, input I) (string, error),
) Tool {
	return NewStructured(name, description, s, func(ctx context.Context, args map[string]any) (string, error) {
		raw, err := json.Marshal(args)
		if err != nil {
			return "", &ArgumentError{Tool: name, Err: err}
		}
		var input I
		if err := json.Unmarshal(raw, &input); err != nil {
			return "", &ArgumentError{Tool: name, Err: err}
		}
		return fn(ctx, input)
	})
}
