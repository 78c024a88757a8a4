package toolbox

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Declaration names a tool implemented by a method of an owner value.
type Declaration struct {
	Name        string
	Description string
}

// Declare creates a Declaration.
func Declare(name, description string) Declaration {
	return Declaration{Name: name, Description: description}
}

// MissingMethodError is returned when a declared tool has no method.
type MissingMethodError struct {
	Tool  string
	Owner string
}

func (e *MissingMethodError) Error() string {
	return fmt.Sprintf("A tool method '%s' is missing in the %s", e.Tool, e.Owner)
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	stringType  = reflect.TypeOf("")
)

// FromMethods binds each declaration to an exported method of owner. A
// snake_case tool name maps to its CamelCase method, so get_weather is
// served by GetWeather. Accepted method shapes:
//
//	func(string) string
//	func(string) (string, error)
//	func(context.Context, string) string
//	func(context.Context, string) (string, error)
func FromMethods(owner any, decls ...Declaration) ([]Tool, error) {
	val := reflect.ValueOf(owner)
	if !val.IsValid() {
		return nil, fmt.Errorf("nil tool owner")
	}
	ownerName := reflect.Indirect(val).Type().Name()

	tools := make([]Tool, 0, len(decls))
	for _, d := range decls {
		method := val.MethodByName(MethodName(d.Name))
		if !method.IsValid() {
			return nil, &MissingMethodError{Tool: d.Name, Owner: ownerName}
		}
		fn, err := bindMethod(method)
		if err != nil {
			return nil, fmt.Errorf("tool method '%s' in the %s: %w", d.Name, ownerName, err)
		}
		tools = append(tools, New(d.Name, d.Description, fn))
	}
	return tools, nil
}

// MethodName converts a snake_case tool name to an exported method name.
func MethodName(tool string) string {
	var sb strings.Builder
	for _, part := range strings.FieldsFunc(tool, func(r rune) bool { return r == '_' || r == '-' }) {
		first, size := utf8.DecodeRuneInString(part)
		sb.WriteRune(unicode.ToUpper(first))
		sb.WriteString(part[size:])
	}
	return sb.String()
}

func bindMethod(method reflect.Value) (func(context.Context, string) (string, error), error) {
	mt := method.Type()

	withCtx := false
	switch {
	case mt.NumIn() == 1 && mt.In(0) == stringType:
	case mt.NumIn() == 2 && mt.In(0) == contextType && mt.In(1) == stringType:
		withCtx = true
	default:
		return nil, fmt.Errorf("unsupported signature %s", mt)
	}

	withErr := false
	switch {
	case mt.NumOut() == 1 && mt.Out(0) == stringType:
	case mt.NumOut() == 2 && mt.Out(0) == stringType && mt.Out(1) == errorType:
		withErr = true
	default:
		return nil, fmt.Errorf("unsupported signature %s", mt)
	}

	return func(ctx context.Context, arg string) (string, error) {
		in := []reflect.Value{reflect.ValueOf(arg)}
		if withCtx {
			in = []reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(arg)}
		}
		out := method.Call(in)
		if withErr && !out[1].IsNil() {
			return out[0].String(), out[1].Interface().(error)
		}
		return out[0].String(), nil
	}, nil
}
