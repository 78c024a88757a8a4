package llm

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the conversation replayed to the model on every call.
type Message struct {
	Role    Role   `yaml:"role" json:"role"`
	Content string `yaml:"content" json:"content"`
}

// UserMessage is shorthand for a user-role Message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Result is the vendor-agnostic outcome of a single invocation.
//
// Token counts are nil when the vendor did not report usage or when the
// result is a degraded error result produced outside strict mode.
type Result struct {
	Model        string
	Content      string
	InputTokens  *int
	OutputTokens *int

	// Degraded is set when Content is a normalized error message rather
	// than a completion.
	Degraded bool
}

// IntPtr returns a pointer to n. Adapters use it to fill token counts.
func IntPtr(n int) *int {
	return &n
}

// CallOptions are the sampling options handed to an adapter.
type CallOptions struct {
	// Temperature defaults to 0.0.
	Temperature float64

	// Stop lists the stop sequences. Empty means none.
	Stop []string

	// Extra carries free-form vendor parameters such as max_tokens, top_p,
	// seed or json_mode. Adapters ignore keys they do not understand.
	Extra map[string]any
}

// CallOption mutates CallOptions.
type CallOption func(*CallOptions)

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = t
	}
}

// WithStop sets the stop sequences.
func WithStop(stop ...string) CallOption {
	return func(o *CallOptions) {
		o.Stop = append([]string(nil), stop...)
	}
}

// WithExtra sets one free-form vendor parameter.
func WithExtra(key string, value any) CallOption {
	return func(o *CallOptions) {
		if o.Extra == nil {
			o.Extra = make(map[string]any)
		}
		o.Extra[key] = value
	}
}

// NewCallOptions applies opts over the defaults.
func NewCallOptions(opts ...CallOption) CallOptions {
	o := CallOptions{Temperature: 0.0}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ExtraInt reads an integer extra, accepting the numeric kinds produced by
// YAML and JSON decoding.
func (o CallOptions) ExtraInt(key string) (int, bool) {
	switch v := o.Extra[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// ExtraFloat reads a floating point extra.
func (o CallOptions) ExtraFloat(key string) (float64, bool) {
	switch v := o.Extra[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// ExtraBool reads a boolean extra.
func (o CallOptions) ExtraBool(key string) bool {
	v, _ := o.Extra[key].(bool)
	return v
}
