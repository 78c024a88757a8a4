// Package openrouter adapts OpenRouter's OpenAI-compatible API through
// langchaingo.
//
// Importing the package registers the adapter for models starting with
// openrouter. Any model can be routed here with llm.WithAdapter(Spec).
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/tmc/langchaingo/llms"
	lcgopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/rickchristie/regent/llm"
)

const (
	EnvKey     = "OPENROUTER_API_KEY"
	Dependency = "github.com/tmc/langchaingo"

	// BaseURL is the OpenAI-compatible endpoint.
	BaseURL = "https://openrouter.ai/api/v1"
)

// Spec describes the adapter for the llm route table.
var Spec = llm.AdapterSpec{
	ID:         llm.ProviderOpenRouter,
	EnvKey:     EnvKey,
	Dependency: Dependency,
	New: func(cfg llm.AdapterConfig) (llm.Adapter, error) {
		return New(cfg)
	},
}

func init() {
	llm.RegisterAdapter(Spec)
}

// attributionTransport adds OpenRouter's optional app attribution headers.
type attributionTransport struct {
	base     http.RoundTripper
	siteURL  string
	siteName string
}

func (t *attributionTransport) Do(req *http.Request) (*http.Response, error) {
	if t.siteURL != "" {
		req.Header.Set("HTTP-Referer", t.siteURL)
	}
	if t.siteName != "" {
		req.Header.Set("X-Title", t.siteName)
	}
	return t.base.RoundTrip(req)
}

// Adapter talks to OpenRouter.
type Adapter struct {
	model  string
	client llms.Model
}

// New creates an adapter. Options: base_url, site_url, site_name.
func New(cfg llm.AdapterConfig) (*Adapter, error) {
	client, err := lcgopenai.New(
		lcgopenai.WithBaseURL(cfg.StringOption("base_url", BaseURL)),
		lcgopenai.WithToken(cfg.APIKey),
		lcgopenai.WithModel(cfg.Model),
		lcgopenai.WithHTTPClient(&attributionTransport{
			base:     http.DefaultTransport,
			siteURL:  cfg.StringOption("site_url", ""),
			siteName: cfg.StringOption("site_name", ""),
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("openrouter: create client: %w", err)
	}
	return &Adapter{model: cfg.Model, client: client}, nil
}

// NewWithClient wraps an existing langchaingo model.
func NewWithClient(model string, client llms.Model) *Adapter {
	return &Adapter{model: model, client: client}
}

// Invoke implements llm.Adapter.
func (a *Adapter) Invoke(ctx context.Context, messages []llm.Message, opts llm.CallOptions) (*llm.Result, error) {
	resp, err := a.client.GenerateContent(ctx, toMessageContents(messages), callOptions(opts)...)
	if err != nil {
		return nil, classify(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openrouter: response for %s has no choices", a.model)
	}

	choice := resp.Choices[0]
	result := &llm.Result{Model: a.model, Content: choice.Content}
	if n, ok := tokenCount(choice.GenerationInfo, "PromptTokens", "input_tokens"); ok {
		result.InputTokens = llm.IntPtr(n)
	}
	if n, ok := tokenCount(choice.GenerationInfo, "CompletionTokens", "output_tokens"); ok {
		result.OutputTokens = llm.IntPtr(n)
	}
	return result, nil
}

// statusPattern matches langchaingo's non-200 error text, capturing the
// status code and the vendor message when present.
var statusPattern = regexp.MustCompile(`status code: (\d{3})(?::\s*(.*))?`)

// ParseError implements llm.Adapter: the vendor message embedded in the
// error, then a JSON body, then the raw text.
func (a *Adapter) ParseError(err error) string {
	if err == nil {
		return ""
	}
	var structured string
	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		structured = m[2]
	}
	var body []byte
	var bodyErr interface{ ResponseBody() []byte }
	if errors.As(err, &bodyErr) {
		body = bodyErr.ResponseBody()
	}
	return llm.NormalizeError(err, structured, body)
}

func classify(err error) error {
	if m := statusPattern.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		if llm.RetryableStatus(code) {
			return llm.Transient(err)
		}
		return err
	}
	if llm.IsTransportFailure(err) {
		return llm.Transient(err)
	}
	return err
}

func callOptions(opts llm.CallOptions) []llms.CallOption {
	out := []llms.CallOption{
		llms.WithTemperature(opts.Temperature),
	}
	if len(opts.Stop) > 0 {
		out = append(out, llms.WithStopWords(opts.Stop))
	}
	if n, ok := opts.ExtraInt("max_tokens"); ok {
		out = append(out, llms.WithMaxTokens(n))
	}
	if p, ok := opts.ExtraFloat("top_p"); ok {
		out = append(out, llms.WithTopP(p))
	}
	if seed, ok := opts.ExtraInt("seed"); ok {
		out = append(out, llms.WithSeed(seed))
	}
	if opts.ExtraBool("json_mode") {
		out = append(out, llms.WithJSONMode())
	}
	return out
}

func toMessageContents(messages []llm.Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case llm.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case llm.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

// tokenCount reads the first integer found under keys.
func tokenCount(info map[string]any, keys ...string) (int, bool) {
	for _, key := range keys {
		switch v := info[key].(type) {
		case int:
			return v, true
		case int32:
			return int(v), true
		case int64:
			return int(v), true
		case float64:
			return int(v), true
		}
	}
	return 0, false
}
