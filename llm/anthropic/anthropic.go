// Package anthropic adapts the Anthropic Messages API.
//
// Importing the package registers the adapter for models starting with
// claude- or anthropic.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/rickchristie/regent/llm"
)

const (
	EnvKey     = "ANTHROPIC_API_KEY"
	Dependency = "github.com/anthropics/anthropic-sdk-go"

	// DefaultMaxTokens is sent when no max_tokens option is given; the API
	// requires the field.
	DefaultMaxTokens = 4096
)

// Spec describes the adapter for the llm route table.
var Spec = llm.AdapterSpec{
	ID:         llm.ProviderAnthropic,
	EnvKey:     EnvKey,
	Dependency: Dependency,
	New: func(cfg llm.AdapterConfig) (llm.Adapter, error) {
		return New(cfg), nil
	},
}

func init() {
	llm.RegisterAdapter(Spec)
}

// Adapter talks to Anthropic through the official SDK.
type Adapter struct {
	model  string
	client sdk.Client
}

// New creates an adapter. SDK-level retries are disabled; the facade owns
// the retry policy.
func New(cfg llm.AdapterConfig) *Adapter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if baseURL := cfg.StringOption("base_url", ""); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Adapter{
		model:  cfg.Model,
		client: sdk.NewClient(opts...),
	}
}

// Invoke implements llm.Adapter. System messages are lifted into the
// request's system field.
func (a *Adapter) Invoke(ctx context.Context, messages []llm.Message, opts llm.CallOptions) (*llm.Result, error) {
	maxTokens, ok := opts.ExtraInt("max_tokens")
	if !ok {
		maxTokens = DefaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:       sdk.Model(a.model),
		MaxTokens:   int64(maxTokens),
		Temperature: sdk.Float(opts.Temperature),
	}
	if len(opts.Stop) > 0 {
		params.StopSequences = opts.Stop
	}
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			params.System = append(params.System, sdk.TextBlockParam{Text: m.Content})
		case llm.RoleAssistant:
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			params.Messages = append(params.Messages, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classify(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(sdk.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}

	return &llm.Result{
		Model:        a.model,
		Content:      sb.String(),
		InputTokens:  llm.IntPtr(int(msg.Usage.InputTokens)),
		OutputTokens: llm.IntPtr(int(msg.Usage.OutputTokens)),
	}, nil
}

// ParseError implements llm.Adapter. The SDK error carries the raw JSON
// body, whose error.message is the useful part.
func (a *Adapter) ParseError(err error) string {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return llm.NormalizeError(err, "", []byte(apiErr.RawJSON()))
	}
	return llm.NormalizeError(err, "", nil)
}

func classify(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		// 529 is Anthropic's overloaded status.
		if llm.RetryableStatus(apiErr.StatusCode) {
			return llm.Transient(err)
		}
		return err
	}
	if llm.IsTransportFailure(err) {
		return llm.Transient(err)
	}
	return err
}
