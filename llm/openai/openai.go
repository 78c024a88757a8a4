// Package openai adapts the OpenAI chat completions API.
//
// Importing the package registers the adapter for models starting with
// gpt-, text-davinci- or openai.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/rickchristie/regent/llm"
)

const (
	// EnvKey names the API key variable.
	EnvKey = "OPENAI_API_KEY"

	// Dependency is the client library the adapter is built on.
	Dependency = "github.com/sashabaranov/go-openai"
)

// Spec describes the adapter for the llm route table.
var Spec = llm.AdapterSpec{
	ID:         llm.ProviderOpenAI,
	EnvKey:     EnvKey,
	Dependency: Dependency,
	New: func(cfg llm.AdapterConfig) (llm.Adapter, error) {
		return New(cfg), nil
	},
}

func init() {
	llm.RegisterAdapter(Spec)
}

// Adapter talks to OpenAI through go-openai.
type Adapter struct {
	model  string
	client *goopenai.Client
}

// New creates an adapter. A base_url option points it at a compatible
// endpoint.
func New(cfg llm.AdapterConfig) *Adapter {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if baseURL := cfg.StringOption("base_url", ""); baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return &Adapter{
		model:  cfg.Model,
		client: goopenai.NewClientWithConfig(clientCfg),
	}
}

// Invoke implements llm.Adapter.
func (a *Adapter) Invoke(ctx context.Context, messages []llm.Message, opts llm.CallOptions) (*llm.Result, error) {
	req := goopenai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    toChatMessages(messages),
		Temperature: temperature(opts.Temperature),
		Stop:        opts.Stop,
	}
	if n, ok := opts.ExtraInt("max_tokens"); ok {
		req.MaxTokens = n
	}
	if p, ok := opts.ExtraFloat("top_p"); ok {
		req.TopP = float32(p)
	}
	if seed, ok := opts.ExtraInt("seed"); ok {
		req.Seed = &seed
	}
	if opts.ExtraBool("json_mode") {
		req.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: response for %s has no choices", a.model)
	}

	return &llm.Result{
		Model:        a.model,
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  llm.IntPtr(resp.Usage.PromptTokens),
		OutputTokens: llm.IntPtr(resp.Usage.CompletionTokens),
	}, nil
}

// ParseError implements llm.Adapter.
func (a *Adapter) ParseError(err error) string {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return llm.NormalizeError(err, apiErr.Message, nil)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return llm.NormalizeError(err, "", reqErr.Body)
	}
	return llm.NormalizeError(err, "", nil)
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		if llm.RetryableStatus(apiErr.HTTPStatusCode) {
			return llm.Transient(err)
		}
		return err
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		if llm.RetryableStatus(reqErr.HTTPStatusCode) {
			return llm.Transient(err)
		}
		return err
	}
	if llm.IsTransportFailure(err) {
		return llm.Transient(err)
	}
	return err
}

func toChatMessages(messages []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := goopenai.ChatMessageRoleUser
		switch m.Role {
		case llm.RoleSystem:
			role = goopenai.ChatMessageRoleSystem
		case llm.RoleAssistant:
			role = goopenai.ChatMessageRoleAssistant
		}
		out = append(out, goopenai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

// temperature maps 0 to the smallest positive float32; go-openai omits a
// zero temperature from the request and the API would apply its default of 1.
func temperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
