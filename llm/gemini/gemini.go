// Package gemini adapts the Google Gemini API.
//
// Importing the package registers the adapter for models starting with
// gemini.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/rickchristie/regent/llm"
)

const (
	EnvKey     = "GEMINI_API_KEY"
	Dependency = "github.com/google/generative-ai-go"
)

// Spec describes the adapter for the llm route table.
var Spec = llm.AdapterSpec{
	ID:         llm.ProviderGemini,
	EnvKey:     EnvKey,
	Dependency: Dependency,
	New: func(cfg llm.AdapterConfig) (llm.Adapter, error) {
		return New(cfg), nil
	},
}

func init() {
	llm.RegisterAdapter(Spec)
}

// Adapter talks to Gemini through generative-ai-go. The client is created
// on first use since it needs a context.
type Adapter struct {
	model   string
	apiKey  string
	baseURL string

	mu     sync.Mutex
	client *genai.Client
}

// New creates an adapter.
func New(cfg llm.AdapterConfig) *Adapter {
	return &Adapter{
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		baseURL: cfg.StringOption("base_url", ""),
	}
}

func (a *Adapter) getClient(ctx context.Context) (*genai.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil {
		return a.client, nil
	}
	opts := []option.ClientOption{option.WithAPIKey(a.apiKey)}
	if a.baseURL != "" {
		opts = append(opts, option.WithEndpoint(a.baseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	a.client = client
	return client, nil
}

// Invoke implements llm.Adapter. The last message is sent, the rest
// become chat history; system messages become the system instruction.
func (a *Adapter) Invoke(ctx context.Context, messages []llm.Message, opts llm.CallOptions) (*llm.Result, error) {
	client, err := a.getClient(ctx)
	if err != nil {
		return nil, err
	}

	model := client.GenerativeModel(a.model)
	model.SetTemperature(float32(opts.Temperature))
	if len(opts.Stop) > 0 {
		model.StopSequences = opts.Stop
	}
	if n, ok := opts.ExtraInt("max_tokens"); ok {
		model.SetMaxOutputTokens(int32(n))
	}
	if p, ok := opts.ExtraFloat("top_p"); ok {
		model.SetTopP(float32(p))
	}
	if opts.ExtraBool("json_mode") {
		model.ResponseMIMEType = "application/json"
	}

	system, history := splitMessages(messages)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(history) == 0 {
		return nil, errors.New("gemini: no user message to send")
	}

	chat := model.StartChat()
	chat.History = history[:len(history)-1]
	last := history[len(history)-1]

	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, classify(err)
	}

	result := &llm.Result{Model: a.model, Content: responseText(resp)}
	if resp.UsageMetadata != nil {
		result.InputTokens = llm.IntPtr(int(resp.UsageMetadata.PromptTokenCount))
		result.OutputTokens = llm.IntPtr(int(resp.UsageMetadata.CandidatesTokenCount))
	}
	return result, nil
}

// ParseError implements llm.Adapter.
func (a *Adapter) ParseError(err error) string {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return llm.NormalizeError(err, gErr.Message, []byte(gErr.Body))
	}
	return llm.NormalizeError(err, "", nil)
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client == nil {
		return nil
	}
	err := a.client.Close()
	a.client = nil
	return err
}

func classify(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		if llm.RetryableStatus(gErr.Code) {
			return llm.Transient(err)
		}
		return err
	}
	if llm.IsTransportFailure(err) {
		return llm.Transient(err)
	}
	return err
}

// splitMessages joins system messages and converts the rest into genai
// contents, where the assistant role is called "model".
func splitMessages(messages []llm.Message) (string, []*genai.Content) {
	var system []string
	var history []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	return strings.Join(system, "\n\n"), history
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}
