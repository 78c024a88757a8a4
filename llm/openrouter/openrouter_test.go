package openrouter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/rickchristie/regent/llm"
)

// fakeModel is an llms.Model returning a canned response.
type fakeModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, opt := range options {
		opt(&f.opts)
	}
	return f.resp, f.err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestAdapter_Invoke(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			Content:        "Answer: Tokyo",
			GenerationInfo: map[string]any{"PromptTokens": 20, "CompletionTokens": 4},
		}},
	}}
	adapter := NewWithClient("openrouter/auto", model)

	result, err := adapter.Invoke(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "You are an AI agent"},
		llm.UserMessage("What is the capital of Japan?"),
		{Role: llm.RoleAssistant, Content: "Thought: hmm"},
	}, llm.NewCallOptions(
		llm.WithStop("PAUSE"),
		llm.WithExtra("max_tokens", 128),
		llm.WithExtra("json_mode", true),
	))
	require.NoError(t, err)

	assert.Equal(t, "openrouter/auto", result.Model)
	assert.Equal(t, "Answer: Tokyo", result.Content)
	assert.Equal(t, 20, *result.InputTokens)
	assert.Equal(t, 4, *result.OutputTokens)

	require.Len(t, model.messages, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, 0.0, model.opts.Temperature)
	assert.Equal(t, []string{"PAUSE"}, model.opts.StopWords)
	assert.Equal(t, 128, model.opts.MaxTokens)
	assert.True(t, model.opts.JSONMode)
}

func TestAdapter_InvokeWithoutUsage(t *testing.T) {
	model := &fakeModel{resp: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "Answer: 42"}},
	}}
	result, err := NewWithClient("meta-llama/llama-3.1-8b-instruct", model).
		Invoke(context.Background(), []llm.Message{llm.UserMessage("q")}, llm.NewCallOptions())
	require.NoError(t, err)
	assert.Nil(t, result.InputTokens)
	assert.Nil(t, result.OutputTokens)
}

type bodyError struct {
	msg  string
	body []byte
}

func (e *bodyError) Error() string        { return e.msg }
func (e *bodyError) ResponseBody() []byte { return e.body }

func TestAdapter_ParseError(t *testing.T) {
	adapter := NewWithClient("openrouter/auto", &fakeModel{})

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "message in status error",
			err:      errors.New("API returned unexpected status code: 401: No auth credentials found"),
			expected: "No auth credentials found",
		},
		{
			name:     "json body",
			err:      &bodyError{msg: "request failed", body: []byte(`{"error": {"message": "Model not found", "code": 404}}`)},
			expected: "Model not found",
		},
		{
			name:     "unparseable body",
			err:      &bodyError{msg: "request failed", body: []byte(`not json`)},
			expected: "request failed",
		},
		{
			name:     "status without message",
			err:      errors.New("API returned unexpected status code: 502"),
			expected: "API returned unexpected status code: 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ParseError(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.True(t, llm.IsRetryable(classify(errors.New("API returned unexpected status code: 503: busy"))))
	assert.True(t, llm.IsRetryable(classify(errors.New("API returned unexpected status code: 429: slow down"))))
	assert.False(t, llm.IsRetryable(classify(errors.New("API returned unexpected status code: 401: nope"))))
}

func TestAttributionTransport(t *testing.T) {
	var referer, title string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
	}))
	defer srv.Close()

	transport := &attributionTransport{base: http.DefaultTransport, siteURL: "https://example.com", siteName: "Regent"}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := transport.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "https://example.com", referer)
	assert.Equal(t, "Regent", title)
}

func TestNew(t *testing.T) {
	adapter, err := New(llm.AdapterConfig{
		Model:   "openrouter/auto",
		APIKey:  "sk-or",
		Options: map[string]any{"site_name": "Regent"},
	})
	require.NoError(t, err)
	assert.Equal(t, "openrouter/auto", adapter.model)
}
