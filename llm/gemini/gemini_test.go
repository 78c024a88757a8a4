package gemini

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/rickchristie/regent/llm"
)

func TestSplitMessages(t *testing.T) {
	system, history := splitMessages([]llm.Message{
		{Role: llm.RoleSystem, Content: "You are an AI agent"},
		llm.UserMessage("What is the price of Bitcoin?"),
		{Role: llm.RoleAssistant, Content: "Action: price_tool | Bitcoin"},
		llm.UserMessage("Observation: $107,000"),
	})

	assert.Equal(t, "You are an AI agent", system)
	require.Len(t, history, 3)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("Action: price_tool | Bitcoin")}, history[1].Parts)
	assert.Equal(t, "user", history[2].Role)
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Thought: ok\n"), genai.Text("Answer: Tokyo")}},
		}},
	}
	assert.Equal(t, "Thought: ok\nAnswer: Tokyo", responseText(resp))
	assert.Equal(t, "", responseText(&genai.GenerateContentResponse{}))
	assert.Equal(t, "", responseText(nil))
}

func TestAdapter_ParseError(t *testing.T) {
	adapter := New(llm.AdapterConfig{Model: "gemini-1.5-flash", APIKey: "key"})

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "structured message",
			err:      &googleapi.Error{Code: 400, Message: "API key not valid. Please pass a valid API key."},
			expected: "API key not valid. Please pass a valid API key.",
		},
		{
			name:     "body message",
			err:      fmt.Errorf("generate: %w", &googleapi.Error{Code: 404, Body: `{"error": {"code": 404, "message": "models/gemini-9 is not found"}}`}),
			expected: "models/gemini-9 is not found",
		},
		{
			name:     "plain error",
			err:      errors.New("dial tcp: lookup failed"),
			expected: "dial tcp: lookup failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ParseError(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	assert.True(t, llm.IsRetryable(classify(&googleapi.Error{Code: 503})))
	assert.True(t, llm.IsRetryable(classify(&googleapi.Error{Code: 429})))
	assert.False(t, llm.IsRetryable(classify(&googleapi.Error{Code: 400})))
	assert.False(t, llm.IsRetryable(classify(errors.New("blocked"))))
}

func TestAdapter_CloseWithoutClient(t *testing.T) {
	adapter := New(llm.AdapterConfig{Model: "gemini-1.5-flash", APIKey: "key"})
	assert.NoError(t, adapter.Close())
}
