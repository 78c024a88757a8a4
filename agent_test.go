package regent_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickchristie/regent"
	"github.com/rickchristie/regent/internal/tt"
	"github.com/rickchristie/regent/llm"
	"github.com/rickchristie/regent/react"
	"github.com/rickchristie/regent/toolbox"
)

const instructions = "You are an AI agent"

var priceTool = toolbox.Static("price_tool", "Get the price of cryptocurrencies", "{'BTC': '$107,000', 'ETH': '$6,000'}")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAgent(t *testing.T, adapter *tt.MockAdapter, opts ...regent.Option) *regent.Agent {
	t.Helper()
	model, err := tt.NewLLM(adapter, llm.WithLogger(quietLogger()))
	require.NoError(t, err)

	base := []regent.Option{
		regent.WithLogger(quietLogger()),
		regent.WithTimeProvider(regent.NewMockTimeProvider(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)).WithStep(time.Millisecond)),
	}
	agent, err := regent.NewAgent(instructions, model, append(base, opts...)...)
	require.NoError(t, err)
	return agent
}

func spanTypes(spans []regent.Span) []regent.SpanType {
	types := make([]regent.SpanType, len(spans))
	for i, s := range spans {
		types[i] = s.Type
	}
	return types
}

func TestAgent_AnswersWithoutTools(t *testing.T) {
	adapter := tt.NewMockAdapter().
		AddResponse("Thought: I know the capital of Japan.\nAnswer: Tokyo is the capital of Japan.")
	agent := newAgent(t, adapter)

	answer, err := agent.Run(context.Background(), "What is the capital of Japan?")
	require.NoError(t, err)
	assert.Contains(t, answer, "Tokyo")

	messages := agent.Session().Messages()
	require.Len(t, messages, 3)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Equal(t, react.SystemPrompt(instructions, ""), messages[0].Content)
	assert.Equal(t, llm.UserMessage("What is the capital of Japan?"), messages[1])
	assert.Equal(t, llm.RoleAssistant, messages[2].Role)
	assert.Contains(t, messages[2].Content, "Tokyo")

	spans := agent.Session().Spans()
	assert.Equal(t, []regent.SpanType{regent.SpanInput, regent.SpanLLMCall, regent.SpanAnswer}, spanTypes(spans))
	assert.Equal(t, "What is the capital of Japan?", spans[0].Output)
	assert.Equal(t, "What is the capital of Japan?", spans[1].Input)
	assert.Equal(t, "mock-model", spans[1].Metadata[regent.MetaModel])
	assert.Equal(t, 10, spans[1].Metadata[regent.MetaInputTokens])
	assert.Equal(t, 5, spans[1].Metadata[regent.MetaOutputTokens])
	assert.Equal(t, answer, spans[2].Output)

	for _, s := range spans {
		assert.True(t, s.Closed(), s.Type)
		assert.Greater(t, s.Duration(), time.Duration(0), s.Type)
	}

	require.Len(t, adapter.CapturedOptions, 1)
	assert.Equal(t, []string{react.StopSequence}, adapter.CapturedOptions[0].Stop)
}

func TestAgent_AnswersWithTool(t *testing.T) {
	adapter := tt.NewMockAdapter().
		AddResponse("Thought: I need the current price.\nAction: price_tool | \"Bitcoin\"\nPAUSE").
		AddResponse("Thought: I have the price.\nAnswer: The price of Bitcoin is $107,000.")
	agent := newAgent(t, adapter, regent.WithTools(priceTool))

	answer, err := agent.Run(context.Background(), "What is the price of Bitcoin?")
	require.NoError(t, err)
	assert.Equal(t, "The price of Bitcoin is $107,000.", answer)

	messages := agent.Session().Messages()
	require.Len(t, messages, 5)
	assert.Equal(t, react.SystemPrompt(instructions, "price_tool - Get the price of cryptocurrencies"), messages[0].Content)
	assert.Equal(t, "What is the price of Bitcoin?", messages[1].Content)
	assert.Equal(t, llm.RoleAssistant, messages[2].Role)
	assert.Contains(t, messages[2].Content, "price_tool")
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Observation: {'BTC': '$107,000', 'ETH': '$6,000'}"}, messages[3])
	assert.Equal(t, llm.RoleAssistant, messages[4].Role)
	assert.Contains(t, messages[4].Content, "$107,000")

	spans := agent.Session().Spans()
	assert.Equal(t, []regent.SpanType{
		regent.SpanInput, regent.SpanLLMCall, regent.SpanToolExecution, regent.SpanLLMCall, regent.SpanAnswer,
	}, spanTypes(spans))
	assert.Equal(t, "\"Bitcoin\"", spans[2].Input)
	assert.Equal(t, "price_tool", spans[2].Metadata[regent.MetaTool])
	assert.Equal(t, "{'BTC': '$107,000', 'ETH': '$6,000'}", spans[2].Output)

	// Full history is replayed on every call.
	require.Len(t, adapter.CapturedMessages, 2)
	assert.Len(t, adapter.CapturedMessages[0], 2)
	assert.Len(t, adapter.CapturedMessages[1], 4)
}

func TestAgent_SpanCountForNToolCalls(t *testing.T) {
	for n := 0; n <= 3; n++ {
		adapter := tt.NewMockAdapter()
		for i := 0; i < n; i++ {
			adapter.AddResponse("Action: price_tool | BTC")
		}
		adapter.AddResponse("Answer: done")
		agent := newAgent(t, adapter, regent.WithTools(priceTool))

		_, err := agent.Run(context.Background(), "q")
		require.NoError(t, err)

		spans := agent.Session().Spans()
		require.Len(t, spans, 1+(n+1)+n+1)
		assert.Equal(t, regent.SpanInput, spans[0].Type)
		for i := 0; i < n; i++ {
			assert.Equal(t, regent.SpanLLMCall, spans[1+2*i].Type)
			assert.Equal(t, regent.SpanToolExecution, spans[2+2*i].Type)
		}
		assert.Equal(t, regent.SpanLLMCall, spans[len(spans)-2].Type)
		assert.Equal(t, regent.SpanAnswer, spans[len(spans)-1].Type)
	}
}

func TestAgent_SessionAccumulatesAcrossRuns(t *testing.T) {
	adapter := tt.NewMockAdapter().
		AddResponse("Action: price_tool | Bitcoin").
		AddResponse("Answer: The price of Bitcoin is $107,000.").
		AddResponse("Action: price_tool | Ethereum").
		AddResponse("Answer: The price of Ethereum is $6,000.")
	agent := newAgent(t, adapter, regent.WithTools(priceTool))

	first, err := agent.Run(context.Background(), "What is the price of Bitcoin?")
	require.NoError(t, err)
	assert.Contains(t, first, "$107,000")

	second, err := agent.Run(context.Background(), "What is the price of Ethereum?")
	require.NoError(t, err)
	assert.Contains(t, second, "$6,000")

	messages := agent.Session().Messages()
	require.Len(t, messages, 9)
	systemCount := 0
	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			systemCount++
		}
	}
	assert.Equal(t, 1, systemCount)
	assert.Equal(t, "What is the price of Ethereum?", messages[5].Content)

	spans := agent.Session().Spans()
	assert.Len(t, spans, 10)
	assert.Equal(t, regent.SpanInput, spans[5].Type)

	last, ok := agent.Session().LastAnswer()
	assert.True(t, ok)
	assert.Equal(t, second, last)
}

func TestAgent_UnknownToolBecomesObservation(t *testing.T) {
	adapter := tt.NewMockAdapter().
		AddResponse("Action: weather_tool | Paris").
		AddResponse("Answer: I cannot check the weather.")
	agent := newAgent(t, adapter, regent.WithTools(priceTool))

	answer, err := agent.Run(context.Background(), "Weather in Paris?")
	require.NoError(t, err)
	assert.Equal(t, "I cannot check the weather.", answer)

	messages := agent.Session().Messages()
	assert.Equal(t, "Observation: Tool weather_tool not found", messages[3].Content)

	spans := agent.Session().Spans()
	assert.Equal(t, regent.SpanToolExecution, spans[2].Type)
	assert.Equal(t, "Tool weather_tool not found", spans[2].Metadata[regent.MetaError])
}

func TestAgent_ToolErrorPropagates(t *testing.T) {
	boom := errors.New("exchange unavailable")
	failing := toolbox.New("price_tool", "Get prices", func(context.Context, string) (string, error) {
		return "", boom
	})
	adapter := tt.NewMockAdapter().AddResponse("Action: price_tool | BTC")
	agent := newAgent(t, adapter, regent.WithTools(failing))

	_, err := agent.Run(context.Background(), "price?")

	var toolErr *regent.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "price_tool", toolErr.Tool)
	assert.ErrorIs(t, err, boom)

	spans := agent.Session().Spans()
	last := spans[len(spans)-1]
	assert.Equal(t, regent.SpanToolExecution, last.Type)
	assert.True(t, last.Closed())
	assert.Equal(t, "exchange unavailable", last.Metadata[regent.MetaError])
}

func TestAgent_MalformedOutput(t *testing.T) {
	t.Run("retry asks again", func(t *testing.T) {
		adapter := tt.NewMockAdapter().
			AddResponse("Tokyo, obviously.").
			AddResponse("Answer: Tokyo")
		agent := newAgent(t, adapter)

		answer, err := agent.Run(context.Background(), "Capital of Japan?")
		require.NoError(t, err)
		assert.Equal(t, "Tokyo", answer)

		messages := agent.Session().Messages()
		require.Len(t, messages, 5)
		assert.Equal(t, react.Correction, messages[3].Content)
		assert.Equal(t, []regent.SpanType{
			regent.SpanInput, regent.SpanLLMCall, regent.SpanLLMCall, regent.SpanAnswer,
		}, spanTypes(agent.Session().Spans()))
	})

	t.Run("fail policy returns error", func(t *testing.T) {
		adapter := tt.NewMockAdapter().AddResponse("Tokyo, obviously.")
		agent := newAgent(t, adapter, regent.WithMalformedPolicy(regent.MalformedFail))

		_, err := agent.Run(context.Background(), "Capital of Japan?")
		assert.ErrorIs(t, err, regent.ErrMalformedOutput)
	})
}

func TestAgent_IterationLimit(t *testing.T) {
	adapter := tt.NewMockAdapter()
	for i := 0; i < 5; i++ {
		adapter.AddResponse("Action: price_tool | BTC")
	}
	agent := newAgent(t, adapter, regent.WithTools(priceTool), regent.WithMaxIterations(3))

	_, err := agent.Run(context.Background(), "loop forever")

	var limitErr *regent.IterationLimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 3, limitErr.Limit)
	assert.ErrorIs(t, err, regent.ErrMaxIterations)
	assert.Equal(t, 3, adapter.CallCount())

	for _, s := range agent.Session().Spans() {
		assert.NotEqual(t, regent.SpanAnswer, s.Type)
	}
}

func TestAgent_ModelErrorInStrictMode(t *testing.T) {
	adapter := tt.NewMockAdapter().AddError(errors.New("Incorrect API key provided"))
	agent := newAgent(t, adapter)

	_, err := agent.Run(context.Background(), "hi")

	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Incorrect API key provided", apiErr.Message)

	spans := agent.Session().Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, "Incorrect API key provided", spans[1].Metadata[regent.MetaError])
}

func TestAgent_ModelErrorInLenientMode(t *testing.T) {
	adapter := tt.NewMockAdapter()
	for i := 0; i < 20; i++ {
		adapter.AddError(errors.New("Incorrect API key provided"))
	}
	model, err := tt.NewLLM(adapter, llm.WithStrictMode(false), llm.WithLogger(quietLogger()))
	require.NoError(t, err)
	agent, err := regent.NewAgent(instructions, model, regent.WithLogger(quietLogger()))
	require.NoError(t, err)

	answer, err := agent.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Incorrect API key provided", answer)
	assert.Equal(t, 1, adapter.CallCount())

	spans := agent.Session().Spans()
	assert.Equal(t, []regent.SpanType{regent.SpanInput, regent.SpanLLMCall, regent.SpanAnswer}, spanTypes(spans))
	assert.Equal(t, "Incorrect API key provided", spans[1].Output)
	assert.Equal(t, "Incorrect API key provided", spans[1].Metadata[regent.MetaError])
	assert.Nil(t, spans[1].Metadata[regent.MetaInputTokens])
	assert.Equal(t, "Incorrect API key provided", spans[2].Output)
	assert.Equal(t, true, spans[2].Metadata[regent.MetaDegraded])

	last, ok := agent.Session().LastAnswer()
	assert.True(t, ok)
	assert.Equal(t, "Incorrect API key provided", last)
}

func TestAgent_CancelledContext(t *testing.T) {
	agent := newAgent(t, tt.NewMockAdapter())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agent.Run(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
}

type InvalidWeatherAgent struct{}

type ValidWeatherAgent struct{}

func (ValidWeatherAgent) GetWeather(location string) string {
	return "72F and sunny in " + location
}

func TestNewAgent_MethodTools(t *testing.T) {
	model, err := tt.NewLLM(tt.NewMockAdapter())
	require.NoError(t, err)

	t.Run("missing method fails before any call", func(t *testing.T) {
		adapter := tt.NewMockAdapter()
		model, err := tt.NewLLM(adapter)
		require.NoError(t, err)

		_, err = regent.NewAgent(instructions, model,
			regent.WithMethodTools(InvalidWeatherAgent{}, toolbox.Declare("get_weather", "Get the weather")),
		)
		assert.EqualError(t, err, "A tool method 'get_weather' is missing in the InvalidWeatherAgent")
		assert.Equal(t, 0, adapter.CallCount())
	})

	t.Run("declared method is dispatched", func(t *testing.T) {
		adapter := tt.NewMockAdapter().
			AddResponse("Action: get_weather | San Francisco").
			AddResponse("Answer: It is sunny.")
		agent := newAgent(t, adapter,
			regent.WithMethodTools(ValidWeatherAgent{}, toolbox.Declare("get_weather", "Get the weather")),
		)

		_, err := agent.Run(context.Background(), "Weather?")
		require.NoError(t, err)
		assert.Equal(t, "Observation: 72F and sunny in San Francisco", agent.Session().Messages()[3].Content)
		assert.Contains(t, agent.SystemPrompt(), "get_weather - Get the weather")
	})

	t.Run("invalid options", func(t *testing.T) {
		_, err := regent.NewAgent(instructions, model, regent.WithMaxIterations(0))
		assert.Error(t, err)

		_, err = regent.NewAgent(instructions, nil)
		assert.Error(t, err)

		_, err = regent.NewAgent(instructions, model, regent.WithTools(priceTool, priceTool))
		assert.Error(t, err)
	})
}

type recorder struct {
	events []string
}

func (r *recorder) OnSpanStarted(_ *regent.Session, s regent.Span) {
	r.events = append(r.events, "start:"+string(s.Type))
}

func (r *recorder) OnSpanEnded(_ *regent.Session, s regent.Span) {
	r.events = append(r.events, "end:"+string(s.Type))
}

func (r *recorder) OnMessage(_ *regent.Session, m llm.Message) {
	r.events = append(r.events, "msg:"+string(m.Role))
}

func TestAgent_Subscribers(t *testing.T) {
	rec := &recorder{}
	adapter := tt.NewMockAdapter().
		AddResponse("Action: price_tool | BTC").
		AddResponse("Answer: $107,000")
	agent := newAgent(t, adapter, regent.WithTools(priceTool), regent.WithSubscriber(rec))

	_, err := agent.Run(context.Background(), "price?")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"msg:system",
		"start:INPUT", "end:INPUT",
		"msg:user",
		"start:LLM_CALL", "end:LLM_CALL", "msg:assistant",
		"start:TOOL_EXECUTION", "end:TOOL_EXECUTION", "msg:user",
		"start:LLM_CALL", "end:LLM_CALL", "msg:assistant",
		"start:ANSWER", "end:ANSWER",
	}, rec.events)
}

func TestSession_SpansAreCopies(t *testing.T) {
	agent := newAgent(t, tt.NewMockAdapter().AddResponse("Answer: ok"))
	_, err := agent.Run(context.Background(), "hi")
	require.NoError(t, err)

	spans := agent.Session().Spans()
	spans[1].Output = "tampered"
	spans[1].Metadata[regent.MetaModel] = "tampered"

	fresh := agent.Session().Spans()
	assert.Equal(t, "Answer: ok", fresh[1].Output)
	assert.Equal(t, "mock-model", fresh[1].Metadata[regent.MetaModel])
	assert.NotEmpty(t, agent.Session().ID())
}
