package regent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rickchristie/regent/llm"
	"github.com/rickchristie/regent/react"
	"github.com/rickchristie/regent/toolbox"
)

// DefaultMaxIterations bounds the model calls of a single Run.
const DefaultMaxIterations = 10

// Model is what the agent needs from an LLM. *llm.LLM implements it.
type Model interface {
	Model() string
	Invoke(ctx context.Context, messages []llm.Message, opts ...llm.CallOption) (*llm.Result, error)
}

var _ Model = (*llm.LLM)(nil)

// MalformedPolicy decides what happens when a reply has neither an Action
// nor an Answer.
type MalformedPolicy int

const (
	// MalformedRetry asks the model to follow the format again. The extra
	// call counts toward the iteration limit.
	MalformedRetry MalformedPolicy = iota

	// MalformedFail ends the run with *MalformedOutputError.
	MalformedFail
)

// Agent runs the ReAct loop against a model. Its session accumulates
// across Run calls; Run calls on one agent are serialized.
type Agent struct {
	instructions  string
	model         Model
	tools         *toolbox.Registry
	systemPrompt  string
	maxIterations int
	malformed     MalformedPolicy
	callOptions   []llm.CallOption
	logger        *slog.Logger

	mu      sync.Mutex
	session *Session
}

type agentSettings struct {
	tools         []toolbox.Tool
	methodOwners  []methodTools
	maxIterations int
	malformed     MalformedPolicy
	callOptions   []llm.CallOption
	logger        *slog.Logger
	clock         TimeProvider
	subs          subscribers
}

type methodTools struct {
	owner any
	decls []toolbox.Declaration
}

// Option configures NewAgent.
type Option func(*agentSettings)

// WithTools registers tools in prompt order.
func WithTools(tools ...toolbox.Tool) Option {
	return func(s *agentSettings) {
		s.tools = append(s.tools, tools...)
	}
}

// WithMethodTools registers tools implemented as methods of owner. A
// declaration without a matching method makes NewAgent fail.
func WithMethodTools(owner any, decls ...toolbox.Declaration) Option {
	return func(s *agentSettings) {
		s.methodOwners = append(s.methodOwners, methodTools{owner: owner, decls: decls})
	}
}

// WithMaxIterations sets how many model calls a Run may make.
func WithMaxIterations(n int) Option {
	return func(s *agentSettings) {
		s.maxIterations = n
	}
}

// WithMalformedPolicy sets the handling of replies without a marker.
func WithMalformedPolicy(p MalformedPolicy) Option {
	return func(s *agentSettings) {
		s.malformed = p
	}
}

// WithCallOptions adds options to every model call.
func WithCallOptions(opts ...llm.CallOption) Option {
	return func(s *agentSettings) {
		s.callOptions = append(s.callOptions, opts...)
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *agentSettings) {
		s.logger = logger
	}
}

// WithTimeProvider sets the clock used for span timestamps.
func WithTimeProvider(tp TimeProvider) Option {
	return func(s *agentSettings) {
		s.clock = tp
	}
}

// WithSubscriber registers a subscriber implementing any of
// SpanStartedSubscriber, SpanEndedSubscriber or MessageSubscriber.
func WithSubscriber(sub any) Option {
	return func(s *agentSettings) {
		s.subs.add(sub)
	}
}

// NewAgent creates an agent. Tool declarations are checked here, before
// any model call.
func NewAgent(instructions string, model Model, opts ...Option) (*Agent, error) {
	if model == nil {
		return nil, errors.New("agent requires a model")
	}

	s := agentSettings{maxIterations: DefaultMaxIterations}
	for _, opt := range opts {
		opt(&s)
	}
	if s.maxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", s.maxIterations)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = NewDefaultTimeProvider()
	}

	tools := append([]toolbox.Tool(nil), s.tools...)
	for _, m := range s.methodOwners {
		bound, err := toolbox.FromMethods(m.owner, m.decls...)
		if err != nil {
			return nil, err
		}
		tools = append(tools, bound...)
	}
	registry, err := toolbox.NewRegistry(tools...)
	if err != nil {
		return nil, err
	}

	subs := s.subs
	return &Agent{
		instructions:  instructions,
		model:         model,
		tools:         registry,
		systemPrompt:  react.SystemPrompt(instructions, registry.Describe()),
		maxIterations: s.maxIterations,
		malformed:     s.malformed,
		callOptions:   s.callOptions,
		logger:        s.logger,
		session:       newSession(s.clock, &subs),
	}, nil
}

// Session returns the agent's session.
func (a *Agent) Session() *Session {
	return a.session
}

// Instructions returns the instructions the agent was created with.
func (a *Agent) Instructions() string {
	return a.instructions
}

// SystemPrompt returns the system message the session starts with.
func (a *Agent) SystemPrompt() string {
	return a.systemPrompt
}

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *toolbox.Registry {
	return a.tools
}

// Run answers input, calling tools as the model requests. It returns the
// text of the Answer, or an error from the model, a tool, the iteration
// limit or ctx. When a non-strict model degrades a failure into a result,
// the run ends with that message as its answer.
func (a *Agent) Run(ctx context.Context, input string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session := a.session
	if !session.hasMessages() {
		session.appendMessage(llm.RoleSystem, a.systemPrompt)
	}
	span := session.startSpan(SpanInput, input, nil)
	session.endSpan(span, input, nil)
	session.appendMessage(llm.RoleUser, input)

	a.logger.Debug("agent run started", "session", session.ID(), "model", a.model.Model())

	for iteration := 1; iteration <= a.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		reply, degraded, err := a.think(ctx, iteration)
		if err != nil {
			return "", err
		}
		if degraded {
			span := session.startSpan(SpanAnswer, "", map[string]any{MetaDegraded: true})
			session.endSpan(span, reply, nil)
			a.logger.Warn("agent ended on a failed model call", "session", session.ID(), "iteration", iteration)
			return reply, nil
		}

		step := react.Parse(reply)
		switch step.Kind {
		case react.KindAnswer:
			var meta map[string]any
			if step.Thought != "" {
				meta = map[string]any{"thought": step.Thought}
			}
			span := session.startSpan(SpanAnswer, "", meta)
			session.endSpan(span, step.Answer, nil)
			a.logger.Debug("agent answered", "session", session.ID(), "iterations", iteration)
			return step.Answer, nil

		case react.KindAction:
			if err := a.act(ctx, step.Action); err != nil {
				return "", err
			}

		default:
			if a.malformed == MalformedFail {
				return "", &MalformedOutputError{Output: reply}
			}
			a.logger.Warn("model reply has no action or answer", "session", session.ID(), "iteration", iteration)
			session.appendMessage(llm.RoleUser, react.Correction)
		}
	}

	a.logger.Warn("agent hit iteration limit", "session", session.ID(), "limit", a.maxIterations)
	return "", &IterationLimitError{Limit: a.maxIterations}
}

// think makes one model call. A degraded result from a non-strict model
// is reported so the run can end with its message instead of retrying.
func (a *Agent) think(ctx context.Context, iteration int) (string, bool, error) {
	session := a.session
	messages := session.Messages()
	span := session.startSpan(SpanLLMCall, messages[len(messages)-1].Content, map[string]any{
		MetaModel:     a.model.Model(),
		MetaIteration: iteration,
	})

	opts := append([]llm.CallOption{llm.WithStop(react.StopSequence)}, a.callOptions...)
	result, err := a.model.Invoke(ctx, messages, opts...)
	if err != nil {
		session.endSpan(span, "", map[string]any{MetaError: err.Error()})
		return "", false, err
	}

	meta := map[string]any{}
	if result.Degraded {
		meta[MetaError] = result.Content
	}
	if result.InputTokens != nil {
		meta[MetaInputTokens] = *result.InputTokens
	}
	if result.OutputTokens != nil {
		meta[MetaOutputTokens] = *result.OutputTokens
	}
	session.endSpan(span, result.Content, meta)
	session.appendMessage(llm.RoleAssistant, result.Content)
	return result.Content, result.Degraded, nil
}

// act runs one tool. Unknown tools and rejected arguments become an
// observation for the model; any other tool error ends the run.
func (a *Agent) act(ctx context.Context, action react.Action) error {
	session := a.session
	span := session.startSpan(SpanToolExecution, action.Argument, map[string]any{
		MetaTool: action.Tool,
	})

	out, err := a.tools.Call(ctx, action.Tool, action.Argument)
	if err != nil {
		var argErr *toolbox.ArgumentError
		if errors.Is(err, toolbox.ErrToolNotFound) || errors.As(err, &argErr) {
			out = err.Error()
			session.endSpan(span, out, map[string]any{MetaError: out})
			session.appendMessage(llm.RoleUser, react.Observation(out))
			return nil
		}
		session.endSpan(span, "", map[string]any{MetaError: err.Error()})
		return &ToolError{Tool: action.Tool, Argument: action.Argument, Err: err}
	}

	session.endSpan(span, out, nil)
	session.appendMessage(llm.RoleUser, react.Observation(out))
	return nil
}
