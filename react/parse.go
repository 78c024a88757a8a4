package react

import (
	"regexp"
	"strings"
)

// Kind classifies a parsed model reply.
type Kind int

const (
	// KindMalformed means neither an Answer nor an Action was found.
	KindMalformed Kind = iota
	KindAction
	KindAnswer
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindAnswer:
		return "answer"
	}
	return "malformed"
}

// Action is a tool call requested by the model.
type Action struct {
	Tool     string
	Argument string
}

// Step is the structured reading of one model reply.
type Step struct {
	Kind    Kind
	Thought string
	Action  Action
	Answer  string
}

var (
	thoughtPattern = regexp.MustCompile(`(?m)^[ \t]*Thought:[ \t]*`)
	actionPattern  = regexp.MustCompile(`(?m)^[ \t]*Action:[ \t]*(.*)$`)
	answerPattern  = regexp.MustCompile(`(?m)^[ \t]*(?:Final )?Answer:[ \t]*`)
	markerPattern  = regexp.MustCompile(`(?m)^[ \t]*(?:Thought|Action|PAUSE|Observation|(?:Final )?Answer)\b`)
)

// Parse reads a model reply. An Answer marker takes precedence over an
// Action; the answer is everything after the first Answer marker.
func Parse(raw string) Step {
	var step Step

	if loc := thoughtPattern.FindStringIndex(raw); loc != nil {
		rest := raw[loc[1]:]
		if next := markerPattern.FindStringIndex(rest); next != nil {
			rest = rest[:next[0]]
		}
		step.Thought = strings.TrimSpace(rest)
	}

	if loc := answerPattern.FindStringIndex(raw); loc != nil {
		step.Kind = KindAnswer
		step.Answer = strings.TrimSpace(raw[loc[1]:])
		return step
	}

	if m := actionPattern.FindStringSubmatch(raw); m != nil {
		name, arg, _ := strings.Cut(m[1], "|")
		name = strings.TrimSpace(name)
		if name != "" {
			step.Kind = KindAction
			step.Action = Action{
				Tool:     name,
				Argument: strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(arg), StopSequence)),
			}
			return step
		}
	}

	step.Kind = KindMalformed
	return step
}

// Observation formats a tool result as the next user message.
func Observation(result string) string {
	return "Observation: " + result
}

// Correction is sent when a reply has neither an Action nor an Answer.
const Correction = "Observation: Your reply did not follow the format. " +
	"Respond with \"Action: tool_name | tool argument\" to use a tool " +
	"or \"Answer: your final answer\" to finish."
