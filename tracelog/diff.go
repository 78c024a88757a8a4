package tracelog

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/rickchristie/regent"
	"github.com/rickchristie/regent/llm"
)

// outline is the part of a transcript that should repeat between runs of
// the same conversation. Session ids, timestamps and token counts are left
// out.
type outline struct {
	Grammar  string        `yaml:"grammar"`
	Messages []llm.Message `yaml:"messages"`
	Steps    []step        `yaml:"steps"`
}

type step struct {
	Type   regent.SpanType `yaml:"type"`
	Tool   string          `yaml:"tool,omitempty"`
	Input  string          `yaml:"input,omitempty"`
	Output string          `yaml:"output,omitempty"`
	Error  string          `yaml:"error,omitempty"`
}

func outlineOf(t Transcript) outline {
	o := outline{Grammar: t.Grammar, Messages: t.Messages, Steps: make([]step, len(t.Spans))}
	for i, span := range t.Spans {
		s := step{Type: span.Type, Input: span.Input, Output: span.Output}
		if tool, ok := span.Metadata[regent.MetaTool]; ok {
			s.Tool = fmt.Sprint(tool)
		}
		if e, ok := span.Metadata[regent.MetaError]; ok {
			s.Error = fmt.Sprint(e)
		}
		o.Steps[i] = s
	}
	return o
}

// Diff compares the conversations recorded in two transcripts and returns
// a unified diff, or "" when they match.
func Diff(want, got Transcript) (string, error) {
	a, err := yaml.Marshal(outlineOf(want))
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}
	b, err := yaml.Marshal(outlineOf(got))
	if err != nil {
		return "", fmt.Errorf("encode transcript: %w", err)
	}
	if string(a) == string(b) {
		return "", nil
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
}
